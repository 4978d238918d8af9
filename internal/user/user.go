package user

import (
	"fmt"
	"time"
)

// User 是 users 表的 GORM 模型。
// 人口属性（城市/州/国家/年龄）会被报表跑批反范式化，字段名与汇总表保持对应。
type User struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	FirstName     string    `gorm:"size:64;not null"`
	LastName      string    `gorm:"size:64;not null"`
	Username      string    `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash  string    `gorm:"size:128;not null"`
	PasswordSalt  string    `gorm:"size:64;not null"`
	Email         string    `gorm:"uniqueIndex;size:128;not null"`
	PhoneNumber   string    `gorm:"size:32;not null"`
	Address       string    `gorm:"size:255"`
	City          string    `gorm:"size:64"`
	State         string    `gorm:"size:64"`
	PostalCode    string    `gorm:"size:16"`
	Country       string    `gorm:"size:64"`
	Age           int       `gorm:"not null"`
	LicenseNumber string    `gorm:"uniqueIndex;size:64;not null"`
	RegisteredOn  time.Time `gorm:"autoCreateTime"`
}

// DisplayName 报表用的展示名（"First Last"）。
func (u User) DisplayName() string {
	return fmt.Sprintf("%s %s", u.FirstName, u.LastName)
}

// Location 报表用的位置串（"City, State"）。
func (u User) Location() string {
	return fmt.Sprintf("%s, %s", u.City, u.State)
}
