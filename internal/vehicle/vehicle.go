package vehicle

import (
	"fmt"
	"time"
)

// 车辆状态（展示用字段；可用性判断只看租约重叠，不看这里）。
const (
	StatusAvailable   = "Available"
	StatusMaintenance = "Maintenance"
	StatusRetired     = "Retired"
)

// Vehicle 是 vehicles 表的 GORM 模型。
// 日租金按“分”存整数（DailyRateCents），费用计算走整数乘法，避免分以下精度被截断。
type Vehicle struct {
	ID             uint    `gorm:"primaryKey;autoIncrement"`
	Make           string  `gorm:"size:64;not null"`
	Model          string  `gorm:"size:64;not null"`
	Year           int     `gorm:"not null"`
	Type           string  `gorm:"size:32;not null"` // sedan / suv / truck ...
	DailyRateCents int64   `gorm:"not null"`         // 必须 > 0
	Status         string  `gorm:"size:16;not null;default:'Available'"`
	LocationCity   string  `gorm:"size:64;not null"`
	LocationState  string  `gorm:"size:64;not null"`
	LocationLat    *float64
	LocationLng    *float64
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// Location 取车/还车位置串（"City, State"），预订时拷贝到租约上。
func (v Vehicle) Location() string {
	return fmt.Sprintf("%s, %s", v.LocationCity, v.LocationState)
}

// Details 报表用的车辆描述（"Make Model - Type"）。
func (v Vehicle) Details() string {
	return fmt.Sprintf("%s %s - %s", v.Make, v.Model, v.Type)
}
