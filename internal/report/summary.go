package report

import "time"

// RentalSummary 是 rental_summary 表的 GORM 模型（反范式化的报表行）。
// 每条租约最多对应一行（rental_id 唯一），整表由 ETL 跑批重算覆盖，
// 其他组件只读。
type RentalSummary struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	RentalID       uint      `gorm:"uniqueIndex;not null"`
	UserName       string    `gorm:"size:128;not null"` // "First Last"
	UserLocation   string    `gorm:"size:128;not null"` // "City, State"
	VehicleDetails string    `gorm:"size:160;not null"` // "Make Model - Type"
	RentalDuration int       `gorm:"not null"`          // 整天数，至少为 1
	TotalCostCents int64     `gorm:"not null"`
	RentalStatus   string    `gorm:"size:16;not null"`
	RentalCategory string    `gorm:"size:32"` // Luxury / Economy
	LastUpdated    time.Time `gorm:"not null"`
}

func (RentalSummary) TableName() string {
	return "rental_summary"
}
