package recommend

import "time"

// VehiclePairScore 是 vehicle_pair_scores 表的 GORM 模型。
// 主键语义上是无序车辆对，入库前统一规整为 VehicleID1 < VehicleID2，
// 唯一索引保证同一对最多一行。
type VehiclePairScore struct {
	ID                  uint      `gorm:"primaryKey;autoIncrement"`
	VehicleID1          uint      `gorm:"column:vehicle_id_1;uniqueIndex:idx_vehicle_pair;not null"`
	VehicleID2          uint      `gorm:"column:vehicle_id_2;uniqueIndex:idx_vehicle_pair;not null"`
	CoRentCount         int64     `gorm:"not null"`
	RecommendationScore float64   `gorm:"not null"`
	LastUpdated         time.Time `gorm:"not null"`
}

// ScoreFunc 把共租次数换算成推荐分。
// 配对逻辑不感知打分方式，换打分函数不用动配对代码。
type ScoreFunc func(coRentCount int64) float64

// CountScore 默认打分：直接用共租次数（占位实现）。
func CountScore(coRentCount int64) float64 {
	return float64(coRentCount)
}
