package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

// Upsert 按 (vehicle_id_1, vehicle_id_2) 插入或覆盖一条配对分。
// 调用前配对必须已规整为 id_1 < id_2。
func (r *Repo) Upsert(ctx context.Context, rec *VehiclePairScore) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	if rec == nil {
		return fmt.Errorf("record is nil")
	}
	if rec.VehicleID1 >= rec.VehicleID2 {
		return fmt.Errorf("pair not normalized: %d >= %d", rec.VehicleID1, rec.VehicleID2)
	}

	var existing VehiclePairScore
	err := db.Where("vehicle_id_1 = ? AND vehicle_id_2 = ?", rec.VehicleID1, rec.VehicleID2).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(rec).Error
	}
	if err != nil {
		return err
	}

	existing.CoRentCount = rec.CoRentCount
	existing.RecommendationScore = rec.RecommendationScore
	existing.LastUpdated = rec.LastUpdated
	return db.Save(&existing).Error
}

// TopByFirstVehicles 取 vehicle_id_1 落在给定集合里的前 n 条配对分。
// 排序：分数降序，分数相同按主键升序（即插入顺序，保证结果稳定）。
func (r *Repo) TopByFirstVehicles(ctx context.Context, vehicleIDs []uint, n int) ([]VehiclePairScore, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	if len(vehicleIDs) == 0 {
		return nil, nil
	}
	if n <= 0 {
		n = 5
	}
	var scores []VehiclePairScore
	err := db.Where("vehicle_id_1 IN ?", vehicleIDs).
		Order("recommendation_score DESC, id ASC").
		Limit(n).
		Find(&scores).Error
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// LastUpdatedAt 最近一次跑批写入时间（监控/状态页用）。
func (r *Repo) LastUpdatedAt(ctx context.Context) (time.Time, int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return time.Time{}, 0, fmt.Errorf("repo db is nil")
	}
	var total int64
	if err := db.Model(&VehiclePairScore{}).Count(&total).Error; err != nil {
		return time.Time{}, 0, err
	}
	if total == 0 {
		return time.Time{}, 0, nil
	}
	var newest VehiclePairScore
	if err := db.Order("last_updated DESC").First(&newest).Error; err != nil {
		return time.Time{}, total, err
	}
	return newest.LastUpdated, total, nil
}
