package rental

import (
	"context"
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

func (r *Repo) Create(ctx context.Context, rec *Rental) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(rec).Error
}

func (r *Repo) Update(ctx context.Context, rec *Rental) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Save(rec).Error
}

func (r *Repo) FindByID(ctx context.Context, id uint) (*Rental, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var rec Rental
	if err := db.Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Repo) FindByBookingRef(ctx context.Context, ref string) (*Rental, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var rec Rental
	if err := db.Where("booking_ref = ?", ref).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountOverlapping 统计与 [pickup, ret] 闭区间重叠的已有租约数。
// 重叠判定两端取闭：existing.return >= pickup AND existing.pickup <= ret。
// 注意这里不按状态过滤，已取消的租约同样计入占用（沿用既有行为）。
func (r *Repo) CountOverlapping(ctx context.Context, vehicleID uint, pickup, ret time.Time) (int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return 0, fmt.Errorf("repo db is nil")
	}
	var count int64
	err := db.Model(&Rental{}).
		Where("vehicle_id = ? AND return_date >= ? AND pickup_date <= ?", vehicleID, pickup, ret).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DistinctVehicleIDsByUser 用户租过的车辆 id 去重集合（推荐查询的起点）。
func (r *Repo) DistinctVehicleIDsByUser(ctx context.Context, userID uint) ([]uint, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var ids []uint
	err := db.Model(&Rental{}).
		Distinct("vehicle_id").
		Where("user_id = ?", userID).
		Order("vehicle_id asc").
		Pluck("vehicle_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListByUser 按用户查租约 + 分页。
func (r *Repo) ListByUser(ctx context.Context, userID uint, offset, limit int) ([]Rental, int64, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, 0, fmt.Errorf("repo db is nil")
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := db.Model(&Rental{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rentals []Rental
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&rentals).Error; err != nil {
		return nil, 0, err
	}
	return rentals, total, nil
}
