package vehicle

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, v *Vehicle) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	if v != nil && v.DailyRateCents <= 0 {
		return fmt.Errorf("daily_rate_cents must be positive")
	}
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *Repo) FindByID(ctx context.Context, id uint) (*Vehicle, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var v Vehicle
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// FindByIDs 批量查车（推荐结果回表用）；结果按主键升序，和 IN 集合的顺序无关。
func (r *Repo) FindByIDs(ctx context.Context, ids []uint) ([]Vehicle, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var vs []Vehicle
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id asc").Find(&vs).Error; err != nil {
		return nil, err
	}
	return vs, nil
}

func (r *Repo) List(ctx context.Context, offset, limit int) ([]Vehicle, int64, error) {
	if r == nil || r.db == nil {
		return nil, 0, fmt.Errorf("repo db is nil")
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&Vehicle{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var vs []Vehicle
	if err := r.db.WithContext(ctx).Order("id asc").Offset(offset).Limit(limit).Find(&vs).Error; err != nil {
		return nil, 0, err
	}
	return vs, total, nil
}
