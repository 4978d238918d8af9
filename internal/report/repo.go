package report

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

// Upsert 按 rental_id 插入或整行覆盖汇总记录。
func (r *Repo) Upsert(ctx context.Context, rec *RentalSummary) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	if rec == nil {
		return fmt.Errorf("record is nil")
	}

	var existing RentalSummary
	err := db.Where("rental_id = ?", rec.RentalID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(rec).Error
	}
	if err != nil {
		return err
	}

	existing.UserName = rec.UserName
	existing.UserLocation = rec.UserLocation
	existing.VehicleDetails = rec.VehicleDetails
	existing.RentalDuration = rec.RentalDuration
	existing.TotalCostCents = rec.TotalCostCents
	existing.RentalStatus = rec.RentalStatus
	existing.RentalCategory = rec.RentalCategory
	existing.LastUpdated = rec.LastUpdated
	return db.Save(&existing).Error
}

func (r *Repo) FindByRentalID(ctx context.Context, rentalID uint) (*RentalSummary, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var rec RentalSummary
	if err := db.Where("rental_id = ?", rentalID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Repo) ListAll(ctx context.Context) ([]RentalSummary, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var recs []RentalSummary
	if err := db.Order("rental_id asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// Stats 汇总表行数与最近一次跑批时间（状态页用）。
func (r *Repo) Stats(ctx context.Context) (int64, time.Time, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return 0, time.Time{}, fmt.Errorf("repo db is nil")
	}
	var total int64
	if err := db.Model(&RentalSummary{}).Count(&total).Error; err != nil {
		return 0, time.Time{}, err
	}
	if total == 0 {
		return 0, time.Time{}, nil
	}
	var newest RentalSummary
	if err := db.Order("last_updated DESC").First(&newest).Error; err != nil {
		return total, time.Time{}, err
	}
	return total, newest.LastUpdated, nil
}
