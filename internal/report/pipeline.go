package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SmartRentalHub/SmartRentalHub/internal/common/logger"
	"github.com/SmartRentalHub/SmartRentalHub/internal/common/tracing"
	"github.com/SmartRentalHub/SmartRentalHub/internal/rental"
	"github.com/SmartRentalHub/SmartRentalHub/internal/user"
	"github.com/SmartRentalHub/SmartRentalHub/internal/vehicle"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Pipeline 汇总报表 ETL：全量遍历租约，关联用户/车辆，重算 rental_summary。
// 幂等：同一份租约数据重复跑，除 last_updated 外产出完全一致。
//
// 错误语义：任何意外错误让整个事务回滚并返回给调用者（不自动重试）；
// 但“租约引用的用户/车辆不存在”只告警跳过，不算失败——和预订侧直接报
// ReferenceNotFound 的策略不一致，属于有意保留的历史行为。
type Pipeline struct {
	db          *gorm.DB
	log         logger.Logger
	loc         *time.Location
	luxuryTypes map[string]struct{}
}

// NewPipeline 创建 ETL 跑批。
// timezone 是报表时间戳统一换算到的 IANA 时区（如 America/New_York）；
// luxuryTypes 是归入 Luxury 档的车型（大小写不敏感），其余归 Economy。
func NewPipeline(db *gorm.DB, log logger.Logger, timezone string, luxuryTypes []string) (*Pipeline, error) {
	if log == nil {
		log = logger.Nop()
	}
	if timezone == "" {
		timezone = "America/New_York"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load report timezone %q: %w", timezone, err)
	}

	lux := make(map[string]struct{}, len(luxuryTypes))
	for _, t := range luxuryTypes {
		lux[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	if len(lux) == 0 {
		lux["suv"] = struct{}{}
	}

	return &Pipeline{db: db, log: log, loc: loc, luxuryTypes: lux}, nil
}

// Run 执行一次完整的 ETL。全部行在内存里算完后单事务提交，要么全部落库要么全不落。
func (p *Pipeline) Run(ctx context.Context) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("pipeline not initialized")
	}

	span, ctx := tracing.StartSpan(ctx, "report.Run")
	defer span.Finish()

	runID := uuid.NewString()
	log := p.log.WithField("run_id", runID)
	start := time.Now()
	log.Info("aggregation run started")

	var written, skipped int
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// extract
		var rentals []rental.Rental
		if err := tx.Order("id asc").Find(&rentals).Error; err != nil {
			return fmt.Errorf("extract rentals: %w", err)
		}

		users := user.NewRepo(tx)
		vehicles := vehicle.NewRepo(tx)
		now := time.Now().In(p.loc)

		// transform
		records := make([]*RentalSummary, 0, len(rentals))
		for i := range rentals {
			r := &rentals[i]

			u, err := users.FindByID(ctx, r.UserID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					log.WithField("rental_id", r.ID).Warn("skip summary: user missing")
					skipped++
					continue
				}
				return fmt.Errorf("join user for rental %d: %w", r.ID, err)
			}
			v, err := vehicles.FindByID(ctx, r.VehicleID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					log.WithField("rental_id", r.ID).Warn("skip summary: vehicle missing")
					skipped++
					continue
				}
				return fmt.Errorf("join vehicle for rental %d: %w", r.ID, err)
			}

			records = append(records, &RentalSummary{
				RentalID:       r.ID,
				UserName:       u.DisplayName(),
				UserLocation:   u.Location(),
				VehicleDetails: v.Details(),
				RentalDuration: clampDuration(r.Days()),
				TotalCostCents: r.TotalCostCents,
				RentalStatus:   string(r.Status),
				RentalCategory: p.categorize(v.Type),
				LastUpdated:    now,
			})
		}

		// load
		repo := NewRepo(tx)
		for _, rec := range records {
			if err := repo.Upsert(ctx, rec); err != nil {
				return fmt.Errorf("upsert summary for rental %d: %w", rec.RentalID, err)
			}
		}
		written = len(records)
		return nil
	})
	if err != nil {
		log.Errorf("aggregation run aborted: %v", err)
		return err
	}

	log.WithFields(map[string]interface{}{
		"written": written,
		"skipped": skipped,
		"cost":    time.Since(start).String(),
	}).Info("aggregation run completed")
	return nil
}

// Status 汇总表当前行数与最近更新时间（状态接口的数据源）。
func (p *Pipeline) Status(ctx context.Context) (total int64, lastUpdated time.Time, err error) {
	if p == nil || p.db == nil {
		return 0, time.Time{}, fmt.Errorf("pipeline not initialized")
	}
	return NewRepo(p.db).Stats(ctx)
}

// clampDuration 租期天数下限钳到 1，避免零天/负天的汇总行。
func clampDuration(days int64) int {
	if days < 1 {
		return 1
	}
	return int(days)
}

// categorize 两档分类器：车型在 luxury 列表里归 Luxury，其余 Economy。
func (p *Pipeline) categorize(vehicleType string) string {
	if _, ok := p.luxuryTypes[strings.ToLower(strings.TrimSpace(vehicleType))]; ok {
		return "Luxury"
	}
	return "Economy"
}
