package rental

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SmartRentalHub/SmartRentalHub/internal/common/logger"
	"github.com/SmartRentalHub/SmartRentalHub/internal/common/tracing"
	"github.com/SmartRentalHub/SmartRentalHub/internal/recommend"
	"github.com/SmartRentalHub/SmartRentalHub/internal/user"
	"github.com/SmartRentalHub/SmartRentalHub/internal/vehicle"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DateLayout 预订接口交换日历日的格式。
const DateLayout = "2006-01-02"

// ParseDate 把 "YYYY-MM-DD" 解析为 UTC 零点时刻。
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateRange, s)
	}
	return t, nil
}

// Service 封装预订与推荐读取两个用例（不依赖传输层）。
//
// 每个写操作打开一个独立事务（读 + 写 + 提交在一个作用域里完成）。
// 已知限制：并发预订同一辆车的重叠日期时，默认隔离级别下两个事务
// 可能都通过重叠检查并各自提交；上生产前需要把事务提到 serializable，
// 或在重叠检查前按 (vehicle, 日期段) 拿排它锁。
type Service struct {
	db   *gorm.DB
	log  logger.Logger
	topN int
}

func NewService(db *gorm.DB, log logger.Logger, topN int) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if topN <= 0 {
		topN = 5
	}
	return &Service{db: db, log: log, topN: topN}
}

// BookInput 预订入参；日期是 "YYYY-MM-DD" 日历日。
type BookInput struct {
	UserID     uint
	VehicleID  uint
	PickupDate string
	ReturnDate string
}

// Book 检查可用性并创建租约：
//  1. 日期校验：可解析，且还车日严格晚于取车日，否则 ErrInvalidDateRange
//  2. 用户/车辆存在性校验，否则 ErrUserNotFound / ErrVehicleNotFound
//  3. 闭区间重叠检查，占用则 ErrVehicleUnavailable
//  4. 费用 = 天数 * 日租金（分），整数精确
//  5. 写入 Ongoing 租约，取还车位置从车辆注册位置拷贝
//
// 以上全部在单个事务内执行，失败不落任何数据。
func (s *Service) Book(ctx context.Context, in BookInput) (*Rental, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("service not initialized")
	}

	span, ctx := tracing.StartSpan(ctx, "rental.Book")
	defer span.Finish()

	pickup, err := ParseDate(in.PickupDate)
	if err != nil {
		return nil, err
	}
	ret, err := ParseDate(in.ReturnDate)
	if err != nil {
		return nil, err
	}
	if !ret.After(pickup) {
		return nil, fmt.Errorf("%w: return %s not after pickup %s",
			ErrInvalidDateRange, in.ReturnDate, in.PickupDate)
	}
	days := int64(ret.Sub(pickup) / (24 * time.Hour))

	var created *Rental
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := user.NewRepo(tx).FindByID(ctx, in.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("find user: %w", err)
		}

		veh, err := vehicle.NewRepo(tx).FindByID(ctx, in.VehicleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVehicleNotFound
			}
			return fmt.Errorf("find vehicle: %w", err)
		}

		overlapping, err := NewRepo(tx).CountOverlapping(ctx, in.VehicleID, pickup, ret)
		if err != nil {
			return fmt.Errorf("overlap check: %w", err)
		}
		if overlapping > 0 {
			return ErrVehicleUnavailable
		}

		loc := veh.Location()
		rec := &Rental{
			BookingRef:     uuid.NewString(),
			UserID:         in.UserID,
			VehicleID:      in.VehicleID,
			Status:         StatusOngoing,
			PickupDate:     pickup,
			ReturnDate:     ret,
			PickupLocation: loc,
			ReturnLocation: loc,
			TotalCostCents: days * veh.DailyRateCents,
		}
		if err := NewRepo(tx).Create(ctx, rec); err != nil {
			return fmt.Errorf("create rental: %w", err)
		}
		created = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"rental_id":   created.ID,
		"booking_ref": created.BookingRef,
		"vehicle_id":  created.VehicleID,
		"user_id":     created.UserID,
		"cost_cents":  created.TotalCostCents,
	}).Info("rental booked")
	return created, nil
}

// FindByBookingRef 按预订确认号查询租约（确认页数据源）。
func (s *Service) FindByBookingRef(ctx context.Context, ref string) (*Rental, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	rec, err := NewRepo(s.db).FindByBookingRef(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRentalNotFound
		}
		return nil, err
	}
	return rec, nil
}

// UpdateStatus 根据状态机规则进行租约状态流转（完成 / 取消）。
func (s *Service) UpdateStatus(ctx context.Context, rentalID uint, to Status, now time.Time) (*Rental, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	if to == "" {
		return nil, fmt.Errorf("target status required")
	}

	var updated *Rental
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := NewRepo(tx)
		rec, err := repo.FindByID(ctx, rentalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRentalNotFound
			}
			return err
		}
		if err := ApplyTransition(rec, to, now); err != nil {
			return err
		}
		if err := repo.Update(ctx, rec); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RecommendReason 推荐结果的产生原因，调用侧据此决定降级策略。
type RecommendReason string

const (
	ReasonRecommended  RecommendReason = "recommended"
	ReasonNoHistory    RecommendReason = "no_history"    // 用户没有租车历史
	ReasonNoScores     RecommendReason = "no_scores"     // 有历史但没有匹配的配对分
	ReasonStoreFailure RecommendReason = "store_failure" // 底层存储错误（已记日志）
)

// RecommendOutcome 推荐查询结果。Err 只在 ReasonStoreFailure 时非空，
// 供测试与监控检查；对外展示时按空列表处理即可。
type RecommendOutcome struct {
	Reason   RecommendReason
	Vehicles []vehicle.Vehicle
	Err      error
}

// Recommend 基于用户租车历史查共租推荐：
// 取用户租过的车辆去重集合 -> 以其为 vehicle_id_1 的配对分按分数降序取 TopN
// -> 收集配对的另一侧车辆并回表取详情。
//
// 任何存储错误都不向上抛：记日志并返回 store_failure 空结果。
func (s *Service) Recommend(ctx context.Context, userID uint) RecommendOutcome {
	if s == nil || s.db == nil {
		return RecommendOutcome{Reason: ReasonStoreFailure, Err: fmt.Errorf("service not initialized")}
	}

	span, ctx := tracing.StartSpan(ctx, "rental.Recommend")
	defer span.Finish()

	fail := func(stage string, err error) RecommendOutcome {
		s.log.WithFields(map[string]interface{}{
			"user_id": userID,
			"stage":   stage,
		}).Warnf("recommendation lookup failed: %v", err)
		return RecommendOutcome{Reason: ReasonStoreFailure, Err: err}
	}

	rented, err := NewRepo(s.db).DistinctVehicleIDsByUser(ctx, userID)
	if err != nil {
		return fail("history", err)
	}
	if len(rented) == 0 {
		return RecommendOutcome{Reason: ReasonNoHistory}
	}

	scores, err := recommend.NewRepo(s.db).TopByFirstVehicles(ctx, rented, s.topN)
	if err != nil {
		return fail("scores", err)
	}
	if len(scores) == 0 {
		return RecommendOutcome{Reason: ReasonNoScores}
	}

	// 配对另一侧去重后回表取车辆详情
	seen := make(map[uint]struct{}, len(scores))
	ids := make([]uint, 0, len(scores))
	for _, sc := range scores {
		if _, ok := seen[sc.VehicleID2]; ok {
			continue
		}
		seen[sc.VehicleID2] = struct{}{}
		ids = append(ids, sc.VehicleID2)
	}

	vehicles, err := vehicle.NewRepo(s.db).FindByIDs(ctx, ids)
	if err != nil {
		return fail("vehicles", err)
	}
	return RecommendOutcome{Reason: ReasonRecommended, Vehicles: vehicles}
}
