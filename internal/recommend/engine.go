package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SmartRentalHub/SmartRentalHub/internal/common/logger"
	"github.com/SmartRentalHub/SmartRentalHub/internal/common/tracing"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Engine 共租推荐跑批：从全量租约历史统计“同一用户租过的车辆对”，
// 产出 {共租次数, 推荐分} 并覆盖式写入 vehicle_pair_scores。
//
// 整个流程是 map/reduce 形态：
//   map    按用户分组，取每人租过的车辆去重集合
//   shuffle 集合内枚举全部无序对（小 id 在前）并全局累加
//   reduce  对每个出现过的配对套用打分函数
//   load    单事务 upsert 全部配对
//
// 每次运行都从零重算，输入相同则输出相同（与遍历顺序无关）。
// 单用户成本 O(k²)，k 是该用户租过的不同车辆数；k 到几十量级之后要换增量方案。
type Engine struct {
	db    *gorm.DB
	log   logger.Logger
	score ScoreFunc
}

func NewEngine(db *gorm.DB, log logger.Logger, score ScoreFunc) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	if score == nil {
		score = CountScore
	}
	return &Engine{db: db, log: log, score: score}
}

// rentalRow 是跑批需要的租约最小投影（避免反向依赖租约包）。
type rentalRow struct {
	UserID    uint
	VehicleID uint
}

// pairKey 规整后的无序车辆对（A < B）。
type pairKey struct {
	A uint
	B uint
}

// Run 执行一次完整的推荐跑批。任何错误都会让整个事务回滚，本次运行不落任何数据。
func (e *Engine) Run(ctx context.Context) error {
	if e == nil || e.db == nil {
		return fmt.Errorf("engine not initialized")
	}

	span, ctx := tracing.StartSpan(ctx, "recommend.Run")
	defer span.Finish()

	runID := uuid.NewString()
	log := e.log.WithField("run_id", runID)
	start := time.Now()
	log.Info("recommendation run started")

	var pairCount int
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// extract
		var rows []rentalRow
		if err := tx.Table("rentals").Select("user_id, vehicle_id").Scan(&rows).Error; err != nil {
			return fmt.Errorf("extract rentals: %w", err)
		}

		// map + shuffle
		pairs := countPairs(rows)
		pairCount = len(pairs)

		// reduce + load
		now := time.Now().UTC()
		repo := NewRepo(tx)
		for _, p := range sortedKeys(pairs) {
			rec := &VehiclePairScore{
				VehicleID1:          p.A,
				VehicleID2:          p.B,
				CoRentCount:         pairs[p],
				RecommendationScore: e.score(pairs[p]),
				LastUpdated:         now,
			}
			if err := repo.Upsert(ctx, rec); err != nil {
				return fmt.Errorf("upsert pair (%d,%d): %w", p.A, p.B, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Errorf("recommendation run aborted: %v", err)
		return err
	}

	log.WithFields(map[string]interface{}{
		"pairs": pairCount,
		"cost":  time.Since(start).String(),
	}).Info("recommendation run completed")
	return nil
}

// countPairs 按用户去重后枚举无序车辆对并累加次数。
func countPairs(rows []rentalRow) map[pairKey]int64 {
	byUser := make(map[uint]map[uint]struct{})
	for _, row := range rows {
		set, ok := byUser[row.UserID]
		if !ok {
			set = make(map[uint]struct{})
			byUser[row.UserID] = set
		}
		set[row.VehicleID] = struct{}{}
	}

	pairs := make(map[pairKey]int64)
	for _, set := range byUser {
		ids := make([]uint, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				pairs[pairKey{A: ids[i], B: ids[j]}]++
			}
		}
	}
	return pairs
}

// sortedKeys 固定配对的写入顺序，保证跑批日志与主键分配可复现。
func sortedKeys(pairs map[pairKey]int64) []pairKey {
	keys := make([]pairKey, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].A != keys[j].A {
			return keys[i].A < keys[j].A
		}
		return keys[i].B < keys[j].B
	})
	return keys
}
