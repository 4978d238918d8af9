package recommend_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/SmartRentalHub/SmartRentalHub/internal/recommend"
	"github.com/SmartRentalHub/SmartRentalHub/internal/rental"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	// 内存库必须单连接，否则每个连接各自一张空库
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&rental.Rental{}, &recommend.VehiclePairScore{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

var refSeq int

func seedRental(t *testing.T, db *gorm.DB, userID, vehicleID uint) {
	t.Helper()
	refSeq++
	day := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	r := &rental.Rental{
		BookingRef:     fmt.Sprintf("ref-%d", refSeq),
		UserID:         userID,
		VehicleID:      vehicleID,
		Status:         rental.StatusOngoing,
		PickupDate:     day,
		ReturnDate:     day.AddDate(0, 0, 2),
		PickupLocation: "Austin, TX",
		ReturnLocation: "Austin, TX",
		TotalCostCents: 8000,
	}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("seed rental: %v", err)
	}
}

func loadPairs(t *testing.T, db *gorm.DB) []recommend.VehiclePairScore {
	t.Helper()
	var pairs []recommend.VehiclePairScore
	if err := db.Order("vehicle_id_1 asc, vehicle_id_2 asc").Find(&pairs).Error; err != nil {
		t.Fatalf("load pairs: %v", err)
	}
	return pairs
}

func TestRunCountsCoRentPairs(t *testing.T) {
	db := newTestDB(t)
	// 用户 1 租过车辆 {10, 20, 30}，应产出三个配对，各计 1 次
	seedRental(t, db, 1, 10)
	seedRental(t, db, 1, 20)
	seedRental(t, db, 1, 30)

	eng := recommend.NewEngine(db, nil, nil)
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pairs := loadPairs(t, db)
	if len(pairs) != 3 {
		t.Fatalf("pairs = %d, want 3", len(pairs))
	}
	want := [][2]uint{{10, 20}, {10, 30}, {20, 30}}
	for i, p := range pairs {
		if p.VehicleID1 != want[i][0] || p.VehicleID2 != want[i][1] {
			t.Fatalf("pair %d = (%d,%d), want (%d,%d)", i, p.VehicleID1, p.VehicleID2, want[i][0], want[i][1])
		}
		if p.CoRentCount != 1 {
			t.Fatalf("pair (%d,%d) count = %d, want 1", p.VehicleID1, p.VehicleID2, p.CoRentCount)
		}
		if p.RecommendationScore != 1.0 {
			t.Fatalf("pair (%d,%d) score = %v, want 1", p.VehicleID1, p.VehicleID2, p.RecommendationScore)
		}
		if p.LastUpdated.IsZero() {
			t.Fatalf("pair (%d,%d) missing last_updated", p.VehicleID1, p.VehicleID2)
		}
	}
}

func TestRunDeduplicatesRepeatRentalsPerUser(t *testing.T) {
	db := newTestDB(t)
	// 同一用户重复租同一辆车，不应把配对次数刷高
	seedRental(t, db, 1, 10)
	seedRental(t, db, 1, 10)
	seedRental(t, db, 1, 20)

	eng := recommend.NewEngine(db, nil, nil)
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pairs := loadPairs(t, db)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	if pairs[0].CoRentCount != 1 {
		t.Fatalf("count = %d, want 1 (dedup per user)", pairs[0].CoRentCount)
	}
}

func TestRunAccumulatesAcrossUsers(t *testing.T) {
	db := newTestDB(t)
	// 两个用户都租过 {10, 20}，配对 (10,20) 计 2 次
	seedRental(t, db, 1, 10)
	seedRental(t, db, 1, 20)
	seedRental(t, db, 2, 20)
	seedRental(t, db, 2, 10)

	eng := recommend.NewEngine(db, nil, nil)
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pairs := loadPairs(t, db)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	p := pairs[0]
	if p.VehicleID1 != 10 || p.VehicleID2 != 20 {
		t.Fatalf("pair = (%d,%d), want (10,20)", p.VehicleID1, p.VehicleID2)
	}
	if p.CoRentCount != 2 {
		t.Fatalf("count = %d, want 2", p.CoRentCount)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	seedRental(t, db, 1, 10)
	seedRental(t, db, 1, 20)
	seedRental(t, db, 2, 20)
	seedRental(t, db, 2, 30)

	eng := recommend.NewEngine(db, nil, nil)
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := loadPairs(t, db)

	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second := loadPairs(t, db)

	// 覆盖式写入：重复跑不追加行，主键与计数都不变
	if len(second) != len(first) {
		t.Fatalf("rows changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.ID != b.ID {
			t.Fatalf("row %d id changed: %d -> %d", i, a.ID, b.ID)
		}
		if a.CoRentCount != b.CoRentCount || a.RecommendationScore != b.RecommendationScore {
			t.Fatalf("row %d values changed: %+v vs %+v", i, a, b)
		}
	}
}

func TestRunAppliesCustomScoreFunc(t *testing.T) {
	db := newTestDB(t)
	seedRental(t, db, 1, 10)
	seedRental(t, db, 1, 20)
	seedRental(t, db, 2, 10)
	seedRental(t, db, 2, 20)

	double := func(coRentCount int64) float64 { return float64(coRentCount * 2) }
	eng := recommend.NewEngine(db, nil, double)
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pairs := loadPairs(t, db)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	if pairs[0].CoRentCount != 2 || pairs[0].RecommendationScore != 4.0 {
		t.Fatalf("got count=%d score=%v, want count=2 score=4", pairs[0].CoRentCount, pairs[0].RecommendationScore)
	}
}

func TestRunAbortsOnStoreError(t *testing.T) {
	db := newTestDB(t)
	seedRental(t, db, 1, 10)
	seedRental(t, db, 1, 20)

	// 配对分表不可用属于意外错误，跑批必须报错返回
	if err := db.Migrator().DropTable(&recommend.VehiclePairScore{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	eng := recommend.NewEngine(db, nil, nil)
	if err := eng.Run(context.Background()); err == nil {
		t.Fatalf("expected run to abort on store error")
	}
}

func TestUpsertRejectsUnnormalizedPair(t *testing.T) {
	db := newTestDB(t)
	repo := recommend.NewRepo(db)

	bad := &recommend.VehiclePairScore{
		VehicleID1: 20, VehicleID2: 10,
		CoRentCount: 1, RecommendationScore: 1, LastUpdated: time.Now().UTC(),
	}
	if err := repo.Upsert(context.Background(), bad); err == nil {
		t.Fatalf("expected error for unnormalized pair")
	}
}

func TestTopByFirstVehiclesOrdering(t *testing.T) {
	db := newTestDB(t)
	repo := recommend.NewRepo(db)
	now := time.Now().UTC()

	seed := []*recommend.VehiclePairScore{
		{VehicleID1: 1, VehicleID2: 2, CoRentCount: 1, RecommendationScore: 1, LastUpdated: now},
		{VehicleID1: 1, VehicleID2: 3, CoRentCount: 3, RecommendationScore: 3, LastUpdated: now},
		{VehicleID1: 2, VehicleID2: 4, CoRentCount: 3, RecommendationScore: 3, LastUpdated: now},
		{VehicleID1: 5, VehicleID2: 6, CoRentCount: 9, RecommendationScore: 9, LastUpdated: now},
	}
	for _, s := range seed {
		if err := repo.Upsert(context.Background(), s); err != nil {
			t.Fatalf("seed pair: %v", err)
		}
	}

	// 只看 vehicle_id_1 命中的配对；同分按主键升序
	got, err := repo.TopByFirstVehicles(context.Background(), []uint{1, 2}, 2)
	if err != nil {
		t.Fatalf("TopByFirstVehicles: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].VehicleID1 != 1 || got[0].VehicleID2 != 3 {
		t.Fatalf("first = (%d,%d), want (1,3)", got[0].VehicleID1, got[0].VehicleID2)
	}
	if got[1].VehicleID1 != 2 || got[1].VehicleID2 != 4 {
		t.Fatalf("second = (%d,%d), want (2,4)", got[1].VehicleID1, got[1].VehicleID2)
	}

	// 空历史直接返回空，不触发查询
	none, err := repo.TopByFirstVehicles(context.Background(), nil, 5)
	if err != nil {
		t.Fatalf("TopByFirstVehicles(nil): %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no rows for empty history")
	}
}
