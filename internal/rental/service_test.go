package rental

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SmartRentalHub/SmartRentalHub/internal/recommend"
	"github.com/SmartRentalHub/SmartRentalHub/internal/user"
	"github.com/SmartRentalHub/SmartRentalHub/internal/vehicle"
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
	if err := db.AutoMigrate(
		&user.User{},
		&vehicle.Vehicle{},
		&Rental{},
		&recommend.VehiclePairScore{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *user.User {
	t.Helper()
	u := &user.User{
		FirstName:     "Test",
		LastName:      "User",
		Username:      username,
		PasswordHash:  "x",
		PasswordSalt:  "x",
		Email:         username + "@example.com",
		PhoneNumber:   "555-0100",
		City:          "Austin",
		State:         "TX",
		Age:           30,
		LicenseNumber: "LIC-" + username,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedVehicle(t *testing.T, db *gorm.DB, rateCents int64, typ string) *vehicle.Vehicle {
	t.Helper()
	v := &vehicle.Vehicle{
		Make:           "Toyota",
		Model:          "Corolla",
		Year:           2022,
		Type:           typ,
		DailyRateCents: rateCents,
		Status:         vehicle.StatusAvailable,
		LocationCity:   "Austin",
		LocationState:  "TX",
	}
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
	return v
}

func countRentals(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&Rental{}).Count(&n).Error; err != nil {
		t.Fatalf("count rentals: %v", err)
	}
	return n
}

func TestBookComputesCostAndRejectsOverlap(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, 5)
	ctx := context.Background()

	u := seedUser(t, db, "ada")
	v := seedVehicle(t, db, 4000, "sedan") // 日租金 40.00

	first, err := svc.Book(ctx, BookInput{
		UserID: u.ID, VehicleID: v.ID,
		PickupDate: "2024-12-01", ReturnDate: "2024-12-05",
	})
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if first.TotalCostCents != 16000 {
		t.Fatalf("first cost = %d, want 16000", first.TotalCostCents)
	}
	if first.Status != StatusOngoing {
		t.Fatalf("status = %s, want Ongoing", first.Status)
	}
	if first.PickupLocation != "Austin, TX" || first.ReturnLocation != "Austin, TX" {
		t.Fatalf("locations not copied from vehicle: %q / %q", first.PickupLocation, first.ReturnLocation)
	}
	if first.BookingRef == "" {
		t.Fatalf("expected booking ref")
	}

	// 区间重叠（含端点）必须拒绝
	_, err = svc.Book(ctx, BookInput{
		UserID: u.ID, VehicleID: v.ID,
		PickupDate: "2024-12-03", ReturnDate: "2024-12-06",
	})
	if !errors.Is(err, ErrVehicleUnavailable) {
		t.Fatalf("expected ErrVehicleUnavailable, got %v", err)
	}

	// 紧邻但不重叠的区间可以订
	second, err := svc.Book(ctx, BookInput{
		UserID: u.ID, VehicleID: v.ID,
		PickupDate: "2024-12-06", ReturnDate: "2024-12-09",
	})
	if err != nil {
		t.Fatalf("non-overlapping booking: %v", err)
	}
	if second.TotalCostCents != 12000 {
		t.Fatalf("second cost = %d, want 12000", second.TotalCostCents)
	}

	if n := countRentals(t, db); n != 2 {
		t.Fatalf("rentals = %d, want 2", n)
	}
}

func TestBookSharedBoundaryDateBlocks(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, 5)
	ctx := context.Background()

	u := seedUser(t, db, "ada")
	v := seedVehicle(t, db, 4000, "sedan")

	if _, err := svc.Book(ctx, BookInput{
		UserID: u.ID, VehicleID: v.ID,
		PickupDate: "2024-12-01", ReturnDate: "2024-12-05",
	}); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	// 闭区间判定：取车日等于已有还车日也算重叠
	_, err := svc.Book(ctx, BookInput{
		UserID: u.ID, VehicleID: v.ID,
		PickupDate: "2024-12-05", ReturnDate: "2024-12-08",
	})
	if !errors.Is(err, ErrVehicleUnavailable) {
		t.Fatalf("expected ErrVehicleUnavailable on shared boundary, got %v", err)
	}
}

func TestBookInvalidDateRange(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, 5)
	ctx := context.Background()

	u := seedUser(t, db, "ada")
	v := seedVehicle(t, db, 4000, "sedan")

	cases := []struct {
		pickup string
		ret    string
	}{
		{"2024-12-05", "2024-12-05"}, // 等于取车日
		{"2024-12-05", "2024-12-01"}, // 早于取车日
		{"not-a-date", "2024-12-05"},
		{"2024-12-01", "garbage"},
	}
	for _, tc := range cases {
		_, err := svc.Book(ctx, BookInput{
			UserID: u.ID, VehicleID: v.ID,
			PickupDate: tc.pickup, ReturnDate: tc.ret,
		})
		if !errors.Is(err, ErrInvalidDateRange) {
			t.Fatalf("pickup=%s return=%s: expected ErrInvalidDateRange, got %v", tc.pickup, tc.ret, err)
		}
	}

	if n := countRentals(t, db); n != 0 {
		t.Fatalf("invalid bookings left %d rentals", n)
	}
}

func TestBookReferenceNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, 5)
	ctx := context.Background()

	u := seedUser(t, db, "ada")
	v := seedVehicle(t, db, 4000, "sedan")

	_, err := svc.Book(ctx, BookInput{
		UserID: u.ID + 100, VehicleID: v.ID,
		PickupDate: "2024-12-01", ReturnDate: "2024-12-05",
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	_, err = svc.Book(ctx, BookInput{
		UserID: u.ID, VehicleID: v.ID + 100,
		PickupDate: "2024-12-01", ReturnDate: "2024-12-05",
	})
	if !errors.Is(err, ErrVehicleNotFound) {
		t.Fatalf("expected ErrVehicleNotFound, got %v", err)
	}

	if n := countRentals(t, db); n != 0 {
		t.Fatalf("failed bookings left %d rentals", n)
	}
}

func TestBookBlockedByCancelledRental(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, 5)
	ctx := context.Background()

	u := seedUser(t, db, "ada")
	v := seedVehicle(t, db, 4000, "sedan")

	booked, err := svc.Book(ctx, BookInput{
		UserID: u.ID, VehicleID: v.ID,
		PickupDate: "2024-12-01", ReturnDate: "2024-12-05",
	})
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, booked.ID, StatusCancelled, time.Now()); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// 历史行为：已取消的租约仍然占用日期区间
	_, err = svc.Book(ctx, BookInput{
		UserID: u.ID, VehicleID: v.ID,
		PickupDate: "2024-12-01", ReturnDate: "2024-12-05",
	})
	if !errors.Is(err, ErrVehicleUnavailable) {
		t.Fatalf("expected cancelled rental to still block, got %v", err)
	}
}

func TestFindByBookingRef(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, 5)
	ctx := context.Background()

	u := seedUser(t, db, "ada")
	v := seedVehicle(t, db, 4000, "sedan")

	booked, err := svc.Book(ctx, BookInput{
		UserID: u.ID, VehicleID: v.ID,
		PickupDate: "2024-12-01", ReturnDate: "2024-12-05",
	})
	if err != nil {
		t.Fatalf("booking: %v", err)
	}

	found, err := svc.FindByBookingRef(ctx, booked.BookingRef)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found.ID != booked.ID || found.TotalCostCents != booked.TotalCostCents {
		t.Fatalf("lookup returned wrong rental: %+v", found)
	}

	if _, err := svc.FindByBookingRef(ctx, "no-such-ref"); !errors.Is(err, ErrRentalNotFound) {
		t.Fatalf("expected ErrRentalNotFound, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, 5)
	ctx := context.Background()

	u := seedUser(t, db, "ada")
	v := seedVehicle(t, db, 4000, "sedan")

	booked, err := svc.Book(ctx, BookInput{
		UserID: u.ID, VehicleID: v.ID,
		PickupDate: "2024-12-01", ReturnDate: "2024-12-05",
	})
	if err != nil {
		t.Fatalf("booking: %v", err)
	}

	done, err := svc.UpdateStatus(ctx, booked.ID, StatusCompleted, time.Now())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("expected completed with timestamp, got %+v", done)
	}

	if _, err := svc.UpdateStatus(ctx, booked.ID, StatusCancelled, time.Now()); err == nil {
		t.Fatalf("expected terminal state transition to fail")
	}
	if _, err := svc.UpdateStatus(ctx, booked.ID+100, StatusCompleted, time.Now()); !errors.Is(err, ErrRentalNotFound) {
		t.Fatalf("expected ErrRentalNotFound, got %v", err)
	}
}

func TestRecommendOutcomes(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, 2)
	ctx := context.Background()

	u := seedUser(t, db, "ada")
	rented := seedVehicle(t, db, 4000, "sedan")
	other1 := seedVehicle(t, db, 5000, "suv")
	other2 := seedVehicle(t, db, 6000, "truck")

	// 没有租车历史
	out := svc.Recommend(ctx, u.ID)
	if out.Reason != ReasonNoHistory || len(out.Vehicles) != 0 {
		t.Fatalf("expected no_history, got %+v", out)
	}

	if _, err := svc.Book(ctx, BookInput{
		UserID: u.ID, VehicleID: rented.ID,
		PickupDate: "2024-12-01", ReturnDate: "2024-12-05",
	}); err != nil {
		t.Fatalf("booking: %v", err)
	}

	// 有历史但还没有配对分
	out = svc.Recommend(ctx, u.ID)
	if out.Reason != ReasonNoScores || len(out.Vehicles) != 0 {
		t.Fatalf("expected no_scores, got %+v", out)
	}

	now := time.Now().UTC()
	scores := []recommend.VehiclePairScore{
		{VehicleID1: rented.ID, VehicleID2: other1.ID, CoRentCount: 3, RecommendationScore: 3, LastUpdated: now},
		{VehicleID1: rented.ID, VehicleID2: other2.ID, CoRentCount: 7, RecommendationScore: 7, LastUpdated: now},
	}
	for i := range scores {
		if err := db.Create(&scores[i]).Error; err != nil {
			t.Fatalf("seed score: %v", err)
		}
	}

	out = svc.Recommend(ctx, u.ID)
	if out.Reason != ReasonRecommended {
		t.Fatalf("expected recommended, got %+v", out)
	}
	if len(out.Vehicles) != 2 {
		t.Fatalf("vehicles = %d, want 2", len(out.Vehicles))
	}
	got := map[uint]bool{}
	for _, v := range out.Vehicles {
		got[v.ID] = true
	}
	if !got[other1.ID] || !got[other2.ID] {
		t.Fatalf("unexpected recommended set: %v", got)
	}

	// TopN 截断：N=1 时只保留分数最高的配对
	svcTop1 := NewService(db, nil, 1)
	out = svcTop1.Recommend(ctx, u.ID)
	if out.Reason != ReasonRecommended || len(out.Vehicles) != 1 {
		t.Fatalf("expected single recommendation, got %+v", out)
	}
	if out.Vehicles[0].ID != other2.ID {
		t.Fatalf("expected highest-scored pair first, got vehicle %d", out.Vehicles[0].ID)
	}
}

func TestRecommendStoreFailureDegrades(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, 5)
	ctx := context.Background()

	u := seedUser(t, db, "ada")
	v := seedVehicle(t, db, 4000, "sedan")

	if _, err := svc.Book(ctx, BookInput{
		UserID: u.ID, VehicleID: v.ID,
		PickupDate: "2024-12-01", ReturnDate: "2024-12-05",
	}); err != nil {
		t.Fatalf("booking: %v", err)
	}

	// 配对分表不可用时不向上抛错，降级为 store_failure 空结果
	if err := db.Migrator().DropTable(&recommend.VehiclePairScore{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	out := svc.Recommend(ctx, u.ID)
	if out.Reason != ReasonStoreFailure {
		t.Fatalf("reason = %s, want store_failure", out.Reason)
	}
	if len(out.Vehicles) != 0 {
		t.Fatalf("expected empty vehicle list, got %d", len(out.Vehicles))
	}
	if out.Err == nil {
		t.Fatalf("expected underlying error to be carried in outcome")
	}
}
