package user

import (
	"context"
	"errors"
	"testing"

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
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func registerInput(username, license string) RegisterInput {
	return RegisterInput{
		FirstName:     "Ada",
		LastName:      "Lee",
		Username:      username,
		Password:      "p@ssw0rd",
		Email:         username + "@example.com",
		PhoneNumber:   "555-0100",
		City:          "Austin",
		State:         "TX",
		Country:       "USA",
		Age:           30,
		LicenseNumber: license,
	}
}

func TestRegister(t *testing.T) {
	svc := NewService(NewRepo(newTestDB(t)))
	ctx := context.Background()

	u, err := svc.Register(ctx, registerInput("ada", "TX-100"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.ID == 0 {
		t.Fatalf("expected assigned id")
	}
	if u.PasswordHash == "" || u.PasswordSalt == "" {
		t.Fatalf("expected hashed credentials")
	}
	if u.PasswordHash == "p@ssw0rd" {
		t.Fatalf("password stored in plaintext")
	}
	if !VerifyPassword("p@ssw0rd", u.PasswordSalt, u.PasswordHash) {
		t.Fatalf("stored hash does not verify")
	}
	if u.DisplayName() != "Ada Lee" {
		t.Fatalf("DisplayName = %q", u.DisplayName())
	}
	if u.Location() != "Austin, TX" {
		t.Fatalf("Location = %q", u.Location())
	}
}

func TestRegisterUniqueness(t *testing.T) {
	svc := NewService(NewRepo(newTestDB(t)))
	ctx := context.Background()

	if _, err := svc.Register(ctx, registerInput("ada", "TX-100")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Register(ctx, registerInput("ada", "TX-200")); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := svc.Register(ctx, registerInput("bob", "TX-100")); !errors.Is(err, ErrLicenseTaken) {
		t.Fatalf("expected ErrLicenseTaken, got %v", err)
	}
}
