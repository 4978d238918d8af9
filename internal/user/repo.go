package user

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

func (r *Repo) Create(ctx context.Context, u *User) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Repo) FindByID(ctx context.Context, id uint) (*User, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var u User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) FindByUsername(ctx context.Context, username string) (*User, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var u User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ExistsByUsername 注册前的唯一性预检（最终还是靠唯一索引兜底）。
func (r *Repo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if r == nil || r.db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repo) ExistsByLicenseNumber(ctx context.Context, license string) (bool, error) {
	if r == nil || r.db == nil {
		return false, fmt.Errorf("repo db is nil")
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&User{}).Where("license_number = ?", license).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
