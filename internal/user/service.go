package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUsernameTaken 用户名已被占用。
	ErrUsernameTaken = errors.New("username already exists")
	// ErrLicenseTaken 驾照号已被占用。
	ErrLicenseTaken = errors.New("license number already exists")
)

// Service 封装用户注册用例（不依赖传输层），便于复用和测试。
type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

// RegisterInput 注册入参（可作为传输层 DTO 的基础）。
type RegisterInput struct {
	FirstName     string
	LastName      string
	Username      string
	Password      string
	Email         string
	PhoneNumber   string
	Address       string
	City          string
	State         string
	PostalCode    string
	Country       string
	Age           int
	LicenseNumber string
}

// Register 创建新用户：用户名/驾照号唯一性预检 + 口令加盐哈希。
// 登录与会话管理不在本服务范围内，由外层应用自行实现。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, fmt.Errorf("username required")
	}
	license := strings.TrimSpace(in.LicenseNumber)
	if license == "" {
		return nil, fmt.Errorf("license_number required")
	}
	if in.Password == "" {
		return nil, fmt.Errorf("password required")
	}
	if in.Age <= 0 {
		return nil, fmt.Errorf("age required")
	}

	if taken, err := s.repo.ExistsByUsername(ctx, username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUsernameTaken
	}
	if taken, err := s.repo.ExistsByLicenseNumber(ctx, license); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrLicenseTaken
	}

	salt, err := GenerateSaltHex()
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password, salt)
	if err != nil {
		return nil, err
	}

	u := &User{
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Username:      username,
		PasswordHash:  hash,
		PasswordSalt:  salt,
		Email:         strings.TrimSpace(in.Email),
		PhoneNumber:   strings.TrimSpace(in.PhoneNumber),
		Address:       strings.TrimSpace(in.Address),
		City:          strings.TrimSpace(in.City),
		State:         strings.TrimSpace(in.State),
		PostalCode:    strings.TrimSpace(in.PostalCode),
		Country:       strings.TrimSpace(in.Country),
		Age:           in.Age,
		LicenseNumber: license,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
