package rental

import (
	"fmt"
	"time"
)

// Status 租约状态枚举（持久化为字符串）。
type Status string

const (
	StatusOngoing   Status = "Ongoing"   // 进行中（下单即进入）
	StatusCompleted Status = "Completed" // 已完成（车辆归还）
	StatusCancelled Status = "Cancelled" // 已取消
)

// Rental 租约 GORM 模型。
// pickup/return 是“日历日”语义，统一存 UTC 零点；费用按分存整数。
type Rental struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	BookingRef string `gorm:"uniqueIndex;size:36;not null"` // 对外的预订确认号

	UserID    uint   `gorm:"index;not null"`
	VehicleID uint   `gorm:"index;not null"`
	Status    Status `gorm:"type:varchar(16);index;not null"`

	PickupDate time.Time `gorm:"not null"`
	ReturnDate time.Time `gorm:"not null"` // 必须晚于 PickupDate

	// 取还车位置，下单时从车辆注册位置拷贝
	PickupLocation string `gorm:"size:255;not null"`
	ReturnLocation string `gorm:"size:255;not null"`

	TotalCostCents int64 `gorm:"not null"` // 天数 * 日租金（分）

	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	CompletedAt *time.Time // 完成时间
	CancelledAt *time.Time // 取消时间
}

// Days 租期天数（日历日差）。
func (r Rental) Days() int64 {
	return int64(r.ReturnDate.Sub(r.PickupDate) / (24 * time.Hour))
}

// AllowTransition 定义租约状态机的允许流转关系。
// Ongoing 是唯一的非终态；Completed / Cancelled 不允许再流转。
var AllowTransition = map[Status][]Status{
	StatusOngoing:   {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransition 判断 from -> to 是否是一个允许的状态流转。
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	allowed, ok := AllowTransition[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ApplyTransition 对租约应用状态变更，并维护关键时间字段。
// 注意：取消后的租约仍会占用可用性检查里的日期区间（历史行为，见可用性查询）。
func ApplyTransition(r *Rental, to Status, now time.Time) error {
	if r == nil {
		return fmt.Errorf("rental is nil")
	}
	from := r.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid rental status transition: %s -> %s", from, to)
	}

	r.Status = to

	switch to {
	case StatusCompleted:
		if r.CompletedAt == nil {
			t := now
			r.CompletedAt = &t
		}
	case StatusCancelled:
		if r.CancelledAt == nil {
			t := now
			r.CancelledAt = &t
		}
	}
	return nil
}
