package rental

import "errors"

// 预订失败的业务错误，调用侧用 errors.Is 分类。
// 底层存储错误不在这里枚举，原样向上包装返回。
var (
	// ErrInvalidDateRange 日期不可解析，或还车日不晚于取车日。
	ErrInvalidDateRange = errors.New("invalid date range")
	// ErrVehicleUnavailable 目标日期区间与已有租约重叠（闭区间判定）。
	ErrVehicleUnavailable = errors.New("vehicle unavailable for selected dates")
	// ErrUserNotFound 用户不存在。
	ErrUserNotFound = errors.New("user not found")
	// ErrVehicleNotFound 车辆不存在。
	ErrVehicleNotFound = errors.New("vehicle not found")
	// ErrRentalNotFound 租约不存在。
	ErrRentalNotFound = errors.New("rental not found")
)
