package departure

import (
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// 团期领域错误定义
var (
	// ErrDepartureNotFound 团期不存在(或不属于当前租户)
	ErrDepartureNotFound = apperrors.New(apperrors.ErrCodeDepartureNotFound, "团期不存在")

	// ErrDuplicateDeparture 同一产品同一日期的团期已存在
	ErrDuplicateDeparture = apperrors.New(apperrors.ErrCodeDuplicateEntry, "该产品在此日期已有团期")

	// ErrInvalidDeparture 团期基础信息不完整
	ErrInvalidDeparture = apperrors.New(apperrors.ErrCodeInvalidParams, "团期信息不完整")

	// ErrInvalidCapacity 容量参数不合法
	ErrInvalidCapacity = apperrors.New(apperrors.ErrCodeInvalidParams, "容量参数不合法(不能为负,保留座位不能超过总容量)")

	// ErrInvalidPrice 价格不合法
	ErrInvalidPrice = apperrors.New(apperrors.ErrCodeInvalidParams, "价格不能为负数")

	// ErrInvalidStatusTransition 非法的状态流转
	ErrInvalidStatusTransition = apperrors.New(apperrors.ErrCodeInvalidStatusTransition, "团期状态不允许此操作")

	// ErrCapacityBelowUsage 调整后的容量低于已占用座位
	ErrCapacityBelowUsage = apperrors.New(apperrors.ErrCodeCapacityBelowUsage, "调整后的容量低于已占座和已确认的座位数")

	// ErrDepartureClosed 团期已处于终态
	ErrDepartureClosed = apperrors.New(apperrors.ErrCodeInvalidStatusTransition, "团期已取消或已出行")

	// ErrVersionConflict 团期已被其他请求修改
	ErrVersionConflict = apperrors.ErrVersionConflict
)
