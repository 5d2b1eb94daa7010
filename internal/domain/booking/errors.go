package booking

import (
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// 结构化结果码
const (
	CodeInvalidGuest      = "INVALID_GUEST"
	CodeInvalidCount      = "INVALID_COUNT"
	CodeNoAvailability    = "NO_AVAILABILITY"
	CodeInvalidTransition = "INVALID_STATUS_TRANSITION"
	CodeHoldMismatch      = "HOLD_MISMATCH"
)

// 预订领域错误定义
var (
	// ErrBookingNotFound 预订不存在
	ErrBookingNotFound = apperrors.New(apperrors.ErrCodeBookingNotFound, "预订不存在")

	// ErrInvalidStatusTransition 非法的状态流转
	ErrInvalidStatusTransition = apperrors.New(apperrors.ErrCodeInvalidStatusTransition, "预订状态不允许此操作")

	// ErrTerminalStatus 预订已处于终态
	ErrTerminalStatus = apperrors.New(apperrors.ErrCodeInvalidStatusTransition, "预订已结束(取消/退款/未出行/已完成),不能再变更")

	// ErrAlreadyCancelled 预订已取消
	ErrAlreadyCancelled = apperrors.New(apperrors.ErrCodeInvalidStatusTransition, "预订已取消")

	// ErrStatusConflict 状态已被并发请求修改
	ErrStatusConflict = apperrors.New(apperrors.ErrCodeVersionConflict, "预订状态已变化,请刷新后重试")

	// ErrDuplicateReference 预订号冲突
	ErrDuplicateReference = apperrors.New(apperrors.ErrCodeDuplicateEntry, "预订号已存在")

	// ErrInvalidSource 未知渠道
	ErrInvalidSource = apperrors.New(apperrors.ErrCodeInvalidParams, "未知的预订渠道")
)
