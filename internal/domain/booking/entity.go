package booking

import (
	"strings"
	"time"
)

// Status 预订生命周期状态
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusHeld             Status = "HELD"              // 已占座,等待支付
	StatusPendingPayment   Status = "PENDING_PAYMENT"   // 支付流程已发起
	StatusPaymentUncertain Status = "PAYMENT_UNCERTAIN" // 支付网关结果不明,等待对账
	StatusConfirmed        Status = "CONFIRMED"
	StatusPendingApproval  Status = "PENDING_APPROVAL" // 员工录单待审批
	StatusCancelled        Status = "CANCELLED"        // 终态
	StatusRefunded         Status = "REFUNDED"         // 终态
	StatusNoShow           Status = "NO_SHOW"          // 终态
	StatusCompleted        Status = "COMPLETED"        // 终态
)

// transitions 预订状态流转表
// 终态没有任何出边
var transitions = map[Status][]Status{
	StatusDraft:            {StatusHeld, StatusCancelled},
	StatusHeld:             {StatusPendingPayment, StatusPendingApproval, StatusCancelled},
	StatusPendingPayment:   {StatusConfirmed, StatusPaymentUncertain, StatusPendingApproval, StatusCancelled},
	StatusPaymentUncertain: {StatusConfirmed, StatusCancelled},
	StatusPendingApproval:  {StatusConfirmed, StatusCancelled},
	StatusConfirmed:        {StatusRefunded, StatusNoShow, StatusCompleted, StatusCancelled},
	StatusCancelled:        {},
	StatusRefunded:         {},
	StatusNoShow:           {},
	StatusCompleted:        {},
}

// AllStatuses 全部状态(按流转顺序)
func AllStatuses() []Status {
	return []Status{
		StatusDraft, StatusHeld, StatusPendingPayment, StatusPaymentUncertain,
		StatusConfirmed, StatusPendingApproval,
		StatusCancelled, StatusRefunded, StatusNoShow, StatusCompleted,
	}
}

// CanTransitionTo 检查是否可以流转到目标状态
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal 终态
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusRefunded, StatusNoShow, StatusCompleted:
		return true
	}
	return false
}

// ConsumesSeats 该状态的预订是否计入已确认座位
func (s Status) ConsumesSeats() bool {
	switch s {
	case StatusConfirmed, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// SeatConsumingStatuses 计入已确认座位的状态
func SeatConsumingStatuses() []Status {
	return []Status{StatusConfirmed, StatusCompleted, StatusNoShow}
}

// Booking 预订聚合根
// 设计说明:
// 1. Source只是元数据,编排流程对所有渠道一致
// 2. HoldID只在确认前有意义,确认后清空(占座是临时的,预订是持久的)
// 3. 状态历史由ConfirmedAt/CancelledAt等时间戳体现
type Booking struct {
	ID             string
	Reference      string // 对外展示的预订号
	TenantID       string
	ResourceID     string
	DepartureID    string
	HoldID         string
	Source         Source
	SourcePlatform string
	ExternalRef    string
	StartDate      time.Time
	EndDate        time.Time
	GuestName      string
	GuestEmail     string
	GuestPhone     string
	GuestCount     int
	BaseAmount     int64 // 分
	TotalAmount    int64 // 分
	Status         Status
	CreatedByID    string
	Notes          string
	ConfirmedAt    *time.Time
	CancelledAt    *time.Time
	CancelReason   string
	CancelledByID  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ValidGuestName 客人姓名非空
func ValidGuestName(name string) bool {
	return strings.TrimSpace(name) != ""
}

// TransitionTo 状态流转
func (b *Booking) TransitionTo(target Status, now time.Time) error {
	if b.Status.IsTerminal() {
		return ErrTerminalStatus
	}
	if !b.Status.CanTransitionTo(target) {
		return ErrInvalidStatusTransition
	}
	b.Status = target
	b.UpdatedAt = now
	return nil
}

// Confirm 确认预订,清空占座引用
func (b *Booking) Confirm(now time.Time) error {
	if err := b.TransitionTo(StatusConfirmed, now); err != nil {
		return err
	}
	b.ConfirmedAt = &now
	b.HoldID = ""
	return nil
}

// Cancel 取消预订
func (b *Booking) Cancel(reason, actorID string, now time.Time) error {
	if b.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if err := b.TransitionTo(StatusCancelled, now); err != nil {
		return err
	}
	b.CancelledAt = &now
	b.CancelReason = reason
	b.CancelledByID = actorID
	return nil
}

// IsOwnedBy 租户隔离校验
func (b *Booking) IsOwnedBy(tenantID string) bool {
	return b.TenantID == tenantID
}
