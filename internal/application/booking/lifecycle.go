package booking

import (
	"context"
	"time"

	domainbooking "github.com/xiebiao/tripbooking/internal/domain/booking"
	"github.com/xiebiao/tripbooking/internal/domain/event"
)

// 支付、审批、售后等状态流转
// 每个动作都按状态流转表校验,非法流转返回INVALID_STATUS_TRANSITION结果

// StartPayment 发起支付 HELD → PENDING_PAYMENT
func (o *Orchestrator) StartPayment(ctx context.Context, tenantID, bookingID string) (*ActionResult, error) {
	return o.advance(ctx, tenantID, bookingID, domainbooking.StatusPendingPayment)
}

// MarkPaymentUncertain 支付网关结果不明 PENDING_PAYMENT → PAYMENT_UNCERTAIN
// 占座不释放,等待对账后确认或取消
func (o *Orchestrator) MarkPaymentUncertain(ctx context.Context, tenantID, bookingID string) (*ActionResult, error) {
	return o.advance(ctx, tenantID, bookingID, domainbooking.StatusPaymentUncertain)
}

// RequestApproval 提交审批 → PENDING_APPROVAL
func (o *Orchestrator) RequestApproval(ctx context.Context, tenantID, bookingID string) (*ActionResult, error) {
	return o.advance(ctx, tenantID, bookingID, domainbooking.StatusPendingApproval)
}

// Approve 审批通过,按确认流程消耗占座
func (o *Orchestrator) Approve(ctx context.Context, tenantID, bookingID, actorID string) (*ActionResult, error) {
	b, err := o.bookings.FindByID(ctx, tenantID, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != domainbooking.StatusPendingApproval {
		return o.actionFailure(b, domainbooking.ErrInvalidStatusTransition)
	}
	return o.ConfirmBooking(ctx, ConfirmBookingCommand{TenantID: tenantID, BookingID: bookingID, ActorID: actorID})
}

// Refund 退款 CONFIRMED → REFUNDED,座位重新开放
func (o *Orchestrator) Refund(ctx context.Context, tenantID, bookingID, actorID string) (*ActionResult, error) {
	result, b, err := o.advanceBooking(ctx, tenantID, bookingID, domainbooking.StatusRefunded)
	if err != nil || !result.Success {
		return result, err
	}

	o.publish(ctx, event.SeatsReleased{
		TenantID:    b.TenantID,
		DepartureID: b.DepartureID,
		Seats:       b.GuestCount,
		Reason:      string(domainbooking.StatusRefunded),
		BookingID:   b.ID,
		OccurredAt:  o.clock.Now(),
	})
	o.inventory.SeatsChanged(ctx, b.TenantID, b.DepartureID)
	return result, nil
}

// MarkNoShow 未出行 CONFIRMED → NO_SHOW(座位仍计入已确认)
func (o *Orchestrator) MarkNoShow(ctx context.Context, tenantID, bookingID string) (*ActionResult, error) {
	return o.advance(ctx, tenantID, bookingID, domainbooking.StatusNoShow)
}

// Complete 行程完成 CONFIRMED → COMPLETED
func (o *Orchestrator) Complete(ctx context.Context, tenantID, bookingID string) (*ActionResult, error) {
	return o.advance(ctx, tenantID, bookingID, domainbooking.StatusCompleted)
}

func (o *Orchestrator) advance(ctx context.Context, tenantID, bookingID string, target domainbooking.Status) (*ActionResult, error) {
	result, _, err := o.advanceBooking(ctx, tenantID, bookingID, target)
	return result, err
}

func (o *Orchestrator) advanceBooking(ctx context.Context, tenantID, bookingID string, target domainbooking.Status) (*ActionResult, *domainbooking.Booking, error) {
	b, err := o.bookings.FindByID(ctx, tenantID, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if err := o.transition(ctx, b, target, func(b *domainbooking.Booking, now time.Time) error {
		return b.TransitionTo(target, now)
	}); err != nil {
		result, err := o.actionFailure(b, err)
		return result, b, err
	}
	return &ActionResult{Success: true, Status: b.Status}, b, nil
}
