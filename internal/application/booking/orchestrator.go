package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	apphold "github.com/xiebiao/tripbooking/internal/application/hold"
	appinventory "github.com/xiebiao/tripbooking/internal/application/inventory"
	domainbooking "github.com/xiebiao/tripbooking/internal/domain/booking"
	"github.com/xiebiao/tripbooking/internal/domain/catalog"
	"github.com/xiebiao/tripbooking/internal/domain/departure"
	domainhold "github.com/xiebiao/tripbooking/internal/domain/hold"
	"github.com/xiebiao/tripbooking/internal/domain/event"
	"github.com/xiebiao/tripbooking/pkg/clock"
	"github.com/xiebiao/tripbooking/pkg/metrics"
	"github.com/xiebiao/tripbooking/pkg/tracing"
)

// referenceAttempts 预订号冲突时的重试次数
const referenceAttempts = 3

// HoldService 编排器依赖的占座能力
type HoldService interface {
	CreateHold(ctx context.Context, cmd apphold.CreateHoldCommand) (*apphold.CreateHoldResult, error)
	ReleaseHold(ctx context.Context, tenantID, holdID string, reason domainhold.ReleaseReason, actorID string) (bool, error)
}

// InventoryService 编排器依赖的库存能力
type InventoryService interface {
	CheckAvailability(ctx context.Context, tenantID, departureID string, seats int) (*appinventory.Availability, error)
	SeatsChanged(ctx context.Context, tenantID string, departureIDs ...string)
}

// Orchestrator 预订编排器
//
// 所有渠道的唯一入口。渠道只影响 占座类型 和 默认操作人(见domainbooking.PolicyFor),
// 流程本身对官网、OTA、员工录单完全一致。
// 预订状态只由编排器通过booking.Repository写入。
type Orchestrator struct {
	bookings   domainbooking.Repository
	holds      HoldService
	inventory  InventoryService
	departures departure.Reader
	catalog    catalog.Catalog
	publisher  event.Publisher
	clock      clock.Clock
	log        logrus.FieldLogger
}

// NewOrchestrator 创建预订编排器
func NewOrchestrator(
	bookings domainbooking.Repository,
	holds HoldService,
	inventory InventoryService,
	departures departure.Reader,
	catalog catalog.Catalog,
	publisher event.Publisher,
	clk clock.Clock,
	log logrus.FieldLogger,
) *Orchestrator {
	return &Orchestrator{
		bookings:   bookings,
		holds:      holds,
		inventory:  inventory,
		departures: departures,
		catalog:    catalog,
		publisher:  publisher,
		clock:      clk,
		log:        log.WithField("component", "booking_orchestrator"),
	}
}

// InitiateBookingCommand 发起预订请求
type InitiateBookingCommand struct {
	TenantID         string
	DepartureID      string
	Source           domainbooking.Source
	SourcePlatform   string
	ExternalRef      string
	GuestName        string
	GuestEmail       string
	GuestPhone       string
	ParticipantCount int
	CreatedByID      string
	SessionID        string
	Notes            string
}

// InitResult 发起预订结果
type InitResult struct {
	Success        bool       `json:"success"`
	BookingID      string     `json:"booking_id,omitempty"`
	Reference      string     `json:"reference,omitempty"`
	HoldID         string     `json:"hold_id,omitempty"`
	HoldExpiresAt  *time.Time `json:"hold_expires_at,omitempty"`
	TotalAmount    int64      `json:"total_amount"`
	AvailableSeats *int       `json:"available_seats,omitempty"`
	ErrorCode      string     `json:"error_code,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

// InitiateBooking 发起预订
//
// 每一步都是前置条件,失败即返回:
//  1. 校验客人姓名和人数
//  2. 可用性检查,不足时带回实际可订座位
//  3. 按渠道策略选择占座来源和类型
//  4. 原子占座,失败时原样透传错误码和错误信息
//  5. 读取团期和产品价格,计算金额
//  6. 写入HELD状态的预订
//
// 整个流程不是一个数据库事务。第6步失败时占座保留,到期后由TTL回收。
func (o *Orchestrator) InitiateBooking(ctx context.Context, cmd InitiateBookingCommand) (result *InitResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "booking", "InitiateBooking")
	span.SetAttributes(
		attribute.String("tenant_id", cmd.TenantID),
		attribute.String("departure_id", cmd.DepartureID),
		attribute.String("source", string(cmd.Source)),
	)
	defer func() {
		tracing.EndSpan(span, err)
		label := "error"
		if result != nil {
			label = "success"
			if !result.Success {
				label = result.ErrorCode
			}
		}
		metrics.IncCounterVec(metrics.BookingsInitiatedTotal, map[string]string{"source": string(cmd.Source), "result": label})
	}()

	// 1. 参数校验
	if !domainbooking.ValidGuestName(cmd.GuestName) {
		return failed(domainbooking.CodeInvalidGuest, "客人姓名不能为空"), nil
	}
	if cmd.ParticipantCount < 1 {
		return failed(domainbooking.CodeInvalidCount, "出行人数必须大于0"), nil
	}
	policy, ok := domainbooking.PolicyFor(cmd.Source)
	if !ok {
		return nil, domainbooking.ErrInvalidSource
	}

	// 2. 可用性检查
	avail, err := o.inventory.CheckAvailability(ctx, cmd.TenantID, cmd.DepartureID, cmd.ParticipantCount)
	if err != nil {
		if errors.Is(err, departure.ErrDepartureNotFound) {
			return failed(domainhold.CodeDepartureNotFound, "团期不存在"), nil
		}
		return nil, err
	}
	if !avail.Available {
		r := failed(domainbooking.CodeNoAvailability, fmt.Sprintf("座位不足,当前可订%d座", avail.AvailableSeats))
		if !departure.Status(avail.State.Status).IsSelling() {
			r = failed(domainhold.CodeDepartureNotBookable, fmt.Sprintf("团期当前状态(%s)不接受预订", avail.State.Status))
		}
		seats := avail.AvailableSeats
		r.AvailableSeats = &seats
		return r, nil
	}

	// 3-4. 按渠道策略占座
	actorID := cmd.CreatedByID
	if actorID == "" {
		actorID = policy.DefaultActor
	}
	holdResult, err := o.holds.CreateHold(ctx, apphold.CreateHoldCommand{
		TenantID:       cmd.TenantID,
		DepartureID:    cmd.DepartureID,
		SeatCount:      cmd.ParticipantCount,
		Source:         policy.HoldSource,
		SourcePlatform: cmd.SourcePlatform,
		HoldType:       policy.HoldType,
		CreatedByID:    actorID,
		SessionID:      cmd.SessionID,
	})
	if err != nil {
		return nil, err
	}
	if !holdResult.Success {
		r := failed(holdResult.ErrorCode, holdResult.ErrorMessage)
		seats := holdResult.AvailableSeats
		r.AvailableSeats = &seats
		return r, nil
	}

	entry := o.log.WithFields(logrus.Fields{
		"tenant_id":    cmd.TenantID,
		"departure_id": cmd.DepartureID,
		"hold_id":      holdResult.HoldID,
	})

	// 5. 计算金额
	d, err := o.departures.FindByID(ctx, cmd.TenantID, cmd.DepartureID)
	if err != nil {
		entry.WithError(err).Warn("占座成功但读取团期失败,占座将按TTL过期")
		return nil, err
	}
	unitPrice, endDate, err := o.price(ctx, d)
	if err != nil {
		entry.WithError(err).Warn("占座成功但读取产品价格失败,占座将按TTL过期")
		return nil, err
	}
	baseAmount := unitPrice * int64(cmd.ParticipantCount)

	// 6. 写入预订
	now := o.clock.Now()
	b := &domainbooking.Booking{
		ID:             uuid.New().String(),
		TenantID:       cmd.TenantID,
		ResourceID:     d.ResourceID,
		DepartureID:    d.ID,
		HoldID:         holdResult.HoldID,
		Source:         cmd.Source,
		SourcePlatform: cmd.SourcePlatform,
		ExternalRef:    cmd.ExternalRef,
		StartDate:      d.DepartureDate,
		EndDate:        endDate,
		GuestName:      cmd.GuestName,
		GuestEmail:     cmd.GuestEmail,
		GuestPhone:     cmd.GuestPhone,
		GuestCount:     cmd.ParticipantCount,
		BaseAmount:     baseAmount,
		TotalAmount:    baseAmount,
		Status:         domainbooking.StatusDraft,
		CreatedByID:    actorID,
		Notes:          cmd.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := b.TransitionTo(domainbooking.StatusHeld, now); err != nil {
		return nil, err
	}
	if err := o.create(ctx, b); err != nil {
		entry.WithError(err).Warn("占座成功但写入预订失败,占座将按TTL过期")
		return nil, err
	}

	entry.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"reference":  b.Reference,
		"amount":     b.TotalAmount,
	}).Info("预订已发起")

	return &InitResult{
		Success:       true,
		BookingID:     b.ID,
		Reference:     b.Reference,
		HoldID:        holdResult.HoldID,
		HoldExpiresAt: holdResult.ExpiresAt,
		TotalAmount:   b.TotalAmount,
	}, nil
}

// ConfirmBookingCommand 确认预订请求(支付回调)
type ConfirmBookingCommand struct {
	TenantID  string
	BookingID string
	HoldID    string // 可选;不为空时必须是预订上记录的占座
	ActorID   string
}

// ActionResult 状态操作结果
type ActionResult struct {
	Success      bool                 `json:"success"`
	Status       domainbooking.Status `json:"status,omitempty"`
	ErrorCode    string               `json:"error_code,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
}

// ConfirmBooking 支付成功后确认预订
//
// HELD状态会先经过PENDING_PAYMENT再到CONFIRMED;已确认的预订重复确认直接返回成功。
// 先以CAS写入CONFIRMED,再以CONFIRMED原因释放占座:
// 两步之间座位同时计入占座和已确认,不会出现短暂的超卖窗口。
// 占座已过期或已释放时只记录警告,确认照常完成;
// 携带的占座与预订不符时拒绝,不改变任何状态。
func (o *Orchestrator) ConfirmBooking(ctx context.Context, cmd ConfirmBookingCommand) (result *ActionResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "booking", "ConfirmBooking")
	span.SetAttributes(attribute.String("booking_id", cmd.BookingID))
	defer func() { tracing.EndSpan(span, err) }()

	b, err := o.bookings.FindByID(ctx, cmd.TenantID, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == domainbooking.StatusConfirmed {
		return &ActionResult{Success: true, Status: b.Status}, nil
	}

	// 只能消耗预订自己的占座,不能借确认释放别人的占座
	if cmd.HoldID != "" && cmd.HoldID != b.HoldID {
		o.log.WithFields(logrus.Fields{
			"tenant_id":  b.TenantID,
			"booking_id": b.ID,
			"hold_id":    cmd.HoldID,
		}).Warn("确认请求携带的占座不属于该预订")
		return &ActionResult{
			Success:      false,
			Status:       b.Status,
			ErrorCode:    domainbooking.CodeHoldMismatch,
			ErrorMessage: "占座不属于该预订",
		}, nil
	}
	holdID := b.HoldID

	if b.Status == domainbooking.StatusHeld {
		if err := o.transition(ctx, b, domainbooking.StatusPendingPayment, nil); err != nil {
			return o.actionFailure(b, err)
		}
	}
	if err := o.transition(ctx, b, domainbooking.StatusConfirmed, func(b *domainbooking.Booking, now time.Time) error {
		return b.Confirm(now)
	}); err != nil {
		return o.actionFailure(b, err)
	}

	o.consumeHold(ctx, b, holdID, cmd.ActorID)
	return &ActionResult{Success: true, Status: b.Status}, nil
}

// CancelBookingCommand 取消预订请求
type CancelBookingCommand struct {
	TenantID  string
	BookingID string
	Reason    string
	ActorID   string
}

// CancelBooking 取消预订
//
// 已取消或已结束的预订拒绝取消。编排器只负责状态流转,
// 释放占座、退还座位由booking.cancelled事件的消费方完成。
func (o *Orchestrator) CancelBooking(ctx context.Context, cmd CancelBookingCommand) (result *ActionResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "booking", "CancelBooking")
	span.SetAttributes(attribute.String("booking_id", cmd.BookingID))
	defer func() { tracing.EndSpan(span, err) }()

	b, err := o.bookings.FindByID(ctx, cmd.TenantID, cmd.BookingID)
	if err != nil {
		return nil, err
	}

	wasConfirmed := b.Status.ConsumesSeats()
	holdID := b.HoldID
	if err := o.transition(ctx, b, domainbooking.StatusCancelled, func(b *domainbooking.Booking, now time.Time) error {
		return b.Cancel(cmd.Reason, cmd.ActorID, now)
	}); err != nil {
		return o.actionFailure(b, err)
	}

	o.publish(ctx, event.BookingCancelled{
		TenantID:     b.TenantID,
		BookingID:    b.ID,
		DepartureID:  b.DepartureID,
		HoldID:       holdID,
		Seats:        b.GuestCount,
		WasConfirmed: wasConfirmed,
		Reason:       cmd.Reason,
		ActorID:      cmd.ActorID,
		OccurredAt:   o.clock.Now(),
	})

	return &ActionResult{Success: true, Status: b.Status}, nil
}

// GetBooking 查询预订
func (o *Orchestrator) GetBooking(ctx context.Context, tenantID, bookingID string) (*domainbooking.Booking, error) {
	return o.bookings.FindByID(ctx, tenantID, bookingID)
}

// ListBookingsByDeparture 团期下的预订
func (o *Orchestrator) ListBookingsByDeparture(ctx context.Context, tenantID, departureID string, page, pageSize int) ([]*domainbooking.Booking, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	if _, err := o.departures.FindByID(ctx, tenantID, departureID); err != nil {
		return nil, 0, err
	}
	return o.bookings.ListByDeparture(ctx, tenantID, departureID, page, pageSize)
}

// price 单价优先使用团期的PriceOverride,否则取产品目录基础价
func (o *Orchestrator) price(ctx context.Context, d *departure.Departure) (int64, time.Time, error) {
	resource, err := o.catalog.FindResource(ctx, d.TenantID, d.ResourceID)
	if err != nil {
		if d.PriceOverride != nil && errors.Is(err, catalog.ErrResourceNotFound) {
			return *d.PriceOverride, d.DepartureDate, nil
		}
		return 0, time.Time{}, err
	}
	unit := resource.BasePrice
	if d.PriceOverride != nil {
		unit = *d.PriceOverride
	}
	return unit, resource.EndDate(d.DepartureDate), nil
}

// create 写入预订,预订号冲突时重新生成
func (o *Orchestrator) create(ctx context.Context, b *domainbooking.Booking) error {
	var err error
	for i := 0; i < referenceAttempts; i++ {
		b.Reference = domainbooking.GenerateReference(b.CreatedAt)
		err = o.bookings.Create(ctx, b)
		if !errors.Is(err, domainbooking.ErrDuplicateReference) {
			return err
		}
	}
	return err
}

// transition 校验并以CAS写入新状态
// mutate为nil时只做状态流转
func (o *Orchestrator) transition(ctx context.Context, b *domainbooking.Booking, target domainbooking.Status, mutate func(*domainbooking.Booking, time.Time) error) error {
	from := b.Status
	now := o.clock.Now()

	next := *b
	if mutate == nil {
		mutate = func(b *domainbooking.Booking, now time.Time) error { return b.TransitionTo(target, now) }
	}
	if err := mutate(&next, now); err != nil {
		return err
	}
	if err := o.bookings.UpdateStatus(ctx, &next, from); err != nil {
		return err
	}
	*b = next

	metrics.IncCounterVec(metrics.BookingTransitionsTotal, map[string]string{"from": string(from), "to": string(target)})
	o.log.WithFields(logrus.Fields{
		"tenant_id":  b.TenantID,
		"booking_id": b.ID,
		"from":       from,
		"to":         target,
	}).Info("预订状态已变更")
	return nil
}

// consumeHold 确认后以CONFIRMED原因释放占座
func (o *Orchestrator) consumeHold(ctx context.Context, b *domainbooking.Booking, holdID, actorID string) {
	entry := o.log.WithFields(logrus.Fields{
		"tenant_id":  b.TenantID,
		"booking_id": b.ID,
		"hold_id":    holdID,
	})

	released := false
	if holdID != "" {
		ok, err := o.holds.ReleaseHold(ctx, b.TenantID, holdID, domainhold.ReasonConfirmed, actorID)
		if err != nil {
			entry.WithError(err).Warn("确认后释放占座失败")
		}
		released = ok
	}
	if !released {
		// 占座可能在支付结算期间已过期,座位存在被重新分配的风险
		metrics.IncCounter(metrics.ConfirmWithoutActiveHoldTotal)
		entry.Warn("确认预订时占座已释放或已过期")
		o.inventory.SeatsChanged(ctx, b.TenantID, b.DepartureID)
	}
}

// actionFailure 状态类错误转为结构化结果,其他错误原样返回
func (o *Orchestrator) actionFailure(b *domainbooking.Booking, err error) (*ActionResult, error) {
	if errors.Is(err, domainbooking.ErrInvalidStatusTransition) {
		return &ActionResult{
			Success:      false,
			Status:       b.Status,
			ErrorCode:    domainbooking.CodeInvalidTransition,
			ErrorMessage: transitionMessage(b.Status, err),
		}, nil
	}
	return nil, err
}

func (o *Orchestrator) publish(ctx context.Context, e event.Event) {
	if err := o.publisher.Publish(ctx, e); err != nil {
		o.log.WithError(err).WithField("routing_key", e.RoutingKey()).Warn("事件发布失败")
	}
}

func transitionMessage(status domainbooking.Status, err error) string {
	switch {
	case errors.Is(err, domainbooking.ErrAlreadyCancelled) && status == domainbooking.StatusCancelled:
		return "预订已取消,不能重复取消"
	case status.IsTerminal():
		return fmt.Sprintf("预订已处于终态(%s),不能再变更", status)
	default:
		return fmt.Sprintf("预订当前状态(%s)不允许此操作", status)
	}
}

func failed(code, message string) *InitResult {
	return &InitResult{Success: false, ErrorCode: code, ErrorMessage: message}
}
