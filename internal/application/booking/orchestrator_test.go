package booking

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphold "github.com/xiebiao/tripbooking/internal/application/hold"
	appinventory "github.com/xiebiao/tripbooking/internal/application/inventory"
	domainbooking "github.com/xiebiao/tripbooking/internal/domain/booking"
	"github.com/xiebiao/tripbooking/internal/domain/catalog"
	"github.com/xiebiao/tripbooking/internal/domain/departure"
	domainhold "github.com/xiebiao/tripbooking/internal/domain/hold"
	"github.com/xiebiao/tripbooking/internal/domain/event"
	"github.com/xiebiao/tripbooking/internal/infrastructure/persistence/memory"
	"github.com/xiebiao/tripbooking/pkg/clock"
	"github.com/xiebiao/tripbooking/pkg/mq"
)

var t0 = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) cancelled() []event.BookingCancelled {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result []event.BookingCancelled
	for _, e := range p.events {
		if bc, ok := e.(event.BookingCancelled); ok {
			result = append(result, bc)
		}
	}
	return result
}

func (p *recordingPublisher) released() []event.SeatsReleased {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result []event.SeatsReleased
	for _, e := range p.events {
		if sr, ok := e.(event.SeatsReleased); ok {
			result = append(result, sr)
		}
	}
	return result
}

type fixture struct {
	store     *memory.Store
	clock     *clock.Manual
	publisher *recordingPublisher
	inventory *appinventory.Service
	orch      *Orchestrator
	followUp  *CancellationFollowUp
	logs      *logtest.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	store := memory.NewStore()
	store.PutResource(&catalog.Resource{ID: "res-1", TenantID: "t1", Name: "黄山三日游", BasePrice: 129900, Currency: "CNY", DurationDays: 3})

	clk := clock.NewManual(t0)
	pub := &recordingPublisher{}
	inv := appinventory.NewService(store.Departures(), store.Usage(), store.Waitlist(), nil, store, clk,
		appinventory.Config{LimitedThreshold: 2}, log)
	holds := apphold.NewService(store.Allocator(), store.Holds(), store.Departures(), pub, inv, clk,
		apphold.Config{TTL: domainhold.DefaultTTLPolicy(), MaxExtension: 30 * time.Minute}, log)

	return &fixture{
		store:     store,
		clock:     clk,
		publisher: pub,
		inventory: inv,
		orch:      NewOrchestrator(store.Bookings(), holds, inv, store.Departures(), store.Catalog(), pub, clk, log),
		followUp:  NewCancellationFollowUp(holds, inv, pub, clk, log),
		logs:      hook,
	}
}

func (f *fixture) departure(t *testing.T, capacity int, priceOverride *int64) *departure.Departure {
	t.Helper()
	d, err := f.inventory.CreateDeparture(context.Background(), appinventory.CreateDepartureCommand{
		TenantID:      "t1",
		ResourceID:    "res-1",
		DepartureDate: t0.AddDate(0, 1, 0),
		TotalCapacity: capacity,
		PriceOverride: priceOverride,
		OpenForSale:   true,
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) initiate(t *testing.T, depID string, source domainbooking.Source, count int) *InitResult {
	t.Helper()
	r, err := f.orch.InitiateBooking(context.Background(), InitiateBookingCommand{
		TenantID:         "t1",
		DepartureID:      depID,
		Source:           source,
		GuestName:        "李四",
		GuestEmail:       "lisi@example.com",
		ParticipantCount: count,
	})
	require.NoError(t, err)
	return r
}

func hasEntry(hook *logtest.Hook, level logrus.Level, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}

// TestInitiateBooking_ChannelNeutral 所有渠道走同一流程,只有占座类型不同
func TestInitiateBooking_ChannelNeutral(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.departure(t, 20, nil)

	cases := []struct {
		source   domainbooking.Source
		holdType domainhold.Type
		holdSrc  domainhold.Source
		actor    string
		ttl      time.Duration
	}{
		{domainbooking.SourceDirect, domainhold.TypeCart, domainhold.SourceWebsite, "website", 15 * time.Minute},
		{domainbooking.SourceOTA, domainhold.TypeCart, domainhold.SourceOTA, "ota-gateway", 15 * time.Minute},
		{domainbooking.SourceManual, domainhold.TypeApprovalPending, domainhold.SourceManual, "staff", 24 * time.Hour},
		{domainbooking.SourceCSV, domainhold.TypeApprovalPending, domainhold.SourceAdmin, "csv-import", 24 * time.Hour},
		{domainbooking.SourceEmail, domainhold.TypeCart, domainhold.SourceManual, "email-intake", 15 * time.Minute},
	}

	for _, tc := range cases {
		t.Run(string(tc.source), func(t *testing.T) {
			r := f.initiate(t, d.ID, tc.source, 2)
			require.True(t, r.Success, r.ErrorMessage)
			assert.Regexp(t, `^BK\d{12}$`, r.Reference)
			assert.Equal(t, int64(2*129900), r.TotalAmount)
			assert.Equal(t, t0.Add(tc.ttl), *r.HoldExpiresAt)

			h, err := f.store.Holds().FindByID(ctx, "t1", r.HoldID)
			require.NoError(t, err)
			assert.Equal(t, tc.holdType, h.Type)
			assert.Equal(t, tc.holdSrc, h.Source)
			assert.Equal(t, tc.actor, h.CreatedByID)

			b, err := f.orch.GetBooking(ctx, "t1", r.BookingID)
			require.NoError(t, err)
			assert.Equal(t, domainbooking.StatusHeld, b.Status)
			assert.Equal(t, tc.source, b.Source)
			assert.Equal(t, d.DepartureDate.AddDate(0, 0, 2), b.EndDate)
		})
	}

	_, total, err := f.orch.ListBookingsByDeparture(ctx, "t1", d.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(len(cases)), total)
}

// TestInitiateBooking_Failures 发起失败返回结构化结果
func TestInitiateBooking_Failures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.departure(t, 4, nil)

	t.Run("客人姓名为空", func(t *testing.T) {
		r, err := f.orch.InitiateBooking(ctx, InitiateBookingCommand{
			TenantID: "t1", DepartureID: d.ID, Source: domainbooking.SourceDirect, GuestName: "  ", ParticipantCount: 1,
		})
		require.NoError(t, err)
		assert.False(t, r.Success)
		assert.Equal(t, domainbooking.CodeInvalidGuest, r.ErrorCode)
	})

	t.Run("人数为0", func(t *testing.T) {
		r := f.initiate(t, d.ID, domainbooking.SourceDirect, 0)
		assert.Equal(t, domainbooking.CodeInvalidCount, r.ErrorCode)
	})

	t.Run("座位不足带回可订座位", func(t *testing.T) {
		r := f.initiate(t, d.ID, domainbooking.SourceDirect, 5)
		assert.False(t, r.Success)
		assert.Equal(t, domainbooking.CodeNoAvailability, r.ErrorCode)
		require.NotNil(t, r.AvailableSeats)
		assert.Equal(t, 4, *r.AvailableSeats)
	})

	t.Run("团期不存在", func(t *testing.T) {
		r := f.initiate(t, "missing", domainbooking.SourceDirect, 1)
		assert.Equal(t, domainhold.CodeDepartureNotFound, r.ErrorCode)
	})

	t.Run("未知渠道", func(t *testing.T) {
		_, err := f.orch.InitiateBooking(ctx, InitiateBookingCommand{
			TenantID: "t1", DepartureID: d.ID, Source: "FAX", GuestName: "王五", ParticipantCount: 1,
		})
		assert.ErrorIs(t, err, domainbooking.ErrInvalidSource)
	})

	t.Run("失败的请求不占用座位", func(t *testing.T) {
		state, err := f.inventory.GetState(ctx, "t1", d.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, state.HeldSeats)
	})
}

// TestInitiateBooking_PriceOverride 团期价格优先
func TestInitiateBooking_PriceOverride(t *testing.T) {
	price := int64(99900)
	f := newFixture(t)
	d := f.departure(t, 10, &price)

	r := f.initiate(t, d.ID, domainbooking.SourceDirect, 3)
	require.True(t, r.Success)
	assert.Equal(t, int64(3*99900), r.TotalAmount)
}

// TestConfirmBooking 支付成功后确认
func TestConfirmBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.departure(t, 10, nil)
	r := f.initiate(t, d.ID, domainbooking.SourceDirect, 3)
	require.True(t, r.Success)

	result, err := f.orch.ConfirmBooking(ctx, ConfirmBookingCommand{TenantID: "t1", BookingID: r.BookingID, ActorID: "payment"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, domainbooking.StatusConfirmed, result.Status)

	b, err := f.orch.GetBooking(ctx, "t1", r.BookingID)
	require.NoError(t, err)
	assert.Empty(t, b.HoldID, "确认后清空占座引用")
	assert.NotNil(t, b.ConfirmedAt)

	h, err := f.store.Holds().FindByID(ctx, "t1", r.HoldID)
	require.NoError(t, err)
	assert.Equal(t, domainhold.ReasonConfirmed, h.ReleaseReason)

	state, err := f.inventory.GetState(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, state.HeldSeats)
	assert.Equal(t, 3, state.ConfirmedSeats)
	assert.Equal(t, 7, state.AvailableSeats)
	assert.Empty(t, f.publisher.released(), "确认不重新开放座位")

	t.Run("重复确认幂等", func(t *testing.T) {
		again, err := f.orch.ConfirmBooking(ctx, ConfirmBookingCommand{TenantID: "t1", BookingID: r.BookingID})
		require.NoError(t, err)
		assert.True(t, again.Success)
		assert.Equal(t, domainbooking.StatusConfirmed, again.Status)
	})

	t.Run("其他租户查不到", func(t *testing.T) {
		_, err := f.orch.ConfirmBooking(ctx, ConfirmBookingCommand{TenantID: "t2", BookingID: r.BookingID})
		assert.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
	})
}

// TestConfirmBooking_ExpiredHold 占座过期后确认照常完成并告警
func TestConfirmBooking_ExpiredHold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.departure(t, 10, nil)
	r := f.initiate(t, d.ID, domainbooking.SourceOTA, 2)
	require.True(t, r.Success)

	f.clock.Advance(16 * time.Minute)

	result, err := f.orch.ConfirmBooking(ctx, ConfirmBookingCommand{TenantID: "t1", BookingID: r.BookingID})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, hasEntry(f.logs, logrus.WarnLevel, "确认预订时占座已释放或已过期"))

	state, err := f.inventory.GetState(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, state.ConfirmedSeats)
	assert.Equal(t, 0, state.HeldSeats)
}

// TestConfirmBooking_ForeignHold 确认不能消耗其他预订的占座
func TestConfirmBooking_ForeignHold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.departure(t, 10, nil)
	a := f.initiate(t, d.ID, domainbooking.SourceDirect, 4)
	require.True(t, a.Success)
	f.clock.Advance(10 * time.Minute)
	b := f.initiate(t, d.ID, domainbooking.SourceDirect, 6)
	require.True(t, b.Success)

	result, err := f.orch.ConfirmBooking(ctx, ConfirmBookingCommand{TenantID: "t1", BookingID: a.BookingID, HoldID: b.HoldID})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, domainbooking.CodeHoldMismatch, result.ErrorCode)
	assert.Equal(t, domainbooking.StatusHeld, result.Status)

	h, err := f.store.Holds().FindByID(ctx, "t1", b.HoldID)
	require.NoError(t, err)
	assert.True(t, h.IsActive(f.clock.Now()), "其他预订的占座保持有效")

	t.Run("占座保护仍然有效,不会超卖", func(t *testing.T) {
		f.clock.Advance(6 * time.Minute)
		c := f.initiate(t, d.ID, domainbooking.SourceDirect, 6)
		assert.False(t, c.Success)
		assert.Equal(t, domainbooking.CodeNoAvailability, c.ErrorCode)
		require.NotNil(t, c.AvailableSeats)
		assert.Equal(t, 4, *c.AvailableSeats)
		t.Logf("✓ 第三个预订被拒绝,可订座位 %d", *c.AvailableSeats)
	})

	t.Run("携带自己的占座可以确认", func(t *testing.T) {
		ok, err := f.orch.ConfirmBooking(ctx, ConfirmBookingCommand{TenantID: "t1", BookingID: b.BookingID, HoldID: b.HoldID})
		require.NoError(t, err)
		assert.True(t, ok.Success)

		state, err := f.inventory.GetState(ctx, "t1", d.ID)
		require.NoError(t, err)
		assert.Equal(t, 6, state.ConfirmedSeats)
		assert.LessOrEqual(t, state.ConfirmedSeats+state.HeldSeats, d.TotalCapacity)
	})
}

// TestCancelBooking 取消与后续回收
func TestCancelBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.departure(t, 10, nil)

	t.Run("取消已占座的预订,后续处理释放占座", func(t *testing.T) {
		r := f.initiate(t, d.ID, domainbooking.SourceDirect, 4)
		require.True(t, r.Success)

		result, err := f.orch.CancelBooking(ctx, CancelBookingCommand{TenantID: "t1", BookingID: r.BookingID, Reason: "客人改期", ActorID: "user-1"})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, domainbooking.StatusCancelled, result.Status)

		events := f.publisher.cancelled()
		require.Len(t, events, 1)
		assert.Equal(t, r.HoldID, events[0].HoldID)
		assert.False(t, events[0].WasConfirmed)

		require.NoError(t, f.followUp.Handle(ctx, events[0]))
		h, err := f.store.Holds().FindByID(ctx, "t1", r.HoldID)
		require.NoError(t, err)
		assert.Equal(t, domainhold.ReasonCancelled, h.ReleaseReason)

		// 重复投递安全
		require.NoError(t, f.followUp.Handle(ctx, events[0]))
		assert.Len(t, f.publisher.released(), 1)
	})

	t.Run("重复取消被拒绝", func(t *testing.T) {
		r := f.initiate(t, d.ID, domainbooking.SourceDirect, 1)
		_, err := f.orch.CancelBooking(ctx, CancelBookingCommand{TenantID: "t1", BookingID: r.BookingID})
		require.NoError(t, err)

		again, err := f.orch.CancelBooking(ctx, CancelBookingCommand{TenantID: "t1", BookingID: r.BookingID})
		require.NoError(t, err)
		assert.False(t, again.Success)
		assert.Equal(t, domainbooking.CodeInvalidTransition, again.ErrorCode)
	})

	t.Run("取消已确认预订,座位退回", func(t *testing.T) {
		r := f.initiate(t, d.ID, domainbooking.SourceDirect, 2)
		_, err := f.orch.ConfirmBooking(ctx, ConfirmBookingCommand{TenantID: "t1", BookingID: r.BookingID})
		require.NoError(t, err)
		before := len(f.publisher.released())

		_, err = f.orch.CancelBooking(ctx, CancelBookingCommand{TenantID: "t1", BookingID: r.BookingID, Reason: "行程取消"})
		require.NoError(t, err)

		events := f.publisher.cancelled()
		last := events[len(events)-1]
		assert.True(t, last.WasConfirmed)
		assert.Empty(t, last.HoldID)

		require.NoError(t, f.followUp.Handle(ctx, last))
		released := f.publisher.released()
		require.Len(t, released, before+1)
		assert.Equal(t, r.BookingID, released[len(released)-1].BookingID)

		state, err := f.inventory.GetState(ctx, "t1", d.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, state.ConfirmedSeats)
	})
}

// TestLifecycle 支付、审批、售后流转
func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.departure(t, 10, nil)

	t.Run("支付结果不明后对账确认", func(t *testing.T) {
		r := f.initiate(t, d.ID, domainbooking.SourceDirect, 1)
		res, err := f.orch.StartPayment(ctx, "t1", r.BookingID)
		require.NoError(t, err)
		assert.Equal(t, domainbooking.StatusPendingPayment, res.Status)

		res, err = f.orch.MarkPaymentUncertain(ctx, "t1", r.BookingID)
		require.NoError(t, err)
		assert.Equal(t, domainbooking.StatusPaymentUncertain, res.Status)

		res, err = f.orch.ConfirmBooking(ctx, ConfirmBookingCommand{TenantID: "t1", BookingID: r.BookingID})
		require.NoError(t, err)
		assert.Equal(t, domainbooking.StatusConfirmed, res.Status)

		res, err = f.orch.Complete(ctx, "t1", r.BookingID)
		require.NoError(t, err)
		assert.Equal(t, domainbooking.StatusCompleted, res.Status)

		res, err = f.orch.Refund(ctx, "t1", r.BookingID, "ops")
		require.NoError(t, err)
		assert.False(t, res.Success, "终态不能退款")
	})

	t.Run("员工录单审批", func(t *testing.T) {
		r := f.initiate(t, d.ID, domainbooking.SourceManual, 2)

		res, err := f.orch.Approve(ctx, "t1", r.BookingID, "manager")
		require.NoError(t, err)
		assert.False(t, res.Success, "未提交审批不能通过")

		res, err = f.orch.RequestApproval(ctx, "t1", r.BookingID)
		require.NoError(t, err)
		assert.Equal(t, domainbooking.StatusPendingApproval, res.Status)

		res, err = f.orch.Approve(ctx, "t1", r.BookingID, "manager")
		require.NoError(t, err)
		assert.Equal(t, domainbooking.StatusConfirmed, res.Status)

		res, err = f.orch.MarkNoShow(ctx, "t1", r.BookingID)
		require.NoError(t, err)
		assert.Equal(t, domainbooking.StatusNoShow, res.Status)
	})

	t.Run("退款重新开放座位", func(t *testing.T) {
		r := f.initiate(t, d.ID, domainbooking.SourceDirect, 3)
		_, err := f.orch.ConfirmBooking(ctx, ConfirmBookingCommand{TenantID: "t1", BookingID: r.BookingID})
		require.NoError(t, err)

		res, err := f.orch.Refund(ctx, "t1", r.BookingID, "ops")
		require.NoError(t, err)
		assert.Equal(t, domainbooking.StatusRefunded, res.Status)

		released := f.publisher.released()
		require.NotEmpty(t, released)
		assert.Equal(t, 3, released[len(released)-1].Seats)
	})
}

// TestCancellationFollowUp_HandleMessage 消息适配
func TestCancellationFollowUp_HandleMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.departure(t, 10, nil)

	t.Run("消息体无法解析", func(t *testing.T) {
		err := f.followUp.HandleMessage(ctx, event.TopicBookingCancelled, []byte("{not json"))
		assert.True(t, mq.IsPermanent(err))
	})

	t.Run("未知路由键", func(t *testing.T) {
		err := f.followUp.HandleMessage(ctx, "booking.created", []byte("{}"))
		assert.True(t, mq.IsPermanent(err))
	})

	t.Run("占座已不存在时仍然完成", func(t *testing.T) {
		body, err := json.Marshal(event.BookingCancelled{
			TenantID: "t1", BookingID: "b-1", DepartureID: d.ID, HoldID: "gone", Seats: 1,
		})
		require.NoError(t, err)
		assert.NoError(t, f.followUp.HandleMessage(ctx, event.TopicBookingCancelled, body))
	})
}
