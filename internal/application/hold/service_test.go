package hold

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appinventory "github.com/xiebiao/tripbooking/internal/application/inventory"
	"github.com/xiebiao/tripbooking/internal/domain/departure"
	domainhold "github.com/xiebiao/tripbooking/internal/domain/hold"
	"github.com/xiebiao/tripbooking/internal/domain/event"
	"github.com/xiebiao/tripbooking/internal/infrastructure/persistence/memory"
	"github.com/xiebiao/tripbooking/pkg/clock"
)

var t0 = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
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
	holds     *Service
	logs      *logtest.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	store := memory.NewStore()
	clk := clock.NewManual(t0)
	pub := &recordingPublisher{}
	inv := appinventory.NewService(store.Departures(), store.Usage(), store.Waitlist(), nil, store, clk,
		appinventory.Config{LimitedThreshold: 4}, log)
	svc := NewService(store.Allocator(), store.Holds(), store.Departures(), pub, inv, clk,
		Config{TTL: domainhold.DefaultTTLPolicy(), MaxExtension: 30 * time.Minute}, log)

	return &fixture{store: store, clock: clk, publisher: pub, inventory: inv, holds: svc, logs: hook}
}

func (f *fixture) seedDeparture(t *testing.T, capacity int) *departure.Departure {
	t.Helper()
	d, err := f.inventory.CreateDeparture(context.Background(), appinventory.CreateDepartureCommand{
		TenantID:      "t1",
		ResourceID:    "res-1",
		DepartureDate: t0.AddDate(0, 1, 0),
		TotalCapacity: capacity,
		OpenForSale:   true,
	})
	require.NoError(t, err)
	return d
}

func hasEntry(hook *logtest.Hook, level logrus.Level, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}

func cartHold(depID string, seats int) CreateHoldCommand {
	return CreateHoldCommand{
		TenantID:    "t1",
		DepartureID: depID,
		SeatCount:   seats,
		Source:      domainhold.SourceWebsite,
		HoldType:    domainhold.TypeCart,
		CreatedByID: "website",
		SessionID:   "sess-1",
	}
}

// TestCreateHold_ConcurrentRequests 并发占座先到先得
func TestCreateHold_ConcurrentRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.seedDeparture(t, 10)

	t.Run("两个6座请求并发,只有一个成功", func(t *testing.T) {
		var wg sync.WaitGroup
		results := make([]*CreateHoldResult, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r, err := f.holds.CreateHold(ctx, cartHold(d.ID, 6))
				assert.NoError(t, err)
				results[i] = r
			}(i)
		}
		wg.Wait()

		require.NotNil(t, results[0])
		require.NotNil(t, results[1])
		var success, failure *CreateHoldResult
		for _, r := range results {
			if r.Success {
				success = r
			} else {
				failure = r
			}
		}
		require.NotNil(t, success, "必须有一个成功")
		require.NotNil(t, failure, "必须有一个失败")
		assert.Equal(t, domainhold.CodeNoAvailability, failure.ErrorCode)
		assert.Equal(t, 4, failure.AvailableSeats)
		assert.Equal(t, 4, success.AvailableSeats)
		t.Logf("✓ 失败方得到NO_AVAILABILITY,剩余%d座", failure.AvailableSeats)
	})

	t.Run("剩余4座可以占满", func(t *testing.T) {
		r, err := f.holds.CreateHold(ctx, cartHold(d.ID, 4))
		require.NoError(t, err)
		assert.True(t, r.Success)
		assert.Equal(t, 0, r.AvailableSeats)
	})

	t.Run("满员后再占1座失败", func(t *testing.T) {
		r, err := f.holds.CreateHold(ctx, cartHold(d.ID, 1))
		require.NoError(t, err)
		assert.False(t, r.Success)
		assert.Equal(t, domainhold.CodeNoAvailability, r.ErrorCode)
		assert.Equal(t, 0, r.AvailableSeats)
	})

	t.Run("销售状态随余位刷新为WAITLIST", func(t *testing.T) {
		latest, err := f.inventory.GetDeparture(ctx, "t1", d.ID)
		require.NoError(t, err)
		assert.Equal(t, departure.StatusWaitlist, latest.Status)
	})
}

// TestCreateHold_Validation 参数校验返回结构化结果
func TestCreateHold_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.seedDeparture(t, 10)

	t.Run("座位数为0", func(t *testing.T) {
		r, err := f.holds.CreateHold(ctx, cartHold(d.ID, 0))
		require.NoError(t, err)
		assert.False(t, r.Success)
		assert.Equal(t, domainhold.CodeInvalidCount, r.ErrorCode)
	})

	t.Run("未声明TTL的占座类型", func(t *testing.T) {
		cmd := cartHold(d.ID, 1)
		cmd.HoldType = domainhold.Type("UNKNOWN")
		r, err := f.holds.CreateHold(ctx, cmd)
		require.NoError(t, err)
		assert.Equal(t, domainhold.CodeInvalidHoldType, r.ErrorCode)
	})

	t.Run("未知来源", func(t *testing.T) {
		cmd := cartHold(d.ID, 1)
		cmd.Source = domainhold.Source("FAX")
		_, err := f.holds.CreateHold(ctx, cmd)
		assert.ErrorIs(t, err, domainhold.ErrInvalidSource)
	})

	t.Run("团期不存在", func(t *testing.T) {
		r, err := f.holds.CreateHold(ctx, cartHold("missing", 1))
		require.NoError(t, err)
		assert.Equal(t, domainhold.CodeDepartureNotFound, r.ErrorCode)
	})

	t.Run("其他租户的团期视为不存在", func(t *testing.T) {
		cmd := cartHold(d.ID, 1)
		cmd.TenantID = "t2"
		r, err := f.holds.CreateHold(ctx, cmd)
		require.NoError(t, err)
		assert.Equal(t, domainhold.CodeDepartureNotFound, r.ErrorCode)
	})

	t.Run("停售团期不接受占座", func(t *testing.T) {
		latest, err := f.inventory.GetDeparture(ctx, "t1", d.ID)
		require.NoError(t, err)
		_, err = f.inventory.ChangeStatus(ctx, "t1", d.ID, latest.Version, departure.StatusClosed)
		require.NoError(t, err)

		r, err := f.holds.CreateHold(ctx, cartHold(d.ID, 1))
		require.NoError(t, err)
		assert.Equal(t, domainhold.CodeDepartureNotBookable, r.ErrorCode)
	})
}

// TestCreateHold_ExpiryWithoutSweep 过期占座不需要扫描即可释放座位
func TestCreateHold_ExpiryWithoutSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.seedDeparture(t, 10)

	r, err := f.holds.CreateHold(ctx, cartHold(d.ID, 10))
	require.NoError(t, err)
	require.True(t, r.Success)
	assert.Equal(t, t0.Add(15*time.Minute), *r.ExpiresAt)

	f.clock.Advance(16 * time.Minute)

	state, err := f.inventory.GetState(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, state.HeldSeats)
	assert.Equal(t, 10, state.AvailableSeats)

	again, err := f.holds.CreateHold(ctx, cartHold(d.ID, 10))
	require.NoError(t, err)
	assert.True(t, again.Success, "过期占座不再占用座位")
	t.Logf("✓ 16分钟后无需扫描即可重新占满")
}

// TestReleaseHold 释放占座幂等
func TestReleaseHold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.seedDeparture(t, 10)

	r, err := f.holds.CreateHold(ctx, cartHold(d.ID, 3))
	require.NoError(t, err)
	require.True(t, r.Success)

	released, err := f.holds.ReleaseHold(ctx, "t1", r.HoldID, domainhold.ReasonUserReleased, "user-1")
	require.NoError(t, err)
	assert.True(t, released)

	again, err := f.holds.ReleaseHold(ctx, "t1", r.HoldID, domainhold.ReasonUserReleased, "user-1")
	require.NoError(t, err)
	assert.False(t, again, "重复释放返回false")

	events := f.publisher.released()
	require.Len(t, events, 1, "只有第一次释放发布事件")
	assert.Equal(t, 3, events[0].Seats)
	assert.Equal(t, []string{r.HoldID}, events[0].HoldIDs)

	t.Run("确认原因释放不发布seats.released", func(t *testing.T) {
		r, err := f.holds.CreateHold(ctx, cartHold(d.ID, 2))
		require.NoError(t, err)
		ok, err := f.holds.ReleaseHold(ctx, "t1", r.HoldID, domainhold.ReasonConfirmed, "payment")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Len(t, f.publisher.released(), 1)
	})

	t.Run("其他租户看不到占座", func(t *testing.T) {
		_, err := f.holds.ReleaseHold(ctx, "t2", r.HoldID, domainhold.ReasonUserReleased, "user-1")
		assert.ErrorIs(t, err, domainhold.ErrHoldNotFound)
	})

	t.Run("事件发布失败不影响释放", func(t *testing.T) {
		r, err := f.holds.CreateHold(ctx, cartHold(d.ID, 1))
		require.NoError(t, err)
		f.publisher.err = errors.New("broker down")
		defer func() { f.publisher.err = nil }()

		ok, err := f.holds.ReleaseHold(ctx, "t1", r.HoldID, domainhold.ReasonCancelled, "user-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, hasEntry(f.logs, logrus.WarnLevel, "事件发布失败"))
	})
}

// TestExtendHold 延长占座
func TestExtendHold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d := f.seedDeparture(t, 10)

	r, err := f.holds.CreateHold(ctx, cartHold(d.ID, 2))
	require.NoError(t, err)

	t.Run("有效占座可以延期", func(t *testing.T) {
		ext, err := f.holds.ExtendHold(ctx, "t1", r.HoldID, 10)
		require.NoError(t, err)
		assert.True(t, ext.Extended)
		assert.Equal(t, t0.Add(25*time.Minute), *ext.ExpiresAt)
	})

	t.Run("单次延期不超过上限", func(t *testing.T) {
		ext, err := f.holds.ExtendHold(ctx, "t1", r.HoldID, 120)
		require.NoError(t, err)
		assert.True(t, ext.Extended)
		assert.Equal(t, t0.Add(55*time.Minute), *ext.ExpiresAt)
	})

	t.Run("超大延期时长按上限截断", func(t *testing.T) {
		ext, err := f.holds.ExtendHold(ctx, "t1", r.HoldID, 200000000)
		require.NoError(t, err)
		assert.True(t, ext.Extended)
		assert.Equal(t, t0.Add(85*time.Minute), *ext.ExpiresAt)

		avail, err := f.inventory.CheckAvailability(ctx, "t1", d.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, avail.State.HeldSeats)
		t.Logf("✓ 延期后到期时间 %s", ext.ExpiresAt)
	})

	t.Run("非法延期时长", func(t *testing.T) {
		_, err := f.holds.ExtendHold(ctx, "t1", r.HoldID, 0)
		assert.ErrorIs(t, err, domainhold.ErrInvalidExtension)
	})

	t.Run("过期后不能复活", func(t *testing.T) {
		f.clock.Advance(2 * time.Hour)
		ext, err := f.holds.ExtendHold(ctx, "t1", r.HoldID, 10)
		require.NoError(t, err)
		assert.False(t, ext.Extended)
		assert.Nil(t, ext.ExpiresAt)
	})
}

// TestExpireStaleHolds 过期扫描按团期聚合事件
func TestExpireStaleHolds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d1 := f.seedDeparture(t, 10)
	d2 := f.seedDeparture(t, 10)

	for _, cmd := range []CreateHoldCommand{cartHold(d1.ID, 2), cartHold(d1.ID, 3), cartHold(d2.ID, 1)} {
		r, err := f.holds.CreateHold(ctx, cmd)
		require.NoError(t, err)
		require.True(t, r.Success)
	}
	staff := cartHold(d2.ID, 4)
	staff.HoldType = domainhold.TypeStaff
	r, err := f.holds.CreateHold(ctx, staff)
	require.NoError(t, err)
	require.True(t, r.Success)

	f.clock.Advance(20 * time.Minute)

	count, err := f.holds.ExpireStaleHolds(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "STAFF占座2小时内不过期")

	events := f.publisher.released()
	require.Len(t, events, 2)
	seats := map[string]int{}
	for _, e := range events {
		assert.Equal(t, string(domainhold.ReasonExpired), e.Reason)
		seats[e.DepartureID] = e.Seats
	}
	assert.Equal(t, 5, seats[d1.ID])
	assert.Equal(t, 1, seats[d2.ID])

	again, err := f.holds.ExpireStaleHolds(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, again)

	active, err := f.holds.GetActiveHolds(ctx, "t1", d2.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, domainhold.TypeStaff, active[0].Type)
}

// TestGetActiveHolds_DepartureNotFound 团期不存在
func TestGetActiveHolds_DepartureNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.holds.GetActiveHolds(context.Background(), "t1", "missing")
	assert.ErrorIs(t, err, departure.ErrDepartureNotFound)
}
