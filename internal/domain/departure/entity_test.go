package departure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

func newTestDeparture(t *testing.T, total, blocked, overbooking int, guaranteed bool) *Departure {
	t.Helper()
	d, err := NewDeparture(NewParams{
		ID:               "dep-1",
		TenantID:         "tenant-a",
		ResourceID:       "res-1",
		DepartureDate:    testNow.AddDate(0, 1, 0),
		TotalCapacity:    total,
		BlockedSeats:     blocked,
		OverbookingLimit: overbooking,
		IsGuaranteed:     guaranteed,
	}, testNow)
	require.NoError(t, err)
	return d
}

func TestNewDeparture(t *testing.T) {
	t.Run("新团期为DRAFT且version=1", func(t *testing.T) {
		d := newTestDeparture(t, 20, 2, 0, false)
		assert.Equal(t, StatusDraft, d.Status)
		assert.Equal(t, int64(1), d.Version)
		assert.Equal(t, 18, d.SellableCapacity())
	})

	t.Run("保留座位超过总容量", func(t *testing.T) {
		_, err := NewDeparture(NewParams{
			TenantID: "t", ResourceID: "r", DepartureDate: testNow,
			TotalCapacity: 5, BlockedSeats: 6,
		}, testNow)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
	})

	t.Run("缺少租户", func(t *testing.T) {
		_, err := NewDeparture(NewParams{ResourceID: "r", DepartureDate: testNow, TotalCapacity: 5}, testNow)
		assert.ErrorIs(t, err, ErrInvalidDeparture)
	})

	t.Run("负价格", func(t *testing.T) {
		price := int64(-1)
		_, err := NewDeparture(NewParams{
			TenantID: "t", ResourceID: "r", DepartureDate: testNow,
			TotalCapacity: 5, PriceOverride: &price,
		}, testNow)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	})
}

func TestOverbookingAllowance(t *testing.T) {
	assert.Equal(t, 0, newTestDeparture(t, 10, 0, 3, false).OverbookingAllowance())
	assert.Equal(t, 3, newTestDeparture(t, 10, 0, 3, true).OverbookingAllowance())
	assert.Equal(t, 13, newTestDeparture(t, 10, 0, 3, true).SeatCeiling())
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusDraft, StatusOpen, true},
		{StatusDraft, StatusLimited, false},
		{StatusOpen, StatusLimited, true},
		{StatusLimited, StatusWaitlist, true},
		{StatusWaitlist, StatusOpen, true},
		{StatusClosed, StatusOpen, true},
		{StatusClosed, StatusWaitlist, false},
		{StatusCancelled, StatusOpen, false},
		{StatusCompleted, StatusOpen, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s → %s", tc.from, tc.to)
	}

	d := newTestDeparture(t, 10, 0, 0, false)
	require.NoError(t, d.TransitionTo(StatusOpen, testNow.Add(time.Minute)))
	assert.Equal(t, int64(2), d.Version)
	assert.ErrorIs(t, d.TransitionTo(StatusDraft, testNow), ErrInvalidStatusTransition)
	assert.ErrorIs(t, d.TransitionTo(Status("BOGUS"), testNow), ErrInvalidStatusTransition)
	assert.Equal(t, int64(2), d.Version)
}

func TestApplyCapacity(t *testing.T) {
	t.Run("不能低于已占用座位", func(t *testing.T) {
		d := newTestDeparture(t, 10, 0, 0, false)
		total := 5
		err := d.ApplyCapacity(CapacityChange{TotalCapacity: &total}, 6, testNow)
		assert.ErrorIs(t, err, ErrCapacityBelowUsage)
		assert.Equal(t, 10, d.TotalCapacity, "失败时不修改实体")
		assert.Equal(t, int64(1), d.Version)
	})

	t.Run("调整成功递增version", func(t *testing.T) {
		d := newTestDeparture(t, 10, 0, 0, false)
		blocked := 2
		require.NoError(t, d.ApplyCapacity(CapacityChange{BlockedSeats: &blocked}, 8, testNow))
		assert.Equal(t, 8, d.SellableCapacity())
		assert.Equal(t, int64(2), d.Version)
	})

	t.Run("终态团期不能调整", func(t *testing.T) {
		d := newTestDeparture(t, 10, 0, 0, false)
		require.NoError(t, d.TransitionTo(StatusCancelled, testNow))
		total := 12
		assert.ErrorIs(t, d.ApplyCapacity(CapacityChange{TotalCapacity: &total}, 0, testNow), ErrDepartureClosed)
	})
}

func TestSalesStatus(t *testing.T) {
	d := newTestDeparture(t, 10, 0, 0, false)
	assert.Equal(t, StatusDraft, d.SalesStatus(0, 3), "未开售的团期不参与推导")

	d.Status = StatusOpen
	assert.Equal(t, StatusWaitlist, d.SalesStatus(0, 3))
	assert.Equal(t, StatusLimited, d.SalesStatus(3, 3))
	assert.Equal(t, StatusOpen, d.SalesStatus(4, 3))
}
