package booking

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/tripbooking/internal/domain/hold"
)

var now = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

func TestTerminalStatesRejectEverything(t *testing.T) {
	for _, from := range AllStatuses() {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range AllStatuses() {
			assert.False(t, from.CanTransitionTo(to), "%s → %s 必须被拒绝", from, to)

			b := &Booking{Status: from}
			assert.ErrorIs(t, b.TransitionTo(to, now), ErrTerminalStatus)
		}
	}
}

func TestLifecycleEdges(t *testing.T) {
	edges := [][2]Status{
		{StatusDraft, StatusHeld},
		{StatusHeld, StatusPendingPayment},
		{StatusPendingPayment, StatusConfirmed},
		{StatusPendingPayment, StatusPaymentUncertain},
		{StatusPaymentUncertain, StatusConfirmed},
		{StatusHeld, StatusPendingApproval},
		{StatusPendingPayment, StatusPendingApproval},
		{StatusPendingApproval, StatusConfirmed},
		{StatusHeld, StatusCancelled},
		{StatusConfirmed, StatusRefunded},
		{StatusConfirmed, StatusNoShow},
		{StatusConfirmed, StatusCompleted},
	}
	for _, e := range edges {
		assert.True(t, e[0].CanTransitionTo(e[1]), "%s → %s", e[0], e[1])
	}

	assert.False(t, StatusHeld.CanTransitionTo(StatusConfirmed), "HELD需要经过PENDING_PAYMENT")
	assert.False(t, StatusDraft.CanTransitionTo(StatusConfirmed))
}

func TestConfirmAndCancel(t *testing.T) {
	b := &Booking{Status: StatusPendingPayment, HoldID: "hold-1"}
	require.NoError(t, b.Confirm(now))
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Empty(t, b.HoldID, "确认后不再引用占座")
	require.NotNil(t, b.ConfirmedAt)

	require.NoError(t, b.Cancel("客人改期", "staff-7", now))
	assert.Equal(t, "客人改期", b.CancelReason)
	assert.Equal(t, "staff-7", b.CancelledByID)

	assert.ErrorIs(t, b.Cancel("again", "", now), ErrAlreadyCancelled)
}

func TestChannelPolicy(t *testing.T) {
	cases := map[Source]hold.Type{
		SourceDirect: hold.TypeCart,
		SourceOTA:    hold.TypeCart,
		SourceEmail:  hold.TypeCart,
		SourceManual: hold.TypeApprovalPending,
		SourceCSV:    hold.TypeApprovalPending,
	}
	for src, want := range cases {
		p, ok := PolicyFor(src)
		require.True(t, ok, string(src))
		assert.Equal(t, want, p.HoldType, string(src))
		assert.True(t, p.HoldSource.Valid())
		assert.NotEmpty(t, p.DefaultActor)
	}

	_, ok := PolicyFor(Source("FAX"))
	assert.False(t, ok)
}

func TestGenerateReference(t *testing.T) {
	ref := GenerateReference(now)
	assert.Regexp(t, regexp.MustCompile(`^BK260315\d{6}$`), ref)
}

func TestConsumesSeats(t *testing.T) {
	assert.True(t, StatusConfirmed.ConsumesSeats())
	assert.True(t, StatusNoShow.ConsumesSeats())
	assert.False(t, StatusHeld.ConsumesSeats())
	assert.False(t, StatusRefunded.ConsumesSeats())
	assert.False(t, StatusCancelled.ConsumesSeats())
}
