package memory

import (
	"context"
	"time"

	"github.com/xiebiao/tripbooking/internal/domain/hold"
)

type allocator struct {
	s *Store
}

// Allocate 在txMu内完成 读取团期→统计占用→判定→插入
func (a *allocator) Allocate(ctx context.Context, h *hold.Hold, now time.Time) (hold.Decision, error) {
	a.s.txMu.Lock()
	defer a.s.txMu.Unlock()

	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	d, ok := a.s.departures[h.DepartureID]
	if !ok || !d.IsOwnedBy(h.TenantID) {
		return hold.Decision{Code: hold.CodeDepartureNotFound}, nil
	}

	usage := a.s.usageLocked(h.TenantID, h.DepartureID, now)
	dec := hold.Decide(d, usage, h.SeatCount, now)
	if !dec.Granted {
		return dec, nil
	}

	a.s.holds[h.ID] = cloneHold(h)
	return dec, nil
}
