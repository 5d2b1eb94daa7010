package memory

import (
	"context"
	"sort"
	"time"

	"github.com/xiebiao/tripbooking/internal/domain/hold"
)

type holdRepo struct {
	s *Store
}

func (r *holdRepo) FindByID(ctx context.Context, tenantID, id string) (*hold.Hold, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	h, ok := r.s.holds[id]
	if !ok || h.TenantID != tenantID {
		return nil, hold.ErrHoldNotFound
	}
	return cloneHold(h), nil
}

func (r *holdRepo) Release(ctx context.Context, tenantID, id string, reason hold.ReleaseReason, actorID string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	h, ok := r.s.holds[id]
	if !ok || h.TenantID != tenantID {
		return false, hold.ErrHoldNotFound
	}
	if !h.IsActive(now) {
		return false, nil
	}

	released := now
	h.ReleasedAt = &released
	h.Status = hold.StatusReleased
	h.ReleaseReason = reason
	h.ReleasedByID = actorID
	return true, nil
}

func (r *holdRepo) Extend(ctx context.Context, tenantID, id string, from, to, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	h, ok := r.s.holds[id]
	if !ok || h.TenantID != tenantID {
		return false, hold.ErrHoldNotFound
	}
	if !h.IsActive(now) || !h.ExpiresAt.Equal(from) {
		return false, nil
	}
	h.ExpiresAt = to
	return true, nil
}

func (r *holdRepo) ListActive(ctx context.Context, tenantID, departureID string, now time.Time) ([]*hold.Hold, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*hold.Hold
	for _, h := range r.s.holds {
		if h.TenantID == tenantID && h.DepartureID == departureID && h.IsActive(now) {
			result = append(result, cloneHold(h))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *holdRepo) ExpireStale(ctx context.Context, now time.Time, limit int) ([]*hold.Hold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var stale []*hold.Hold
	for _, h := range r.s.holds {
		if h.ReleasedAt == nil && !h.ExpiresAt.After(now) {
			stale = append(stale, h)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ExpiresAt.Before(stale[j].ExpiresAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}

	result := make([]*hold.Hold, 0, len(stale))
	for _, h := range stale {
		released := now
		h.ReleasedAt = &released
		h.Status = hold.StatusExpired
		h.ReleaseReason = hold.ReasonExpired
		result = append(result, cloneHold(h))
	}
	return result, nil
}

func cloneHold(h *hold.Hold) *hold.Hold {
	cp := *h
	if h.ReleasedAt != nil {
		t := *h.ReleasedAt
		cp.ReleasedAt = &t
	}
	return &cp
}
