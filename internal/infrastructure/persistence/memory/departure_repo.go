package memory

import (
	"context"

	"github.com/xiebiao/tripbooking/internal/domain/departure"
)

type departureRepo struct {
	s *Store
}

func (r *departureRepo) Create(ctx context.Context, d *departure.Departure) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.departures {
		if existing.TenantID == d.TenantID &&
			existing.ResourceID == d.ResourceID &&
			existing.DepartureDate.Equal(d.DepartureDate) {
			return departure.ErrDuplicateDeparture
		}
	}
	r.s.departures[d.ID] = cloneDeparture(d)
	return nil
}

func (r *departureRepo) FindByID(ctx context.Context, tenantID, id string) (*departure.Departure, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.departures[id]
	if !ok || !d.IsOwnedBy(tenantID) {
		return nil, departure.ErrDepartureNotFound
	}
	return cloneDeparture(d), nil
}

func (r *departureRepo) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*departure.Departure, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]*departure.Departure, 0, len(ids))
	for _, id := range ids {
		if d, ok := r.s.departures[id]; ok && d.IsOwnedBy(tenantID) {
			result = append(result, cloneDeparture(d))
		}
	}
	return result, nil
}

// LockByID 由Store.Transaction的txMu保证串行,这里只做读取
func (r *departureRepo) LockByID(ctx context.Context, tenantID, id string) (*departure.Departure, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r *departureRepo) Update(ctx context.Context, d *departure.Departure, expectedVersion int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.departures[d.ID]
	if !ok || !current.IsOwnedBy(d.TenantID) {
		return departure.ErrDepartureNotFound
	}
	if current.Version != expectedVersion {
		return departure.ErrVersionConflict
	}
	r.s.departures[d.ID] = cloneDeparture(d)
	return nil
}

func cloneDeparture(d *departure.Departure) *departure.Departure {
	cp := *d
	if d.PriceOverride != nil {
		price := *d.PriceOverride
		cp.PriceOverride = &price
	}
	return &cp
}
