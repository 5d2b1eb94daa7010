package memory

import (
	"context"
	"sort"

	"github.com/xiebiao/tripbooking/internal/domain/booking"
)

type bookingRepo struct {
	s *Store
}

func (r *bookingRepo) Create(ctx context.Context, b *booking.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.bookings {
		if existing.Reference == b.Reference {
			return booking.ErrDuplicateReference
		}
	}
	r.s.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (r *bookingRepo) FindByID(ctx context.Context, tenantID, id string) (*booking.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.bookings[id]
	if !ok || !b.IsOwnedBy(tenantID) {
		return nil, booking.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (r *bookingRepo) UpdateStatus(ctx context.Context, b *booking.Booking, from booking.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.bookings[b.ID]
	if !ok || !current.IsOwnedBy(b.TenantID) {
		return booking.ErrBookingNotFound
	}
	if current.Status != from {
		return booking.ErrStatusConflict
	}
	r.s.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (r *bookingRepo) ListByDeparture(ctx context.Context, tenantID, departureID string, page, pageSize int) ([]*booking.Booking, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var all []*booking.Booking
	for _, b := range r.s.bookings {
		if b.TenantID == tenantID && b.DepartureID == departureID {
			all = append(all, b)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := (page - 1) * pageSize
	if start < 0 || start >= len(all) {
		return []*booking.Booking{}, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}

	result := make([]*booking.Booking, 0, end-start)
	for _, b := range all[start:end] {
		result = append(result, cloneBooking(b))
	}
	return result, total, nil
}

func cloneBooking(b *booking.Booking) *booking.Booking {
	cp := *b
	if b.ConfirmedAt != nil {
		t := *b.ConfirmedAt
		cp.ConfirmedAt = &t
	}
	if b.CancelledAt != nil {
		t := *b.CancelledAt
		cp.CancelledAt = &t
	}
	return &cp
}
