package memory

import (
	"context"
	"time"

	"github.com/xiebiao/tripbooking/internal/domain/catalog"
	"github.com/xiebiao/tripbooking/internal/domain/inventory"
)

type usageReader struct {
	s *Store
}

func (u *usageReader) Usage(ctx context.Context, tenantID, departureID string, now time.Time) (inventory.Usage, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	return u.s.usageLocked(tenantID, departureID, now), nil
}

func (u *usageReader) Usages(ctx context.Context, tenantID string, departureIDs []string, now time.Time) (map[string]inventory.Usage, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	result := make(map[string]inventory.Usage, len(departureIDs))
	for _, id := range departureIDs {
		result[id] = u.s.usageLocked(tenantID, id, now)
	}
	return result, nil
}

// usageLocked 调用方必须持有mu
func (s *Store) usageLocked(tenantID, departureID string, now time.Time) inventory.Usage {
	usage := inventory.Usage{
		HeldByChannel:      map[string]int{},
		ConfirmedByChannel: map[string]int{},
	}
	for _, h := range s.holds {
		if h.TenantID == tenantID && h.DepartureID == departureID && h.IsActive(now) {
			usage.HeldSeats += h.SeatCount
			usage.HeldByChannel[string(h.Source)] += h.SeatCount
		}
	}
	for _, b := range s.bookings {
		if b.TenantID == tenantID && b.DepartureID == departureID && b.Status.ConsumesSeats() {
			usage.ConfirmedSeats += b.GuestCount
			usage.ConfirmedByChannel[string(b.Source)] += b.GuestCount
		}
	}
	for _, w := range s.waitlist {
		if w.TenantID == tenantID && w.DepartureID == departureID {
			usage.WaitlistCount++
		}
	}
	return usage
}

type waitlistRepo struct {
	s *Store
}

func (r *waitlistRepo) Add(ctx context.Context, entry *inventory.WaitlistEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *entry
	r.s.waitlist = append(r.s.waitlist, &cp)
	return nil
}

type catalogRepo struct {
	s *Store
}

func (c *catalogRepo) FindResource(ctx context.Context, tenantID, resourceID string) (*catalog.Resource, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	r, ok := c.s.resources[resourceID]
	if !ok || r.TenantID != tenantID {
		return nil, catalog.ErrResourceNotFound
	}
	cp := *r
	return &cp, nil
}
