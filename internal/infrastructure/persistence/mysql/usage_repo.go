package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/xiebiao/tripbooking/internal/domain/booking"
	"github.com/xiebiao/tripbooking/internal/domain/inventory"
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// usageReader 座位占用统计
type usageReader struct {
	db *gorm.DB
}

// NewUsageReader 创建占用统计
func NewUsageReader(db *gorm.DB) inventory.UsageReader {
	return &usageReader{db: db}
}

// Usage 单个团期的占用
func (u *usageReader) Usage(ctx context.Context, tenantID, departureID string, now time.Time) (inventory.Usage, error) {
	usages, err := u.Usages(ctx, tenantID, []string{departureID}, now)
	if err != nil {
		return inventory.Usage{}, err
	}
	return usages[departureID], nil
}

// Usages 批量统计,三条聚合查询覆盖全部团期
func (u *usageReader) Usages(ctx context.Context, tenantID string, departureIDs []string, now time.Time) (map[string]inventory.Usage, error) {
	usages, err := usageOf(getDB(ctx, u.db), tenantID, departureIDs, now)
	if err != nil {
		return nil, apperrors.Wrap(err, "统计座位占用失败")
	}
	return usages, nil
}

type channelSeats struct {
	DepartureID string
	Source      string
	Seats       int
}

type departureCount struct {
	DepartureID string
	Total       int
}

// usageOf 聚合统计
//
//	held      = SUM(seat_count)  有效占座(released_at IS NULL AND expires_at > now)
//	confirmed = SUM(guest_count) 计入座位的预订(CONFIRMED/COMPLETED/NO_SHOW)
//	waitlist  = COUNT(*)         候补登记
func usageOf(db *gorm.DB, tenantID string, departureIDs []string, now time.Time) (map[string]inventory.Usage, error) {
	result := make(map[string]inventory.Usage, len(departureIDs))
	if len(departureIDs) == 0 {
		return result, nil
	}
	for _, id := range departureIDs {
		result[id] = inventory.Usage{
			HeldByChannel:      map[string]int{},
			ConfirmedByChannel: map[string]int{},
		}
	}

	var held []channelSeats
	err := db.Model(&HoldModel{}).
		Select("departure_id, source, COALESCE(SUM(seat_count), 0) AS seats").
		Where("tenant_id = ? AND departure_id IN ? AND released_at IS NULL AND expires_at > ?", tenantID, departureIDs, now).
		Group("departure_id, source").
		Scan(&held).Error
	if err != nil {
		return nil, err
	}
	for _, row := range held {
		u := result[row.DepartureID]
		u.HeldSeats += row.Seats
		u.HeldByChannel[row.Source] += row.Seats
		result[row.DepartureID] = u
	}

	statuses := make([]string, 0, 3)
	for _, s := range booking.SeatConsumingStatuses() {
		statuses = append(statuses, string(s))
	}
	var confirmed []channelSeats
	err = db.Model(&BookingModel{}).
		Select("departure_id, source, COALESCE(SUM(guest_count), 0) AS seats").
		Where("tenant_id = ? AND departure_id IN ? AND status IN ?", tenantID, departureIDs, statuses).
		Group("departure_id, source").
		Scan(&confirmed).Error
	if err != nil {
		return nil, err
	}
	for _, row := range confirmed {
		u := result[row.DepartureID]
		u.ConfirmedSeats += row.Seats
		u.ConfirmedByChannel[row.Source] += row.Seats
		result[row.DepartureID] = u
	}

	var waitlist []departureCount
	err = db.Model(&WaitlistEntryModel{}).
		Select("departure_id, COUNT(*) AS total").
		Where("tenant_id = ? AND departure_id IN ?", tenantID, departureIDs).
		Group("departure_id").
		Scan(&waitlist).Error
	if err != nil {
		return nil, err
	}
	for _, row := range waitlist {
		u := result[row.DepartureID]
		u.WaitlistCount = row.Total
		result[row.DepartureID] = u
	}

	return result, nil
}

// waitlistRepository 候补登记仓储
type waitlistRepository struct {
	db *gorm.DB
}

// NewWaitlistRepository 创建候补登记仓储
func NewWaitlistRepository(db *gorm.DB) inventory.WaitlistRepository {
	return &waitlistRepository{db: db}
}

// Add 登记候补
func (r *waitlistRepository) Add(ctx context.Context, e *inventory.WaitlistEntry) error {
	model := &WaitlistEntryModel{
		ID:          e.ID,
		TenantID:    e.TenantID,
		DepartureID: e.DepartureID,
		Seats:       e.Seats,
		ContactName: e.ContactName,
		Contact:     e.Contact,
		CreatedAt:   e.CreatedAt,
	}
	if err := getDB(ctx, r.db).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "登记候补失败")
	}
	return nil
}
