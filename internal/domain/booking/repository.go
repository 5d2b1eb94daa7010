package booking

import (
	"context"
)

// Repository 预订仓储(只注入预订编排器)
type Repository interface {
	// Create 创建预订,预订号冲突返回ErrDuplicateReference
	Create(ctx context.Context, b *Booking) error

	// FindByID 查询预订,不属于tenantID时返回ErrBookingNotFound
	FindByID(ctx context.Context, tenantID, id string) (*Booking, error)

	// UpdateStatus 以from为条件更新状态及时间戳字段(CAS)
	// 状态已不是from时返回ErrStatusConflict
	UpdateStatus(ctx context.Context, b *Booking, from Status) error

	// ListByDeparture 团期下的预订(按创建时间倒序分页)
	ListByDeparture(ctx context.Context, tenantID, departureID string, page, pageSize int) ([]*Booking, int64, error)
}
