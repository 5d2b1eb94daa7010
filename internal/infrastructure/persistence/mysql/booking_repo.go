package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/xiebiao/tripbooking/internal/domain/booking"
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// bookingRepository 预订仓储实现
type bookingRepository struct {
	db *gorm.DB
}

// NewBookingRepository 创建预订仓储
func NewBookingRepository(db *gorm.DB) booking.Repository {
	return &bookingRepository{db: db}
}

// Create 创建预订
// 预订号冲突返回ErrDuplicateReference,由调用方重新生成
func (r *bookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	if err := getDB(ctx, r.db).Create(toBookingModel(b)).Error; err != nil {
		if isDuplicateError(err) {
			return booking.ErrDuplicateReference
		}
		return apperrors.Wrap(err, "创建预订失败")
	}
	return nil
}

// FindByID 根据ID查找预订
func (r *bookingRepository) FindByID(ctx context.Context, tenantID, id string) (*booking.Booking, error) {
	var model BookingModel
	err := getDB(ctx, r.db).Where("id = ? AND tenant_id = ?", id, tenantID).First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, apperrors.Wrap(err, "查询预订失败")
	}
	return toBookingEntity(&model), nil
}

// UpdateStatus 以from为前提更新状态(CAS)
// UPDATE bookings SET status = ?, ... WHERE id = ? AND tenant_id = ? AND status = ?
func (r *bookingRepository) UpdateStatus(ctx context.Context, b *booking.Booking, from booking.Status) error {
	db := getDB(ctx, r.db)
	result := db.Model(&BookingModel{}).
		Where("id = ? AND tenant_id = ? AND status = ?", b.ID, b.TenantID, string(from)).
		Updates(map[string]interface{}{
			"status":          string(b.Status),
			"hold_id":         b.HoldID,
			"confirmed_at":    b.ConfirmedAt,
			"cancelled_at":    b.CancelledAt,
			"cancel_reason":   b.CancelReason,
			"cancelled_by_id": b.CancelledByID,
			"updated_at":      b.UpdatedAt,
		})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新预订状态失败")
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&BookingModel{}).Where("id = ? AND tenant_id = ?", b.ID, b.TenantID).Count(&count).Error; err != nil {
			return apperrors.Wrap(err, "查询预订失败")
		}
		if count == 0 {
			return booking.ErrBookingNotFound
		}
		return booking.ErrStatusConflict
	}
	return nil
}

// ListByDeparture 团期下的预订(按创建时间倒序分页)
func (r *bookingRepository) ListByDeparture(ctx context.Context, tenantID, departureID string, page, pageSize int) ([]*booking.Booking, int64, error) {
	var models []BookingModel
	var total int64

	query := getDB(ctx, r.db).Model(&BookingModel{}).Where("tenant_id = ? AND departure_id = ?", tenantID, departureID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询预订总数失败")
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Limit(pageSize).Offset(offset).Find(&models).Error
	if err != nil {
		return nil, 0, apperrors.Wrap(err, "查询预订列表失败")
	}

	result := make([]*booking.Booking, len(models))
	for i := range models {
		result[i] = toBookingEntity(&models[i])
	}
	return result, total, nil
}

func toBookingModel(b *booking.Booking) *BookingModel {
	return &BookingModel{
		ID:             b.ID,
		Reference:      b.Reference,
		TenantID:       b.TenantID,
		ResourceID:     b.ResourceID,
		DepartureID:    b.DepartureID,
		HoldID:         b.HoldID,
		Source:         string(b.Source),
		SourcePlatform: b.SourcePlatform,
		ExternalRef:    b.ExternalRef,
		StartDate:      b.StartDate,
		EndDate:        b.EndDate,
		GuestName:      b.GuestName,
		GuestEmail:     b.GuestEmail,
		GuestPhone:     b.GuestPhone,
		GuestCount:     b.GuestCount,
		BaseAmount:     b.BaseAmount,
		TotalAmount:    b.TotalAmount,
		Status:         string(b.Status),
		CreatedByID:    b.CreatedByID,
		Notes:          b.Notes,
		ConfirmedAt:    b.ConfirmedAt,
		CancelledAt:    b.CancelledAt,
		CancelReason:   b.CancelReason,
		CancelledByID:  b.CancelledByID,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func toBookingEntity(m *BookingModel) *booking.Booking {
	return &booking.Booking{
		ID:             m.ID,
		Reference:      m.Reference,
		TenantID:       m.TenantID,
		ResourceID:     m.ResourceID,
		DepartureID:    m.DepartureID,
		HoldID:         m.HoldID,
		Source:         booking.Source(m.Source),
		SourcePlatform: m.SourcePlatform,
		ExternalRef:    m.ExternalRef,
		StartDate:      m.StartDate.UTC(),
		EndDate:        m.EndDate.UTC(),
		GuestName:      m.GuestName,
		GuestEmail:     m.GuestEmail,
		GuestPhone:     m.GuestPhone,
		GuestCount:     m.GuestCount,
		BaseAmount:     m.BaseAmount,
		TotalAmount:    m.TotalAmount,
		Status:         booking.Status(m.Status),
		CreatedByID:    m.CreatedByID,
		Notes:          m.Notes,
		ConfirmedAt:    m.ConfirmedAt,
		CancelledAt:    m.CancelledAt,
		CancelReason:   m.CancelReason,
		CancelledByID:  m.CancelledByID,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}
