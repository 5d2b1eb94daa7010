package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/tripbooking/internal/domain/departure"
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// departureRepository 团期仓储实现
type departureRepository struct {
	db *gorm.DB
}

// NewDepartureRepository 创建团期仓储
func NewDepartureRepository(db *gorm.DB) departure.Repository {
	return &departureRepository{db: db}
}

// Create 创建团期
// 同一租户同一产品同一天只能有一个团期(唯一索引uk_departure)
func (r *departureRepository) Create(ctx context.Context, d *departure.Departure) error {
	if err := getDB(ctx, r.db).Create(toDepartureModel(d)).Error; err != nil {
		if isDuplicateError(err) {
			return departure.ErrDuplicateDeparture
		}
		return apperrors.Wrap(err, "创建团期失败")
	}
	return nil
}

// FindByID 根据ID查找团期
func (r *departureRepository) FindByID(ctx context.Context, tenantID, id string) (*departure.Departure, error) {
	var model DepartureModel
	err := getDB(ctx, r.db).Where("id = ? AND tenant_id = ?", id, tenantID).First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, departure.ErrDepartureNotFound
		}
		return nil, apperrors.Wrapf(err, "查询团期%s失败", id)
	}
	return toDepartureEntity(&model), nil
}

// FindByIDs 批量查询,不存在的ID直接忽略
func (r *departureRepository) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*departure.Departure, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []DepartureModel
	err := getDB(ctx, r.db).Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "批量查询团期失败")
	}

	result := make([]*departure.Departure, len(models))
	for i := range models {
		result[i] = toDepartureEntity(&models[i])
	}
	return result, nil
}

// LockByID 锁定团期行(SELECT ... FOR UPDATE)
// 必须在事务中调用:同一团期上的占座、容量调整、状态变更由这把行锁串行化
func (r *departureRepository) LockByID(ctx context.Context, tenantID, id string) (*departure.Departure, error) {
	var model DepartureModel
	err := getDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, departure.ErrDepartureNotFound
		}
		return nil, apperrors.Wrapf(err, "锁定团期%s失败", id)
	}
	return toDepartureEntity(&model), nil
}

// Update 带版本号更新
// UPDATE departures SET ... WHERE id = ? AND tenant_id = ? AND version = ?
func (r *departureRepository) Update(ctx context.Context, d *departure.Departure, expectedVersion int64) error {
	db := getDB(ctx, r.db)
	result := db.Model(&DepartureModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", d.ID, d.TenantID, expectedVersion).
		Updates(map[string]interface{}{
			"total_capacity":    d.TotalCapacity,
			"blocked_seats":     d.BlockedSeats,
			"overbooking_limit": d.OverbookingLimit,
			"min_participants":  d.MinParticipants,
			"status":            string(d.Status),
			"is_guaranteed":     d.IsGuaranteed,
			"price_override":    d.PriceOverride,
			"version":           d.Version,
			"updated_at":        d.UpdatedAt,
		})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新团期失败")
	}

	if result.RowsAffected == 0 {
		// 团期不存在,或者版本号已变化
		var count int64
		if err := db.Model(&DepartureModel{}).Where("id = ? AND tenant_id = ?", d.ID, d.TenantID).Count(&count).Error; err != nil {
			return apperrors.Wrap(err, "查询团期失败")
		}
		if count == 0 {
			return departure.ErrDepartureNotFound
		}
		return departure.ErrVersionConflict
	}
	return nil
}

func toDepartureModel(d *departure.Departure) *DepartureModel {
	return &DepartureModel{
		ID:               d.ID,
		TenantID:         d.TenantID,
		ResourceID:       d.ResourceID,
		DepartureDate:    d.DepartureDate,
		TotalCapacity:    d.TotalCapacity,
		BlockedSeats:     d.BlockedSeats,
		OverbookingLimit: d.OverbookingLimit,
		MinParticipants:  d.MinParticipants,
		Status:           string(d.Status),
		IsGuaranteed:     d.IsGuaranteed,
		PriceOverride:    d.PriceOverride,
		Version:          d.Version,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func toDepartureEntity(m *DepartureModel) *departure.Departure {
	return &departure.Departure{
		ID:               m.ID,
		TenantID:         m.TenantID,
		ResourceID:       m.ResourceID,
		DepartureDate:    m.DepartureDate.UTC(),
		TotalCapacity:    m.TotalCapacity,
		BlockedSeats:     m.BlockedSeats,
		OverbookingLimit: m.OverbookingLimit,
		MinParticipants:  m.MinParticipants,
		Status:           departure.Status(m.Status),
		IsGuaranteed:     m.IsGuaranteed,
		PriceOverride:    m.PriceOverride,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}
