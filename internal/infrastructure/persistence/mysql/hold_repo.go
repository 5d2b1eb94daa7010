package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/tripbooking/internal/domain/hold"
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// holdRepository 占座仓储实现
// 占座的写入只有三种条件更新(释放、延期、过期),
// 都以"released_at IS NULL AND expires_at > now"为前提,并发下最多一个成功
type holdRepository struct {
	db *gorm.DB
}

// NewHoldRepository 创建占座仓储
func NewHoldRepository(db *gorm.DB) hold.Repository {
	return &holdRepository{db: db}
}

// FindByID 根据ID查找占座
func (r *holdRepository) FindByID(ctx context.Context, tenantID, id string) (*hold.Hold, error) {
	var model HoldModel
	err := getDB(ctx, r.db).Where("id = ? AND tenant_id = ?", id, tenantID).First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, hold.ErrHoldNotFound
		}
		return nil, apperrors.Wrap(err, "查询占座失败")
	}
	return toHoldEntity(&model), nil
}

// Release 释放有效占座
// 已释放或已过期返回false
func (r *holdRepository) Release(ctx context.Context, tenantID, id string, reason hold.ReleaseReason, actorID string, now time.Time) (bool, error) {
	db := getDB(ctx, r.db)
	result := db.Model(&HoldModel{}).
		Where("id = ? AND tenant_id = ? AND released_at IS NULL AND expires_at > ?", id, tenantID, now).
		Updates(map[string]interface{}{
			"released_at":    now,
			"status":         string(hold.StatusReleased),
			"release_reason": string(reason),
			"released_by_id": actorID,
		})
	if result.Error != nil {
		return false, apperrors.Wrap(result.Error, "释放占座失败")
	}
	if result.RowsAffected == 0 {
		return false, r.ensureExists(ctx, tenantID, id)
	}
	return true, nil
}

// Extend 延长有效期(CAS:expires_at必须仍等于from)
func (r *holdRepository) Extend(ctx context.Context, tenantID, id string, from, to, now time.Time) (bool, error) {
	db := getDB(ctx, r.db)
	result := db.Model(&HoldModel{}).
		Where("id = ? AND tenant_id = ? AND released_at IS NULL AND expires_at > ? AND expires_at = ?", id, tenantID, now, from).
		Update("expires_at", to)
	if result.Error != nil {
		return false, apperrors.Wrap(result.Error, "延长占座失败")
	}
	if result.RowsAffected == 0 {
		return false, r.ensureExists(ctx, tenantID, id)
	}
	return true, nil
}

// ListActive 团期当前有效的占座(按创建时间)
func (r *holdRepository) ListActive(ctx context.Context, tenantID, departureID string, now time.Time) ([]*hold.Hold, error) {
	var models []HoldModel
	err := getDB(ctx, r.db).
		Where("tenant_id = ? AND departure_id = ? AND released_at IS NULL AND expires_at > ?", tenantID, departureID, now).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询有效占座失败")
	}
	return toHoldEntities(models), nil
}

// ExpireStale 标记一批已过期占座
//
// 跨租户扫描,按expires_at顺序取limit条:
//  1. SELECT ... FOR UPDATE SKIP LOCKED,多个实例并发扫描时互不等待
//  2. 条件更新为EXPIRED,只返回本次真正更新的占座
func (r *holdRepository) ExpireStale(ctx context.Context, now time.Time, limit int) ([]*hold.Hold, error) {
	var expired []*hold.Hold
	err := getDB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var models []HoldModel
		query := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("released_at IS NULL AND expires_at <= ?", now).
			Order("expires_at ASC")
		if limit > 0 {
			query = query.Limit(limit)
		}
		if err := query.Find(&models).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}

		ids := make([]string, len(models))
		for i := range models {
			ids[i] = models[i].ID
		}
		err := tx.Model(&HoldModel{}).
			Where("id IN ? AND released_at IS NULL", ids).
			Updates(map[string]interface{}{
				"released_at":    now,
				"status":         string(hold.StatusExpired),
				"release_reason": string(hold.ReasonExpired),
			}).Error
		if err != nil {
			return err
		}

		for i := range models {
			released := now
			models[i].ReleasedAt = &released
			models[i].Status = string(hold.StatusExpired)
			models[i].ReleaseReason = string(hold.ReasonExpired)
		}
		expired = toHoldEntities(models)
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "标记过期占座失败")
	}
	return expired, nil
}

// ensureExists 条件更新未命中时区分"不存在"和"已失效"
func (r *holdRepository) ensureExists(ctx context.Context, tenantID, id string) error {
	var count int64
	if err := getDB(ctx, r.db).Model(&HoldModel{}).Where("id = ? AND tenant_id = ?", id, tenantID).Count(&count).Error; err != nil {
		return apperrors.Wrap(err, "查询占座失败")
	}
	if count == 0 {
		return hold.ErrHoldNotFound
	}
	return nil
}

func toHoldModel(h *hold.Hold) *HoldModel {
	return &HoldModel{
		ID:             h.ID,
		TenantID:       h.TenantID,
		DepartureID:    h.DepartureID,
		SeatCount:      h.SeatCount,
		Source:         string(h.Source),
		SourcePlatform: h.SourcePlatform,
		HoldType:       string(h.Type),
		CreatedByID:    h.CreatedByID,
		SessionID:      h.SessionID,
		Status:         string(h.Status),
		ExpiresAt:      h.ExpiresAt,
		ReleasedAt:     h.ReleasedAt,
		ReleaseReason:  string(h.ReleaseReason),
		ReleasedByID:   h.ReleasedByID,
		CreatedAt:      h.CreatedAt,
	}
}

func toHoldEntity(m *HoldModel) *hold.Hold {
	h := &hold.Hold{
		ID:             m.ID,
		TenantID:       m.TenantID,
		DepartureID:    m.DepartureID,
		SeatCount:      m.SeatCount,
		Source:         hold.Source(m.Source),
		SourcePlatform: m.SourcePlatform,
		Type:           hold.Type(m.HoldType),
		CreatedByID:    m.CreatedByID,
		SessionID:      m.SessionID,
		Status:         hold.Status(m.Status),
		ExpiresAt:      m.ExpiresAt.UTC(),
		ReleaseReason:  hold.ReleaseReason(m.ReleaseReason),
		ReleasedByID:   m.ReleasedByID,
		CreatedAt:      m.CreatedAt.UTC(),
	}
	if m.ReleasedAt != nil {
		t := m.ReleasedAt.UTC()
		h.ReleasedAt = &t
	}
	return h
}

func toHoldEntities(models []HoldModel) []*hold.Hold {
	result := make([]*hold.Hold, len(models))
	for i := range models {
		result[i] = toHoldEntity(&models[i])
	}
	return result
}
