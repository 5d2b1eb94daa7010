package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/xiebiao/tripbooking/internal/domain/catalog"
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// ResourceRepository 本地资源目录(catalog.mode=db)
type ResourceRepository struct {
	db *gorm.DB
}

// NewResourceRepository 创建资源目录
func NewResourceRepository(db *gorm.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// FindResource 实现catalog.Catalog
func (r *ResourceRepository) FindResource(ctx context.Context, tenantID, resourceID string) (*catalog.Resource, error) {
	var model ResourceModel
	err := getDB(ctx, r.db).Where("id = ? AND tenant_id = ?", resourceID, tenantID).First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, catalog.ErrResourceNotFound
		}
		return nil, apperrors.Wrap(err, "查询产品资源失败")
	}
	return &catalog.Resource{
		ID:           model.ID,
		TenantID:     model.TenantID,
		Name:         model.Name,
		BasePrice:    model.BasePrice,
		Currency:     model.Currency,
		DurationDays: model.DurationDays,
	}, nil
}

// Save 写入或更新资源(数据初始化使用)
func (r *ResourceRepository) Save(ctx context.Context, res *catalog.Resource) error {
	model := &ResourceModel{
		ID:           res.ID,
		TenantID:     res.TenantID,
		Name:         res.Name,
		BasePrice:    res.BasePrice,
		Currency:     res.Currency,
		DurationDays: res.DurationDays,
	}
	if err := getDB(ctx, r.db).Save(model).Error; err != nil {
		return apperrors.Wrap(err, "保存产品资源失败")
	}
	return nil
}
