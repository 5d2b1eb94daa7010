// Package catalog 产品资源目录(外部协作方,只读)
package catalog

import (
	"context"
	"time"

	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// Resource 可预订资源(线路、活动等)
type Resource struct {
	ID           string
	TenantID     string
	Name         string
	BasePrice    int64 // 单价(分)
	Currency     string
	DurationDays int
}

// EndDate 根据出发日期推算结束日期
// 单日产品结束日期等于出发日期
func (r *Resource) EndDate(start time.Time) time.Time {
	if r.DurationDays <= 1 {
		return start
	}
	return start.AddDate(0, 0, r.DurationDays-1)
}

// Catalog 资源目录端口
type Catalog interface {
	FindResource(ctx context.Context, tenantID, resourceID string) (*Resource, error)
}

// ErrResourceNotFound 资源不存在
var ErrResourceNotFound = apperrors.New(apperrors.ErrCodeResourceNotFound, "产品资源不存在")
