package departure

import (
	"context"
)

// Reader 团期只读端口
// 除库存服务外的组件只拿到Reader,不能修改容量和状态
type Reader interface {
	// FindByID 查询团期,不属于tenantID时返回ErrDepartureNotFound
	FindByID(ctx context.Context, tenantID, id string) (*Departure, error)

	// FindByIDs 批量查询,不存在的ID直接忽略
	FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*Departure, error)
}

// Repository 团期仓储(写端口,只注入库存服务)
type Repository interface {
	Reader

	// Create 创建团期,(tenant, resource, date)重复时返回ErrDuplicateDeparture
	Create(ctx context.Context, d *Departure) error

	// LockByID 悲观锁读取团期(SELECT ... FOR UPDATE)
	// 必须在事务中调用,锁持有到事务结束
	LockByID(ctx context.Context, tenantID, id string) (*Departure, error)

	// Update 按expectedVersion条件更新
	// 版本不匹配返回ErrVersionConflict
	Update(ctx context.Context, d *Departure, expectedVersion int64) error
}
