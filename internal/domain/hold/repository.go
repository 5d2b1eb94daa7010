package hold

import (
	"context"
	"time"
)

// Allocator 原子占座
//
// Allocate在一个原子单元内完成:
//  1. 锁定团期行(或等价的串行化手段)
//  2. 按now统计有效占座和已确认座位,过期占座直接忽略
//  3. 用Decide判定,不足则返回拒绝结果
//  4. 插入占座并提交
//
// 判定与插入之间不允许存在读写间隙。Decision.Granted为false时不写入任何数据。
type Allocator interface {
	Allocate(ctx context.Context, h *Hold, now time.Time) (Decision, error)
}

// Repository 占座仓储(只注入占座服务)
type Repository interface {
	// FindByID 查询占座,不属于tenantID时返回ErrHoldNotFound
	FindByID(ctx context.Context, tenantID, id string) (*Hold, error)

	// Release 条件释放: 仅当released_at为空且expires_at > now时写入
	// 返回false表示占座已释放或已过期
	Release(ctx context.Context, tenantID, id string, reason ReleaseReason, actorID string, now time.Time) (bool, error)

	// Extend 条件延期: expires_at仍等于from且仍有效时改为to
	Extend(ctx context.Context, tenantID, id string, from, to, now time.Time) (bool, error)

	// ListActive 团期当前有效的占座
	ListActive(ctx context.Context, tenantID, departureID string, now time.Time) ([]*Hold, error)

	// ExpireStale 把最多limit条已过期未释放的占座标记为EXPIRED,返回本批处理的记录
	ExpireStale(ctx context.Context, now time.Time, limit int) ([]*Hold, error)
}
