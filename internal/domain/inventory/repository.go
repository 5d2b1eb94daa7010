package inventory

import (
	"context"
	"time"
)

// UsageReader 统计团期座位占用(只读,各服务共享)
// now由调用方传入,expires_at <= now的占座不计入,无论扫描任务是否已运行
type UsageReader interface {
	Usage(ctx context.Context, tenantID, departureID string, now time.Time) (Usage, error)
	Usages(ctx context.Context, tenantID string, departureIDs []string, now time.Time) (map[string]Usage, error)
}

// Cache 库存视图缓存
// 只服务于批量读取;可用性检查和占座判断不读缓存
type Cache interface {
	GetMany(ctx context.Context, tenantID string, departureIDs []string) (map[string]State, error)
	SetMany(ctx context.Context, tenantID string, states []State) error
	Invalidate(ctx context.Context, tenantID string, departureIDs ...string) error
}

// WaitlistEntry 候补登记
type WaitlistEntry struct {
	ID          string
	TenantID    string
	DepartureID string
	Seats       int
	ContactName string
	Contact     string // 邮箱或电话
	CreatedAt   time.Time
}

// WaitlistRepository 候补登记仓储
type WaitlistRepository interface {
	Add(ctx context.Context, entry *WaitlistEntry) error
}
