package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiebiao/tripbooking/internal/domain/inventory"
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// InventoryCache 库存视图缓存
//
// Key设计: tripbooking:inv:{tenant_id}:{departure_id} → State的JSON
//
// 设计说明:
// 1. 只服务批量读取(日历、列表页),占座判断永远直接查库
// 2. 写入带TTL,即使漏掉失效通知,脏数据也只存活一个TTL
// 3. 占座/释放/调容量之后由库存服务主动Invalidate
type InventoryCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewInventoryCache 创建库存缓存
func NewInventoryCache(client redis.Cmdable, ttl time.Duration) *InventoryCache {
	return &InventoryCache{client: client, ttl: ttl}
}

func inventoryKey(tenantID, departureID string) string {
	return fmt.Sprintf("%sinv:%s:%s", keyPrefix, tenantID, departureID)
}

// GetMany 批量读取(MGET一次往返)
// 未命中的团期不出现在返回结果中;单条JSON损坏按未命中处理
func (c *InventoryCache) GetMany(ctx context.Context, tenantID string, departureIDs []string) (map[string]inventory.State, error) {
	result := make(map[string]inventory.State, len(departureIDs))
	if len(departureIDs) == 0 {
		return result, nil
	}

	keys := make([]string, len(departureIDs))
	for i, id := range departureIDs {
		keys[i] = inventoryKey(tenantID, id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, "读取库存缓存失败")
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var state inventory.State
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			continue
		}
		result[departureIDs[i]] = state
	}
	return result, nil
}

// SetMany 批量写入(Pipeline,每个key单独设置TTL)
func (c *InventoryCache) SetMany(ctx context.Context, tenantID string, states []inventory.State) error {
	if len(states) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, s := range states {
		data, err := json.Marshal(s)
		if err != nil {
			return apperrors.Wrap(err, "序列化库存视图失败")
		}
		pipe.Set(ctx, inventoryKey(tenantID, s.DepartureID), data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrap(err, "写入库存缓存失败")
	}
	return nil
}

// Invalidate 删除团期缓存
func (c *InventoryCache) Invalidate(ctx context.Context, tenantID string, departureIDs ...string) error {
	if len(departureIDs) == 0 {
		return nil
	}
	keys := make([]string, len(departureIDs))
	for i, id := range departureIDs {
		keys[i] = inventoryKey(tenantID, id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return apperrors.Wrap(err, "删除库存缓存失败")
	}
	return nil
}
