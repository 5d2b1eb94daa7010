package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// unlockScript 只有持有者才能删除锁
//
//	KEYS[1] 锁key
//	ARGV[1] 加锁时写入的token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SweepLock 分布式互斥锁(多实例部署时保证同一时刻只有一个扫描任务)
//
// 设计说明:
// 1. 加锁: SET key token NX PX ttl
// 2. 解锁: Lua脚本比较token后删除,避免误删别人的锁
// 3. ttl必须小于扫描间隔,实例崩溃后锁自动过期
type SweepLock struct {
	client redis.Cmdable
}

// NewSweepLock 创建扫描锁
func NewSweepLock(client redis.Cmdable) *SweepLock {
	return &SweepLock{client: client}
}

// TryLock 尝试加锁,ok=false表示锁被其他实例持有
func (l *SweepLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, apperrors.Wrap(err, "获取扫描锁失败")
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock 释放锁,锁已过期或被他人持有时静默返回
func (l *SweepLock) Unlock(ctx context.Context, key, token string) error {
	if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		return apperrors.Wrap(err, "释放扫描锁失败")
	}
	return nil
}
