package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// TokenBlacklist JWT黑名单
//
// JWT是无状态的,服务端无法主动让Token失效。
// 渠道账号被停用或Token泄露时,把jti(或原始Token)写入黑名单,
// 过期时间与Token剩余有效期一致,到期自动清理。
//
// Key设计: tripbooking:blacklist:{token_id}
type TokenBlacklist struct {
	client redis.Cmdable
}

// NewTokenBlacklist 创建黑名单
func NewTokenBlacklist(client redis.Cmdable) *TokenBlacklist {
	return &TokenBlacklist{client: client}
}

func blacklistKey(tokenID string) string {
	return keyPrefix + "blacklist:" + tokenID
}

// Revoke 加入黑名单
func (b *TokenBlacklist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, blacklistKey(tokenID), "revoked", ttl).Err(); err != nil {
		return apperrors.Wrap(err, "添加Token到黑名单失败")
	}
	return nil
}

// IsRevoked 检查是否在黑名单中
func (b *TokenBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := b.client.Exists(ctx, blacklistKey(tokenID)).Result()
	if err != nil {
		return false, apperrors.Wrap(err, "检查黑名单失败")
	}
	return n > 0, nil
}
