package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/tripbooking/internal/domain/inventory"
)

func TestInventoryCache_GetMany(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	cache := NewInventoryCache(client, time.Minute)

	state := inventory.State{TenantID: "t1", DepartureID: "d1", Status: "OPEN", BookableSeats: 7}
	data, err := json.Marshal(state)
	require.NoError(t, err)

	t.Run("部分命中", func(t *testing.T) {
		mock.ExpectMGet("tripbooking:inv:t1:d1", "tripbooking:inv:t1:d2", "tripbooking:inv:t1:d3").
			SetVal([]interface{}{string(data), nil, "{broken"})

		got, err := cache.GetMany(ctx, "t1", []string{"d1", "d2", "d3"})
		require.NoError(t, err)
		assert.Len(t, got, 1, "未命中和损坏的条目都按未命中处理")
		assert.Equal(t, 7, got["d1"].BookableSeats)
		assert.NoError(t, mock.ExpectationsWereMet())
		t.Logf("✓ 一次MGET读取多个团期")
	})

	t.Run("空列表不访问Redis", func(t *testing.T) {
		got, err := cache.GetMany(ctx, "t1", nil)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Redis故障返回错误", func(t *testing.T) {
		mock.ExpectMGet("tripbooking:inv:t1:d1").SetErr(errors.New("connection refused"))

		_, err := cache.GetMany(ctx, "t1", []string{"d1"})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestInventoryCache_SetManyAndInvalidate(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	cache := NewInventoryCache(client, 30*time.Second)

	s1 := inventory.State{TenantID: "t1", DepartureID: "d1", BookableSeats: 3}
	s2 := inventory.State{TenantID: "t1", DepartureID: "d2", BookableSeats: 0}
	d1, _ := json.Marshal(s1)
	d2, _ := json.Marshal(s2)

	mock.ExpectSet("tripbooking:inv:t1:d1", d1, 30*time.Second).SetVal("OK")
	mock.ExpectSet("tripbooking:inv:t1:d2", d2, 30*time.Second).SetVal("OK")
	require.NoError(t, cache.SetMany(ctx, "t1", []inventory.State{s1, s2}))

	mock.ExpectDel("tripbooking:inv:t1:d1", "tripbooking:inv:t1:d2").SetVal(2)
	require.NoError(t, cache.Invalidate(ctx, "t1", "d1", "d2"))

	assert.NoError(t, mock.ExpectationsWereMet())
	t.Logf("✓ Pipeline写入带TTL,删除一次完成")
}

func TestSweepLock(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	lock := NewSweepLock(client)
	mock.MatchExpectationsInOrder(true)

	t.Run("锁被占用", func(t *testing.T) {
		mock.Regexp().ExpectSetNX("tripbooking:lock:hold-sweep", `.+`, time.Minute).SetVal(false)

		token, ok, err := lock.TryLock(ctx, "tripbooking:lock:hold-sweep", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, token)
	})

	t.Run("加锁后按token解锁", func(t *testing.T) {
		mock.Regexp().ExpectSetNX("tripbooking:lock:hold-sweep", `.+`, time.Minute).SetVal(true)

		token, ok, err := lock.TryLock(ctx, "tripbooking:lock:hold-sweep", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		require.NotEmpty(t, token)

		mock.ExpectEvalSha(unlockScript.Hash(), []string{"tripbooking:lock:hold-sweep"}, token).SetVal(int64(1))
		require.NoError(t, lock.Unlock(ctx, "tripbooking:lock:hold-sweep", token))
	})

	t.Run("Redis故障", func(t *testing.T) {
		mock.Regexp().ExpectSetNX("tripbooking:lock:hold-sweep", `.+`, time.Minute).SetErr(errors.New("timeout"))

		_, ok, err := lock.TryLock(ctx, "tripbooking:lock:hold-sweep", time.Minute)
		assert.Error(t, err)
		assert.False(t, ok)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenBlacklist(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	bl := NewTokenBlacklist(client)

	mock.ExpectSet("tripbooking:blacklist:jti-1", "revoked", time.Hour).SetVal("OK")
	require.NoError(t, bl.Revoke(ctx, "jti-1", time.Hour))

	// 已过期的Token不需要写入
	require.NoError(t, bl.Revoke(ctx, "jti-2", 0))

	mock.ExpectExists("tripbooking:blacklist:jti-1").SetVal(1)
	revoked, err := bl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mock.ExpectExists("tripbooking:blacklist:jti-3").SetVal(0)
	revoked, err = bl.IsRevoked(ctx, "jti-3")
	require.NoError(t, err)
	assert.False(t, revoked)

	assert.NoError(t, mock.ExpectationsWereMet())
}
