package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExpirer 按预设的批次结果返回
type fakeExpirer struct {
	batches []int
	calls   int
	err     error
}

func (f *fakeExpirer) ExpireStaleHolds(ctx context.Context, batchSize int) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if f.calls > len(f.batches) {
		return 0, nil
	}
	return f.batches[f.calls-1], nil
}

func newSweeper(expirer Expirer, locker Locker) *Sweeper {
	log, _ := logtest.NewNullLogger()
	return New(expirer, locker, Config{Interval: 10 * time.Millisecond, BatchSize: 10, MaxBatches: 5}, log)
}

// TestRunOnce 批量扫描直到不满一批
func TestRunOnce(t *testing.T) {
	t.Run("积压分多批处理", func(t *testing.T) {
		exp := &fakeExpirer{batches: []int{10, 10, 3}}
		total, err := newSweeper(exp, NewLocalLocker()).RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 23, total)
		assert.Equal(t, 3, exp.calls)
	})

	t.Run("单轮批次有上限", func(t *testing.T) {
		exp := &fakeExpirer{batches: []int{10, 10, 10, 10, 10, 10, 10}}
		total, err := newSweeper(exp, NewLocalLocker()).RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 50, total)
		assert.Equal(t, 5, exp.calls)
	})

	t.Run("失败时返回已处理数量", func(t *testing.T) {
		exp := &fakeExpirer{err: errors.New("db down")}
		_, err := newSweeper(exp, NewLocalLocker()).RunOnce(context.Background())
		assert.Error(t, err)
	})

	t.Run("锁被占用时跳过", func(t *testing.T) {
		locker := NewLocalLocker()
		_, ok, err := locker.TryLock(context.Background(), LockKey, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		exp := &fakeExpirer{batches: []int{1}}
		total, err := newSweeper(exp, locker).RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, total)
		assert.Equal(t, 0, exp.calls)
	})

	t.Run("扫描结束后释放锁", func(t *testing.T) {
		locker := NewLocalLocker()
		s := newSweeper(&fakeExpirer{}, locker)
		_, err := s.RunOnce(context.Background())
		require.NoError(t, err)

		_, ok, err := locker.TryLock(context.Background(), LockKey, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

// TestLocalLocker 锁过期与持有者校验
func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.clock = func() time.Time { return now }

	token, ok, err := l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.TryLock(ctx, "k", time.Minute)
	assert.False(t, ok)

	require.NoError(t, l.Unlock(ctx, "k", "other-token"))
	_, ok, _ = l.TryLock(ctx, "k", time.Minute)
	assert.False(t, ok, "非持有者不能释放")

	now = now.Add(2 * time.Minute)
	newToken, ok, _ := l.TryLock(ctx, "k", time.Minute)
	assert.True(t, ok, "过期锁可以重新获取")
	assert.NotEqual(t, token, newToken)
}

// TestRun ctx取消后退出
func TestRun(t *testing.T) {
	exp := &fakeExpirer{}
	s := newSweeper(exp, NewLocalLocker())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run未在ctx取消后退出")
	}
}
