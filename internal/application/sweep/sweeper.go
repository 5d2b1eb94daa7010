// Package sweep 过期占座扫描任务
//
// 扫描只负责把已过期的占座标记为EXPIRED并发布seats.released,
// 余位计算本身不依赖扫描(过期占座在统计时已被忽略),
// 扫描延迟只影响事件的及时性,不会造成超卖或少卖。
//
// 多实例部署时通过Locker保证同一时刻只有一个实例在扫描;
// 即使锁失效导致并发扫描,ExpireStale的条件更新也保证每个占座只被标记一次。
package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/xiebiao/tripbooking/pkg/metrics"
)

// LockKey 扫描任务锁
const LockKey = "tripbooking:lock:hold-sweep"

// Expirer 过期占座处理(由占座服务实现)
type Expirer interface {
	ExpireStaleHolds(ctx context.Context, batchSize int) (int, error)
}

// Locker 互斥锁
// TryLock未获取到锁时返回ok=false且err为nil
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Config 扫描配置
type Config struct {
	Interval   time.Duration
	BatchSize  int
	MaxBatches int           // 单轮最多处理的批次,防止积压时长时间持锁
	LockTTL    time.Duration // 应大于单轮扫描的最长耗时
}

// Sweeper 定时扫描器
type Sweeper struct {
	expirer Expirer
	locker  Locker
	cfg     Config
	log     logrus.FieldLogger
}

// New 创建扫描器
func New(expirer Expirer, locker Locker, cfg Config, log logrus.FieldLogger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = 20
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Interval
	}
	return &Sweeper{
		expirer: expirer,
		locker:  locker,
		cfg:     cfg,
		log:     log.WithField("component", "hold_sweeper"),
	}
}

// Run 按间隔循环扫描,直到ctx取消
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.cfg.Interval).Info("过期占座扫描任务已启动")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("过期占座扫描任务已停止")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.log.WithError(err).Warn("过期占座扫描失败,下一轮重试")
			}
		}
	}
}

// RunOnce 执行一轮扫描,返回本轮标记过期的占座数
//
// 一轮内按批次处理,某批不满BatchSize说明已清理干净;
// 未拿到锁时直接跳过(其他实例正在扫描)
func (s *Sweeper) RunOnce(ctx context.Context) (total int, err error) {
	start := time.Now()

	token, ok, err := s.locker.TryLock(ctx, LockKey, s.cfg.LockTTL)
	if err != nil {
		metrics.IncCounterVec(metrics.SweepRunsTotal, map[string]string{"result": "failure"})
		return 0, err
	}
	if !ok {
		metrics.IncCounterVec(metrics.SweepRunsTotal, map[string]string{"result": "skipped"})
		s.log.Debug("其他实例正在扫描,跳过本轮")
		return 0, nil
	}
	defer func() {
		if unlockErr := s.locker.Unlock(context.WithoutCancel(ctx), LockKey, token); unlockErr != nil {
			s.log.WithError(unlockErr).Warn("释放扫描锁失败")
		}
	}()

	for i := 0; i < s.cfg.MaxBatches; i++ {
		n, err := s.expirer.ExpireStaleHolds(ctx, s.cfg.BatchSize)
		total += n
		if err != nil {
			metrics.IncCounterVec(metrics.SweepRunsTotal, map[string]string{"result": "failure"})
			return total, err
		}
		if n < s.cfg.BatchSize {
			break
		}
	}

	metrics.IncCounterVec(metrics.SweepRunsTotal, map[string]string{"result": "success"})
	metrics.ObserveHistogram(metrics.SweepDuration, time.Since(start).Seconds())
	if total > 0 {
		s.log.WithFields(logrus.Fields{
			"expired":  total,
			"duration": time.Since(start),
		}).Info("本轮扫描完成")
	}
	return total, nil
}

// LocalLocker 进程内锁(单实例或未启用Redis时使用)
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]lease
	clock func() time.Time
}

type lease struct {
	token     string
	expiresAt time.Time
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]lease), clock: time.Now}
}

// TryLock 实现Locker,过期的锁视为已释放
func (l *LocalLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if cur, ok := l.held[key]; ok && now.Before(cur.expiresAt) {
		return "", false, nil
	}
	token := uuid.New().String()
	l.held[key] = lease{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Unlock 实现Locker,只释放自己持有的锁
func (l *LocalLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.held[key]; ok && cur.token == token {
		delete(l.held, key)
	}
	return nil
}
