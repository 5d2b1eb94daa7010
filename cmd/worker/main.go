package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/xiebiao/tripbooking/internal/application/sweep"
	"github.com/xiebiao/tripbooking/internal/bootstrap"
	"github.com/xiebiao/tripbooking/internal/domain/event"
	"github.com/xiebiao/tripbooking/internal/infrastructure/config"
	"github.com/xiebiao/tripbooking/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/tripbooking/pkg/metrics"
	"github.com/xiebiao/tripbooking/pkg/mq"
)

// main 后台任务入口
//
// 1. 过期占座扫描:多实例部署时通过Redis锁保证同一时刻只有一个实例扫描
// 2. booking.cancelled消费:释放被取消预订的占座,已确认座位回到可售库存
//
// 未启用MQ时取消的后续处理在API进程内同步完成,这里只运行扫描
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	services, cleanup, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("初始化依赖失败: %v", err)
	}
	defer cleanup()
	logger := services.Log

	metrics.InitMetrics()
	shutdownTracing := bootstrap.InitTracing(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// 1. 过期占座扫描
	sweeper := sweep.New(services.Holds, newLocker(services), sweep.Config{
		Interval:   cfg.Sweep.Interval,
		BatchSize:  cfg.Sweep.BatchSize,
		MaxBatches: cfg.Sweep.MaxBatches,
		LockTTL:    cfg.Sweep.LockTTL,
	}, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	// 2. 取消事件消费
	if cfg.MQ.Enabled {
		consumer, err := mq.NewConsumer(cfg.MQ.URL, cfg.MQ.Exchange, cfg.MQ.ExchangeType,
			cfg.MQ.CancellationQueue, []string{event.TopicBookingCancelled}, logger)
		if err != nil {
			logger.WithError(err).Fatal("创建消费者失败")
		}
		defer consumer.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Consume(ctx, services.FollowUp.HandleMessage); err != nil {
				logger.WithError(err).Error("取消事件消费已停止")
			}
		}()
	}

	logger.WithFields(logrus.Fields{
		"sweep_interval": cfg.Sweep.Interval,
		"mq":             cfg.MQ.Enabled,
		"redis_lock":     services.Redis != nil,
	}).Info("🚀 Worker启动成功")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭Worker...")
	cancel()
	wg.Wait()
	if err := shutdownTracing(context.Background()); err != nil {
		logger.WithError(err).Warn("刷新Span失败")
	}
	logger.Info("✅ Worker已关闭")
}

// newLocker 有Redis时使用分布式锁,否则退化为进程内锁
// 没有分布式锁时多实例会并发扫描,ExpireStale的条件更新保证结果不重复
func newLocker(services *bootstrap.Services) sweep.Locker {
	if services.Redis == nil {
		services.Log.Warn("未启用Redis,扫描任务使用进程内锁")
		return sweep.NewLocalLocker()
	}
	return redis.NewSweepLock(services.Redis)
}
