// Package bootstrap 依赖组装
//
// API进程和Worker进程共用同一套Provider:
//   - cmd/api/main.go 手动调用Build
//   - cmd/api/wire.go 用ProviderSet交给Wire生成
//
// 依赖链:Persistence ← Service ← Handler
package bootstrap

import (
	"context"

	"github.com/google/wire"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	appbooking "github.com/xiebiao/tripbooking/internal/application/booking"
	apphold "github.com/xiebiao/tripbooking/internal/application/hold"
	appinventory "github.com/xiebiao/tripbooking/internal/application/inventory"
	domainbooking "github.com/xiebiao/tripbooking/internal/domain/booking"
	domaincatalog "github.com/xiebiao/tripbooking/internal/domain/catalog"
	"github.com/xiebiao/tripbooking/internal/domain/departure"
	"github.com/xiebiao/tripbooking/internal/domain/event"
	domainhold "github.com/xiebiao/tripbooking/internal/domain/hold"
	domaininventory "github.com/xiebiao/tripbooking/internal/domain/inventory"
	"github.com/xiebiao/tripbooking/internal/infrastructure/catalog"
	"github.com/xiebiao/tripbooking/internal/infrastructure/config"
	"github.com/xiebiao/tripbooking/internal/infrastructure/messaging"
	"github.com/xiebiao/tripbooking/internal/infrastructure/persistence/memory"
	"github.com/xiebiao/tripbooking/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/tripbooking/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/tripbooking/pkg/circuitbreaker"
	"github.com/xiebiao/tripbooking/pkg/clock"
	"github.com/xiebiao/tripbooking/pkg/logger"
	"github.com/xiebiao/tripbooking/pkg/mq"
	"github.com/xiebiao/tripbooking/pkg/tracing"
)

// ProviderSet 全部Provider
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideClock,
	ProvidePersistence,
	ProvideRedis,
	ProvideCache,
	ProvideCatalog,
	ProvideDispatcher,
	ProvideInventoryService,
	ProvideHoldService,
	ProvideOrchestrator,
	ProvideFollowUp,
	wire.Struct(new(Services), "*"),
)

// Persistence 存储端口
// database.driver=memory时全部由单进程内存存储实现
type Persistence struct {
	Departures departure.Repository
	Holds      domainhold.Repository
	Allocator  domainhold.Allocator
	Bookings   domainbooking.Repository
	Usage      domaininventory.UsageReader
	Waitlist   domaininventory.WaitlistRepository
	Resources  domaincatalog.Catalog
	Tx         appinventory.Transactor
}

// Services 应用服务
type Services struct {
	Config       *config.Config
	Log          *logrus.Logger
	Redis        *goredis.Client
	Dispatcher   *messaging.Dispatcher
	Inventory    *appinventory.Service
	Holds        *apphold.Service
	Orchestrator *appbooking.Orchestrator
	FollowUp     *appbooking.CancellationFollowUp
}

// Build 手动组装全部依赖
// 返回的cleanup按创建的逆序释放资源
func Build(cfg *config.Config) (*Services, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Services, func(), error) {
		cleanup()
		return nil, nil, err
	}

	log, err := ProvideLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	persistence, closeDB, err := ProvidePersistence(cfg, log)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, closeDB)

	redisClient, closeRedis, err := ProvideRedis(cfg, log)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, closeRedis)

	dispatcher, closeMQ, err := ProvideDispatcher(cfg, log)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, closeMQ)

	clk := ProvideClock()
	inv := ProvideInventoryService(cfg, persistence, ProvideCache(cfg, redisClient), clk, log)
	holds := ProvideHoldService(cfg, persistence, dispatcher, inv, clk, log)
	orch := ProvideOrchestrator(persistence, holds, inv, ProvideCatalog(cfg, persistence, log), dispatcher, clk, log)

	return &Services{
		Config:       cfg,
		Log:          log,
		Redis:        redisClient,
		Dispatcher:   dispatcher,
		Inventory:    inv,
		Holds:        holds,
		Orchestrator: orch,
		FollowUp:     ProvideFollowUp(cfg, dispatcher, holds, inv, clk, log),
	}, cleanup, nil
}

// ProvideLogger 按配置创建Logger
func ProvideLogger(cfg *config.Config) (*logrus.Logger, error) {
	return logger.New(logger.Config{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		Output:       cfg.Log.Output,
		EnableCaller: cfg.Log.EnableCaller,
	})
}

// ProvideClock 系统时钟
func ProvideClock() clock.Clock {
	return clock.NewSystem()
}

// ProvidePersistence 按database.driver选择存储实现
func ProvidePersistence(cfg *config.Config, log *logrus.Logger) (*Persistence, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("使用内存存储,数据不会持久化,仅适用于开发环境")
		store := memory.NewStore()
		return &Persistence{
			Departures: store.Departures(),
			Holds:      store.Holds(),
			Allocator:  store.Allocator(),
			Bookings:   store.Bookings(),
			Usage:      store.Usage(),
			Waitlist:   store.Waitlist(),
			Resources:  store.Catalog(),
			Tx:         store,
		}, func() {}, nil
	}

	db, err := mysql.NewDB(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { closeGorm(db, log) }

	return &Persistence{
		Departures: mysql.NewDepartureRepository(db),
		Holds:      mysql.NewHoldRepository(db),
		Allocator:  mysql.NewHoldAllocator(db),
		Bookings:   mysql.NewBookingRepository(db),
		Usage:      mysql.NewUsageReader(db),
		Waitlist:   mysql.NewWaitlistRepository(db),
		Resources:  mysql.NewResourceRepository(db),
		Tx:         mysql.NewTxManager(db),
	}, closeDB, nil
}

func closeGorm(db *gorm.DB, log logrus.FieldLogger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.WithError(err).Warn("关闭数据库连接失败")
	}
}

// ProvideRedis redis.enabled=false时返回nil
// 此时缓存、分布式锁和Token黑名单都不启用
func ProvideRedis(cfg *config.Config, log *logrus.Logger) (*goredis.Client, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache 库存视图缓存,没有Redis时返回nil
func ProvideCache(cfg *config.Config, client *goredis.Client) domaininventory.Cache {
	if client == nil {
		return nil
	}
	return redis.NewInventoryCache(client, cfg.Inventory.CacheTTL)
}

// ProvideCatalog 产品目录
// catalog.mode=http时经由熔断器访问远程服务,否则读本地表
func ProvideCatalog(cfg *config.Config, p *Persistence, log *logrus.Logger) domaincatalog.Catalog {
	if cfg.Catalog.Mode == config.CatalogModeHTTP {
		breaker := circuitbreaker.New("catalog", circuitbreaker.DefaultConfig(), log)
		return catalog.NewHTTPClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout, breaker, log)
	}
	return p.Resources
}

// ProvideDispatcher 事件发布
//
// mq.enabled=true:经熔断器发往RabbitMQ,booking.cancelled由Worker消费
// mq.enabled=false:只记录日志,订阅者在进程内同步执行
func ProvideDispatcher(cfg *config.Config, log *logrus.Logger) (*messaging.Dispatcher, func(), error) {
	if !cfg.MQ.Enabled {
		return messaging.NewDispatcher(messaging.NewLogPublisher(log), log), func() {}, nil
	}

	publisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange, cfg.MQ.ExchangeType, log)
	if err != nil {
		return nil, nil, err
	}
	breaker := circuitbreaker.New("event_publisher", circuitbreaker.DefaultConfig(), log)
	next := messaging.NewBrokerPublisher(publisher, breaker, log)
	return messaging.NewDispatcher(next, log), func() { _ = publisher.Close() }, nil
}

// ProvideInventoryService 库存服务
func ProvideInventoryService(cfg *config.Config, p *Persistence, cache domaininventory.Cache, clk clock.Clock, log *logrus.Logger) *appinventory.Service {
	return appinventory.NewService(p.Departures, p.Usage, p.Waitlist, cache, p.Tx, clk,
		appinventory.Config{LimitedThreshold: cfg.Inventory.LimitedThreshold}, log)
}

// ProvideHoldService 占座服务
func ProvideHoldService(cfg *config.Config, p *Persistence, dispatcher *messaging.Dispatcher, inv *appinventory.Service, clk clock.Clock, log *logrus.Logger) *apphold.Service {
	return apphold.NewService(p.Allocator, p.Holds, p.Departures, dispatcher, inv, clk, apphold.Config{
		TTL: domainhold.TTLPolicy{
			domainhold.TypeCart:            cfg.Hold.CartTTL,
			domainhold.TypeApprovalPending: cfg.Hold.ApprovalPendingTTL,
			domainhold.TypeStaff:           cfg.Hold.StaffTTL,
			domainhold.TypeOTA:             cfg.Hold.OTATTL,
		},
		MaxExtension: cfg.Hold.MaxExtension,
	}, log)
}

// ProvideOrchestrator 预订编排器
func ProvideOrchestrator(p *Persistence, holds *apphold.Service, inv *appinventory.Service, resources domaincatalog.Catalog, dispatcher *messaging.Dispatcher, clk clock.Clock, log *logrus.Logger) *appbooking.Orchestrator {
	return appbooking.NewOrchestrator(p.Bookings, holds, inv, p.Departures, resources, dispatcher, clk, log)
}

// ProvideFollowUp 取消后续处理
// 未启用MQ时直接订阅进程内的booking.cancelled
func ProvideFollowUp(cfg *config.Config, dispatcher *messaging.Dispatcher, holds *apphold.Service, inv *appinventory.Service, clk clock.Clock, log *logrus.Logger) *appbooking.CancellationFollowUp {
	followUp := appbooking.NewCancellationFollowUp(holds, inv, dispatcher, clk, log)
	if !cfg.MQ.Enabled {
		dispatcher.Subscribe(event.TopicBookingCancelled, followUp.HandleMessage)
	}
	return followUp
}

// InitTracing tracing.enabled=true时初始化OTel,返回shutdown
func InitTracing(cfg *config.Config, log logrus.FieldLogger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !cfg.Tracing.Enabled {
		return noop
	}
	shutdown, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
	if err != nil {
		log.WithError(err).Warn("链路追踪初始化失败,继续运行但不上报Span")
		return noop
	}
	log.WithField("endpoint", cfg.Tracing.Endpoint).Info("✓ 链路追踪已启用")
	return shutdown
}
