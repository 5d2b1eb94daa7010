package main

import (
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/xiebiao/tripbooking/internal/bootstrap"
	"github.com/xiebiao/tripbooking/internal/infrastructure/config"
	"github.com/xiebiao/tripbooking/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/tripbooking/internal/interface/http/handler"
	"github.com/xiebiao/tripbooking/internal/interface/http/middleware"
	"github.com/xiebiao/tripbooking/internal/interface/http/router"
	"github.com/xiebiao/tripbooking/pkg/jwt"
)

// provideJWTManager 从配置创建JWT管理器
func provideJWTManager(cfg *config.Config) *jwt.Manager {
	return jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpire)
}

// provideRevocation Token黑名单
// 没有Redis时返回nil接口(不能返回nil指针,否则中间件会认为黑名单已启用)
func provideRevocation(client *goredis.Client) middleware.RevocationChecker {
	if client == nil {
		return nil
	}
	return redis.NewTokenBlacklist(client)
}

// provideEngine 创建gin引擎并注册路由
func provideEngine(cfg *config.Config, services *bootstrap.Services, auth *middleware.AuthMiddleware, log *logrus.Logger) *gin.Engine {
	return router.New(cfg, router.Handlers{
		Hold:      handler.NewHoldHandler(services.Holds),
		Inventory: handler.NewInventoryHandler(services.Inventory),
		Booking:   handler.NewBookingHandler(services.Orchestrator),
	}, auth, log)
}
