package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xiebiao/tripbooking/internal/bootstrap"
	"github.com/xiebiao/tripbooking/internal/infrastructure/config"
	"github.com/xiebiao/tripbooking/internal/interface/http/middleware"
	"github.com/xiebiao/tripbooking/pkg/metrics"
)

// @title                       团期库存与预订API
// @version                     1.0
// @description                 占座、库存视图与预订生命周期
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization

// main API服务入口
// 手动依赖注入,wire.go提供等价的Wire版本
func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 2. 组装依赖(数据库、Redis、MQ、应用服务)
	services, cleanup, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("初始化依赖失败: %v", err)
	}
	defer cleanup()
	logger := services.Log

	logger.WithFields(logrus.Fields{
		"port":     cfg.Server.Port,
		"mode":     cfg.Server.Mode,
		"database": cfg.Database.Driver,
		"redis":    cfg.Redis.Enabled,
		"mq":       cfg.MQ.Enabled,
		"catalog":  cfg.Catalog.Mode,
	}).Info("✓ 配置加载成功")

	// 3. 可观测性
	metrics.InitMetrics()
	shutdownTracing := bootstrap.InitTracing(cfg, logger)

	// 4. 接口层
	auth := middleware.NewAuthMiddleware(provideJWTManager(cfg), provideRevocation(services.Redis))
	engine := provideEngine(cfg, services, auth, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 5. 启动服务
	go func() {
		logger.WithField("addr", srv.Addr).Info("🚀 API服务启动成功")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("启动服务失败")
		}
	}()

	// 6. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("HTTP服务关闭超时")
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.WithError(err).Warn("刷新Span失败")
	}
	logger.Info("✅ 服务已关闭")
}
