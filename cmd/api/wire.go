//go:build wireinject
// +build wireinject

// Wire依赖注入配置
//
// 运行 `wire gen ./cmd/api` 生成wire_gen.go,
// 生成的InitializeApp与main.go里的手动组装等价。
//
// 依赖链:
//   *gin.Engine → *bootstrap.Services → 应用服务 → *bootstrap.Persistence → *config.Config

package main

import (
	"github.com/gin-gonic/gin"
	"github.com/google/wire"

	"github.com/xiebiao/tripbooking/internal/bootstrap"
	"github.com/xiebiao/tripbooking/internal/infrastructure/config"
	"github.com/xiebiao/tripbooking/internal/interface/http/middleware"
)

// middlewareSet 认证相关
var middlewareSet = wire.NewSet(
	provideJWTManager,
	provideRevocation,
	middleware.NewAuthMiddleware,
)

// InitializeApp 初始化整个应用
// cleanup按逆序关闭数据库、Redis和MQ连接
func InitializeApp(cfg *config.Config) (*gin.Engine, func(), error) {
	wire.Build(
		bootstrap.ProviderSet,
		middlewareSet,
		provideEngine,
	)
	return nil, nil, nil
}
