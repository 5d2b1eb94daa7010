// Package router 组装HTTP路由
//
// 路由分几类:
//   - 基础设施:/ping /metrics /swagger
//   - 渠道接口:需要X-Tenant-ID,令牌可选(网站匿名访问、OTA带令牌)
//   - 取消预订:必须登录
//   - 确认预订:支付回调账号或员工
//   - 员工接口:团期管理、生命周期操作,要求员工或管理员令牌
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/xiebiao/tripbooking/internal/infrastructure/config"
	"github.com/xiebiao/tripbooking/internal/interface/http/handler"
	"github.com/xiebiao/tripbooking/internal/interface/http/middleware"
	"github.com/xiebiao/tripbooking/pkg/response"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Hold      *handler.HoldHandler
	Inventory *handler.InventoryHandler
	Booking   *handler.BookingHandler
}

// New 创建gin引擎并注册全部路由
func New(cfg *config.Config, h Handlers, auth *middleware.AuthMiddleware, log logrus.FieldLogger) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics())
	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(cfg.Tracing.ServiceName))
	}
	if cfg.Server.CORS.Enabled {
		r.Use(middleware.CORS(cfg.Server.CORS))
	}

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "pong",
			"status":  "healthy",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.Server.Mode != "release" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RequireTenant())

	public := v1.Group("")
	public.Use(auth.OptionalAuth())

	authed := v1.Group("")
	authed.Use(auth.RequireAuth())

	settlement := v1.Group("")
	settlement.Use(auth.RequireAuth(), auth.RequireSettlement())

	staff := v1.Group("")
	staff.Use(auth.RequireAuth(), auth.RequireStaff())

	// 占座
	{
		public.POST("/inventory/holds", h.Hold.CreateHold)
		public.PATCH("/inventory/holds/:id/extend", h.Hold.ExtendHold)
		public.DELETE("/inventory/holds/:id", h.Hold.ReleaseHold)
		public.GET("/inventory/departures/:id/holds", h.Hold.GetActiveHolds)
	}

	// 库存视图与团期管理
	{
		public.GET("/inventory/departures", h.Inventory.GetStates)
		public.GET("/inventory/departures/:id", h.Inventory.GetState)
		public.GET("/inventory/departures/:id/availability", h.Inventory.CheckAvailability)
		public.POST("/inventory/departures/:id/waitlist", h.Inventory.JoinWaitlist)

		staff.POST("/inventory/departures", h.Inventory.CreateDeparture)
		staff.PATCH("/inventory/departures/:id/capacity", h.Inventory.UpdateCapacity)
		staff.PATCH("/inventory/departures/:id/status", h.Inventory.ChangeStatus)
		staff.GET("/inventory/departures/:id/bookings", h.Booking.ListBookingsByDeparture)
	}

	// 预订
	{
		public.POST("/bookings/initiate", h.Booking.InitiateBooking)
		settlement.POST("/bookings/:id/confirm", h.Booking.ConfirmBooking)
		authed.POST("/bookings/:id/cancel", h.Booking.CancelBooking)
		public.GET("/bookings/:id", h.Booking.GetBooking)

		staff.POST("/bookings/:id/payment-started", h.Booking.StartPayment)
		staff.POST("/bookings/:id/payment-uncertain", h.Booking.MarkPaymentUncertain)
		staff.POST("/bookings/:id/request-approval", h.Booking.RequestApproval)
		staff.POST("/bookings/:id/approve", h.Booking.Approve)
		staff.POST("/bookings/:id/refund", h.Booking.Refund)
		staff.POST("/bookings/:id/no-show", h.Booking.MarkNoShow)
		staff.POST("/bookings/:id/complete", h.Booking.Complete)
	}

	return r
}
