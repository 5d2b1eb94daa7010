package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/xiebiao/tripbooking/pkg/response"
	"github.com/xiebiao/tripbooking/pkg/tracing"
)

// RequestIDHeader 请求ID头
const RequestIDHeader = "X-Request-ID"

// slowRequestThreshold 超过该耗时记录慢请求警告
const slowRequestThreshold = 3 * time.Second

// RequestLogger 请求日志中间件
//
// 1. 沿用上游传入的X-Request-ID,没有则生成UUID
// 2. 把带request_id的日志Entry放进Context,response包记录错误时使用
// 3. 请求结束后记录方法、路径、状态码、耗时
//
// 不记录请求体和Authorization头
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(RequestIDHeader, requestID)

		entry := log.WithField("request_id", requestID)
		if traceID := tracing.ExtractTraceID(c.Request.Context()); traceID != "" {
			entry = entry.WithField("trace_id", traceID)
		}
		c.Set("request_id", requestID)
		c.Set(response.LoggerKey, entry)

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   latency.String(),
			"client_ip": c.ClientIP(),
		}
		if tenantID := GetTenantID(c); tenantID != "" {
			fields["tenant_id"] = tenantID
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case latency > slowRequestThreshold:
			entry.WithFields(fields).Warn("慢请求")
		case c.Writer.Status() >= 500:
			entry.WithFields(fields).Error("请求完成")
		default:
			entry.WithFields(fields).Info("请求完成")
		}
	}
}
