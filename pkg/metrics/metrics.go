// Package metrics 提供基于Prometheus的指标收集
//
// # 指标分组
//
//   - HTTP: 请求总数、耗时、处理中请求数
//   - 占座(Hold): 创建/拒绝/释放/过期计数,分配耗时
//   - 预订(Booking): 发起结果、状态流转、无有效占座的确认
//   - 扫描(Sweep): 执行次数、耗时
//   - 熔断器、消息队列、库存视图缓存
//
// # 使用方式
//
//	metrics.InitMetrics()
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
//
// 业务代码统一通过IncCounterVec/ObserveHistogram等辅助函数记录。
// 辅助函数对nil指标是空操作,单元测试无需初始化全局Registry。
//
// # 标签基数
//
// 标签只使用有限取值(source、hold_type、reason、状态),
// 不要把departure_id、tenant_id放进标签。
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	initOnce sync.Once

	// HTTP请求相关指标

	// HTTPRequestsTotal HTTP请求总数（Counter）
	// 标签：method、path（路由模板）、status
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration HTTP请求耗时（Histogram）
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsInProgress 正在处理的HTTP请求数（Gauge）
	HTTPRequestsInProgress prometheus.Gauge

	// 占座指标

	// HoldsCreatedTotal 成功创建的占座数
	// 标签：source（WEBSITE/OTA/ADMIN/MANUAL）、hold_type（CART/APPROVAL_PENDING/...）
	HoldsCreatedTotal *prometheus.CounterVec

	// HoldsRejectedTotal 被拒绝的占座请求数
	// 标签：reason（NO_AVAILABILITY/INVALID_COUNT/...）
	HoldsRejectedTotal *prometheus.CounterVec

	// HoldsReleasedTotal 显式释放的占座数
	// 标签：reason（CONFIRMED/CANCELLED/USER_RELEASED/...）
	HoldsReleasedTotal *prometheus.CounterVec

	// HoldsExpiredTotal 被扫描任务标记为过期的占座数
	HoldsExpiredTotal prometheus.Counter

	// HoldAllocationDuration 原子占座(加锁→计算→插入)耗时
	HoldAllocationDuration prometheus.Histogram

	// 预订指标

	// BookingsInitiatedTotal 预订发起结果
	// 标签：source（DIRECT/OTA/...）、result（success/错误码）
	BookingsInitiatedTotal *prometheus.CounterVec

	// BookingTransitionsTotal 预订状态流转次数
	// 标签：from、to
	BookingTransitionsTotal *prometheus.CounterVec

	// ConfirmWithoutActiveHoldTotal 确认预订时占座已失效的次数
	// 持续增长说明支付结算慢于占座TTL,存在座位被重新分配的风险
	ConfirmWithoutActiveHoldTotal prometheus.Counter

	// 扫描任务指标

	// SweepRunsTotal 扫描执行次数
	// 标签：result（success/failure/skipped）
	SweepRunsTotal *prometheus.CounterVec

	// SweepDuration 单次扫描耗时
	SweepDuration prometheus.Histogram

	// 熔断器指标

	// CircuitBreakerState 熔断器状态（Gauge）
	// 0=CLOSED, 1=OPEN, 2=HALF_OPEN
	CircuitBreakerState *prometheus.GaugeVec

	// CircuitBreakerRequests 熔断器请求总数（Counter）
	// 标签：name（熔断器名称）、result（success/failure/rejected）
	CircuitBreakerRequests *prometheus.CounterVec

	// 消息队列指标

	// MessagesPublishedTotal 消息发布总数
	// 标签：exchange、routing_key、result（success/failure）
	MessagesPublishedTotal *prometheus.CounterVec

	// MessagesConsumedTotal 消息消费总数
	// 标签：queue、result（success/failure）
	MessagesConsumedTotal *prometheus.CounterVec

	// MessageProcessingDuration 消息处理耗时
	MessageProcessingDuration prometheus.Histogram

	// InventoryCacheRequests 库存视图缓存命中情况
	// 标签：result（hit/miss/error）
	InventoryCacheRequests *prometheus.CounterVec
)

// InitMetrics 初始化所有Prometheus指标
//
// 使用promauto注册到默认Registry,重复调用是安全的
func InitMetrics() {
	initOnce.Do(func() {
		HTTPRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP请求总数",
			},
			[]string{"method", "path", "status"},
		)

		HTTPRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP请求耗时（秒）",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"method", "path"},
		)

		HTTPRequestsInProgress = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_progress",
				Help: "正在处理的HTTP请求数",
			},
		)

		HoldsCreatedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_holds_created_total",
				Help: "成功创建的占座数",
			},
			[]string{"source", "hold_type"},
		)

		HoldsRejectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_holds_rejected_total",
				Help: "被拒绝的占座请求数",
			},
			[]string{"reason"},
		)

		HoldsReleasedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_holds_released_total",
				Help: "显式释放的占座数",
			},
			[]string{"reason"},
		)

		HoldsExpiredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "inventory_holds_expired_total",
				Help: "扫描任务标记过期的占座数",
			},
		)

		HoldAllocationDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "inventory_hold_allocation_duration_seconds",
				Help: "原子占座耗时（秒）",
				// 行锁等待会拉长耗时,热门团期需要关注高分位
				Buckets: []float64{0.002, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		)

		BookingsInitiatedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_initiated_total",
				Help: "预订发起结果",
			},
			[]string{"source", "result"},
		)

		BookingTransitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_status_transitions_total",
				Help: "预订状态流转次数",
			},
			[]string{"from", "to"},
		)

		ConfirmWithoutActiveHoldTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "booking_confirm_without_active_hold_total",
				Help: "确认时占座已释放或过期的次数",
			},
		)

		SweepRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hold_sweep_runs_total",
				Help: "过期占座扫描执行次数",
			},
			[]string{"result"},
		)

		SweepDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hold_sweep_duration_seconds",
				Help:    "过期占座扫描耗时（秒）",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
		)

		CircuitBreakerState = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "熔断器状态（0=CLOSED, 1=OPEN, 2=HALF_OPEN）",
			},
			[]string{"name"},
		)

		CircuitBreakerRequests = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circuit_breaker_requests_total",
				Help: "熔断器请求总数",
			},
			[]string{"name", "result"},
		)

		MessagesPublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_published_total",
				Help: "消息发布总数",
			},
			[]string{"exchange", "routing_key", "result"},
		)

		MessagesConsumedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_consumed_total",
				Help: "消息消费总数",
			},
			[]string{"queue", "result"},
		)

		MessageProcessingDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "message_processing_duration_seconds",
				Help:    "消息处理耗时（秒）",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
			},
		)

		InventoryCacheRequests = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_view_cache_requests_total",
				Help: "库存视图缓存请求数",
			},
			[]string{"result"},
		)
	})
}

// IncCounter 递增Counter（便捷函数）
func IncCounter(counter prometheus.Counter) {
	if counter == nil {
		return
	}
	counter.Inc()
}

// AddCounter 增加Counter
func AddCounter(counter prometheus.Counter, v float64) {
	if counter == nil || v <= 0 {
		return
	}
	counter.Add(v)
}

// IncCounterVec 递增CounterVec（带标签）
func IncCounterVec(counter *prometheus.CounterVec, labels map[string]string) {
	if counter == nil {
		return
	}
	counter.With(labels).Inc()
}

// AddCounterVec 按标签增加CounterVec
func AddCounterVec(counter *prometheus.CounterVec, labels map[string]string, v float64) {
	if counter == nil || v <= 0 {
		return
	}
	counter.With(labels).Add(v)
}

// IncGauge 递增Gauge
func IncGauge(gauge prometheus.Gauge) {
	if gauge == nil {
		return
	}
	gauge.Inc()
}

// DecGauge 递减Gauge
func DecGauge(gauge prometheus.Gauge) {
	if gauge == nil {
		return
	}
	gauge.Dec()
}

// SetGauge 设置Gauge值
func SetGauge(gauge prometheus.Gauge, value float64) {
	if gauge == nil {
		return
	}
	gauge.Set(value)
}

// SetGaugeVec 设置GaugeVec值（带标签）
func SetGaugeVec(gauge *prometheus.GaugeVec, labels map[string]string, value float64) {
	if gauge == nil {
		return
	}
	gauge.With(labels).Set(value)
}

// ObserveHistogram 记录Histogram观测值
func ObserveHistogram(histogram prometheus.Histogram, value float64) {
	if histogram == nil {
		return
	}
	histogram.Observe(value)
}

// ObserveHistogramVec 记录HistogramVec观测值（带标签）
func ObserveHistogramVec(histogram *prometheus.HistogramVec, labels map[string]string, value float64) {
	if histogram == nil {
		return
	}
	histogram.With(labels).Observe(value)
}
