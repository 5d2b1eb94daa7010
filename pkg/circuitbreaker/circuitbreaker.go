// Package circuitbreaker 基于sony/gobreaker的熔断器封装
//
// 本服务有两类"可以失败但不能拖垮主流程"的外部依赖:
//   - 事件发布(RabbitMQ): 失败只影响通知,不能阻塞占座/预订请求
//   - 产品目录服务(HTTP): 故障时快速失败,避免请求堆积等待超时
//
// 封装在gobreaker之上补充了两件事:状态变化写入Prometheus指标与日志,
// 以及把熔断拒绝转换为AppError(503)。
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
	"github.com/xiebiao/tripbooking/pkg/metrics"
)

// ErrOpen 熔断器打开(或半开状态下探测请求已满)
var ErrOpen = apperrors.New(apperrors.ErrCodeUpstreamUnavail, "依赖服务暂不可用，请稍后重试")

// Config 熔断器参数
type Config struct {
	MaxRequests  uint32        // 半开状态允许通过的探测请求数
	Interval     time.Duration // 关闭状态下清零统计的周期
	Timeout      time.Duration // 打开状态持续多久后进入半开
	MinRequests  uint32        // 统计窗口内至少多少请求才判断失败率
	FailureRatio float64       // 失败率阈值
}

// DefaultConfig 默认参数:3次以上请求且失败率≥60%熔断,30秒后半开
func DefaultConfig() Config {
	return Config{
		MaxRequests:  3,
		Interval:     15 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// Breaker 带指标的熔断器
type Breaker struct {
	cb   *gobreaker.CircuitBreaker
	name string
}

// New 创建熔断器
func New(name string, cfg Config, log logrus.FieldLogger) *Breaker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests || counts.Requests == 0 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(cbName string, from, to gobreaker.State) {
			metrics.SetGaugeVec(metrics.CircuitBreakerState, map[string]string{"name": cbName}, stateValue(to))
			log.WithFields(logrus.Fields{
				"circuit": cbName,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("熔断器状态变化")
		},
	}

	metrics.SetGaugeVec(metrics.CircuitBreakerState, map[string]string{"name": name}, 0)

	return &Breaker{
		cb:   gobreaker.NewCircuitBreaker(settings),
		name: name,
	}
}

// Execute 通过熔断器执行fn
// 熔断拒绝时返回ErrOpen(不调用fn);fn自身的错误原样返回
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	switch {
	case err == nil:
		metrics.IncCounterVec(metrics.CircuitBreakerRequests, map[string]string{"name": b.name, "result": "success"})
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.IncCounterVec(metrics.CircuitBreakerRequests, map[string]string{"name": b.name, "result": "rejected"})
		return apperrors.WrapCode(err, ErrOpen.Code, ErrOpen.Message)
	default:
		metrics.IncCounterVec(metrics.CircuitBreakerRequests, map[string]string{"name": b.name, "result": "failure"})
		return err
	}
}

// Name 熔断器名称
func (b *Breaker) Name() string {
	return b.name
}

// State 当前状态(closed/open/half-open)
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// IsOpen 是否处于打开状态
func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
