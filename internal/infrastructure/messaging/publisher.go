// Package messaging 领域事件的投递适配器
//
// 三种实现都满足event.Publisher:
//   - BrokerPublisher: 经熔断器发布到RabbitMQ(mq.enabled=true)
//   - LogPublisher: 只记录日志(未配置消息队列时)
//   - Dispatcher: 先交给下游Publisher,再在进程内分发给订阅者
package messaging

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/xiebiao/tripbooking/internal/domain/event"
	"github.com/xiebiao/tripbooking/pkg/circuitbreaker"
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
	"github.com/xiebiao/tripbooking/pkg/mq"
)

// Broker 消息代理(*mq.Publisher实现)
type Broker interface {
	Publish(ctx context.Context, routingKey string, message interface{}) error
}

// BrokerPublisher 经熔断器发布事件
// RabbitMQ不可用时熔断器打开,后续发布立即失败,不再占用请求时间
type BrokerPublisher struct {
	broker  Broker
	breaker *circuitbreaker.Breaker
	log     logrus.FieldLogger
}

// NewBrokerPublisher 创建事件发布者
func NewBrokerPublisher(broker Broker, breaker *circuitbreaker.Breaker, log logrus.FieldLogger) *BrokerPublisher {
	return &BrokerPublisher{
		broker:  broker,
		breaker: breaker,
		log:     log.WithField("component", "event_publisher"),
	}
}

// Publish 实现event.Publisher
func (p *BrokerPublisher) Publish(ctx context.Context, e event.Event) error {
	err := p.breaker.Execute(func() error {
		return p.broker.Publish(ctx, e.RoutingKey(), e)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.WrapCode(err, apperrors.ErrCodeMessagingError, "发布事件失败")
	}
	return nil
}

// LogPublisher 只把事件写入日志
type LogPublisher struct {
	log logrus.FieldLogger
}

// NewLogPublisher 创建日志发布者
func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log.WithField("component", "event_publisher")}
}

// Publish 实现event.Publisher
func (p *LogPublisher) Publish(ctx context.Context, e event.Event) error {
	p.log.WithFields(logrus.Fields{
		"routing_key": e.RoutingKey(),
		"event":       e,
	}).Info("领域事件")
	return nil
}

// Dispatcher 进程内事件分发
//
// 单进程部署(没有消息队列、没有独立worker)时,booking.cancelled的后续处理
// 通过Dispatcher在发布后同步执行。订阅者收到的是与队列消息相同的JSON,
// 所以同一个mq.Handler既能挂在Consumer上,也能挂在这里。
//
// 订阅者返回错误只记录日志,不影响发布方。
type Dispatcher struct {
	next     event.Publisher
	mu       sync.RWMutex
	handlers map[string][]mq.Handler
	log      logrus.FieldLogger
}

// NewDispatcher 创建分发器,next可以为nil
func NewDispatcher(next event.Publisher, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		next:     next,
		handlers: make(map[string][]mq.Handler),
		log:      log.WithField("component", "event_dispatcher"),
	}
}

// Subscribe 订阅路由键
func (d *Dispatcher) Subscribe(routingKey string, h mq.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[routingKey] = append(d.handlers[routingKey], h)
}

// Publish 实现event.Publisher
// 下游发布失败时返回该错误,但本地订阅者依然会收到事件
func (d *Dispatcher) Publish(ctx context.Context, e event.Event) error {
	var publishErr error
	if d.next != nil {
		publishErr = d.next.Publish(ctx, e)
	}

	d.mu.RLock()
	handlers := d.handlers[e.RoutingKey()]
	d.mu.RUnlock()
	if len(handlers) == 0 {
		return publishErr
	}

	body, err := json.Marshal(e)
	if err != nil {
		return apperrors.Wrap(err, "事件序列化失败")
	}
	for _, h := range handlers {
		if err := h(ctx, e.RoutingKey(), body); err != nil {
			d.log.WithError(err).WithField("routing_key", e.RoutingKey()).Warn("进程内事件处理失败")
		}
	}
	return publishErr
}
