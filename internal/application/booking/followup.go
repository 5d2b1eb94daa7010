package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	domainhold "github.com/xiebiao/tripbooking/internal/domain/hold"
	"github.com/xiebiao/tripbooking/internal/domain/event"
	"github.com/xiebiao/tripbooking/pkg/clock"
	"github.com/xiebiao/tripbooking/pkg/mq"
)

// CancellationFollowUp booking.cancelled事件的消费方
//
// 取消后的座位回收:
//  1. 预订仍持有占座时以CANCELLED原因释放(占座服务会发布seats.released)
//  2. 已确认的预订没有占座,座位随状态变化自动退回,这里补发seats.released
//  3. 通知库存服务刷新视图和销售状态
//
// 重复投递是安全的:占座释放幂等,状态刷新只依赖当前数据
type CancellationFollowUp struct {
	holds     HoldService
	inventory InventoryService
	publisher event.Publisher
	clock     clock.Clock
	log       logrus.FieldLogger
}

// NewCancellationFollowUp 创建取消后续处理器
func NewCancellationFollowUp(holds HoldService, inventory InventoryService, publisher event.Publisher, clk clock.Clock, log logrus.FieldLogger) *CancellationFollowUp {
	return &CancellationFollowUp{
		holds:     holds,
		inventory: inventory,
		publisher: publisher,
		clock:     clk,
		log:       log.WithField("component", "cancellation_followup"),
	}
}

// Handle 处理取消事件
func (f *CancellationFollowUp) Handle(ctx context.Context, e event.BookingCancelled) error {
	entry := f.log.WithFields(logrus.Fields{
		"tenant_id":    e.TenantID,
		"booking_id":   e.BookingID,
		"departure_id": e.DepartureID,
	})

	if e.HoldID != "" {
		released, err := f.holds.ReleaseHold(ctx, e.TenantID, e.HoldID, domainhold.ReasonCancelled, e.ActorID)
		if err != nil && !errors.Is(err, domainhold.ErrHoldNotFound) {
			return err
		}
		if released {
			entry.WithField("hold_id", e.HoldID).Info("取消预订,占座已释放")
			return nil
		}
	}

	if e.WasConfirmed {
		if err := f.publisher.Publish(ctx, event.SeatsReleased{
			TenantID:    e.TenantID,
			DepartureID: e.DepartureID,
			Seats:       e.Seats,
			Reason:      string(domainhold.ReasonCancelled),
			BookingID:   e.BookingID,
			OccurredAt:  f.clock.Now(),
		}); err != nil {
			entry.WithError(err).Warn("事件发布失败")
		}
	}

	f.inventory.SeatsChanged(ctx, e.TenantID, e.DepartureID)
	entry.Info("取消预订后续处理完成")
	return nil
}

// HandleMessage 适配mq.Handler
// 消息体无法解析时返回Permanent错误,消息直接丢弃
func (f *CancellationFollowUp) HandleMessage(ctx context.Context, routingKey string, body []byte) error {
	if routingKey != event.TopicBookingCancelled {
		return mq.Permanent(fmt.Errorf("unexpected routing key %q", routingKey))
	}
	var e event.BookingCancelled
	if err := json.Unmarshal(body, &e); err != nil {
		return mq.Permanent(fmt.Errorf("decode booking.cancelled: %w", err))
	}
	return f.Handle(ctx, e)
}
