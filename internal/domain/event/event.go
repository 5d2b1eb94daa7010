// Package event 库存与预订领域事件
//
// 事件供通知/候补等外部协作方消费,投递是尽力而为的:
// 发布失败只记录日志,不影响触发事件的请求。
package event

import (
	"context"
	"time"
)

// 路由键
const (
	TopicSeatsReleased    = "seats.released"
	TopicBookingCancelled = "booking.cancelled"
)

// Event 领域事件
type Event interface {
	RoutingKey() string
}

// SeatsReleased 座位重新开放销售
type SeatsReleased struct {
	TenantID    string    `json:"tenant_id"`
	DepartureID string    `json:"departure_id"`
	Seats       int       `json:"seats"`
	Reason      string    `json:"reason"`
	HoldIDs     []string  `json:"hold_ids,omitempty"`
	BookingID   string    `json:"booking_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RoutingKey 实现Event
func (SeatsReleased) RoutingKey() string { return TopicSeatsReleased }

// BookingCancelled 预订已取消
// WasConfirmed为true表示取消前已计入已确认座位
type BookingCancelled struct {
	TenantID     string    `json:"tenant_id"`
	BookingID    string    `json:"booking_id"`
	DepartureID  string    `json:"departure_id"`
	HoldID       string    `json:"hold_id,omitempty"`
	Seats        int       `json:"seats"`
	WasConfirmed bool      `json:"was_confirmed"`
	Reason       string    `json:"reason"`
	ActorID      string    `json:"actor_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// RoutingKey 实现Event
func (BookingCancelled) RoutingKey() string { return TopicBookingCancelled }

// Publisher 事件发布端口
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
