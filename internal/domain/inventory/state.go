// Package inventory 库存视图(只读模型)
//
// State由团期配置和当前有效占座、已确认预订推导,不是座位数的真实来源,
// 原子占座的判断在hold.Allocator内部完成。
package inventory

import (
	"time"

	"github.com/xiebiao/tripbooking/internal/domain/departure"
)

// Usage 团期当前的座位占用
type Usage struct {
	HeldSeats          int            // 有效占座(未释放且未过期)
	ConfirmedSeats     int            // 已确认预订占用的座位
	HeldByChannel      map[string]int // 按占座来源分组
	ConfirmedByChannel map[string]int // 按预订来源分组
	WaitlistCount      int
}

// UsedSeats 已占用座位合计
func (u Usage) UsedSeats() int {
	return u.HeldSeats + u.ConfirmedSeats
}

// State 团期库存视图
type State struct {
	TenantID                string         `json:"tenant_id"`
	DepartureID             string         `json:"departure_id"`
	Status                  string         `json:"status"`
	TotalCapacity           int            `json:"total_capacity"`
	BlockedSeats            int            `json:"blocked_seats"`
	SellableCapacity        int            `json:"sellable_capacity"`
	OverbookingLimit        int            `json:"overbooking_limit"`
	IsGuaranteed            bool           `json:"is_guaranteed"`
	HeldSeats               int            `json:"held_seats"`
	ConfirmedSeats          int            `json:"confirmed_seats"`
	AvailableSeats          int            `json:"available_seats"`
	BookableSeats           int            `json:"bookable_seats"`
	WaitlistCount           int            `json:"waitlist_count"`
	PerChannelBookingCounts map[string]int `json:"per_channel_booking_counts"`
	HeldByChannel           map[string]int `json:"held_by_channel"`
	Version                 int64          `json:"version"`
	ComputedAt              time.Time      `json:"computed_at"`
}

// Compute 计算库存视图(纯函数)
//
//	available = sellable - held - confirmed        (对外展示时不小于0)
//	bookable  = available + overbookingLimit       (仅成团保证的团期)
//	bookable  = max(available, 0)                  (其他团期)
func Compute(d *departure.Departure, u Usage, now time.Time) State {
	raw := d.SellableCapacity() - u.HeldSeats - u.ConfirmedSeats

	bookable := raw + d.OverbookingAllowance()
	if bookable < 0 {
		bookable = 0
	}
	available := raw
	if available < 0 {
		available = 0
	}

	return State{
		TenantID:                d.TenantID,
		DepartureID:             d.ID,
		Status:                  string(d.Status),
		TotalCapacity:           d.TotalCapacity,
		BlockedSeats:            d.BlockedSeats,
		SellableCapacity:        d.SellableCapacity(),
		OverbookingLimit:        d.OverbookingLimit,
		IsGuaranteed:            d.IsGuaranteed,
		HeldSeats:               u.HeldSeats,
		ConfirmedSeats:          u.ConfirmedSeats,
		AvailableSeats:          available,
		BookableSeats:           bookable,
		WaitlistCount:           u.WaitlistCount,
		PerChannelBookingCounts: copyCounts(u.ConfirmedByChannel),
		HeldByChannel:           copyCounts(u.HeldByChannel),
		Version:                 d.Version,
		ComputedAt:              now,
	}
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
