package hold

import (
	"time"

	"github.com/xiebiao/tripbooking/internal/domain/departure"
	"github.com/xiebiao/tripbooking/internal/domain/inventory"
)

// 结构化结果码(客户端可纠正,作为结果返回而不是error)
const (
	CodeInvalidCount         = "INVALID_COUNT"
	CodeNoAvailability       = "NO_AVAILABILITY"
	CodeDepartureNotFound    = "DEPARTURE_NOT_FOUND"
	CodeDepartureNotBookable = "DEPARTURE_NOT_BOOKABLE"
	CodeInvalidHoldType      = "INVALID_HOLD_TYPE"
)

// TTLPolicy 占座类型 → TTL
// 每种类型都必须显式声明TTL,未声明的类型不能创建占座
type TTLPolicy map[Type]time.Duration

// DefaultTTLPolicy 默认TTL
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		TypeCart:            15 * time.Minute,
		TypeApprovalPending: 24 * time.Hour,
		TypeStaff:           2 * time.Hour,
		TypeOTA:             30 * time.Minute,
	}
}

// TTL 查询占座类型的TTL
func (p TTLPolicy) TTL(t Type) (time.Duration, bool) {
	ttl, ok := p[t]
	if !ok || ttl <= 0 {
		return 0, false
	}
	return ttl, true
}

// Decision 占座判定结果
type Decision struct {
	Granted bool
	Code    string
	State   inventory.State
}

// Decide 在团期已加锁的前提下判定能否占座
// usage必须是同一原子单元内按now统计的占用
func Decide(d *departure.Departure, usage inventory.Usage, seats int, now time.Time) Decision {
	state := inventory.Compute(d, usage, now)
	if !d.Status.IsSelling() {
		return Decision{Code: CodeDepartureNotBookable, State: state}
	}
	if seats > state.BookableSeats {
		return Decision{Code: CodeNoAvailability, State: state}
	}
	return Decision{Granted: true, State: state}
}

// AfterGrant 占座成功后的视图(把新占座计入)
func (dec Decision) AfterGrant(h *Hold) inventory.State {
	s := dec.State
	s.HeldSeats += h.SeatCount
	s.AvailableSeats -= h.SeatCount
	if s.AvailableSeats < 0 {
		s.AvailableSeats = 0
	}
	s.BookableSeats -= h.SeatCount
	if s.HeldByChannel == nil {
		s.HeldByChannel = map[string]int{}
	}
	s.HeldByChannel[string(h.Source)] += h.SeatCount
	return s
}
