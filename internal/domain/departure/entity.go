package departure

import (
	"time"
)

// Status 团期状态
type Status string

const (
	StatusDraft     Status = "DRAFT"     // 草稿(未开售)
	StatusOpen      Status = "OPEN"      // 开售
	StatusLimited   Status = "LIMITED"   // 余位紧张
	StatusWaitlist  Status = "WAITLIST"  // 满员,接受候补
	StatusClosed    Status = "CLOSED"    // 停售
	StatusCancelled Status = "CANCELLED" // 已取消(终态)
	StatusCompleted Status = "COMPLETED" // 已出行(终态)
)

// transitions 团期状态流转表
// 销售中的三个状态(OPEN/LIMITED/WAITLIST)之间可以互相切换,由余位重新计算驱动
var transitions = map[Status][]Status{
	StatusDraft:     {StatusOpen, StatusCancelled},
	StatusOpen:      {StatusLimited, StatusWaitlist, StatusClosed, StatusCancelled, StatusCompleted},
	StatusLimited:   {StatusOpen, StatusWaitlist, StatusClosed, StatusCancelled, StatusCompleted},
	StatusWaitlist:  {StatusOpen, StatusLimited, StatusClosed, StatusCancelled, StatusCompleted},
	StatusClosed:    {StatusOpen, StatusCancelled, StatusCompleted},
	StatusCancelled: {},
	StatusCompleted: {},
}

// Valid 是否为已定义的状态
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo 检查是否可以流转到目标状态
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal 终态(取消、已出行)
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// IsSelling 销售中(允许占座)
func (s Status) IsSelling() bool {
	return s == StatusOpen || s == StatusLimited || s == StatusWaitlist
}

// Departure 团期实体(库存聚合根)
// 设计说明:
// 1. 座位计数不在实体上保存,由有效占座和已确认预订实时推导
// 2. Version在每次写入团期时递增,用于乐观并发检测
// 3. PriceOverride为nil时使用产品目录的基础价格
type Departure struct {
	ID               string
	TenantID         string
	ResourceID       string
	DepartureDate    time.Time
	TotalCapacity    int
	BlockedSeats     int // 保留不售的座位
	OverbookingLimit int
	MinParticipants  int
	Status           Status
	IsGuaranteed     bool
	PriceOverride    *int64 // 单价(分)
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewParams 创建团期参数
type NewParams struct {
	ID               string
	TenantID         string
	ResourceID       string
	DepartureDate    time.Time
	TotalCapacity    int
	BlockedSeats     int
	OverbookingLimit int
	MinParticipants  int
	IsGuaranteed     bool
	PriceOverride    *int64
}

// NewDeparture 创建团期(工厂方法)
// 新团期总是DRAFT状态,version从1开始
func NewDeparture(p NewParams, now time.Time) (*Departure, error) {
	if p.TenantID == "" || p.ResourceID == "" {
		return nil, ErrInvalidDeparture
	}
	if p.DepartureDate.IsZero() {
		return nil, ErrInvalidDeparture
	}
	if err := validateCapacity(p.TotalCapacity, p.BlockedSeats, p.OverbookingLimit); err != nil {
		return nil, err
	}
	if p.MinParticipants < 0 {
		return nil, ErrInvalidCapacity
	}
	if p.PriceOverride != nil && *p.PriceOverride < 0 {
		return nil, ErrInvalidPrice
	}

	return &Departure{
		ID:               p.ID,
		TenantID:         p.TenantID,
		ResourceID:       p.ResourceID,
		DepartureDate:    p.DepartureDate,
		TotalCapacity:    p.TotalCapacity,
		BlockedSeats:     p.BlockedSeats,
		OverbookingLimit: p.OverbookingLimit,
		MinParticipants:  p.MinParticipants,
		Status:           StatusDraft,
		IsGuaranteed:     p.IsGuaranteed,
		PriceOverride:    p.PriceOverride,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// SellableCapacity 可售容量 = 总容量 - 保留座位
func (d *Departure) SellableCapacity() int {
	if d.TotalCapacity-d.BlockedSeats < 0 {
		return 0
	}
	return d.TotalCapacity - d.BlockedSeats
}

// OverbookingAllowance 超售额度
// 只有成团保证(IsGuaranteed)的团期才允许超售
func (d *Departure) OverbookingAllowance() int {
	if !d.IsGuaranteed {
		return 0
	}
	return d.OverbookingLimit
}

// SeatCeiling 已确认+有效占座的上限
func (d *Departure) SeatCeiling() int {
	return d.SellableCapacity() + d.OverbookingAllowance()
}

// TransitionTo 状态流转,成功后递增version
func (d *Departure) TransitionTo(target Status, now time.Time) error {
	if !target.Valid() || !d.Status.CanTransitionTo(target) {
		return ErrInvalidStatusTransition
	}
	d.Status = target
	d.touch(now)
	return nil
}

// CapacityChange 容量调整(nil表示不修改)
type CapacityChange struct {
	TotalCapacity    *int
	BlockedSeats     *int
	OverbookingLimit *int
}

// ApplyCapacity 调整容量
// usedSeats为当前有效占座+已确认座位,调整后的上限不能低于它
func (d *Departure) ApplyCapacity(change CapacityChange, usedSeats int, now time.Time) error {
	if d.Status.IsTerminal() {
		return ErrDepartureClosed
	}

	next := *d
	if change.TotalCapacity != nil {
		next.TotalCapacity = *change.TotalCapacity
	}
	if change.BlockedSeats != nil {
		next.BlockedSeats = *change.BlockedSeats
	}
	if change.OverbookingLimit != nil {
		next.OverbookingLimit = *change.OverbookingLimit
	}

	if err := validateCapacity(next.TotalCapacity, next.BlockedSeats, next.OverbookingLimit); err != nil {
		return err
	}
	if next.SeatCeiling() < usedSeats {
		return ErrCapacityBelowUsage
	}

	d.TotalCapacity = next.TotalCapacity
	d.BlockedSeats = next.BlockedSeats
	d.OverbookingLimit = next.OverbookingLimit
	d.touch(now)
	return nil
}

// SalesStatus 根据可订座位推导销售状态
// 只对销售中的团期有意义,其他状态原样返回
func (d *Departure) SalesStatus(bookableSeats, limitedThreshold int) Status {
	if !d.Status.IsSelling() {
		return d.Status
	}
	switch {
	case bookableSeats <= 0:
		return StatusWaitlist
	case bookableSeats <= limitedThreshold:
		return StatusLimited
	default:
		return StatusOpen
	}
}

// IsOwnedBy 租户隔离校验
func (d *Departure) IsOwnedBy(tenantID string) bool {
	return d.TenantID == tenantID
}

func (d *Departure) touch(now time.Time) {
	d.Version++
	d.UpdatedAt = now
}

func validateCapacity(total, blocked, overbooking int) error {
	if total < 0 || blocked < 0 || overbooking < 0 {
		return ErrInvalidCapacity
	}
	if blocked > total {
		return ErrInvalidCapacity
	}
	return nil
}
