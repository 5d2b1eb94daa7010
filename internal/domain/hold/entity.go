package hold

import (
	"time"
)

// Source 占座来源渠道(只作为元数据,不参与业务分支)
type Source string

const (
	SourceWebsite Source = "WEBSITE"
	SourceOTA     Source = "OTA"
	SourceAdmin   Source = "ADMIN"
	SourceManual  Source = "MANUAL"
)

// Valid 是否为已知来源
func (s Source) Valid() bool {
	switch s {
	case SourceWebsite, SourceOTA, SourceAdmin, SourceManual:
		return true
	}
	return false
}

// Type 占座类型,决定TTL
type Type string

const (
	TypeCart            Type = "CART"             // 购物车,约15分钟
	TypeApprovalPending Type = "APPROVAL_PENDING" // 员工录单待审批,约24小时
	TypeStaff           Type = "STAFF"            // 员工临时保留
	TypeOTA             Type = "OTA"              // OTA渠道确认窗口
)

// Status 占座状态
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusReleased Status = "RELEASED"
	StatusExpired  Status = "EXPIRED"
)

// ReleaseReason 释放原因
type ReleaseReason string

const (
	ReasonConfirmed    ReleaseReason = "CONFIRMED"     // 预订确认,占座转为已确认座位
	ReasonCancelled    ReleaseReason = "CANCELLED"     // 预订取消
	ReasonUserReleased ReleaseReason = "USER_RELEASED" // 渠道主动放弃
	ReasonExpired      ReleaseReason = "EXPIRED"       // 扫描任务标记过期
)

// ReturnsSeats 释放后座位是否重新开放销售
// 确认释放只是把占座换成已确认座位,总占用不变
func (r ReleaseReason) ReturnsSeats() bool {
	return r != ReasonConfirmed
}

// Hold 占座实体
// 设计说明:
// 1. 有效 ⇔ ReleasedAt为空 且 ExpiresAt > now
// 2. 释放或过期后不可再修改,记录永久保留作为审计轨迹
type Hold struct {
	ID             string
	TenantID       string
	DepartureID    string
	SeatCount      int
	Source         Source
	SourcePlatform string
	Type           Type
	CreatedByID    string
	SessionID      string
	Status         Status
	ExpiresAt      time.Time
	ReleasedAt     *time.Time
	ReleaseReason  ReleaseReason
	ReleasedByID   string
	CreatedAt      time.Time
}

// IsActive 在now时刻是否有效
// 已过期但扫描任务尚未处理的占座同样视为无效
func (h *Hold) IsActive(now time.Time) bool {
	return h.ReleasedAt == nil && h.ExpiresAt.After(now)
}

// EffectiveStatus 对外展示的状态(过期未扫描的显示为EXPIRED)
func (h *Hold) EffectiveStatus(now time.Time) Status {
	if h.ReleasedAt == nil && !h.ExpiresAt.After(now) {
		return StatusExpired
	}
	return h.Status
}
