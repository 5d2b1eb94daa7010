package mysql

import (
	"time"
)

// 设计说明：
// 1. 这些是infrastructure层的数据模型，包含GORM tag
// 2. domain层实体不依赖GORM，Repository负责两者之间的转换
// 3. 金额使用int64存储"分"为单位
// 4. 主键为UUID字符串，所有查询都带tenant_id

// ResourceModel 产品资源(catalog.mode=db时作为资源目录)
type ResourceModel struct {
	ID           string    `gorm:"primaryKey;size:36"`
	TenantID     string    `gorm:"index;size:64;not null;comment:租户ID"`
	Name         string    `gorm:"size:200;not null;comment:产品名称"`
	BasePrice    int64     `gorm:"not null;comment:基础单价(分)"`
	Currency     string    `gorm:"size:3;not null;default:CNY;comment:币种"`
	DurationDays int       `gorm:"not null;default:1;comment:行程天数"`
	CreatedAt    time.Time `gorm:"comment:创建时间"`
	UpdatedAt    time.Time `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (ResourceModel) TableName() string {
	return "resources"
}

// DepartureModel 团期
// (tenant_id, resource_id, departure_date)唯一
type DepartureModel struct {
	ID               string    `gorm:"primaryKey;size:36"`
	TenantID         string    `gorm:"uniqueIndex:uk_departure,priority:1;size:64;not null;comment:租户ID"`
	ResourceID       string    `gorm:"uniqueIndex:uk_departure,priority:2;size:36;not null;comment:产品资源ID"`
	DepartureDate    time.Time `gorm:"uniqueIndex:uk_departure,priority:3;not null;comment:出发日期"`
	TotalCapacity    int       `gorm:"not null;comment:总座位数"`
	BlockedSeats     int       `gorm:"not null;default:0;comment:保留不售座位"`
	OverbookingLimit int       `gorm:"not null;default:0;comment:超售上限"`
	MinParticipants  int       `gorm:"not null;default:0;comment:最低成团人数"`
	Status           string    `gorm:"index;size:20;not null;comment:团期状态"`
	IsGuaranteed     bool      `gorm:"not null;default:false;comment:是否保证成团"`
	PriceOverride    *int64    `gorm:"comment:团期单价(分),为空使用产品价格"`
	Version          int64     `gorm:"not null;default:1;comment:乐观锁版本号"`
	CreatedAt        time.Time `gorm:"comment:创建时间"`
	UpdatedAt        time.Time `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (DepartureModel) TableName() string {
	return "departures"
}

// HoldModel 占座
// idx_hold_active服务于余位统计,idx_hold_expiry服务于过期扫描
type HoldModel struct {
	ID             string     `gorm:"primaryKey;size:36"`
	TenantID       string     `gorm:"index:idx_hold_active,priority:1;size:64;not null;comment:租户ID"`
	DepartureID    string     `gorm:"index:idx_hold_active,priority:2;size:36;not null;comment:团期ID"`
	SeatCount      int        `gorm:"not null;comment:占座数量"`
	Source         string     `gorm:"size:20;not null;comment:来源(WEBSITE/OTA/ADMIN/MANUAL)"`
	SourcePlatform string     `gorm:"size:50;comment:来源平台"`
	HoldType       string     `gorm:"size:30;not null;comment:占座类型"`
	CreatedByID    string     `gorm:"size:64;comment:创建人"`
	SessionID      string     `gorm:"size:128;comment:会话ID"`
	Status         string     `gorm:"size:20;not null;comment:状态(ACTIVE/RELEASED/EXPIRED)"`
	ExpiresAt      time.Time  `gorm:"index:idx_hold_active,priority:4;index:idx_hold_expiry;not null;comment:过期时间"`
	ReleasedAt     *time.Time `gorm:"index:idx_hold_active,priority:3;comment:释放时间"`
	ReleaseReason  string     `gorm:"size:20;comment:释放原因"`
	ReleasedByID   string     `gorm:"size:64;comment:释放人"`
	CreatedAt      time.Time  `gorm:"comment:创建时间"`
}

// TableName 指定表名
func (HoldModel) TableName() string {
	return "inventory_holds"
}

// BookingModel 预订
type BookingModel struct {
	ID             string     `gorm:"primaryKey;size:36"`
	Reference      string     `gorm:"uniqueIndex;size:20;not null;comment:预订号"`
	TenantID       string     `gorm:"index:idx_booking_departure,priority:1;size:64;not null;comment:租户ID"`
	ResourceID     string     `gorm:"size:36;not null;comment:产品资源ID"`
	DepartureID    string     `gorm:"index:idx_booking_departure,priority:2;size:36;not null;comment:团期ID"`
	HoldID         string     `gorm:"size:36;comment:占座ID(确认后清空)"`
	Source         string     `gorm:"size:20;not null;comment:渠道"`
	SourcePlatform string     `gorm:"size:50;comment:来源平台"`
	ExternalRef    string     `gorm:"size:100;comment:外部订单号"`
	StartDate      time.Time  `gorm:"not null;comment:出发日期"`
	EndDate        time.Time  `gorm:"not null;comment:结束日期"`
	GuestName      string     `gorm:"size:100;not null;comment:客人姓名"`
	GuestEmail     string     `gorm:"size:100;comment:客人邮箱"`
	GuestPhone     string     `gorm:"size:30;comment:客人电话"`
	GuestCount     int        `gorm:"not null;comment:出行人数"`
	BaseAmount     int64      `gorm:"not null;comment:基础金额(分)"`
	TotalAmount    int64      `gorm:"not null;comment:总金额(分)"`
	Status         string     `gorm:"index:idx_booking_departure,priority:3;size:20;not null;comment:预订状态"`
	CreatedByID    string     `gorm:"size:64;comment:创建人"`
	Notes          string     `gorm:"type:text;comment:备注"`
	ConfirmedAt    *time.Time `gorm:"comment:确认时间"`
	CancelledAt    *time.Time `gorm:"comment:取消时间"`
	CancelReason   string     `gorm:"size:255;comment:取消原因"`
	CancelledByID  string     `gorm:"size:64;comment:取消人"`
	CreatedAt      time.Time  `gorm:"index;comment:创建时间"`
	UpdatedAt      time.Time  `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (BookingModel) TableName() string {
	return "bookings"
}

// WaitlistEntryModel 候补登记
type WaitlistEntryModel struct {
	ID          string    `gorm:"primaryKey;size:36"`
	TenantID    string    `gorm:"index:idx_waitlist_departure,priority:1;size:64;not null;comment:租户ID"`
	DepartureID string    `gorm:"index:idx_waitlist_departure,priority:2;size:36;not null;comment:团期ID"`
	Seats       int       `gorm:"not null;comment:候补座位数"`
	ContactName string    `gorm:"size:100;comment:联系人"`
	Contact     string    `gorm:"size:100;not null;comment:邮箱或电话"`
	CreatedAt   time.Time `gorm:"comment:登记时间"`
}

// TableName 指定表名
func (WaitlistEntryModel) TableName() string {
	return "waitlist_entries"
}
