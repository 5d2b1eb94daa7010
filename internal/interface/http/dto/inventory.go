package dto

import (
	"github.com/xiebiao/tripbooking/internal/domain/departure"
)

// CreateDepartureRequest 创建团期请求
type CreateDepartureRequest struct {
	ResourceID       string `json:"resource_id" binding:"required" example:"res-huangshan-3d"`
	DepartureDate    string `json:"departure_date" binding:"required" example:"2026-05-01"`
	TotalCapacity    int    `json:"total_capacity" binding:"min=0" example:"40"`
	BlockedSeats     int    `json:"blocked_seats" binding:"min=0" example:"2"`
	OverbookingLimit int    `json:"overbooking_limit" binding:"min=0" example:"0"`
	MinParticipants  int    `json:"min_participants" binding:"min=0" example:"10"`
	IsGuaranteed     bool   `json:"is_guaranteed" example:"false"`
	PriceOverride    *int64 `json:"price_override,omitempty" example:"119900"` // 分
	OpenForSale      bool   `json:"open_for_sale" example:"true"`
}

// UpdateCapacityRequest 容量调整请求(缺省字段不修改)
type UpdateCapacityRequest struct {
	ExpectedVersion  int64 `json:"expected_version" binding:"required,min=1" example:"3"`
	TotalCapacity    *int  `json:"total_capacity,omitempty" example:"45"`
	BlockedSeats     *int  `json:"blocked_seats,omitempty" example:"2"`
	OverbookingLimit *int  `json:"overbooking_limit,omitempty" example:"3"`
}

// ChangeStatusRequest 团期状态变更请求
type ChangeStatusRequest struct {
	ExpectedVersion int64  `json:"expected_version" binding:"required,min=1" example:"3"`
	Status          string `json:"status" binding:"required,oneof=OPEN LIMITED WAITLIST CLOSED CANCELLED COMPLETED" example:"CLOSED"`
}

// JoinWaitlistRequest 候补登记请求
type JoinWaitlistRequest struct {
	Seats       int    `json:"seats" binding:"required,min=1" example:"2"`
	ContactName string `json:"contact_name" binding:"max=100" example:"张三"`
	Contact     string `json:"contact" binding:"required,max=200" example:"zhangsan@example.com"`
}

// DepartureResponse 团期详情
type DepartureResponse struct {
	ID               string `json:"id"`
	ResourceID       string `json:"resource_id"`
	DepartureDate    string `json:"departure_date" example:"2026-05-01"`
	TotalCapacity    int    `json:"total_capacity" example:"40"`
	BlockedSeats     int    `json:"blocked_seats" example:"2"`
	OverbookingLimit int    `json:"overbooking_limit" example:"0"`
	MinParticipants  int    `json:"min_participants" example:"10"`
	Status           string `json:"status" example:"OPEN"`
	IsGuaranteed     bool   `json:"is_guaranteed"`
	PriceOverride    *int64 `json:"price_override,omitempty"`
	Version          int64  `json:"version" example:"1"`
	UpdatedAt        string `json:"updated_at"`
}

// ToDepartureResponse 实体 → 响应
func ToDepartureResponse(d *departure.Departure) DepartureResponse {
	return DepartureResponse{
		ID:               d.ID,
		ResourceID:       d.ResourceID,
		DepartureDate:    d.DepartureDate.Format(DateLayout),
		TotalCapacity:    d.TotalCapacity,
		BlockedSeats:     d.BlockedSeats,
		OverbookingLimit: d.OverbookingLimit,
		MinParticipants:  d.MinParticipants,
		Status:           string(d.Status),
		IsGuaranteed:     d.IsGuaranteed,
		PriceOverride:    d.PriceOverride,
		Version:          d.Version,
		UpdatedAt:        FormatTime(d.UpdatedAt),
	}
}
