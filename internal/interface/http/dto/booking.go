package dto

import (
	"github.com/xiebiao/tripbooking/internal/domain/booking"
)

// InitiateBookingRequest 发起预订请求
// 所有渠道使用同一个请求体,差别只在source
type InitiateBookingRequest struct {
	DepartureID      string `json:"departure_id" binding:"required" example:"5f0c6f1e-3c1d-4a57-9d43-1f3a0b0e7d11"`
	Source           string `json:"source" binding:"required" example:"DIRECT"`
	SourcePlatform   string `json:"source_platform" binding:"max=64" example:"ctrip"`
	ExternalRef      string `json:"external_ref" binding:"max=128" example:"CT-20260315-0001"`
	GuestName        string `json:"guest_name" example:"李四"`
	GuestEmail       string `json:"guest_email" binding:"omitempty,email" example:"lisi@example.com"`
	GuestPhone       string `json:"guest_phone" binding:"max=32" example:"13800000000"`
	ParticipantCount int    `json:"participant_count" example:"2"`
	SessionID        string `json:"session_id" binding:"max=128"`
	Notes            string `json:"notes" binding:"max=2000"`
}

// ConfirmBookingRequest 确认预订请求
// hold_id可选,传入时必须是预订记录上的占座
type ConfirmBookingRequest struct {
	HoldID string `json:"hold_id"`
}

// CancelBookingRequest 取消预订请求
type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"max=500" example:"客人行程变更"`
}

// BookingResponse 预订详情
type BookingResponse struct {
	ID             string `json:"id"`
	Reference      string `json:"reference" example:"BK260315123456"`
	DepartureID    string `json:"departure_id"`
	ResourceID     string `json:"resource_id"`
	HoldID         string `json:"hold_id,omitempty"`
	Source         string `json:"source" example:"DIRECT"`
	SourcePlatform string `json:"source_platform,omitempty"`
	ExternalRef    string `json:"external_ref,omitempty"`
	StartDate      string `json:"start_date" example:"2026-05-01"`
	EndDate        string `json:"end_date" example:"2026-05-03"`
	GuestName      string `json:"guest_name"`
	GuestEmail     string `json:"guest_email,omitempty"`
	GuestPhone     string `json:"guest_phone,omitempty"`
	GuestCount     int    `json:"guest_count" example:"2"`
	TotalAmount    int64  `json:"total_amount" example:"259800"`
	TotalYuan      string `json:"total_yuan" example:"2598.00"`
	Status         string `json:"status" example:"HELD"`
	CreatedByID    string `json:"created_by_id,omitempty"`
	ConfirmedAt    string `json:"confirmed_at,omitempty"`
	CancelledAt    string `json:"cancelled_at,omitempty"`
	CancelReason   string `json:"cancel_reason,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// ToBookingResponse 实体 → 响应
func ToBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:             b.ID,
		Reference:      b.Reference,
		DepartureID:    b.DepartureID,
		ResourceID:     b.ResourceID,
		HoldID:         b.HoldID,
		Source:         string(b.Source),
		SourcePlatform: b.SourcePlatform,
		ExternalRef:    b.ExternalRef,
		StartDate:      b.StartDate.Format(DateLayout),
		EndDate:        b.EndDate.Format(DateLayout),
		GuestName:      b.GuestName,
		GuestEmail:     b.GuestEmail,
		GuestPhone:     b.GuestPhone,
		GuestCount:     b.GuestCount,
		TotalAmount:    b.TotalAmount,
		TotalYuan:      FormatPriceYuan(b.TotalAmount),
		Status:         string(b.Status),
		CreatedByID:    b.CreatedByID,
		ConfirmedAt:    FormatTimePtr(b.ConfirmedAt),
		CancelledAt:    FormatTimePtr(b.CancelledAt),
		CancelReason:   b.CancelReason,
		CreatedAt:      FormatTime(b.CreatedAt),
		UpdatedAt:      FormatTime(b.UpdatedAt),
	}
}
