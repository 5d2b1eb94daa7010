package dto

import (
	"github.com/xiebiao/tripbooking/internal/domain/hold"
)

// CreateHoldRequest 创建占座请求
// seat_count不做binding校验,非法值由占座服务返回INVALID_COUNT结果
type CreateHoldRequest struct {
	DepartureID    string `json:"departure_id" binding:"required" example:"5f0c6f1e-3c1d-4a57-9d43-1f3a0b0e7d11"`
	SeatCount      int    `json:"seat_count" example:"2"`
	Source         string `json:"source" binding:"required,oneof=WEBSITE OTA ADMIN MANUAL" example:"WEBSITE"`
	SourcePlatform string `json:"source_platform" binding:"max=64" example:"ctrip"`
	HoldType       string `json:"hold_type" binding:"required" example:"CART"`
	SessionID      string `json:"session_id" binding:"max=128" example:"sess-9f2c"`
}

// ExtendHoldRequest 延期请求
type ExtendHoldRequest struct {
	AdditionalMinutes int `json:"additional_minutes" binding:"required,min=1,max=10080" example:"10"`
}

// HoldResponse 占座详情
type HoldResponse struct {
	ID             string `json:"id"`
	DepartureID    string `json:"departure_id"`
	SeatCount      int    `json:"seat_count" example:"2"`
	Source         string `json:"source" example:"WEBSITE"`
	SourcePlatform string `json:"source_platform,omitempty"`
	HoldType       string `json:"hold_type" example:"CART"`
	Status         string `json:"status" example:"ACTIVE"`
	CreatedByID    string `json:"created_by_id,omitempty"`
	ExpiresAt      string `json:"expires_at" example:"2026-03-15T09:15:00Z"`
	CreatedAt      string `json:"created_at" example:"2026-03-15T09:00:00Z"`
}

// ToHoldResponse 实体 → 响应
func ToHoldResponse(h *hold.Hold, status hold.Status) HoldResponse {
	return HoldResponse{
		ID:             h.ID,
		DepartureID:    h.DepartureID,
		SeatCount:      h.SeatCount,
		Source:         string(h.Source),
		SourcePlatform: h.SourcePlatform,
		HoldType:       string(h.Type),
		Status:         string(status),
		CreatedByID:    h.CreatedByID,
		ExpiresAt:      FormatTime(h.ExpiresAt),
		CreatedAt:      FormatTime(h.CreatedAt),
	}
}
