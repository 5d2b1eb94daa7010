package handler

import (
	"github.com/gin-gonic/gin"

	apphold "github.com/xiebiao/tripbooking/internal/application/hold"
	"github.com/xiebiao/tripbooking/internal/domain/hold"
	"github.com/xiebiao/tripbooking/internal/interface/http/dto"
	"github.com/xiebiao/tripbooking/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
	"github.com/xiebiao/tripbooking/pkg/response"
)

// HoldHandler 占座HTTP处理器
type HoldHandler struct {
	holds *apphold.Service
}

// NewHoldHandler 创建占座处理器
func NewHoldHandler(holds *apphold.Service) *HoldHandler {
	return &HoldHandler{holds: holds}
}

// CreateHold 创建占座
// @Summary      创建占座
// @Description  原子占座:余位不足时返回409和当前可订座位数
// @Tags         占座
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        request body dto.CreateHoldRequest true "占座信息"
// @Success      201 {object} response.Response{data=apphold.CreateHoldResult}
// @Failure      404 {object} response.Response{data=apphold.CreateHoldResult} "团期不存在"
// @Failure      409 {object} response.Response{data=apphold.CreateHoldResult} "余位不足"
// @Failure      422 {object} response.Response{data=apphold.CreateHoldResult} "座位数或占座类型不合法"
// @Router       /api/v1/inventory/holds [post]
func (h *HoldHandler) CreateHold(c *gin.Context) {
	var req dto.CreateHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.ErrBindError.WithMessage("参数错误: "+err.Error()))
		return
	}

	result, err := h.holds.CreateHold(c.Request.Context(), apphold.CreateHoldCommand{
		TenantID:       middleware.GetTenantID(c),
		DepartureID:    req.DepartureID,
		SeatCount:      req.SeatCount,
		Source:         hold.Source(req.Source),
		SourcePlatform: req.SourcePlatform,
		HoldType:       hold.Type(req.HoldType),
		CreatedByID:    middleware.GetActorID(c),
		SessionID:      req.SessionID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Success {
		response.Result(c, result.ErrorCode, result.ErrorMessage, result)
		return
	}
	response.Created(c, result)
}

// ExtendHold 延长占座
// @Summary      延长占座
// @Description  单次延长不超过配置上限;已过期的占座返回extended=false
// @Tags         占座
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "占座ID"
// @Param        request body dto.ExtendHoldRequest true "延长分钟数"
// @Success      200 {object} response.Response{data=apphold.ExtendResult}
// @Failure      404 {object} response.Response "占座不存在"
// @Router       /api/v1/inventory/holds/{id}/extend [patch]
func (h *HoldHandler) ExtendHold(c *gin.Context) {
	var req dto.ExtendHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.ErrBindError.WithMessage("参数错误: "+err.Error()))
		return
	}

	result, err := h.holds.ExtendHold(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), req.AdditionalMinutes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ReleaseHold 主动释放占座
// @Summary      释放占座
// @Description  幂等:已释放或已过期的占座返回released=false
// @Tags         占座
// @Produce      json
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "占座ID"
// @Success      200 {object} response.Response
// @Failure      404 {object} response.Response "占座不存在"
// @Router       /api/v1/inventory/holds/{id} [delete]
func (h *HoldHandler) ReleaseHold(c *gin.Context) {
	released, err := h.holds.ReleaseHold(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), hold.ReasonUserReleased, middleware.GetActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"released": released})
}

// GetActiveHolds 团期的有效占座
// @Summary      团期有效占座
// @Tags         占座
// @Produce      json
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "团期ID"
// @Success      200 {object} response.Response{data=[]dto.HoldResponse}
// @Failure      404 {object} response.Response "团期不存在"
// @Router       /api/v1/inventory/departures/{id}/holds [get]
func (h *HoldHandler) GetActiveHolds(c *gin.Context) {
	holds, err := h.holds.GetActiveHolds(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	list := make([]dto.HoldResponse, 0, len(holds))
	for _, item := range holds {
		list = append(list, dto.ToHoldResponse(item, item.Status))
	}
	response.Success(c, list)
}
