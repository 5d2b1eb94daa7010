package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	appbooking "github.com/xiebiao/tripbooking/internal/application/booking"
	"github.com/xiebiao/tripbooking/internal/domain/booking"
	"github.com/xiebiao/tripbooking/internal/interface/http/dto"
	"github.com/xiebiao/tripbooking/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
	"github.com/xiebiao/tripbooking/pkg/response"
)

// BookingHandler 预订HTTP处理器
type BookingHandler struct {
	orchestrator *appbooking.Orchestrator
}

// NewBookingHandler 创建预订处理器
func NewBookingHandler(orchestrator *appbooking.Orchestrator) *BookingHandler {
	return &BookingHandler{orchestrator: orchestrator}
}

// InitiateBooking 发起预订
// @Summary      发起预订
// @Description  所有渠道共用入口:可用性检查 → 占座 → 计价 → 写入HELD预订
// @Tags         预订
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        request body dto.InitiateBookingRequest true "预订信息"
// @Success      201 {object} response.Response{data=appbooking.InitResult}
// @Failure      409 {object} response.Response{data=appbooking.InitResult} "余位不足"
// @Failure      422 {object} response.Response{data=appbooking.InitResult} "客人信息不完整"
// @Router       /api/v1/bookings/initiate [post]
func (h *BookingHandler) InitiateBooking(c *gin.Context) {
	var req dto.InitiateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.ErrBindError.WithMessage("参数错误: "+err.Error()))
		return
	}

	result, err := h.orchestrator.InitiateBooking(c.Request.Context(), appbooking.InitiateBookingCommand{
		TenantID:         middleware.GetTenantID(c),
		DepartureID:      req.DepartureID,
		Source:           booking.Source(req.Source),
		SourcePlatform:   req.SourcePlatform,
		ExternalRef:      req.ExternalRef,
		GuestName:        req.GuestName,
		GuestEmail:       req.GuestEmail,
		GuestPhone:       req.GuestPhone,
		ParticipantCount: req.ParticipantCount,
		CreatedByID:      middleware.GetActorID(c),
		SessionID:        req.SessionID,
		Notes:            req.Notes,
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

// ConfirmBooking 确认预订(支付回调)
// @Summary      确认预订
// @Description  重复确认直接返回成功;占座已过期时确认照常完成;hold_id必须是预订自己的占座
// @Tags         预订
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "预订ID"
// @Param        request body dto.ConfirmBookingRequest false "占座ID"
// @Success      200 {object} response.Response{data=appbooking.ActionResult}
// @Failure      401 {object} response.Response "未登录"
// @Failure      403 {object} response.Response "非支付账号或员工"
// @Failure      404 {object} response.Response "预订不存在"
// @Failure      422 {object} response.Response{data=appbooking.ActionResult} "当前状态不允许确认或占座不属于该预订"
// @Router       /api/v1/bookings/{id}/confirm [post]
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	var req dto.ConfirmBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperrors.ErrBindError.WithMessage("参数错误: "+err.Error()))
			return
		}
	}

	result, err := h.orchestrator.ConfirmBooking(c.Request.Context(), appbooking.ConfirmBookingCommand{
		TenantID:  middleware.GetTenantID(c),
		BookingID: c.Param("id"),
		HoldID:    req.HoldID,
		ActorID:   middleware.GetActorID(c),
	})
	h.respondAction(c, result, err)
}

// CancelBooking 取消预订
// @Summary      取消预订
// @Description  座位的释放由booking.cancelled事件的消费方异步完成
// @Tags         预订
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "预订ID"
// @Param        request body dto.CancelBookingRequest false "取消原因"
// @Success      200 {object} response.Response{data=appbooking.ActionResult}
// @Failure      401 {object} response.Response "未登录"
// @Failure      404 {object} response.Response "预订不存在"
// @Failure      422 {object} response.Response{data=appbooking.ActionResult} "已取消或已结束"
// @Router       /api/v1/bookings/{id}/cancel [post]
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req dto.CancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperrors.ErrBindError.WithMessage("参数错误: "+err.Error()))
			return
		}
	}

	result, err := h.orchestrator.CancelBooking(c.Request.Context(), appbooking.CancelBookingCommand{
		TenantID:  middleware.GetTenantID(c),
		BookingID: c.Param("id"),
		Reason:    req.Reason,
		ActorID:   middleware.GetActorID(c),
	})
	h.respondAction(c, result, err)
}

// GetBooking 预订详情
// @Summary      预订详情
// @Tags         预订
// @Produce      json
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "预订ID"
// @Success      200 {object} response.Response{data=dto.BookingResponse}
// @Failure      404 {object} response.Response "预订不存在"
// @Router       /api/v1/bookings/{id} [get]
func (h *BookingHandler) GetBooking(c *gin.Context) {
	b, err := h.orchestrator.GetBooking(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToBookingResponse(b))
}

// ListBookingsByDeparture 团期下的预订
// @Summary      团期预订列表
// @Tags         预订管理
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "团期ID"
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页数量" default(20)
// @Success      200 {object} response.Response{data=response.PageData}
// @Router       /api/v1/inventory/departures/{id}/bookings [get]
func (h *BookingHandler) ListBookingsByDeparture(c *gin.Context) {
	var page dto.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, apperrors.ErrBindError.WithMessage("参数错误: "+err.Error()))
		return
	}
	if page.Page <= 0 {
		page.Page = 1
	}
	if page.PageSize <= 0 {
		page.PageSize = 20
	}

	list, total, err := h.orchestrator.ListBookingsByDeparture(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), page.Page, page.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.BookingResponse, 0, len(list))
	for _, b := range list {
		items = append(items, dto.ToBookingResponse(b))
	}
	response.SuccessWithPage(c, items, total, page.Page, page.PageSize)
}

// StartPayment 进入待支付
// @Summary      进入待支付
// @Tags         预订生命周期
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "预订ID"
// @Success      200 {object} response.Response{data=appbooking.ActionResult}
// @Router       /api/v1/bookings/{id}/payment-started [post]
func (h *BookingHandler) StartPayment(c *gin.Context) {
	h.advance(c, h.orchestrator.StartPayment)
}

// MarkPaymentUncertain 支付结果未知
// @Summary      标记支付结果未知
// @Tags         预订生命周期
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "预订ID"
// @Success      200 {object} response.Response{data=appbooking.ActionResult}
// @Router       /api/v1/bookings/{id}/payment-uncertain [post]
func (h *BookingHandler) MarkPaymentUncertain(c *gin.Context) {
	h.advance(c, h.orchestrator.MarkPaymentUncertain)
}

// RequestApproval 提交审批
// @Summary      提交审批
// @Tags         预订生命周期
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "预订ID"
// @Success      200 {object} response.Response{data=appbooking.ActionResult}
// @Router       /api/v1/bookings/{id}/request-approval [post]
func (h *BookingHandler) RequestApproval(c *gin.Context) {
	h.advance(c, h.orchestrator.RequestApproval)
}

// Approve 审批通过
// @Summary      审批通过
// @Description  预订转为CONFIRMED并消耗占座
// @Tags         预订生命周期
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "预订ID"
// @Success      200 {object} response.Response{data=appbooking.ActionResult}
// @Router       /api/v1/bookings/{id}/approve [post]
func (h *BookingHandler) Approve(c *gin.Context) {
	h.advanceAs(c, h.orchestrator.Approve)
}

// Refund 退款
// @Summary      退款
// @Tags         预订生命周期
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "预订ID"
// @Success      200 {object} response.Response{data=appbooking.ActionResult}
// @Router       /api/v1/bookings/{id}/refund [post]
func (h *BookingHandler) Refund(c *gin.Context) {
	h.advanceAs(c, h.orchestrator.Refund)
}

// MarkNoShow 未出行
// @Summary      标记未出行
// @Tags         预订生命周期
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "预订ID"
// @Success      200 {object} response.Response{data=appbooking.ActionResult}
// @Router       /api/v1/bookings/{id}/no-show [post]
func (h *BookingHandler) MarkNoShow(c *gin.Context) {
	h.advance(c, h.orchestrator.MarkNoShow)
}

// Complete 行程结束
// @Summary      标记已完成
// @Tags         预订生命周期
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "预订ID"
// @Success      200 {object} response.Response{data=appbooking.ActionResult}
// @Router       /api/v1/bookings/{id}/complete [post]
func (h *BookingHandler) Complete(c *gin.Context) {
	h.advance(c, h.orchestrator.Complete)
}

type advanceFunc func(ctx context.Context, tenantID, bookingID string) (*appbooking.ActionResult, error)

type advanceAsFunc func(ctx context.Context, tenantID, bookingID, actorID string) (*appbooking.ActionResult, error)

func (h *BookingHandler) advance(c *gin.Context, fn advanceFunc) {
	result, err := fn(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	h.respondAction(c, result, err)
}

func (h *BookingHandler) advanceAs(c *gin.Context, fn advanceAsFunc) {
	result, err := fn(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), middleware.GetActorID(c))
	h.respondAction(c, result, err)
}

func (h *BookingHandler) respondAction(c *gin.Context, result *appbooking.ActionResult, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Success {
		response.Result(c, result.ErrorCode, result.ErrorMessage, result)
		return
	}
	response.Success(c, result)
}
