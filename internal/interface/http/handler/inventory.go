package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	appinventory "github.com/xiebiao/tripbooking/internal/application/inventory"
	"github.com/xiebiao/tripbooking/internal/domain/departure"
	"github.com/xiebiao/tripbooking/internal/interface/http/dto"
	"github.com/xiebiao/tripbooking/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
	"github.com/xiebiao/tripbooking/pkg/response"
)

// InventoryHandler 团期库存HTTP处理器
type InventoryHandler struct {
	inventory *appinventory.Service
}

// NewInventoryHandler 创建库存处理器
func NewInventoryHandler(inventory *appinventory.Service) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

// GetState 单个团期的库存视图
// @Summary      团期库存视图
// @Description  实时计算:已确认座位、有效占座、可售与可订座位、按渠道统计
// @Tags         库存
// @Produce      json
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "团期ID"
// @Success      200 {object} response.Response{data=inventory.State}
// @Failure      404 {object} response.Response "团期不存在"
// @Router       /api/v1/inventory/departures/{id} [get]
func (h *InventoryHandler) GetState(c *gin.Context) {
	state, err := h.inventory.GetState(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, state)
}

// GetStates 批量查询库存视图
// @Summary      批量库存视图
// @Description  优先读缓存,不存在的团期直接忽略;单次最多100个
// @Tags         库存
// @Produce      json
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        ids query string true "团期ID,逗号分隔"
// @Success      200 {object} response.Response{data=[]inventory.State}
// @Failure      400 {object} response.Response "参数错误"
// @Router       /api/v1/inventory/departures [get]
func (h *InventoryHandler) GetStates(c *gin.Context) {
	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		response.Error(c, apperrors.ErrInvalidParams.WithMessage("ids不能为空"))
		return
	}

	states, err := h.inventory.GetStates(c.Request.Context(), middleware.GetTenantID(c), ids)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, states)
}

// CheckAvailability 可用性检查
// @Summary      可用性检查
// @Description  直接读库的快照,最终以占座结果为准
// @Tags         库存
// @Produce      json
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "团期ID"
// @Param        seats query int false "座位数" default(1)
// @Success      200 {object} response.Response{data=appinventory.Availability}
// @Failure      404 {object} response.Response "团期不存在"
// @Router       /api/v1/inventory/departures/{id}/availability [get]
func (h *InventoryHandler) CheckAvailability(c *gin.Context) {
	seats, err := strconv.Atoi(c.DefaultQuery("seats", "1"))
	if err != nil {
		response.Error(c, apperrors.ErrInvalidParams.WithMessage("seats必须是整数"))
		return
	}

	result, err := h.inventory.CheckAvailability(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), seats)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CreateDeparture 创建团期
// @Summary      创建团期
// @Tags         团期管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        request body dto.CreateDepartureRequest true "团期信息"
// @Success      201 {object} response.Response{data=dto.DepartureResponse}
// @Failure      400 {object} response.Response "参数错误"
// @Failure      409 {object} response.Response "该产品在此日期已有团期"
// @Router       /api/v1/inventory/departures [post]
func (h *InventoryHandler) CreateDeparture(c *gin.Context) {
	var req dto.CreateDepartureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.ErrBindError.WithMessage("参数错误: "+err.Error()))
		return
	}
	date, err := time.Parse(dto.DateLayout, req.DepartureDate)
	if err != nil {
		response.Error(c, apperrors.ErrInvalidParams.WithMessage("departure_date格式应为YYYY-MM-DD"))
		return
	}

	d, err := h.inventory.CreateDeparture(c.Request.Context(), appinventory.CreateDepartureCommand{
		TenantID:         middleware.GetTenantID(c),
		ResourceID:       req.ResourceID,
		DepartureDate:    date,
		TotalCapacity:    req.TotalCapacity,
		BlockedSeats:     req.BlockedSeats,
		OverbookingLimit: req.OverbookingLimit,
		MinParticipants:  req.MinParticipants,
		IsGuaranteed:     req.IsGuaranteed,
		PriceOverride:    req.PriceOverride,
		OpenForSale:      req.OpenForSale,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToDepartureResponse(d))
}

// UpdateCapacity 调整团期容量
// @Summary      调整容量
// @Description  乐观锁:expected_version不匹配返回409;新容量低于已占用座位时拒绝
// @Tags         团期管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "团期ID"
// @Param        request body dto.UpdateCapacityRequest true "容量参数"
// @Success      200 {object} response.Response{data=dto.DepartureResponse}
// @Failure      409 {object} response.Response "版本冲突或容量低于已占用座位"
// @Router       /api/v1/inventory/departures/{id}/capacity [patch]
func (h *InventoryHandler) UpdateCapacity(c *gin.Context) {
	var req dto.UpdateCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.ErrBindError.WithMessage("参数错误: "+err.Error()))
		return
	}

	d, err := h.inventory.UpdateCapacity(c.Request.Context(), appinventory.UpdateCapacityCommand{
		TenantID:         middleware.GetTenantID(c),
		DepartureID:      c.Param("id"),
		ExpectedVersion:  req.ExpectedVersion,
		TotalCapacity:    req.TotalCapacity,
		BlockedSeats:     req.BlockedSeats,
		OverbookingLimit: req.OverbookingLimit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDepartureResponse(d))
}

// ChangeStatus 变更团期状态
// @Summary      变更团期状态
// @Tags         团期管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "团期ID"
// @Param        request body dto.ChangeStatusRequest true "目标状态"
// @Success      200 {object} response.Response{data=dto.DepartureResponse}
// @Failure      409 {object} response.Response "版本冲突或非法流转"
// @Router       /api/v1/inventory/departures/{id}/status [patch]
func (h *InventoryHandler) ChangeStatus(c *gin.Context) {
	var req dto.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.ErrBindError.WithMessage("参数错误: "+err.Error()))
		return
	}

	d, err := h.inventory.ChangeStatus(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), req.ExpectedVersion, departure.Status(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToDepartureResponse(d))
}

// JoinWaitlist 登记候补
// @Summary      登记候补
// @Tags         库存
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "租户ID"
// @Param        id path string true "团期ID"
// @Param        request body dto.JoinWaitlistRequest true "候补信息"
// @Success      201 {object} response.Response
// @Failure      404 {object} response.Response "团期不存在"
// @Router       /api/v1/inventory/departures/{id}/waitlist [post]
func (h *InventoryHandler) JoinWaitlist(c *gin.Context) {
	var req dto.JoinWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.ErrBindError.WithMessage("参数错误: "+err.Error()))
		return
	}

	entry, err := h.inventory.JoinWaitlist(c.Request.Context(), appinventory.JoinWaitlistCommand{
		TenantID:    middleware.GetTenantID(c),
		DepartureID: c.Param("id"),
		Seats:       req.Seats,
		ContactName: req.ContactName,
		Contact:     req.Contact,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{
		"id":           entry.ID,
		"departure_id": entry.DepartureID,
		"seats":        entry.Seats,
		"created_at":   dto.FormatTime(entry.CreatedAt),
	})
}
