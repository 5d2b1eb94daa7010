package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// LoggerKey 请求级日志Entry在gin.Context中的键(由RequestLogger中间件写入)
const LoggerKey = "logger"

// Response 统一响应结构
// 设计说明：
// 1. Code是业务错误码（非HTTP状态码），0表示成功
// 2. ErrorCode是结构化结果的字符串错误码(如NO_AVAILABILITY)，客户端据此分支
// 3. Data是业务数据；结构化失败时也会带上结果体(例如剩余座位数)
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	ErrorCode string      `json:"error_code,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Success 成功响应（Code=0表示成功）
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应(201)
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应（自动处理AppError）
// 用法：
//
//	result, err := holdService.CreateHold(...)
//	if err != nil {
//	    response.Error(c, err)
//	    return
//	}
//
// 基础设施错误(5xxxx)记录完整的内部错误，客户端只看到友好提示
func Error(c *gin.Context, err error) {
	appErr := apperrors.GetAppError(err)
	status := appErr.HTTPStatus()

	if status >= http.StatusInternalServerError {
		entryFrom(c).WithError(err).WithField("code", appErr.Code).Error("请求处理失败")
	} else if appErr.Err != nil {
		entryFrom(c).WithError(appErr.Err).WithField("code", appErr.Code).Warn("请求被拒绝")
	}

	c.JSON(status, Response{
		Code:    appErr.Code,
		Message: appErr.Message,
	})
}

// ErrorWithCode 自定义错误码和消息
func ErrorWithCode(c *gin.Context, code int, message string) {
	c.JSON(apperrors.HTTPStatus(code), Response{
		Code:    code,
		Message: message,
	})
}

// Fail 结构化的业务失败(客户端可纠正)
// 例如占座失败时返回409,data中携带availableSeats,前端可据此提示"仅剩N座"
func Fail(c *gin.Context, status int, code int, errorCode, message string, data interface{}) {
	c.JSON(status, Response{
		Code:      code,
		Message:   message,
		ErrorCode: errorCode,
		Data:      data,
	})
}

// resultStatus 结构化结果码 → HTTP状态码与业务错误码
// 未登记的结果码按422处理
var resultStatus = map[string]struct {
	status int
	code   int
}{
	"NO_AVAILABILITY":           {http.StatusConflict, apperrors.ErrCodeConflict},
	"DEPARTURE_NOT_FOUND":       {http.StatusNotFound, apperrors.ErrCodeDepartureNotFound},
	"HOLD_NOT_FOUND":            {http.StatusNotFound, apperrors.ErrCodeHoldNotFound},
	"BOOKING_NOT_FOUND":         {http.StatusNotFound, apperrors.ErrCodeBookingNotFound},
	"RESOURCE_NOT_FOUND":        {http.StatusNotFound, apperrors.ErrCodeResourceNotFound},
	"INVALID_STATUS_TRANSITION": {http.StatusUnprocessableEntity, apperrors.ErrCodeInvalidStatusTransition},
}

// Result 结构化结果的失败响应
//
//	NO_AVAILABILITY        → 409
//	*_NOT_FOUND            → 404
//	其他(INVALID_COUNT等)  → 422
//
// data为完整的结果体,客户端可以读取available_seats等字段
func Result(c *gin.Context, errorCode, message string, data interface{}) {
	status, code := http.StatusUnprocessableEntity, apperrors.ErrCodeBusinessError
	if m, ok := resultStatus[errorCode]; ok {
		status, code = m.status, m.code
	}
	Fail(c, status, code, errorCode, message, data)
}

func entryFrom(c *gin.Context) *logrus.Entry {
	if v, ok := c.Get(LoggerKey); ok {
		if entry, ok := v.(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// =========================================
// 分页响应结构
// =========================================

// PageData 分页数据封装
type PageData struct {
	List       interface{} `json:"list"`        // 数据列表
	Total      int64       `json:"total"`       // 总记录数
	Page       int         `json:"page"`        // 当前页码
	PageSize   int         `json:"page_size"`   // 每页大小
	TotalPages int         `json:"total_pages"` // 总页数
}

// NewPageData 创建分页数据
func NewPageData(list interface{}, total int64, page, pageSize int) *PageData {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize != 0 {
			totalPages++
		}
	}

	return &PageData{
		List:       list,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// SuccessWithPage 分页成功响应
func SuccessWithPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	Success(c, NewPageData(list, total, page, pageSize))
}
