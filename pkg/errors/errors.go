package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError 自定义应用错误
// 设计说明：
// 1. Code用于客户端判断错误类型（不要直接暴露HTTP状态码）
// 2. Message是用户友好的提示信息
// 3. Err是内部错误，仅记录到日志，不返回给客户端（防止泄露敏感信息）
type AppError struct {
	Code    int    `json:"code"`    // 业务错误码
	Message string `json:"message"` // 用户友好的错误提示
	Err     error  `json:"-"`       // 内部错误（不序列化）
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Is和errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较
// 预定义错误(如ErrVersionConflict)在传递过程中可能被WithMessage复制,
// 只要Code相同即视为同一种错误
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithMessage 复制错误并替换提示信息(保持错误码不变)
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{Code: e.Code, Message: message, Err: e.Err}
}

// HTTPStatus 错误码 → HTTP状态码
func (e *AppError) HTTPStatus() int {
	return HTTPStatus(e.Code)
}

// New 创建新的AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装系统错误（如数据库错误、网络错误）
// 用途：将底层错误转换为业务错误，隐藏实现细节
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// Wrapf 格式化包装错误
func Wrapf(err error, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// WrapCode 使用指定错误码包装底层错误
func WrapCode(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// =========================================
// 错误码定义
// =========================================
// 规范：
// - 4xxxx: 客户端错误（参数错误、业务规则校验失败）
// - 5xxxx: 服务端错误（数据库异常、外部服务调用失败）

const (
	// 系统级错误码（50000-50099）
	ErrCodeInternal        = 50000 // 内部错误
	ErrCodeDatabaseError   = 50001 // 数据库错误
	ErrCodeRedisError      = 50002 // Redis错误
	ErrCodeMessagingError  = 50003 // 消息队列错误
	ErrCodeUpstreamError   = 50004 // 外部服务(目录服务)错误
	ErrCodeUpstreamUnavail = 50300 // 外部服务熔断

	// 认证授权错误（40100-40199）
	ErrCodeUnauthorized   = 40100 // 未登录
	ErrCodeInvalidToken   = 40101 // Token无效
	ErrCodeTokenExpired   = 40102 // Token过期
	ErrCodeTokenRevoked   = 40103 // Token已吊销
	ErrCodeForbidden      = 40300 // 无权限
	ErrCodeTenantMismatch = 40301 // 租户不匹配

	// 资源错误（40400-40499）
	ErrCodeNotFound          = 40400 // 资源不存在(通用)
	ErrCodeDepartureNotFound = 40401 // 团期不存在
	ErrCodeHoldNotFound      = 40402 // 占座不存在
	ErrCodeBookingNotFound   = 40403 // 预订不存在
	ErrCodeResourceNotFound  = 40404 // 产品资源不存在

	// 冲突错误（40900-40999）
	ErrCodeConflict                = 40900 // 冲突(通用)
	ErrCodeVersionConflict         = 40901 // 版本冲突(乐观锁)
	ErrCodeDuplicateEntry          = 40902 // 重复记录
	ErrCodeInvalidStatusTransition = 40903 // 非法状态流转
	ErrCodeCapacityBelowUsage      = 40904 // 容量低于已占用座位

	// 业务规则与参数错误（40000-40099）
	ErrCodeBusinessError = 40000 // 业务错误(通用)
	ErrCodeInvalidParams = 40001 // 参数错误
	ErrCodeBindError     = 40002 // 参数绑定失败
	ErrCodeTenantMissing = 40003 // 缺少租户标识
)

// HTTPStatus 错误码映射到HTTP状态码
// 4xxxx按第二、三位区分大类,5xxxx统一500(熔断为503)
func HTTPStatus(code int) int {
	switch {
	case code == ErrCodeUpstreamUnavail:
		return http.StatusServiceUnavailable
	case code >= 50000:
		return http.StatusInternalServerError
	case code >= 40900:
		return http.StatusConflict
	case code >= 40400:
		return http.StatusNotFound
	case code >= 40300:
		return http.StatusForbidden
	case code >= 40100:
		return http.StatusUnauthorized
	case code >= 40000:
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}

// =========================================
// 预定义错误（避免每次都New）
// =========================================

var (
	// 系统错误
	ErrInternal      = New(ErrCodeInternal, "系统内部错误")
	ErrDatabaseError = New(ErrCodeDatabaseError, "数据库错误")
	ErrRedisError    = New(ErrCodeRedisError, "缓存服务错误")

	// 认证授权
	ErrUnauthorized   = New(ErrCodeUnauthorized, "请先登录")
	ErrInvalidToken   = New(ErrCodeInvalidToken, "无效的Token")
	ErrTokenExpired   = New(ErrCodeTokenExpired, "Token已过期")
	ErrTokenRevoked   = New(ErrCodeTokenRevoked, "Token已失效，请重新登录")
	ErrForbidden      = New(ErrCodeForbidden, "无权限访问")
	ErrTenantMismatch = New(ErrCodeTenantMismatch, "Token所属租户与请求租户不一致")

	// 通用
	ErrNotFound        = New(ErrCodeNotFound, "资源不存在")
	ErrVersionConflict = New(ErrCodeVersionConflict, "数据已被修改，请刷新后重试")
	ErrDuplicateEntry  = New(ErrCodeDuplicateEntry, "记录已存在")

	// 参数错误
	ErrInvalidParams = New(ErrCodeInvalidParams, "参数错误")
	ErrBindError     = New(ErrCodeBindError, "参数格式错误")
	ErrTenantMissing = New(ErrCodeTenantMissing, "缺少租户标识(X-Tenant-ID)")
)

// =========================================
// 辅助函数
// =========================================

// IsAppError 判断是否为AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError 提取AppError（如果不是AppError则包装成Internal错误）
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, "系统内部错误")
}

// IsClientError 是否为客户端可纠正的错误(4xxxx)
func IsClientError(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code >= 40000 && appErr.Code < 50000
}
