package hold

import (
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// 占座领域错误定义
var (
	// ErrHoldNotFound 占座不存在
	ErrHoldNotFound = apperrors.New(apperrors.ErrCodeHoldNotFound, "占座记录不存在")

	// ErrInvalidSource 未知的占座来源
	ErrInvalidSource = apperrors.New(apperrors.ErrCodeInvalidParams, "未知的占座来源")

	// ErrInvalidExtension 延期时长不合法
	ErrInvalidExtension = apperrors.New(apperrors.ErrCodeInvalidParams, "延期分钟数必须大于0")
)
