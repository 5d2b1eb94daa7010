package dto

import (
	"fmt"
	"time"
)

// 时间格式
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = time.RFC3339
)

// FormatTime 格式化时间(UTC,RFC3339)
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateTimeLayout)
}

// FormatTimePtr 格式化可空时间
func FormatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}

// FormatPriceYuan 格式化价格(分→元)
// 例如:129900分 → "1299.00"
func FormatPriceYuan(priceFen int64) string {
	return fmt.Sprintf("%.2f", float64(priceFen)/100.0)
}

// PageRequest 分页参数
type PageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1" example:"1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100" example:"20"`
}
