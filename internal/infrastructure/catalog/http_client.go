// Package catalog 产品资源目录的远程适配器(catalog.mode=http)
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/xiebiao/tripbooking/internal/domain/catalog"
	"github.com/xiebiao/tripbooking/pkg/circuitbreaker"
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// resourceResponse 目录服务返回体
//
//	GET {base_url}/api/v1/resources/{id}
//	X-Tenant-ID: {tenant_id}
type resourceResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		ID           string `json:"id"`
		TenantID     string `json:"tenant_id"`
		Name         string `json:"name"`
		BasePrice    int64  `json:"base_price"`
		Currency     string `json:"currency"`
		DurationDays int    `json:"duration_days"`
	} `json:"data"`
}

// HTTPClient 远程目录客户端
//
// 设计说明:
// 1. resty不做自动重试,失败统计交给熔断器
// 2. 404视为业务结果(资源不存在),不计入熔断失败
// 3. 其他非2xx、超时、解析失败计入熔断失败
type HTTPClient struct {
	client  *resty.Client
	breaker *circuitbreaker.Breaker
	log     logrus.FieldLogger
}

// NewHTTPClient 创建目录客户端
func NewHTTPClient(baseURL string, timeout time.Duration, breaker *circuitbreaker.Breaker, log logrus.FieldLogger) *HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &HTTPClient{
		client:  client,
		breaker: breaker,
		log:     log.WithField("component", "catalog_client"),
	}
}

// FindResource 实现catalog.Catalog
func (c *HTTPClient) FindResource(ctx context.Context, tenantID, resourceID string) (*catalog.Resource, error) {
	var (
		result   resourceResponse
		notFound bool
	)

	err := c.breaker.Execute(func() error {
		resp, err := c.client.R().
			SetContext(ctx).
			SetHeader("X-Tenant-ID", tenantID).
			SetPathParam("id", resourceID).
			SetResult(&result).
			Get("/api/v1/resources/{id}")
		if err != nil {
			return fmt.Errorf("请求目录服务失败: %w", err)
		}

		switch {
		case resp.StatusCode() == http.StatusNotFound:
			notFound = true
			return nil
		case resp.IsError():
			return fmt.Errorf("目录服务返回状态码%d: %s", resp.StatusCode(), resp.String())
		}
		return nil
	})
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"tenant_id":   tenantID,
			"resource_id": resourceID,
		}).Warn("查询产品资源失败")
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.WrapCode(err, apperrors.ErrCodeUpstreamError, "产品目录服务错误")
	}

	if notFound || result.Data == nil {
		return nil, catalog.ErrResourceNotFound
	}

	return &catalog.Resource{
		ID:           result.Data.ID,
		TenantID:     tenantID,
		Name:         result.Data.Name,
		BasePrice:    result.Data.BasePrice,
		Currency:     result.Data.Currency,
		DurationDays: result.Data.DurationDays,
	}, nil
}
