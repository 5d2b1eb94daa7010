package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/tripbooking/internal/domain/catalog"
	"github.com/xiebiao/tripbooking/pkg/circuitbreaker"
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

func newTestClient(t *testing.T, name string, handler http.HandlerFunc) (*HTTPClient, *logtest.Hook) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	breaker := circuitbreaker.New(name, circuitbreaker.DefaultConfig(), log)
	return NewHTTPClient(server.URL, 2*time.Second, breaker, log), hook
}

func TestHTTPClient_FindResource(t *testing.T) {
	ctx := context.Background()

	t.Run("查询成功", func(t *testing.T) {
		client, _ := newTestClient(t, "catalog-ok", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/resources/res-1", r.URL.Path)
			assert.Equal(t, "tenant-a", r.Header.Get("X-Tenant-ID"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"code":0,"message":"success","data":{"id":"res-1","name":"黄山三日游","base_price":129900,"currency":"CNY","duration_days":3}}`))
		})

		res, err := client.FindResource(ctx, "tenant-a", "res-1")
		require.NoError(t, err)
		assert.Equal(t, int64(129900), res.BasePrice)
		assert.Equal(t, 3, res.DurationDays)
		assert.Equal(t, "tenant-a", res.TenantID)
	})

	t.Run("资源不存在", func(t *testing.T) {
		client, _ := newTestClient(t, "catalog-404", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":40404,"message":"not found"}`))
		})

		_, err := client.FindResource(ctx, "tenant-a", "missing")
		assert.ErrorIs(t, err, catalog.ErrResourceNotFound)
	})

	t.Run("服务故障后熔断", func(t *testing.T) {
		calls := 0
		client, hook := newTestClient(t, "catalog-500", func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusInternalServerError)
		})

		for i := 0; i < 3; i++ {
			_, err := client.FindResource(ctx, "tenant-a", "res-1")
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeUpstreamError, apperrors.GetAppError(err).Code)
		}

		_, err := client.FindResource(ctx, "tenant-a", "res-1")
		require.Error(t, err)
		assert.Equal(t, circuitbreaker.ErrOpen.Code, apperrors.GetAppError(err).Code)
		assert.Equal(t, 3, calls)
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
		t.Logf("✓ 熔断打开后直接失败")
	})
}
