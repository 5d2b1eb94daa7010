package hold

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xiebiao/tripbooking/internal/domain/departure"
	domainhold "github.com/xiebiao/tripbooking/internal/domain/hold"
	"github.com/xiebiao/tripbooking/internal/domain/event"
	"github.com/xiebiao/tripbooking/pkg/clock"
	"github.com/xiebiao/tripbooking/pkg/metrics"
	"github.com/xiebiao/tripbooking/pkg/tracing"
)

// SeatsObserver 座位占用变化的观察者
// 由库存服务实现:失效视图缓存、重新推导销售状态
type SeatsObserver interface {
	SeatsChanged(ctx context.Context, tenantID string, departureIDs ...string)
}

// Config 占座服务配置
type Config struct {
	TTL          domainhold.TTLPolicy
	MaxExtension time.Duration
}

// Service 占座服务
// 唯一可以修改占座(即held座位数)的组件
type Service struct {
	allocator  domainhold.Allocator
	repo       domainhold.Repository
	departures departure.Reader
	publisher  event.Publisher
	observer   SeatsObserver
	clock      clock.Clock
	cfg        Config
	log        logrus.FieldLogger
}

// NewService 创建占座服务
func NewService(
	allocator domainhold.Allocator,
	repo domainhold.Repository,
	departures departure.Reader,
	publisher event.Publisher,
	observer SeatsObserver,
	clk clock.Clock,
	cfg Config,
	log logrus.FieldLogger,
) *Service {
	if cfg.TTL == nil {
		cfg.TTL = domainhold.DefaultTTLPolicy()
	}
	return &Service{
		allocator:  allocator,
		repo:       repo,
		departures: departures,
		publisher:  publisher,
		observer:   observer,
		clock:      clk,
		cfg:        cfg,
		log:        log.WithField("component", "hold_service"),
	}
}

// CreateHoldCommand 创建占座请求
type CreateHoldCommand struct {
	TenantID       string
	DepartureID    string
	SeatCount      int
	Source         domainhold.Source
	SourcePlatform string
	HoldType       domainhold.Type
	CreatedByID    string
	SessionID      string
}

// CreateHoldResult 创建占座结果
// 客户端可纠正的失败通过ErrorCode返回,不是error
type CreateHoldResult struct {
	Success        bool       `json:"success"`
	HoldID         string     `json:"hold_id,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	AvailableSeats int        `json:"available_seats"` // 可订座位(含超售额度)
	ErrorCode      string     `json:"error_code,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

// CreateHold 原子占座
//
// 流程:
//  1. 校验座位数和占座类型(TTL必须显式声明)
//  2. 交给Allocator在一个原子单元内完成 加锁→统计→判定→插入
//  3. 成功后通知库存服务刷新视图和销售状态
//
// 并发请求共同超出容量时,按提交顺序先到先得,失败方得到NO_AVAILABILITY
func (s *Service) CreateHold(ctx context.Context, cmd CreateHoldCommand) (result *CreateHoldResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "hold", "CreateHold")
	span.SetAttributes(
		attribute.String("tenant_id", cmd.TenantID),
		attribute.String("departure_id", cmd.DepartureID),
		attribute.Int("seat_count", cmd.SeatCount),
	)
	defer func() { tracing.EndSpan(span, err) }()

	if cmd.SeatCount < 1 {
		return s.reject(domainhold.CodeInvalidCount, "占座数量必须大于0", 0), nil
	}
	if !cmd.Source.Valid() {
		return nil, domainhold.ErrInvalidSource
	}
	ttl, ok := s.cfg.TTL.TTL(cmd.HoldType)
	if !ok {
		return s.reject(domainhold.CodeInvalidHoldType, fmt.Sprintf("占座类型%s未声明TTL", cmd.HoldType), 0), nil
	}

	now := s.clock.Now()
	h := &domainhold.Hold{
		ID:             uuid.New().String(),
		TenantID:       cmd.TenantID,
		DepartureID:    cmd.DepartureID,
		SeatCount:      cmd.SeatCount,
		Source:         cmd.Source,
		SourcePlatform: cmd.SourcePlatform,
		Type:           cmd.HoldType,
		CreatedByID:    cmd.CreatedByID,
		SessionID:      cmd.SessionID,
		Status:         domainhold.StatusActive,
		ExpiresAt:      now.Add(ttl),
		CreatedAt:      now,
	}

	start := time.Now()
	dec, err := s.allocator.Allocate(ctx, h, now)
	metrics.ObserveHistogram(metrics.HoldAllocationDuration, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if !dec.Granted {
		return s.reject(dec.Code, rejectMessage(dec), dec.State.BookableSeats), nil
	}

	metrics.IncCounterVec(metrics.HoldsCreatedTotal, map[string]string{
		"source":    string(h.Source),
		"hold_type": string(h.Type),
	})
	s.log.WithFields(logrus.Fields{
		"tenant_id":    h.TenantID,
		"departure_id": h.DepartureID,
		"hold_id":      h.ID,
		"seats":        h.SeatCount,
		"expires_at":   h.ExpiresAt,
	}).Info("占座成功")

	s.observer.SeatsChanged(ctx, h.TenantID, h.DepartureID)

	after := dec.AfterGrant(h)
	expiresAt := h.ExpiresAt
	return &CreateHoldResult{
		Success:        true,
		HoldID:         h.ID,
		ExpiresAt:      &expiresAt,
		AvailableSeats: after.BookableSeats,
	}, nil
}

// ReleaseHold 释放占座
// 幂等:占座已释放或已过期时返回false,调用方应理解为"已经不存在"而不是失败
func (s *Service) ReleaseHold(ctx context.Context, tenantID, holdID string, reason domainhold.ReleaseReason, actorID string) (released bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "hold", "ReleaseHold")
	span.SetAttributes(attribute.String("hold_id", holdID), attribute.String("reason", string(reason)))
	defer func() { tracing.EndSpan(span, err) }()

	h, err := s.repo.FindByID(ctx, tenantID, holdID)
	if err != nil {
		return false, err
	}

	now := s.clock.Now()
	released, err = s.repo.Release(ctx, tenantID, holdID, reason, actorID, now)
	if err != nil {
		return false, err
	}

	entry := s.log.WithFields(logrus.Fields{
		"tenant_id":    tenantID,
		"departure_id": h.DepartureID,
		"hold_id":      holdID,
		"reason":       reason,
	})
	if !released {
		entry.Debug("占座已释放或已过期,忽略")
		return false, nil
	}

	metrics.IncCounterVec(metrics.HoldsReleasedTotal, map[string]string{"reason": string(reason)})
	entry.Info("占座已释放")

	if reason.ReturnsSeats() {
		s.publish(ctx, event.SeatsReleased{
			TenantID:    tenantID,
			DepartureID: h.DepartureID,
			Seats:       h.SeatCount,
			Reason:      string(reason),
			HoldIDs:     []string{holdID},
			OccurredAt:  now,
		})
	}
	s.observer.SeatsChanged(ctx, tenantID, h.DepartureID)
	return true, nil
}

// maxExtensionCeiling 未配置上限时单次延期的硬上限
const maxExtensionCeiling = 7 * 24 * time.Hour

// ExtendResult 延期结果
type ExtendResult struct {
	Extended  bool       `json:"extended"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ExtendHold 延长占座有效期
// 单次延长不超过MaxExtension;占座已过期时返回false,不会复活
func (s *Service) ExtendHold(ctx context.Context, tenantID, holdID string, additionalMinutes int) (*ExtendResult, error) {
	if additionalMinutes <= 0 {
		return nil, domainhold.ErrInvalidExtension
	}
	// 先按分钟截断再换算,避免Duration溢出成负值
	limit := maxExtensionCeiling
	if s.cfg.MaxExtension > 0 && s.cfg.MaxExtension < limit {
		limit = s.cfg.MaxExtension
	}
	extension := limit
	if additionalMinutes < int(limit/time.Minute) {
		extension = time.Duration(additionalMinutes) * time.Minute
	}

	h, err := s.repo.FindByID(ctx, tenantID, holdID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !h.IsActive(now) {
		return &ExtendResult{Extended: false}, nil
	}

	to := h.ExpiresAt.Add(extension)
	ok, err := s.repo.Extend(ctx, tenantID, holdID, h.ExpiresAt, to, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 与过期或另一次延期竞争失败
		return &ExtendResult{Extended: false}, nil
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"hold_id":    holdID,
		"expires_at": to,
	}).Info("占座已延期")
	return &ExtendResult{Extended: true, ExpiresAt: &to}, nil
}

// ExpireStaleHolds 标记一批已过期的占座
// 由定时任务调用;占座判定本身不依赖它,过期占座在统计时已被忽略
func (s *Service) ExpireStaleHolds(ctx context.Context, batchSize int) (count int, err error) {
	ctx, span := tracing.StartSpan(ctx, "hold", "ExpireStaleHolds")
	defer func() { tracing.EndSpan(span, err) }()

	now := s.clock.Now()
	expired, err := s.repo.ExpireStale(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}
	metrics.AddCounter(metrics.HoldsExpiredTotal, float64(len(expired)))

	type key struct{ tenantID, departureID string }
	grouped := make(map[key]*event.SeatsReleased)
	var order []key
	for _, h := range expired {
		k := key{h.TenantID, h.DepartureID}
		ev, ok := grouped[k]
		if !ok {
			ev = &event.SeatsReleased{
				TenantID:    h.TenantID,
				DepartureID: h.DepartureID,
				Reason:      string(domainhold.ReasonExpired),
				OccurredAt:  now,
			}
			grouped[k] = ev
			order = append(order, k)
		}
		ev.Seats += h.SeatCount
		ev.HoldIDs = append(ev.HoldIDs, h.ID)
	}

	for _, k := range order {
		s.publish(ctx, *grouped[k])
		s.observer.SeatsChanged(ctx, k.tenantID, k.departureID)
	}

	s.log.WithFields(logrus.Fields{
		"expired":    len(expired),
		"departures": len(order),
	}).Info("过期占座已清理")
	return len(expired), nil
}

// GetActiveHolds 团期当前有效的占座
func (s *Service) GetActiveHolds(ctx context.Context, tenantID, departureID string) ([]*domainhold.Hold, error) {
	if _, err := s.departures.FindByID(ctx, tenantID, departureID); err != nil {
		return nil, err
	}
	return s.repo.ListActive(ctx, tenantID, departureID, s.clock.Now())
}

func (s *Service) reject(code, message string, available int) *CreateHoldResult {
	metrics.IncCounterVec(metrics.HoldsRejectedTotal, map[string]string{"reason": code})
	return &CreateHoldResult{
		Success:        false,
		AvailableSeats: available,
		ErrorCode:      code,
		ErrorMessage:   message,
	}
}

// publish 尽力而为,失败只记录日志
func (s *Service) publish(ctx context.Context, e event.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.WithError(err).WithField("routing_key", e.RoutingKey()).Warn("事件发布失败")
	}
}

func rejectMessage(dec domainhold.Decision) string {
	switch dec.Code {
	case domainhold.CodeNoAvailability:
		return fmt.Sprintf("座位不足,当前可订%d座", dec.State.BookableSeats)
	case domainhold.CodeDepartureNotFound:
		return "团期不存在"
	case domainhold.CodeDepartureNotBookable:
		return fmt.Sprintf("团期当前状态(%s)不接受占座", dec.State.Status)
	default:
		return "占座失败"
	}
}
