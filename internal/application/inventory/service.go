package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/xiebiao/tripbooking/internal/domain/departure"
	domaininventory "github.com/xiebiao/tripbooking/internal/domain/inventory"
	"github.com/xiebiao/tripbooking/pkg/clock"
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
	"github.com/xiebiao/tripbooking/pkg/metrics"
)

// MaxBatchSize 批量查询库存视图的上限
const MaxBatchSize = 100

var (
	// ErrInvalidSeats 查询座位数不合法
	ErrInvalidSeats = apperrors.New(apperrors.ErrCodeInvalidParams, "座位数必须大于0")

	// ErrTooManyDepartures 批量查询数量超限
	ErrTooManyDepartures = apperrors.New(apperrors.ErrCodeInvalidParams, "单次最多查询100个团期")

	// ErrInvalidWaitlist 候补登记参数不合法
	ErrInvalidWaitlist = apperrors.New(apperrors.ErrCodeInvalidParams, "候补座位数必须大于0且联系方式不能为空")
)

// Transactor 事务边界
// 由mysql.TxManager和memory.Store实现
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Config 库存服务配置
type Config struct {
	LimitedThreshold int // 可订座位 ≤ 该值时销售状态为LIMITED
}

// Service 库存服务
// 唯一可以修改团期容量和状态的组件
type Service struct {
	departures departure.Repository
	usage      domaininventory.UsageReader
	waitlist   domaininventory.WaitlistRepository
	cache      domaininventory.Cache
	tx         Transactor
	clock      clock.Clock
	cfg        Config
	log        logrus.FieldLogger
}

// NewService 创建库存服务
// cache可以为nil(不启用Redis时)
func NewService(
	departures departure.Repository,
	usage domaininventory.UsageReader,
	waitlist domaininventory.WaitlistRepository,
	cache domaininventory.Cache,
	tx Transactor,
	clk clock.Clock,
	cfg Config,
	log logrus.FieldLogger,
) *Service {
	return &Service{
		departures: departures,
		usage:      usage,
		waitlist:   waitlist,
		cache:      cache,
		tx:         tx,
		clock:      clk,
		cfg:        cfg,
		log:        log.WithField("component", "inventory_service"),
	}
}

// Availability 可用性检查结果
type Availability struct {
	Available      bool                  `json:"available"`
	RequestedSeats int                   `json:"requested_seats"`
	AvailableSeats int                   `json:"available_seats"` // 可订座位(含超售额度)
	State          domaininventory.State `json:"state"`
}

// CheckAvailability 检查团期能否容纳seats个座位
// 直接读库,不走缓存;结果只是快照,最终以原子占座为准
func (s *Service) CheckAvailability(ctx context.Context, tenantID, departureID string, seats int) (*Availability, error) {
	if seats < 1 {
		return nil, ErrInvalidSeats
	}

	state, d, err := s.compute(ctx, tenantID, departureID)
	if err != nil {
		return nil, err
	}

	return &Availability{
		Available:      d.Status.IsSelling() && seats <= state.BookableSeats,
		RequestedSeats: seats,
		AvailableSeats: state.BookableSeats,
		State:          *state,
	}, nil
}

// GetState 单个团期的库存视图(实时计算)
func (s *Service) GetState(ctx context.Context, tenantID, departureID string) (*domaininventory.State, error) {
	state, _, err := s.compute(ctx, tenantID, departureID)
	return state, err
}

// GetStates 批量库存视图
// 先读缓存,未命中的团期批量计算后回写;缓存故障时降级为直接计算
func (s *Service) GetStates(ctx context.Context, tenantID string, departureIDs []string) ([]domaininventory.State, error) {
	ids := dedupe(departureIDs)
	if len(ids) > MaxBatchSize {
		return nil, ErrTooManyDepartures
	}

	found := make(map[string]domaininventory.State, len(ids))
	if s.cache != nil && len(ids) > 0 {
		cached, err := s.cache.GetMany(ctx, tenantID, ids)
		if err != nil {
			metrics.IncCounterVec(metrics.InventoryCacheRequests, map[string]string{"result": "error"})
			s.log.WithError(err).Warn("读取库存视图缓存失败,降级为实时计算")
		} else {
			for id, st := range cached {
				found[id] = st
			}
		}
	}

	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if s.cache != nil {
		metrics.AddCounterVec(metrics.InventoryCacheRequests, map[string]string{"result": "hit"}, float64(len(ids)-len(missing)))
		metrics.AddCounterVec(metrics.InventoryCacheRequests, map[string]string{"result": "miss"}, float64(len(missing)))
	}

	if len(missing) > 0 {
		computed, err := s.computeMany(ctx, tenantID, missing)
		if err != nil {
			return nil, err
		}
		if s.cache != nil && len(computed) > 0 {
			if err := s.cache.SetMany(ctx, tenantID, computed); err != nil {
				s.log.WithError(err).Warn("回写库存视图缓存失败")
			}
		}
		for _, st := range computed {
			found[st.DepartureID] = st
		}
	}

	result := make([]domaininventory.State, 0, len(ids))
	for _, id := range ids {
		if st, ok := found[id]; ok {
			result = append(result, st)
		}
	}
	return result, nil
}

// GetDeparture 查询团期
func (s *Service) GetDeparture(ctx context.Context, tenantID, departureID string) (*departure.Departure, error) {
	return s.departures.FindByID(ctx, tenantID, departureID)
}

// CreateDepartureCommand 创建团期请求
type CreateDepartureCommand struct {
	TenantID         string
	ResourceID       string
	DepartureDate    time.Time
	TotalCapacity    int
	BlockedSeats     int
	OverbookingLimit int
	MinParticipants  int
	IsGuaranteed     bool
	PriceOverride    *int64
	OpenForSale      bool // 创建后直接开售
}

// CreateDeparture 创建团期
func (s *Service) CreateDeparture(ctx context.Context, cmd CreateDepartureCommand) (*departure.Departure, error) {
	now := s.clock.Now()
	d, err := departure.NewDeparture(departure.NewParams{
		ID:               uuid.New().String(),
		TenantID:         cmd.TenantID,
		ResourceID:       cmd.ResourceID,
		DepartureDate:    cmd.DepartureDate,
		TotalCapacity:    cmd.TotalCapacity,
		BlockedSeats:     cmd.BlockedSeats,
		OverbookingLimit: cmd.OverbookingLimit,
		MinParticipants:  cmd.MinParticipants,
		IsGuaranteed:     cmd.IsGuaranteed,
		PriceOverride:    cmd.PriceOverride,
	}, now)
	if err != nil {
		return nil, err
	}
	if cmd.OpenForSale {
		if err := d.TransitionTo(departure.StatusOpen, now); err != nil {
			return nil, err
		}
	}

	if err := s.departures.Create(ctx, d); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":    d.TenantID,
		"departure_id": d.ID,
		"resource_id":  d.ResourceID,
		"capacity":     d.TotalCapacity,
	}).Info("团期已创建")
	return d, nil
}

// UpdateCapacityCommand 容量调整请求(nil字段不修改)
type UpdateCapacityCommand struct {
	TenantID         string
	DepartureID      string
	ExpectedVersion  int64
	TotalCapacity    *int
	BlockedSeats     *int
	OverbookingLimit *int
}

// UpdateCapacity 调整团期容量
//
// 在事务内锁定团期行,与原子占座互斥;
// 版本号不匹配返回版本冲突,新容量低于 有效占座+已确认 时拒绝
func (s *Service) UpdateCapacity(ctx context.Context, cmd UpdateCapacityCommand) (*departure.Departure, error) {
	var updated *departure.Departure
	err := s.tx.Transaction(ctx, func(txCtx context.Context) error {
		d, err := s.departures.LockByID(txCtx, cmd.TenantID, cmd.DepartureID)
		if err != nil {
			return err
		}
		if d.Version != cmd.ExpectedVersion {
			return departure.ErrVersionConflict
		}

		now := s.clock.Now()
		usage, err := s.usage.Usage(txCtx, cmd.TenantID, cmd.DepartureID, now)
		if err != nil {
			return err
		}

		prev := d.Version
		change := departure.CapacityChange{
			TotalCapacity:    cmd.TotalCapacity,
			BlockedSeats:     cmd.BlockedSeats,
			OverbookingLimit: cmd.OverbookingLimit,
		}
		if err := d.ApplyCapacity(change, usage.UsedSeats(), now); err != nil {
			return err
		}
		if err := s.departures.Update(txCtx, d, prev); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":    cmd.TenantID,
		"departure_id": cmd.DepartureID,
		"version":      updated.Version,
	}).Info("团期容量已调整")

	s.SeatsChanged(ctx, cmd.TenantID, cmd.DepartureID)
	return s.reload(ctx, updated)
}

// ChangeStatus 人工变更团期状态(按流转表校验)
func (s *Service) ChangeStatus(ctx context.Context, tenantID, departureID string, expectedVersion int64, target departure.Status) (*departure.Departure, error) {
	var updated *departure.Departure
	err := s.tx.Transaction(ctx, func(txCtx context.Context) error {
		d, err := s.departures.LockByID(txCtx, tenantID, departureID)
		if err != nil {
			return err
		}
		if d.Version != expectedVersion {
			return departure.ErrVersionConflict
		}

		prev := d.Version
		if err := d.TransitionTo(target, s.clock.Now()); err != nil {
			return err
		}
		if err := s.departures.Update(txCtx, d, prev); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":    tenantID,
		"departure_id": departureID,
		"status":       target,
	}).Info("团期状态已变更")

	s.SeatsChanged(ctx, tenantID, departureID)
	return s.reload(ctx, updated)
}

// RefreshStatus 根据当前余位重新推导销售状态
// 只处理OPEN/LIMITED/WAITLIST,其他状态保持不变
func (s *Service) RefreshStatus(ctx context.Context, tenantID, departureID string) error {
	var from, to departure.Status
	err := s.tx.Transaction(ctx, func(txCtx context.Context) error {
		d, err := s.departures.LockByID(txCtx, tenantID, departureID)
		if err != nil {
			return err
		}
		if !d.Status.IsSelling() {
			return nil
		}

		now := s.clock.Now()
		usage, err := s.usage.Usage(txCtx, tenantID, departureID, now)
		if err != nil {
			return err
		}
		state := domaininventory.Compute(d, usage, now)

		target := d.SalesStatus(state.BookableSeats, s.cfg.LimitedThreshold)
		if target == d.Status {
			return nil
		}

		from, to = d.Status, target
		prev := d.Version
		if err := d.TransitionTo(target, now); err != nil {
			return err
		}
		return s.departures.Update(txCtx, d, prev)
	})
	if err != nil {
		return err
	}

	if to != "" {
		s.invalidate(ctx, tenantID, departureID)
		s.log.WithFields(logrus.Fields{
			"tenant_id":    tenantID,
			"departure_id": departureID,
			"from":         from,
			"to":           to,
		}).Info("销售状态已刷新")
	}
	return nil
}

// SeatsChanged 座位占用变化后的收尾:失效缓存、刷新销售状态
// 尽力而为,失败只记录日志
func (s *Service) SeatsChanged(ctx context.Context, tenantID string, departureIDs ...string) {
	s.invalidate(ctx, tenantID, departureIDs...)
	for _, id := range departureIDs {
		if err := s.RefreshStatus(ctx, tenantID, id); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"tenant_id":    tenantID,
				"departure_id": id,
			}).Warn("刷新销售状态失败")
		}
	}
}

// JoinWaitlistCommand 候补登记请求
type JoinWaitlistCommand struct {
	TenantID    string
	DepartureID string
	Seats       int
	ContactName string
	Contact     string
}

// JoinWaitlist 登记候补
func (s *Service) JoinWaitlist(ctx context.Context, cmd JoinWaitlistCommand) (*domaininventory.WaitlistEntry, error) {
	if cmd.Seats < 1 || strings.TrimSpace(cmd.Contact) == "" {
		return nil, ErrInvalidWaitlist
	}

	d, err := s.departures.FindByID(ctx, cmd.TenantID, cmd.DepartureID)
	if err != nil {
		return nil, err
	}
	if d.Status.IsTerminal() {
		return nil, departure.ErrDepartureClosed
	}

	entry := &domaininventory.WaitlistEntry{
		ID:          uuid.New().String(),
		TenantID:    cmd.TenantID,
		DepartureID: cmd.DepartureID,
		Seats:       cmd.Seats,
		ContactName: cmd.ContactName,
		Contact:     cmd.Contact,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.waitlist.Add(ctx, entry); err != nil {
		return nil, err
	}

	s.invalidate(ctx, cmd.TenantID, cmd.DepartureID)
	return entry, nil
}

func (s *Service) compute(ctx context.Context, tenantID, departureID string) (*domaininventory.State, *departure.Departure, error) {
	d, err := s.departures.FindByID(ctx, tenantID, departureID)
	if err != nil {
		return nil, nil, err
	}
	now := s.clock.Now()
	usage, err := s.usage.Usage(ctx, tenantID, departureID, now)
	if err != nil {
		return nil, nil, err
	}
	state := domaininventory.Compute(d, usage, now)
	return &state, d, nil
}

func (s *Service) computeMany(ctx context.Context, tenantID string, ids []string) ([]domaininventory.State, error) {
	deps, err := s.departures.FindByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	if len(deps) == 0 {
		return nil, nil
	}

	depIDs := make([]string, len(deps))
	for i, d := range deps {
		depIDs[i] = d.ID
	}

	now := s.clock.Now()
	usages, err := s.usage.Usages(ctx, tenantID, depIDs, now)
	if err != nil {
		return nil, err
	}

	states := make([]domaininventory.State, 0, len(deps))
	for _, d := range deps {
		states = append(states, domaininventory.Compute(d, usages[d.ID], now))
	}
	return states, nil
}

func (s *Service) invalidate(ctx context.Context, tenantID string, departureIDs ...string) {
	if s.cache == nil || len(departureIDs) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID, departureIDs...); err != nil {
		s.log.WithError(err).WithField("tenant_id", tenantID).Warn("失效库存视图缓存失败")
	}
}

// reload 变更后重新读取(销售状态可能已被刷新)
func (s *Service) reload(ctx context.Context, d *departure.Departure) (*departure.Departure, error) {
	latest, err := s.departures.FindByID(ctx, d.TenantID, d.ID)
	if err != nil {
		return d, nil
	}
	return latest, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
