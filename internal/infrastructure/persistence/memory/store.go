// Package memory 单进程内存存储
//
// 实现全部仓储端口,用于database.driver=memory的开发模式和单元测试。
// 事务和原子占座共用txMu串行执行,相当于对所有团期加了一把行锁;
// 多实例部署必须使用MySQL/Postgres实现。
package memory

import (
	"context"
	"sync"

	"github.com/xiebiao/tripbooking/internal/domain/booking"
	"github.com/xiebiao/tripbooking/internal/domain/catalog"
	"github.com/xiebiao/tripbooking/internal/domain/departure"
	"github.com/xiebiao/tripbooking/internal/domain/hold"
	"github.com/xiebiao/tripbooking/internal/domain/inventory"
)

// Store 内存存储
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	departures map[string]*departure.Departure
	holds      map[string]*hold.Hold
	bookings   map[string]*booking.Booking
	waitlist   []*inventory.WaitlistEntry
	resources  map[string]*catalog.Resource
}

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{
		departures: make(map[string]*departure.Departure),
		holds:      make(map[string]*hold.Hold),
		bookings:   make(map[string]*booking.Booking),
		resources:  make(map[string]*catalog.Resource),
	}
}

// Transaction 串行执行fn
// fn返回错误时不回滚已写入的数据,调用方只在fn末尾做写入
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx)
}

// Departures 团期仓储
func (s *Store) Departures() departure.Repository { return &departureRepo{s: s} }

// Holds 占座仓储
func (s *Store) Holds() hold.Repository { return &holdRepo{s: s} }

// Allocator 原子占座
func (s *Store) Allocator() hold.Allocator { return &allocator{s: s} }

// Bookings 预订仓储
func (s *Store) Bookings() booking.Repository { return &bookingRepo{s: s} }

// Usage 座位占用统计
func (s *Store) Usage() inventory.UsageReader { return &usageReader{s: s} }

// Waitlist 候补登记
func (s *Store) Waitlist() inventory.WaitlistRepository { return &waitlistRepo{s: s} }

// Catalog 资源目录
func (s *Store) Catalog() catalog.Catalog { return &catalogRepo{s: s} }

// PutResource 登记资源(开发模式初始化和测试使用)
func (s *Store) PutResource(r *catalog.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.resources[r.ID] = &cp
}
