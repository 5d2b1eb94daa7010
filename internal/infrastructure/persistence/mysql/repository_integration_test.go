package mysql

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xiebiao/tripbooking/internal/domain/booking"
	"github.com/xiebiao/tripbooking/internal/domain/departure"
	"github.com/xiebiao/tripbooking/internal/domain/hold"
)

// 数据库集成测试
// 只在设置TRIPBOOKING_TEST_MYSQL_DSN时运行,例如:
//
//	TRIPBOOKING_TEST_MYSQL_DSN="root:root@tcp(127.0.0.1:3306)/tripbooking_test?parseTime=true&loc=UTC" go test ./internal/infrastructure/persistence/mysql/...
//
// 每个测试使用独立的租户ID,互不干扰,也不需要清表
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TRIPBOOKING_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("未设置TRIPBOOKING_TEST_MYSQL_DSN,跳过数据库集成测试")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func seedDeparture(t *testing.T, db *gorm.DB, tenantID string, capacity int, now time.Time) *departure.Departure {
	t.Helper()
	d, err := departure.NewDeparture(departure.NewParams{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		ResourceID:    uuid.New().String(),
		DepartureDate: now.AddDate(0, 1, 0).Truncate(24 * time.Hour),
		TotalCapacity: capacity,
	}, now)
	require.NoError(t, err)
	require.NoError(t, d.TransitionTo(departure.StatusOpen, now))
	require.NoError(t, NewDepartureRepository(db).Create(context.Background(), d))
	return d
}

func newHold(tenantID, departureID string, seats int, now time.Time, ttl time.Duration) *hold.Hold {
	return &hold.Hold{
		ID: uuid.New().String(), TenantID: tenantID, DepartureID: departureID, SeatCount: seats,
		Source: hold.SourceWebsite, Type: hold.TypeCart, Status: hold.StatusActive,
		ExpiresAt: now.Add(ttl), CreatedAt: now,
	}
}

// TestAllocator_Concurrent 行锁保证并发占座不超卖
func TestAllocator_Concurrent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	tenantID := "it-" + uuid.New().String()[:8]
	d := seedDeparture(t, db, tenantID, 10, now)
	allocator := NewHoldAllocator(db)

	var wg sync.WaitGroup
	decisions := make([]hold.Decision, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dec, err := allocator.Allocate(ctx, newHold(tenantID, d.ID, 6, now, 15*time.Minute), now)
			assert.NoError(t, err)
			decisions[i] = dec
		}(i)
	}
	wg.Wait()

	granted := 0
	for _, dec := range decisions {
		if dec.Granted {
			granted++
		} else {
			assert.Equal(t, hold.CodeNoAvailability, dec.Code)
			assert.Equal(t, 4, dec.State.BookableSeats)
		}
	}
	assert.Equal(t, 1, granted)

	usage, err := NewUsageReader(db).Usage(ctx, tenantID, d.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 6, usage.HeldSeats)
	assert.Equal(t, 6, usage.HeldByChannel[string(hold.SourceWebsite)])
	t.Logf("✓ 两个6座并发请求只有一个成功")
}

// TestHoldRepository_Lifecycle 释放、延期、过期
func TestHoldRepository_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	tenantID := "it-" + uuid.New().String()[:8]
	d := seedDeparture(t, db, tenantID, 10, now)
	allocator := NewHoldAllocator(db)
	repo := NewHoldRepository(db)

	h1 := newHold(tenantID, d.ID, 2, now, 15*time.Minute)
	h2 := newHold(tenantID, d.ID, 3, now, time.Minute)
	for _, h := range []*hold.Hold{h1, h2} {
		dec, err := allocator.Allocate(ctx, h, now)
		require.NoError(t, err)
		require.True(t, dec.Granted)
	}

	t.Run("延期CAS", func(t *testing.T) {
		ok, err := repo.Extend(ctx, tenantID, h1.ID, h1.ExpiresAt, h1.ExpiresAt.Add(10*time.Minute), now)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Extend(ctx, tenantID, h1.ID, h1.ExpiresAt, h1.ExpiresAt.Add(20*time.Minute), now)
		require.NoError(t, err)
		assert.False(t, ok, "from已过时")
	})

	t.Run("释放幂等", func(t *testing.T) {
		ok, err := repo.Release(ctx, tenantID, h1.ID, hold.ReasonUserReleased, "user-1", now)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Release(ctx, tenantID, h1.ID, hold.ReasonUserReleased, "user-1", now)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = repo.Release(ctx, tenantID, uuid.New().String(), hold.ReasonUserReleased, "user-1", now)
		assert.ErrorIs(t, err, hold.ErrHoldNotFound)
	})

	t.Run("过期扫描", func(t *testing.T) {
		later := now.Add(2 * time.Minute)
		usage, err := NewUsageReader(db).Usage(ctx, tenantID, d.ID, later)
		require.NoError(t, err)
		assert.Equal(t, 0, usage.HeldSeats, "过期占座不计入,无论是否扫描")

		expired, err := repo.ExpireStale(ctx, later, 1000)
		require.NoError(t, err)
		var mine []*hold.Hold
		for _, h := range expired {
			if h.TenantID == tenantID {
				mine = append(mine, h)
			}
		}
		require.Len(t, mine, 1)
		assert.Equal(t, h2.ID, mine[0].ID)
		assert.Equal(t, hold.StatusExpired, mine[0].Status)
	})
}

// TestDepartureRepository_Version 乐观锁
func TestDepartureRepository_Version(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	tenantID := "it-" + uuid.New().String()[:8]
	d := seedDeparture(t, db, tenantID, 10, now)
	repo := NewDepartureRepository(db)
	tx := NewTxManager(db)

	err := tx.Transaction(ctx, func(ctx context.Context) error {
		locked, err := repo.LockByID(ctx, tenantID, d.ID)
		if err != nil {
			return err
		}
		prev := locked.Version
		capacity := 12
		if err := locked.ApplyCapacity(departure.CapacityChange{TotalCapacity: &capacity}, 0, now); err != nil {
			return err
		}
		return repo.Update(ctx, locked, prev)
	})
	require.NoError(t, err)

	err = repo.Update(ctx, d, d.Version)
	assert.ErrorIs(t, err, departure.ErrVersionConflict)

	dup := *d
	dup.ID = uuid.New().String()
	assert.ErrorIs(t, repo.Create(ctx, &dup), departure.ErrDuplicateDeparture)

	_, err = repo.FindByID(ctx, "other-tenant", d.ID)
	assert.ErrorIs(t, err, departure.ErrDepartureNotFound)
}

// TestBookingRepository_StatusCAS 状态CAS与占用统计
func TestBookingRepository_StatusCAS(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	tenantID := "it-" + uuid.New().String()[:8]
	d := seedDeparture(t, db, tenantID, 10, now)
	repo := NewBookingRepository(db)

	b := &booking.Booking{
		ID: uuid.New().String(), Reference: fmt.Sprintf("BK%d", now.UnixNano()%1e12),
		TenantID: tenantID, ResourceID: d.ResourceID, DepartureID: d.ID,
		Source: booking.SourceOTA, StartDate: d.DepartureDate, EndDate: d.DepartureDate,
		GuestName: "赵六", GuestCount: 3, Status: booking.StatusPendingPayment,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.Create(ctx, b))

	dup := *b
	dup.ID = uuid.New().String()
	assert.ErrorIs(t, repo.Create(ctx, &dup), booking.ErrDuplicateReference)

	confirmed := *b
	require.NoError(t, confirmed.Confirm(now))
	require.NoError(t, repo.UpdateStatus(ctx, &confirmed, booking.StatusPendingPayment))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, &confirmed, booking.StatusPendingPayment), booking.ErrStatusConflict)

	usage, err := NewUsageReader(db).Usage(ctx, tenantID, d.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 3, usage.ConfirmedSeats)
	assert.Equal(t, 3, usage.ConfirmedByChannel[string(booking.SourceOTA)])

	list, total, err := repo.ListByDeparture(ctx, tenantID, d.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, booking.StatusConfirmed, list[0].Status)
}
