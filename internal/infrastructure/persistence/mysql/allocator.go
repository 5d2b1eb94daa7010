package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/tripbooking/internal/domain/hold"
	apperrors "github.com/xiebiao/tripbooking/pkg/errors"
)

// holdAllocator 原子占座
//
// 一个事务内完成:
//  1. SELECT ... FOR UPDATE 锁定团期行
//  2. 统计有效占座和已确认座位(同一事务,看到的是加锁后的数据)
//  3. hold.Decide判定
//  4. INSERT占座
//
// 同一团期上的并发占座在第1步排队,后到者看到先到者插入的占座,不会超卖。
// 不同团期之间没有锁竞争。
type holdAllocator struct {
	db *gorm.DB
}

// NewHoldAllocator 创建原子占座器
func NewHoldAllocator(db *gorm.DB) hold.Allocator {
	return &holdAllocator{db: db}
}

// Allocate 实现hold.Allocator
func (a *holdAllocator) Allocate(ctx context.Context, h *hold.Hold, now time.Time) (hold.Decision, error) {
	var dec hold.Decision
	err := getDB(ctx, a.db).Transaction(func(tx *gorm.DB) error {
		var model DepartureModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND tenant_id = ?", h.DepartureID, h.TenantID).
			First(&model).Error
		if err != nil {
			if isNotFound(err) {
				dec = hold.Decision{Code: hold.CodeDepartureNotFound}
				return nil
			}
			return err
		}

		usages, err := usageOf(tx, h.TenantID, []string{h.DepartureID}, now)
		if err != nil {
			return err
		}

		dec = hold.Decide(toDepartureEntity(&model), usages[h.DepartureID], h.SeatCount, now)
		if !dec.Granted {
			return nil
		}
		return tx.Create(toHoldModel(h)).Error
	})
	if err != nil {
		return hold.Decision{}, apperrors.Wrapf(err, "团期%s占座失败", h.DepartureID)
	}
	return dec, nil
}
