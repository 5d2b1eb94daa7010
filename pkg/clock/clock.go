// Package clock 提供可注入的时间源
//
// 所有"现在几点"的判断(Hold是否过期、TTL计算、扫描截止时间)都通过Clock获取,
// 测试中用Fixed/Manual时钟即可精确构造"16分钟之后"这类场景,无需sleep。
package clock

import (
	"sync"
	"time"
)

// Clock 时间源接口
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem 返回基于time.Now的系统时钟(UTC)
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

type fixedClock struct {
	now time.Time
}

// NewFixed 返回永远停在t的时钟
func NewFixed(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

func (f fixedClock) Now() time.Time {
	return f.now
}

// Manual 可手动拨动的时钟(并发安全)
type Manual struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManual 创建手动时钟
func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

// Now 当前时间
func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Advance 向前拨动时钟
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set 直接设置时钟
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t.UTC()
	m.mu.Unlock()
}
