package booking

import (
	"fmt"
	"math/rand"
	"time"
)

// GenerateReference 生成预订号
// 格式:BK + yyMMdd + 6位随机数,例如BK260315042817
// 唯一性由数据库唯一索引兜底,冲突时调用方重新生成
func GenerateReference(now time.Time) string {
	return fmt.Sprintf("BK%s%06d", now.Format("060102"), rand.Intn(1000000))
}
