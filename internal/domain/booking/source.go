package booking

import (
	"github.com/xiebiao/tripbooking/internal/domain/hold"
)

// Source 预订来源渠道(元数据,不驱动业务分支)
type Source string

const (
	SourceDirect Source = "DIRECT" // 官网
	SourceOTA    Source = "OTA"
	SourceManual Source = "MANUAL" // 员工录单
	SourceCSV    Source = "CSV"    // 批量导入
	SourceEmail  Source = "EMAIL"
)

// ChannelPolicy 渠道策略
// 渠道之间唯一的差别就是这张表:占座来源、占座类型、默认操作人
type ChannelPolicy struct {
	HoldSource   hold.Source
	HoldType     hold.Type
	DefaultActor string
}

var channelPolicies = map[Source]ChannelPolicy{
	SourceDirect: {HoldSource: hold.SourceWebsite, HoldType: hold.TypeCart, DefaultActor: "website"},
	SourceOTA:    {HoldSource: hold.SourceOTA, HoldType: hold.TypeCart, DefaultActor: "ota-gateway"},
	SourceManual: {HoldSource: hold.SourceManual, HoldType: hold.TypeApprovalPending, DefaultActor: "staff"},
	SourceCSV:    {HoldSource: hold.SourceAdmin, HoldType: hold.TypeApprovalPending, DefaultActor: "csv-import"},
	SourceEmail:  {HoldSource: hold.SourceManual, HoldType: hold.TypeCart, DefaultActor: "email-intake"},
}

// PolicyFor 查询渠道策略
func PolicyFor(s Source) (ChannelPolicy, bool) {
	p, ok := channelPolicies[s]
	return p, ok
}

// Valid 是否为已知渠道
func (s Source) Valid() bool {
	_, ok := channelPolicies[s]
	return ok
}
