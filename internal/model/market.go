package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market 市场快照，可选字段用显式存在性检查，不做动态属性探测
type Market struct {
	ID       string `json:"id"`
	Question string `json:"question,omitempty"`

	// OutcomePrices 为空或恰好两个元素 [YES价格, NO价格]
	OutcomePrices []decimal.Decimal `json:"outcome_prices,omitempty"`
	EndDate       *time.Time        `json:"end_date,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Volume24h     decimal.Decimal   `json:"volume_24h"`
}

// HasPrices 是否带有完整的双边报价
func (m *Market) HasPrices() bool {
	return len(m.OutcomePrices) == 2
}

// YesPrice YES方向价格，调用前需HasPrices
func (m *Market) YesPrice() decimal.Decimal {
	return m.OutcomePrices[0]
}

// NoPrice NO方向价格，调用前需HasPrices
func (m *Market) NoPrice() decimal.Decimal {
	return m.OutcomePrices[1]
}

// HoursToSettlement 距离结算的小时数，没有结束时间时返回false
func (m *Market) HoursToSettlement(now time.Time) (float64, bool) {
	if m.EndDate == nil {
		return 0, false
	}
	return m.EndDate.Sub(now).Hours(), true
}

// FeedTrade 行情源推送的一笔市场成交
type FeedTrade struct {
	ID        string          `json:"id"`
	MarketID  string          `json:"market"`
	AssetID   string          `json:"asset_id"`
	Maker     string          `json:"maker_address"`
	Taker     string          `json:"taker_address"`
	Side      string          `json:"side"`
	Outcome   string          `json:"outcome"`
	Price     decimal.Decimal `json:"price"`
	SizeUSD   decimal.Decimal `json:"size_usd"`
	Timestamp time.Time       `json:"timestamp"`
}
