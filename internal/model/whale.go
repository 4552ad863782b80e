package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WhaleType 鲸鱼分类
type WhaleType string

const (
	WhaleTypeSmartMoney WhaleType = "smart_money" // 高质量鲸鱼
	WhaleTypeNeutral    WhaleType = "neutral"     // 中性鲸鱼
	WhaleTypeDumbMoney  WhaleType = "dumb_money"  // 低质量鲸鱼
)

// Whale 鲸鱼交易员
type Whale struct {
	ID       uint64 `gorm:"column:id;primaryKey;autoIncrement;comment:主键"`
	Address  string `gorm:"column:address;type:varchar(128);uniqueIndex:idx_whale_address;not null;comment:钱包地址(小写)"`
	Nickname string `gorm:"column:nickname;type:varchar(64);default:'';comment:昵称"`

	TotalVolume   decimal.Decimal `gorm:"column:total_volume;type:decimal(32,18);default:0;comment:累计交易量USD"`
	TotalTrades   int             `gorm:"column:total_trades;not null;default:0;comment:累计交易次数"`
	WinningTrades int             `gorm:"column:winning_trades;not null;default:0;comment:盈利交易次数"`
	LosingTrades  int             `gorm:"column:losing_trades;not null;default:0;comment:亏损交易次数"`
	WinRate       float64         `gorm:"column:win_rate;default:0;comment:胜率(0~1)"`

	QualityScore   float64   `gorm:"column:quality_score;default:0;comment:质量评分(0~1)"`
	WhaleType      WhaleType `gorm:"column:whale_type;type:varchar(16);default:'neutral';comment:鲸鱼分类"`
	Specialization string    `gorm:"column:specialization;type:varchar(64);default:'';comment:擅长市场类别"`
	SharpeRatio    float64   `gorm:"column:sharpe_ratio;default:0;comment:夏普比率"`
	IsTracked      bool      `gorm:"column:is_tracked;not null;default:false;comment:是否跟踪"`

	FirstSeen    time.Time  `gorm:"column:first_seen;not null;comment:首次发现时间"`
	LastActivity time.Time  `gorm:"column:last_activity;not null;comment:最近活动时间"`
	CreatedAt    *time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt    *time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (*Whale) TableName() string {
	return "whale"
}

// NormalizeAddress 地址统一小写，保证唯一索引语义
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// RecalcWinRate 根据胜负场次重算胜率
func (w *Whale) RecalcWinRate() {
	decided := w.WinningTrades + w.LosingTrades
	if decided == 0 {
		w.WinRate = 0
		return
	}
	w.WinRate = float64(w.WinningTrades) / float64(decided)
}

// StatsValid 校验胜负场次不超过总场次
func (w *Whale) StatsValid() bool {
	return w.WinningTrades+w.LosingTrades <= w.TotalTrades
}

// WhaleTransaction 鲸鱼历史成交记录（用于稳定性子评分）
type WhaleTransaction struct {
	ID           uint64          `gorm:"column:id;primaryKey;autoIncrement;comment:主键"`
	WhaleAddress string          `gorm:"column:whale_address;type:varchar(128);index:idx_whale_tx_addr_time,priority:1;not null;comment:鲸鱼地址"`
	MarketID     string          `gorm:"column:market_id;type:varchar(128);not null;comment:市场ID"`
	Side         string          `gorm:"column:side;type:varchar(8);not null;comment:BUY或SELL"`
	Price        decimal.Decimal `gorm:"column:price;type:decimal(32,18);default:0;comment:成交价格"`
	AmountUSD    decimal.Decimal `gorm:"column:amount_usd;type:decimal(32,18);default:0;comment:成交金额USD"`
	TradedAt     time.Time       `gorm:"column:traded_at;index:idx_whale_tx_addr_time,priority:2;not null;comment:成交时间"`
	CreatedAt    *time.Time      `gorm:"column:created_at;not null;autoCreateTime"`
}

func (*WhaleTransaction) TableName() string {
	return "whale_transaction"
}

const (
	TradeSideBuy  = "BUY"
	TradeSideSell = "SELL"
)
