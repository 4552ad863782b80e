package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus 纸面交易状态
type TradeStatus string

const (
	TradeStatusOpen    TradeStatus = "open"
	TradeStatusClosed  TradeStatus = "closed"
	TradeStatusSettled TradeStatus = "settled"
)

// Trade 纸面交易台账
type Trade struct {
	ID             uint64 `gorm:"column:id;primaryKey;autoIncrement;comment:主键"`
	MarketID       string `gorm:"column:market_id;type:varchar(128);index:idx_trade_market_status,priority:1;not null;comment:市场ID"`
	MarketQuestion string `gorm:"column:market_question;type:varchar(512);default:'';comment:市场问题"`
	Strategy       string `gorm:"column:strategy;type:varchar(32);index;not null;comment:策略名"`
	Side           string `gorm:"column:side;type:varchar(8);not null;comment:YES或NO"`

	EntryPrice decimal.Decimal `gorm:"column:entry_price;type:decimal(32,18);default:0;comment:开仓价格"`
	ExitPrice  decimal.Decimal `gorm:"column:exit_price;type:decimal(32,18);default:0;comment:平仓价格"`
	SizeUSD    decimal.Decimal `gorm:"column:size_usd;type:decimal(32,18);default:0;comment:仓位USD"`

	ProfitLoss   decimal.Decimal `gorm:"column:profit_loss;type:decimal(32,18);default:0;comment:毛盈亏USD"`
	GasCostUSD   decimal.Decimal `gorm:"column:gas_cost_usd;type:decimal(32,18);default:0;comment:Gas成本USD"`
	NetProfitUSD decimal.Decimal `gorm:"column:net_profit_usd;type:decimal(32,18);default:0;comment:净盈亏USD"`

	Status          TradeStatus `gorm:"column:status;type:varchar(16);index:idx_trade_market_status,priority:2;not null;default:'open';comment:交易状态"`
	ConfidenceScore float64     `gorm:"column:confidence_score;default:0;comment:开仓时的置信度"`
	Notes           string      `gorm:"column:notes;type:varchar(512);default:'';comment:备注"`
	PaperTrade      bool        `gorm:"column:paper_trade;not null;default:true;comment:是否纸面交易"`

	EntryTime time.Time  `gorm:"column:entry_time;not null;comment:开仓时间"`
	ExitTime  *time.Time `gorm:"column:exit_time;index;comment:平仓时间"`
	CreatedAt *time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt *time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (*Trade) TableName() string {
	return "trade"
}

// IsOpen 是否未平仓
func (t *Trade) IsOpen() bool {
	return t.Status == TradeStatusOpen
}
