package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalType 信号类型
type SignalType string

const (
	SignalTypeEntry    SignalType = "ENTRY"    // 鲸鱼建仓
	SignalTypeExit     SignalType = "EXIT"     // 鲸鱼清仓
	SignalTypeIncrease SignalType = "INCREASE" // 鲸鱼加仓
	SignalTypeDecrease SignalType = "DECREASE" // 鲸鱼减仓
)

// SignalStatus 信号状态，pending为唯一非终态
type SignalStatus string

const (
	SignalStatusPending  SignalStatus = "pending"
	SignalStatusExecuted SignalStatus = "executed"
	SignalStatusIgnored  SignalStatus = "ignored"
	SignalStatusExpired  SignalStatus = "expired"
)

// Side 下注方向
const (
	SideYes = "YES"
	SideNo  = "NO"
)

// Signal 跟单信号
type Signal struct {
	ID           string          `gorm:"column:id;type:varchar(32);primaryKey;comment:ULID"`
	WhaleAddress string          `gorm:"column:whale_address;type:varchar(128);index;not null;comment:鲸鱼地址"`
	SignalType   SignalType      `gorm:"column:signal_type;type:varchar(16);not null;comment:信号类型"`
	MarketID     string          `gorm:"column:market_id;type:varchar(128);index;not null;comment:市场ID"`
	Side         string          `gorm:"column:side;type:varchar(8);not null;comment:YES或NO"`
	Price        decimal.Decimal `gorm:"column:price;type:decimal(32,18);default:0;comment:鲸鱼成交价格"`
	SizeUSD      decimal.Decimal `gorm:"column:size_usd;type:decimal(32,18);default:0;comment:鲸鱼仓位USD"`
	Confidence   float64         `gorm:"column:confidence;not null;default:0;comment:置信度=创建时的鲸鱼质量评分"`
	Reasoning    string          `gorm:"column:reasoning;type:varchar(1024);default:'';comment:信号说明"`

	Status          SignalStatus `gorm:"column:status;type:varchar(16);index:idx_signal_status_created,priority:1;not null;default:'pending';comment:信号状态"`
	CreatedAt       time.Time    `gorm:"column:created_at;index:idx_signal_status_created,priority:2;not null;comment:创建时间"`
	ExecutedAt      *time.Time   `gorm:"column:executed_at;comment:执行时间"`
	ExecutedTradeID uint64       `gorm:"column:executed_trade_id;default:0;comment:执行产生的交易ID"`
	UpdatedAt       *time.Time   `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (*Signal) TableName() string {
	return "whale_signal"
}

// IsTerminal 是否已进入终态
func (s *Signal) IsTerminal() bool {
	return s.Status != SignalStatusPending
}

// Age 信号当前年龄
func (s *Signal) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}
