package strategy

import (
	"context"

	"github.com/shopspring/decimal"
)

// Opportunity 一条候选交易机会
type Opportunity struct {
	Strategy       string          // 产生机会的策略名
	MarketID       string          // 市场ID
	MarketQuestion string          // 市场标题
	Side           string          // YES或NO
	Price          decimal.Decimal // 当前入场价
	SizeUSD        decimal.Decimal // 计划仓位
	Confidence     float64         // 置信度
	ExpectedProfit decimal.Decimal // 预期收益(USD)
	SignalID       string          // 关联的跟单信号ID，可为空
	WhaleAddress   string          // 关联的鲸鱼地址，可为空
	Notes          string          // 说明
}

// Strategy 交易策略接口
type Strategy interface {
	// Name 策略名称
	Name() string

	// Enabled 策略是否启用
	Enabled() bool

	// FindOpportunities 发现本轮的候选机会
	FindOpportunities(ctx context.Context) ([]*Opportunity, error)

	// Execute 执行一条机会
	Execute(ctx context.Context, opp *Opportunity) error
}

// Registry 策略注册表，保持注册顺序
type Registry struct {
	strategies []Strategy
}

// NewRegistry 创建策略注册表
func NewRegistry() *Registry {
	return &Registry{strategies: make([]Strategy, 0)}
}

// Register 注册策略
func (r *Registry) Register(s Strategy) {
	r.strategies = append(r.strategies, s)
}

// All 按注册顺序返回全部策略
func (r *Registry) All() []Strategy {
	return r.strategies
}
