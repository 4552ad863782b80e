package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/internal/alert"
	"github.com/ninja0404/whale-signal/internal/config"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/risk"
	"github.com/ninja0404/whale-signal/internal/signal"
	"github.com/ninja0404/whale-signal/internal/strategy"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

func init() {
	cfg := logger.DefaultConfig()
	cfg.Discard = true
	l := cfg.Build()
	logger.SetDefault(l)
	logger.SetDefaultL1(l)
}

// stubSignalRepo 统计接口返回空值即可
type stubSignalRepo struct{}

func (stubSignalRepo) Create(*model.Signal) error            { return nil }
func (stubSignalRepo) GetByID(string) (*model.Signal, error) { return nil, nil }
func (stubSignalRepo) Copyable(time.Duration, float64) ([]*model.Signal, error) {
	return nil, nil
}
func (stubSignalRepo) MarkExecuted(string, uint64, time.Time) (bool, error) { return false, nil }
func (stubSignalRepo) MarkIgnored(string, string) (bool, error)             { return false, nil }
func (stubSignalRepo) ExpireStale(time.Duration) (int64, error)             { return 0, nil }
func (stubSignalRepo) DeleteTerminalBefore(time.Time) (int64, error)        { return 0, nil }
func (stubSignalRepo) CountByStatus() (repo.SignalStatusCounts, error) {
	return make(repo.SignalStatusCounts), nil
}
func (stubSignalRepo) AvgConfidence() (float64, error) { return 0, nil }

// stubTradeRepo 只喂给风控的P&L和持仓查询
type stubTradeRepo struct {
	dailyPnl decimal.Decimal
}

func (s *stubTradeRepo) Open(*model.Trade) error { return nil }
func (s *stubTradeRepo) Close(uint64, decimal.Decimal, decimal.Decimal) (*model.Trade, error) {
	return nil, nil
}
func (s *stubTradeRepo) GetByID(uint64) (*model.Trade, error)       { return nil, nil }
func (s *stubTradeRepo) ListOpen() ([]*model.Trade, error)          { return nil, nil }
func (s *stubTradeRepo) ActiveByMarket(string, string) ([]*model.Trade, error) {
	return nil, nil
}
func (s *stubTradeRepo) RealizedNetProfitSince(since time.Time) (decimal.Decimal, error) {
	if time.Since(since) < 24*time.Hour {
		return s.dailyPnl, nil
	}
	return s.dailyPnl, nil
}

// recordingStrategy 记录调用次数的假策略
type recordingStrategy struct {
	name      string
	enabled   bool
	findCalls int
	execCalls int
	findErr   error
	panics    bool
	opps      []*strategy.Opportunity
}

func (s *recordingStrategy) Name() string  { return s.name }
func (s *recordingStrategy) Enabled() bool { return s.enabled }

func (s *recordingStrategy) FindOpportunities(ctx context.Context) ([]*strategy.Opportunity, error) {
	s.findCalls++
	if s.panics {
		panic("boom")
	}
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.opps, nil
}

func (s *recordingStrategy) Execute(ctx context.Context, opp *strategy.Opportunity) error {
	s.execCalls++
	return nil
}

func newTestEngine(tradeRepo repo.TradeRepo, strategies ...strategy.Strategy) *Engine {
	registry := strategy.NewRegistry()
	for _, s := range strategies {
		registry.Register(s)
	}

	riskCfg := config.RiskConfig{
		PaperCapitalUSD:    10000,
		MaxPositionSizePct: 10,
		DailyLossLimitPct:  5,
		WeeklyLossLimitPct: 10,
	}

	return NewEngine(registry,
		signal.NewStore(stubSignalRepo{}, 0.70),
		risk.NewManager(tradeRepo, riskCfg),
		alert.NewManager(),
		Config{ScanInterval: time.Hour})
}

func TestRunCycleExecutesEnabledStrategies(t *testing.T) {
	active := &recordingStrategy{name: "active", enabled: true,
		opps: []*strategy.Opportunity{{MarketID: "mkt-1"}, {MarketID: "mkt-2"}}}
	disabled := &recordingStrategy{name: "disabled", enabled: false}

	e := newTestEngine(&stubTradeRepo{}, active, disabled)
	e.RunCycle()

	assert.Equal(t, 1, active.findCalls)
	assert.Equal(t, 2, active.execCalls)
	assert.Equal(t, 0, disabled.findCalls)
}

func TestRunCycleCircuitBreakerBlocksAllStrategies(t *testing.T) {
	s := &recordingStrategy{name: "active", enabled: true}

	// 日亏损$600超过限额$500
	e := newTestEngine(&stubTradeRepo{dailyPnl: decimal.NewFromInt(-600)}, s)
	e.RunCycle()

	assert.Equal(t, 0, s.findCalls)
}

func TestRunCycleIsolatesStrategyFailures(t *testing.T) {
	failing := &recordingStrategy{name: "failing", enabled: true,
		findErr: assert.AnError}
	panicking := &recordingStrategy{name: "panicking", enabled: true, panics: true}
	healthy := &recordingStrategy{name: "healthy", enabled: true,
		opps: []*strategy.Opportunity{{MarketID: "mkt-1"}}}

	e := newTestEngine(&stubTradeRepo{}, failing, panicking, healthy)
	require.NotPanics(t, func() { e.RunCycle() })

	assert.Equal(t, 1, failing.findCalls)
	assert.Equal(t, 1, panicking.findCalls)
	assert.Equal(t, 1, healthy.findCalls)
	assert.Equal(t, 1, healthy.execCalls)
}

func TestTriggerScanDoesNotBlock(t *testing.T) {
	e := newTestEngine(&stubTradeRepo{})

	// 没有消费者时重复触发也不阻塞
	e.TriggerScan()
	e.TriggerScan()
	e.TriggerScan()
}
