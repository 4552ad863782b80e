package scorer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

func init() {
	cfg := logger.DefaultConfig()
	cfg.Discard = true
	l := cfg.Build()
	logger.SetDefault(l)
	logger.SetDefaultL1(l)
}

func newWhale(totalTrades int, winRate float64) *model.Whale {
	return &model.Whale{
		Address:     "0xabc",
		TotalTrades: totalTrades,
		WinRate:     winRate,
	}
}

func TestScoreInsufficientSample(t *testing.T) {
	engine := NewEngine(10)

	for _, trades := range []int{0, 1, 5, 9} {
		whale := newWhale(trades, 0.9)
		assert.Equal(t, 0.0, engine.Score(whale, nil), "trades=%d", trades)
	}
}

func TestScoreIdempotent(t *testing.T) {
	engine := NewEngine(10)
	whale := newWhale(50, 0.7)

	first := engine.Score(whale, nil)
	second := engine.Score(whale, nil)

	assert.Positive(t, first)
	assert.Equal(t, first, second)
}

func TestWinRateSaturation(t *testing.T) {
	assert.InDelta(t, 1.0, winRateScore(0.85), 1e-9)
	assert.Equal(t, 1.0, winRateScore(0.95))
	assert.InDelta(t, 0.5/0.85, winRateScore(0.5), 1e-9)
	assert.Equal(t, 0.0, winRateScore(0))
}

func TestClassify(t *testing.T) {
	engine := NewEngine(10)

	tests := []struct {
		score float64
		want  model.WhaleType
	}{
		{0.80, model.WhaleTypeSmartMoney},
		{0.75, model.WhaleTypeSmartMoney},
		{0.60, model.WhaleTypeNeutral},
		{0.50, model.WhaleTypeNeutral},
		{0.30, model.WhaleTypeDumbMoney},
		{0.0, model.WhaleTypeDumbMoney},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, engine.Classify(tt.score), "score=%v", tt.score)
	}
}

func TestConsistencyNeutralWhenSparse(t *testing.T) {
	engine := NewEngine(10)

	// 窗口内不足10条记录时返回中性0.5
	now := time.Now()
	var history []*model.WhaleTransaction
	for i := 0; i < 5; i++ {
		history = append(history, &model.WhaleTransaction{
			Side:      model.TradeSideSell,
			AmountUSD: decimal.NewFromInt(1000),
			TradedAt:  now.Add(-time.Duration(i) * 24 * time.Hour),
		})
	}

	assert.Equal(t, 0.5, engine.consistencyScore(history, now))
}

func TestConsistencyAllPositiveWeeks(t *testing.T) {
	engine := NewEngine(10)

	// 12笔卖出分布在近4周，每个周桶净流入都为正
	now := time.Now()
	var history []*model.WhaleTransaction
	for i := 0; i < 12; i++ {
		history = append(history, &model.WhaleTransaction{
			Side:      model.TradeSideSell,
			AmountUSD: decimal.NewFromInt(2000),
			TradedAt:  now.Add(-time.Duration(i*2) * 24 * time.Hour),
		})
	}

	assert.Equal(t, 1.0, engine.consistencyScore(history, now))
}

func TestConsistencyBuysDragScoreDown(t *testing.T) {
	engine := NewEngine(10)

	// 全部为买入时没有正向资金流周桶
	now := time.Now()
	var history []*model.WhaleTransaction
	for i := 0; i < 12; i++ {
		history = append(history, &model.WhaleTransaction{
			Side:      model.TradeSideBuy,
			AmountUSD: decimal.NewFromInt(2000),
			TradedAt:  now.Add(-time.Duration(i*2) * 24 * time.Hour),
		})
	}

	assert.Equal(t, 0.0, engine.consistencyScore(history, now))
}

func TestRiskScore(t *testing.T) {
	assert.Equal(t, 0.6, riskScore(0))
	assert.Equal(t, 0.6, riskScore(-1.5))
	assert.InDelta(t, 0.75, riskScore(1.5), 1e-9)
	assert.Equal(t, 1.0, riskScore(3.0))
}

func TestSelectionScore(t *testing.T) {
	assert.Equal(t, 0.8, selectionScore("politics"))
	assert.Equal(t, 0.5, selectionScore(""))
}

func TestHighQualityWhaleIsSmartMoney(t *testing.T) {
	engine := NewEngine(10)

	whale := newWhale(120, 0.85)
	whale.Specialization = "sports"
	whale.SharpeRatio = 2.0

	// 充足的正向资金流历史
	now := time.Now()
	var history []*model.WhaleTransaction
	for i := 0; i < 20; i++ {
		history = append(history, &model.WhaleTransaction{
			Side:      model.TradeSideSell,
			AmountUSD: decimal.NewFromInt(5000),
			TradedAt:  now.Add(-time.Duration(i*3) * 24 * time.Hour),
		})
	}

	score := engine.Score(whale, history)
	assert.GreaterOrEqual(t, score, 0.75)
	assert.Equal(t, model.WhaleTypeSmartMoney, engine.Classify(score))
}
