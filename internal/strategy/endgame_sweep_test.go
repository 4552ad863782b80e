package strategy

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
)

func endgameMarket(id string, yes float64, hoursToEnd float64) *model.Market {
	end := time.Now().Add(time.Duration(hoursToEnd * float64(time.Hour)))
	return &model.Market{
		ID:            id,
		Question:      "Will it settle?",
		OutcomePrices: []decimal.Decimal{decimal.NewFromFloat(yes), decimal.NewFromFloat(1 - yes)},
		EndDate:       &end,
	}
}

func newEndgameSweep(t *testing.T, tradeRepo repo.TradeRepo, markets *fakeMarketClient) *EndgameSweep {
	t.Helper()

	riskCfg := config.RiskConfig{
		PaperCapitalUSD:              10000,
		MaxPositionSizePct:           10,
		DailyLossLimitPct:            5,
		WeeklyLossLimitPct:           10,
		MinProfitThresholdPct:        0.3,
		GasFeeMaxPctOfProfit:         10,
		MinMarketsForDiversification: 5,
		GasEstimateUSD:               0.5,
	}

	return NewEndgameSweep(risk.NewManager(tradeRepo, riskCfg), markets, tradeRepo, alert.NewManager(),
		config.EndgameSweepConfig{
			Enabled:              true,
			MinPrice:             0.95,
			MaxPrice:             0.99,
			MaxHoursToSettlement: 24,
			MinConfidence:        0.70,
			TopN:                 10,
		})
}

func TestEndgameSweepFindsConvergingMarkets(t *testing.T) {
	markets := &fakeMarketClient{markets: map[string]*model.Market{
		"in-band":   endgameMarket("in-band", 0.97, 10),
		"too-cheap": endgameMarket("too-cheap", 0.90, 10),
		"too-far":   endgameMarket("too-far", 0.97, 48),
	}}
	noEnd := yesNoMarket("no-end-date", 0.97)
	markets.markets["no-end-date"] = noEnd

	s := newEndgameSweep(t, newMemTradeRepo(), markets)

	opps, err := s.FindOpportunities(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, "in-band", opp.MarketID)
	assert.Equal(t, model.SideYes, opp.Side)
	assert.InDelta(t, 0.97, opp.Confidence, 1e-9)
	// SizeByConfidence(0.97)的半Kelly被10%上限封顶 → $1000
	assert.True(t, opp.SizeUSD.Equal(decimal.NewFromInt(1000)), "got %s", opp.SizeUSD)
	// 预期收益 = 1000 × (0.03/0.97) ≈ $30.9
	profit, _ := opp.ExpectedProfit.Float64()
	assert.InDelta(t, 30.93, profit, 0.1)
}

func TestEndgameSweepNoSideInBand(t *testing.T) {
	// NO侧价格0.96落在区间内
	markets := &fakeMarketClient{markets: map[string]*model.Market{
		"mkt-no": endgameMarket("mkt-no", 0.04, 10),
	}}
	s := newEndgameSweep(t, newMemTradeRepo(), markets)

	opps, err := s.FindOpportunities(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, model.SideNo, opps[0].Side)
}

func TestEndgameSweepSkipsHeldMarkets(t *testing.T) {
	tradeRepo := newMemTradeRepo()
	require.NoError(t, tradeRepo.Open(&model.Trade{
		MarketID:   "in-band",
		Strategy:   EndgameSweepName,
		Side:       model.SideYes,
		EntryPrice: decimal.NewFromFloat(0.97),
		SizeUSD:    decimal.NewFromInt(1000),
		Status:     model.TradeStatusOpen,
	}))

	markets := &fakeMarketClient{markets: map[string]*model.Market{
		"in-band": endgameMarket("in-band", 0.97, 10),
	}}
	s := newEndgameSweep(t, tradeRepo, markets)

	opps, err := s.FindOpportunities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestEndgameSweepRanksByExpectedProfit(t *testing.T) {
	markets := &fakeMarketClient{markets: map[string]*model.Market{
		"a": endgameMarket("a", 0.98, 10),
		"b": endgameMarket("b", 0.95, 10),
		"c": endgameMarket("c", 0.97, 10),
	}}
	s := newEndgameSweep(t, newMemTradeRepo(), markets)

	opps, err := s.FindOpportunities(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 3)

	// 价格越低收敛空间越大，预期收益越高
	assert.Equal(t, "b", opps[0].MarketID)
	assert.Equal(t, "c", opps[1].MarketID)
	assert.Equal(t, "a", opps[2].MarketID)
}

func TestEndgameSweepExecuteOpensTrade(t *testing.T) {
	tradeRepo := newMemTradeRepo()
	markets := &fakeMarketClient{markets: map[string]*model.Market{
		"in-band": endgameMarket("in-band", 0.97, 10),
	}}
	s := newEndgameSweep(t, tradeRepo, markets)

	opps, err := s.FindOpportunities(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)

	require.NoError(t, s.Execute(context.Background(), opps[0]))

	open, err := tradeRepo.ListOpen()
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, EndgameSweepName, open[0].Strategy)
	assert.True(t, open[0].PaperTrade)
}
