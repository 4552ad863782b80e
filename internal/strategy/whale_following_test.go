package strategy

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/internal/alert"
	"github.com/ninja0404/whale-signal/internal/config"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/risk"
	"github.com/ninja0404/whale-signal/internal/signal"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

func init() {
	cfg := logger.DefaultConfig()
	cfg.Discard = true
	l := cfg.Build()
	logger.SetDefault(l)
	logger.SetDefaultL1(l)
}

// memSignalRepo 内存信号仓库，语义与MySQL版一致
type memSignalRepo struct {
	signals map[string]*model.Signal
}

func newMemSignalRepo() *memSignalRepo {
	return &memSignalRepo{signals: make(map[string]*model.Signal)}
}

func (r *memSignalRepo) Create(sig *model.Signal) error {
	cp := *sig
	r.signals[sig.ID] = &cp
	return nil
}

func (r *memSignalRepo) GetByID(id string) (*model.Signal, error) {
	sig, ok := r.signals[id]
	if !ok {
		return nil, nil
	}
	cp := *sig
	return &cp, nil
}

func (r *memSignalRepo) Copyable(delay time.Duration, minConfidence float64) ([]*model.Signal, error) {
	cutoff := time.Now().Add(-delay)

	var out []*model.Signal
	for _, sig := range r.signals {
		if sig.Status != model.SignalStatusPending || sig.CreatedAt.After(cutoff) || sig.Confidence < minConfidence {
			continue
		}
		cp := *sig
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memSignalRepo) MarkExecuted(id string, tradeID uint64, executedAt time.Time) (bool, error) {
	sig, ok := r.signals[id]
	if !ok || sig.Status != model.SignalStatusPending {
		return false, nil
	}
	sig.Status = model.SignalStatusExecuted
	sig.ExecutedTradeID = tradeID
	sig.ExecutedAt = &executedAt
	return true, nil
}

func (r *memSignalRepo) MarkIgnored(id string, reasoning string) (bool, error) {
	sig, ok := r.signals[id]
	if !ok || sig.Status != model.SignalStatusPending {
		return false, nil
	}
	sig.Status = model.SignalStatusIgnored
	sig.Reasoning = reasoning
	return true, nil
}

func (r *memSignalRepo) ExpireStale(maxAge time.Duration) (int64, error) {
	return 0, nil
}

func (r *memSignalRepo) DeleteTerminalBefore(cutoff time.Time) (int64, error) {
	return 0, nil
}

func (r *memSignalRepo) CountByStatus() (repo.SignalStatusCounts, error) {
	counts := make(repo.SignalStatusCounts)
	for _, sig := range r.signals {
		counts[sig.Status]++
	}
	return counts, nil
}

func (r *memSignalRepo) AvgConfidence() (float64, error) {
	return 0, nil
}

// memTradeRepo 内存交易台账
type memTradeRepo struct {
	trades map[uint64]*model.Trade
	nextID uint64
}

func newMemTradeRepo() *memTradeRepo {
	return &memTradeRepo{trades: make(map[uint64]*model.Trade), nextID: 1}
}

func (r *memTradeRepo) Open(trade *model.Trade) error {
	trade.ID = r.nextID
	r.nextID++
	if trade.Status == "" {
		trade.Status = model.TradeStatusOpen
	}
	if trade.EntryTime.IsZero() {
		trade.EntryTime = time.Now()
	}
	cp := *trade
	r.trades[trade.ID] = &cp
	return nil
}

func (r *memTradeRepo) Close(id uint64, exitPrice, gasCost decimal.Decimal) (*model.Trade, error) {
	trade, ok := r.trades[id]
	if !ok || trade.Status != model.TradeStatusOpen {
		return trade, nil
	}

	profit := decimal.Zero
	if trade.EntryPrice.IsPositive() {
		profit = trade.SizeUSD.Mul(exitPrice.Sub(trade.EntryPrice)).Div(trade.EntryPrice)
	}
	now := time.Now()

	trade.ExitPrice = exitPrice
	trade.ProfitLoss = profit
	trade.GasCostUSD = gasCost
	trade.NetProfitUSD = profit.Sub(gasCost)
	trade.Status = model.TradeStatusClosed
	trade.ExitTime = &now

	cp := *trade
	return &cp, nil
}

func (r *memTradeRepo) GetByID(id uint64) (*model.Trade, error) {
	trade, ok := r.trades[id]
	if !ok {
		return nil, nil
	}
	cp := *trade
	return &cp, nil
}

func (r *memTradeRepo) ListOpen() ([]*model.Trade, error) {
	var out []*model.Trade
	for _, t := range r.trades {
		if t.Status == model.TradeStatusOpen {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTradeRepo) ActiveByMarket(marketID string, strategy string) ([]*model.Trade, error) {
	var out []*model.Trade
	for _, t := range r.trades {
		if t.Status != model.TradeStatusOpen || t.MarketID != marketID {
			continue
		}
		if strategy != "" && t.Strategy != strategy {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memTradeRepo) RealizedNetProfitSince(since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, t := range r.trades {
		if t.Status == model.TradeStatusOpen || t.ExitTime == nil || t.ExitTime.Before(since) {
			continue
		}
		total = total.Add(t.NetProfitUSD)
	}
	return total, nil
}

// fakeMarketClient 固定快照的市场数据客户端
type fakeMarketClient struct {
	markets map[string]*model.Market
}

func (c *fakeMarketClient) GetTradeableMarkets(ctx context.Context) ([]*model.Market, error) {
	var out []*model.Market
	for _, m := range c.markets {
		out = append(out, m)
	}
	return out, nil
}

func (c *fakeMarketClient) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	m, ok := c.markets[id]
	if !ok {
		return nil, errors.Errorf("market %s not found", id)
	}
	return m, nil
}

func (c *fakeMarketClient) GetRecentTrades(ctx context.Context, tokenID string, limit int) ([]*model.FeedTrade, error) {
	return nil, nil
}

func yesNoMarket(id string, yes float64) *model.Market {
	return &model.Market{
		ID:            id,
		Question:      "Will it happen?",
		OutcomePrices: []decimal.Decimal{decimal.NewFromFloat(yes), decimal.NewFromFloat(1 - yes)},
	}
}

func newWhaleFollowing(t *testing.T, sigRepo repo.SignalRepo, tradeRepo repo.TradeRepo, markets *fakeMarketClient) *WhaleFollowing {
	t.Helper()

	whaleCfg := config.WhaleConfig{
		MinQualityScore: 0.70,
		CopyDelay:       5 * time.Minute,
		MaxPositionPct:  8,
	}
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

	store := signal.NewStore(sigRepo, whaleCfg.MinQualityScore)
	riskMgr := risk.NewManager(tradeRepo, riskCfg)
	alerts := alert.NewManager()

	return NewWhaleFollowing(store, riskMgr, markets, tradeRepo, alerts,
		whaleCfg, config.WhaleFollowingConfig{Enabled: true, TopN: 5})
}

func pendingEntrySignal(id, marketID string, price, size float64, confidence float64, age time.Duration) *model.Signal {
	return &model.Signal{
		ID:           id,
		WhaleAddress: "0xwhale000000000000000000000000000000000001",
		SignalType:   model.SignalTypeEntry,
		MarketID:     marketID,
		Side:         model.SideYes,
		Price:        decimal.NewFromFloat(price),
		SizeUSD:      decimal.NewFromFloat(size),
		Confidence:   confidence,
		Status:       model.SignalStatusPending,
		CreatedAt:    time.Now().Add(-age),
	}
}

func TestWhaleFollowingEndToEnd(t *testing.T) {
	sigRepo := newMemSignalRepo()
	tradeRepo := newMemTradeRepo()
	markets := &fakeMarketClient{markets: map[string]*model.Market{
		"mkt-M": yesNoMarket("mkt-M", 0.58),
	}}
	s := newWhaleFollowing(t, sigRepo, tradeRepo, markets)

	// 质量0.88的鲸鱼在6分钟前建仓，延迟窗口5分钟
	require.NoError(t, sigRepo.Create(pendingEntrySignal("sig-1", "mkt-M", 0.58, 5000, 0.88, 6*time.Minute)))

	opps, err := s.FindOpportunities(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, "mkt-M", opp.MarketID)
	assert.Equal(t, model.SideYes, opp.Side)
	assert.Equal(t, 0.88, opp.Confidence)
	// 1/4 Kelly 0.19被8%上限封顶 → $800
	assert.True(t, opp.SizeUSD.Equal(decimal.NewFromInt(800)), "got %s", opp.SizeUSD)
	assert.True(t, opp.ExpectedProfit.IsPositive())

	require.NoError(t, s.Execute(context.Background(), opp))

	sig, err := sigRepo.GetByID("sig-1")
	require.NoError(t, err)
	assert.Equal(t, model.SignalStatusExecuted, sig.Status)
	assert.NotZero(t, sig.ExecutedTradeID)

	trade, err := tradeRepo.GetByID(sig.ExecutedTradeID)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, WhaleFollowingName, trade.Strategy)
	assert.True(t, trade.SizeUSD.Equal(decimal.NewFromInt(800)))
	assert.True(t, trade.PaperTrade)
}

func TestWhaleFollowingDelayWindow(t *testing.T) {
	sigRepo := newMemSignalRepo()
	markets := &fakeMarketClient{markets: map[string]*model.Market{
		"mkt-M": yesNoMarket("mkt-M", 0.58),
	}}
	s := newWhaleFollowing(t, sigRepo, newMemTradeRepo(), markets)

	// 200秒 < 5分钟延迟窗口，不可跟单
	require.NoError(t, sigRepo.Create(pendingEntrySignal("sig-young", "mkt-M", 0.58, 5000, 0.88, 200*time.Second)))

	opps, err := s.FindOpportunities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)

	sig, _ := sigRepo.GetByID("sig-young")
	assert.Equal(t, model.SignalStatusPending, sig.Status)
}

func TestWhaleFollowingPriceDrift(t *testing.T) {
	sigRepo := newMemSignalRepo()
	markets := &fakeMarketClient{markets: map[string]*model.Market{
		"mkt-M": yesNoMarket("mkt-M", 0.50),
	}}
	s := newWhaleFollowing(t, sigRepo, newMemTradeRepo(), markets)

	// 信号价0.58，现价0.50，偏离13.8% > 5%
	require.NoError(t, sigRepo.Create(pendingEntrySignal("sig-1", "mkt-M", 0.58, 5000, 0.88, 10*time.Minute)))

	opps, err := s.FindOpportunities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)

	sig, _ := sigRepo.GetByID("sig-1")
	assert.Equal(t, model.SignalStatusIgnored, sig.Status)
	assert.Contains(t, sig.Reasoning, "| Ignored: price moved")
}

func TestWhaleFollowingTinyPosition(t *testing.T) {
	sigRepo := newMemSignalRepo()
	markets := &fakeMarketClient{markets: map[string]*model.Market{
		"mkt-M": yesNoMarket("mkt-M", 0.58),
	}}
	s := newWhaleFollowing(t, sigRepo, newMemTradeRepo(), markets)

	// 鲸鱼仓位只有$8，跟单一半是$4，低于$5下限
	require.NoError(t, sigRepo.Create(pendingEntrySignal("sig-1", "mkt-M", 0.58, 8, 0.88, 10*time.Minute)))

	opps, err := s.FindOpportunities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)

	sig, _ := sigRepo.GetByID("sig-1")
	assert.Equal(t, model.SignalStatusIgnored, sig.Status)
	assert.Contains(t, sig.Reasoning, "below minimum")
}

func TestWhaleFollowingSkipsMarketAlreadyHeld(t *testing.T) {
	sigRepo := newMemSignalRepo()
	tradeRepo := newMemTradeRepo()
	markets := &fakeMarketClient{markets: map[string]*model.Market{
		"mkt-M": yesNoMarket("mkt-M", 0.58),
	}}
	s := newWhaleFollowing(t, sigRepo, tradeRepo, markets)

	// 本策略在mkt-M已有一笔$100持仓
	require.NoError(t, tradeRepo.Open(&model.Trade{
		MarketID:   "mkt-M",
		Strategy:   WhaleFollowingName,
		Side:       model.SideYes,
		EntryPrice: decimal.NewFromFloat(0.55),
		SizeUSD:    decimal.NewFromInt(100),
		Status:     model.TradeStatusOpen,
	}))
	require.NoError(t, sigRepo.Create(pendingEntrySignal("sig-1", "mkt-M", 0.58, 5000, 0.88, 10*time.Minute)))

	opps, err := s.FindOpportunities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)

	sig, _ := sigRepo.GetByID("sig-1")
	assert.Equal(t, model.SignalStatusIgnored, sig.Status)
	assert.Contains(t, sig.Reasoning, "already have open position")

	// 持仓数不变，没有加仓
	open, err := tradeRepo.ActiveByMarket("mkt-M", WhaleFollowingName)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestWhaleFollowingMissingMarketKeepsPending(t *testing.T) {
	sigRepo := newMemSignalRepo()
	markets := &fakeMarketClient{markets: map[string]*model.Market{}}
	s := newWhaleFollowing(t, sigRepo, newMemTradeRepo(), markets)

	require.NoError(t, sigRepo.Create(pendingEntrySignal("sig-1", "mkt-M", 0.58, 5000, 0.88, 10*time.Minute)))

	opps, err := s.FindOpportunities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)

	// 市场数据拿不到不是终态，下轮重试
	sig, _ := sigRepo.GetByID("sig-1")
	assert.Equal(t, model.SignalStatusPending, sig.Status)
}

func TestWhaleFollowingRanksByConfidence(t *testing.T) {
	sigRepo := newMemSignalRepo()
	markets := &fakeMarketClient{markets: map[string]*model.Market{}}
	for i := 0; i < 7; i++ {
		id := string(rune('a' + i))
		markets.markets["mkt-"+id] = yesNoMarket("mkt-"+id, 0.58)
	}
	s := newWhaleFollowing(t, sigRepo, newMemTradeRepo(), markets)

	for i := 0; i < 7; i++ {
		id := string(rune('a' + i))
		require.NoError(t, sigRepo.Create(pendingEntrySignal(
			"sig-"+id, "mkt-"+id, 0.58, 5000, 0.71+float64(i)*0.02, 10*time.Minute)))
	}

	opps, err := s.FindOpportunities(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 5)
	for i := 1; i < len(opps); i++ {
		assert.GreaterOrEqual(t, opps[i-1].Confidence, opps[i].Confidence)
	}
	assert.InDelta(t, 0.83, opps[0].Confidence, 1e-9)
}

func TestWhaleFollowingExitClosesPosition(t *testing.T) {
	sigRepo := newMemSignalRepo()
	tradeRepo := newMemTradeRepo()
	markets := &fakeMarketClient{markets: map[string]*model.Market{
		"mkt-M": yesNoMarket("mkt-M", 0.75),
	}}
	s := newWhaleFollowing(t, sigRepo, tradeRepo, markets)

	require.NoError(t, tradeRepo.Open(&model.Trade{
		MarketID:   "mkt-M",
		Strategy:   WhaleFollowingName,
		Side:       model.SideYes,
		EntryPrice: decimal.NewFromFloat(0.58),
		SizeUSD:    decimal.NewFromInt(800),
		Status:     model.TradeStatusOpen,
	}))

	exit := pendingEntrySignal("sig-exit", "mkt-M", 0.75, 5000, 0.88, 10*time.Minute)
	exit.SignalType = model.SignalTypeExit
	require.NoError(t, sigRepo.Create(exit))

	opps, err := s.FindOpportunities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)

	sig, _ := sigRepo.GetByID("sig-exit")
	assert.Equal(t, model.SignalStatusExecuted, sig.Status)

	trade, _ := tradeRepo.GetByID(1)
	assert.Equal(t, model.TradeStatusClosed, trade.Status)
	assert.True(t, trade.NetProfitUSD.IsPositive())
}
