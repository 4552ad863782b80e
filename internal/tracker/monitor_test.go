package tracker

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/scorer"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

func init() {
	cfg := logger.DefaultConfig()
	cfg.Discard = true
	l := cfg.Build()
	logger.SetDefault(l)
	logger.SetDefaultL1(l)
}

// memWhaleRepo 内存鲸鱼仓库
type memWhaleRepo struct {
	whales map[string]*model.Whale
}

func newMemWhaleRepo() *memWhaleRepo {
	return &memWhaleRepo{whales: make(map[string]*model.Whale)}
}

func (r *memWhaleRepo) GetByAddress(address string) (*model.Whale, error) {
	whale, ok := r.whales[model.NormalizeAddress(address)]
	if !ok {
		return nil, nil
	}
	cp := *whale
	return &cp, nil
}

func (r *memWhaleRepo) Upsert(whale *model.Whale) error {
	whale.Address = model.NormalizeAddress(whale.Address)
	cp := *whale
	r.whales[whale.Address] = &cp
	return nil
}

func (r *memWhaleRepo) Save(whale *model.Whale) error {
	cp := *whale
	r.whales[whale.Address] = &cp
	return nil
}

func (r *memWhaleRepo) ListTracked() ([]*model.Whale, error) {
	var out []*model.Whale
	for _, w := range r.whales {
		if w.IsTracked {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memWhaleRepo) TopByQuality(limit int) ([]*model.Whale, error) {
	return r.ListTracked()
}

func (r *memWhaleRepo) CountTracked() (int64, error) {
	tracked, _ := r.ListTracked()
	return int64(len(tracked)), nil
}

// memWhaleTxRepo 内存成交历史
type memWhaleTxRepo struct {
	txs []*model.WhaleTransaction
}

func (r *memWhaleTxRepo) Insert(tx *model.WhaleTransaction) error {
	cp := *tx
	r.txs = append(r.txs, &cp)
	return nil
}

func (r *memWhaleTxRepo) RecentByWhale(address string, since time.Time) ([]*model.WhaleTransaction, error) {
	address = model.NormalizeAddress(address)

	var out []*model.WhaleTransaction
	for _, tx := range r.txs {
		if tx.WhaleAddress == address && !tx.TradedAt.Before(since) {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memWhaleTxRepo) CountByWhale(address string) (int64, error) {
	txs, _ := r.RecentByWhale(address, time.Time{})
	return int64(len(txs)), nil
}

func newTestMonitor() (*Monitor, *memWhaleRepo, *memWhaleTxRepo) {
	whales := newMemWhaleRepo()
	txs := &memWhaleTxRepo{}
	monitor := NewMonitor(whales, txs, scorer.NewEngine(10), 10, 0.70)
	return monitor, whales, txs
}

func TestCreateWhaleNormalizesAddress(t *testing.T) {
	monitor, whales, _ := newTestMonitor()

	whale, err := monitor.CreateWhale("0xABCDEF0000000000000000000000000000000001",
		decimal.NewFromInt(60000), 12, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", whale.Address)
	assert.Equal(t, model.WhaleTypeNeutral, whale.WhaleType)

	// 大小写不同的地址命中同一档案
	got, err := monitor.GetWhale("0xAbCdEf0000000000000000000000000000000001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, whale.Address, got.Address)

	stored, _ := whales.GetByAddress(whale.Address)
	assert.NotNil(t, stored)
}

func TestGetWhaleUnknownReturnsNil(t *testing.T) {
	monitor, _, _ := newTestMonitor()

	whale, err := monitor.GetWhale("0xdeadbeef00000000000000000000000000000001")
	require.NoError(t, err)
	assert.Nil(t, whale)
}

func TestRecordActivityUpdatesTotalsAndHistory(t *testing.T) {
	monitor, _, txs := newTestMonitor()

	whale, err := monitor.CreateWhale("0xwhale00000000000000000000000000000000001",
		decimal.NewFromInt(60000), 5, time.Now())
	require.NoError(t, err)

	require.NoError(t, monitor.RecordActivity(whale, "mkt-1", model.TradeSideBuy,
		decimal.NewFromFloat(0.58), decimal.NewFromInt(2000), time.Now()))

	assert.Equal(t, 6, whale.TotalTrades)
	assert.True(t, whale.TotalVolume.Equal(decimal.NewFromInt(62000)))
	assert.Len(t, txs.txs, 1)
	assert.Equal(t, whale.Address, txs.txs[0].WhaleAddress)
}

func TestRescoreFlipsTrackingState(t *testing.T) {
	monitor, _, txs := newTestMonitor()

	whale, err := monitor.CreateWhale("0xwhale00000000000000000000000000000000002",
		decimal.NewFromInt(60000), 0, time.Now())
	require.NoError(t, err)

	// 高胜率鲸鱼：全部卖出流入为正，90天内每周都有正向净流
	whale.TotalTrades = 40
	whale.WinningTrades = 36
	whale.LosingTrades = 4
	whale.RecalcWinRate()
	whale.Specialization = "politics"
	whale.SharpeRatio = 2.0

	now := time.Now()
	for week := 0; week < 12; week++ {
		for i := 0; i < 2; i++ {
			require.NoError(t, txs.Insert(&model.WhaleTransaction{
				WhaleAddress: whale.Address,
				MarketID:     "mkt-1",
				Side:         model.TradeSideSell,
				Price:        decimal.NewFromFloat(0.9),
				AmountUSD:    decimal.NewFromInt(1000),
				TradedAt:     now.AddDate(0, 0, -7*week-1),
			}))
		}
	}

	require.NoError(t, monitor.Rescore(whale))
	assert.True(t, whale.IsTracked)
	assert.GreaterOrEqual(t, whale.QualityScore, 0.75)
	assert.Equal(t, model.WhaleTypeSmartMoney, whale.WhaleType)

	// 样本不足的鲸鱼评分归零并被移出跟踪
	whale.TotalTrades = 5
	require.NoError(t, monitor.Rescore(whale))
	assert.False(t, whale.IsTracked)
	assert.Equal(t, 0.0, whale.QualityScore)
}

func TestUpdateStatsRecalculatesWinRate(t *testing.T) {
	monitor, whales, txs := newTestMonitor()

	whale, err := monitor.CreateWhale("0xwhale00000000000000000000000000000000003",
		decimal.NewFromInt(60000), 40, time.Now())
	require.NoError(t, err)

	now := time.Now()
	for week := 0; week < 12; week++ {
		require.NoError(t, txs.Insert(&model.WhaleTransaction{
			WhaleAddress: whale.Address,
			MarketID:     "mkt-1",
			Side:         model.TradeSideSell,
			Price:        decimal.NewFromFloat(0.9),
			AmountUSD:    decimal.NewFromInt(1000),
			TradedAt:     now.AddDate(0, 0, -7*week-1),
		}))
	}

	// 结算回填36胜4负
	updated, err := monitor.UpdateStats(whale.Address, 36, 4)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, 36, updated.WinningTrades)
	assert.Equal(t, 4, updated.LosingTrades)
	assert.InDelta(t, 0.9, updated.WinRate, 1e-9)
	assert.Greater(t, updated.QualityScore, 0.0)

	// 回填后的统计已持久化
	stored, err := whales.GetByAddress(whale.Address)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 36, stored.WinningTrades)
	assert.InDelta(t, 0.9, stored.WinRate, 1e-9)
}

func TestUpdateStatsRejectsInvalidCounts(t *testing.T) {
	monitor, _, _ := newTestMonitor()

	whale, err := monitor.CreateWhale("0xwhale00000000000000000000000000000000004",
		decimal.NewFromInt(60000), 10, time.Now())
	require.NoError(t, err)

	// 胜负场次之和超过总场次
	_, err = monitor.UpdateStats(whale.Address, 8, 5)
	require.Error(t, err)

	got, err := monitor.GetWhale(whale.Address)
	require.NoError(t, err)
	assert.Equal(t, 0, got.WinningTrades)
	assert.Equal(t, 0, got.LosingTrades)
}

func TestUpdateStatsUnknownWhale(t *testing.T) {
	monitor, _, _ := newTestMonitor()

	whale, err := monitor.UpdateStats("0xdeadbeef00000000000000000000000000000002", 3, 1)
	require.NoError(t, err)
	assert.Nil(t, whale)
}

func TestPromotionCountsTradeOnce(t *testing.T) {
	monitor, _, txs := newTestMonitor()
	discovery := NewDiscovery(monitor, DiscoveryConfig{
		MinVolumeUSD:    decimal.NewFromInt(50000),
		MinTradeSizeUSD: decimal.NewFromInt(1000),
		StatsInterval:   time.Minute,
	}, nil)

	addr := "0xwhale00000000000000000000000000000000005"
	created, err := discovery.processParty(addr, model.TradeSideBuy, &model.FeedTrade{
		MarketID:  "mkt-1",
		Price:     decimal.NewFromFloat(0.58),
		SizeUSD:   decimal.NewFromInt(60000),
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created)

	// 建档那笔成交只计一次
	whale, err := monitor.GetWhale(addr)
	require.NoError(t, err)
	require.NotNil(t, whale)
	assert.Equal(t, 1, whale.TotalTrades)
	assert.True(t, whale.TotalVolume.Equal(decimal.NewFromInt(60000)))
	assert.Len(t, txs.txs, 1)

	// 后续成交正常累计
	created, err = discovery.processParty(addr, model.TradeSideBuy, &model.FeedTrade{
		MarketID:  "mkt-1",
		Price:     decimal.NewFromFloat(0.60),
		SizeUSD:   decimal.NewFromInt(2000),
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), created)

	whale, err = monitor.GetWhale(addr)
	require.NoError(t, err)
	assert.Equal(t, 2, whale.TotalTrades)
	assert.True(t, whale.TotalVolume.Equal(decimal.NewFromInt(62000)))
}

func TestDiscoverySideMapping(t *testing.T) {
	assert.Equal(t, model.TradeSideSell, tradeSide("sell"))
	assert.Equal(t, model.TradeSideBuy, tradeSide("BUY"))
	assert.Equal(t, model.TradeSideBuy, tradeSide(""))

	assert.Equal(t, model.TradeSideSell, oppositeSide(model.TradeSideBuy))
	assert.Equal(t, model.TradeSideBuy, oppositeSide(model.TradeSideSell))

	assert.Equal(t, model.SideNo, outcomeSide("No"))
	assert.Equal(t, model.SideYes, outcomeSide("Yes"))
	assert.Equal(t, model.SideYes, outcomeSide(""))
}
