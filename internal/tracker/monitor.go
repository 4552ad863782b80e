package tracker

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/scorer"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

// Monitor 鲸鱼档案管理器：维护鲸鱼统计、触发重新评分、翻转跟踪状态
type Monitor struct {
	whales     repo.WhaleRepo
	txs        repo.WhaleTxRepo
	scorer     *scorer.Engine
	minTrades  int     // 评分最低样本数
	minQuality float64 // 跟踪门槛

	cache map[string]*model.Whale // 地址 -> 鲸鱼，写穿缓存
	mutex sync.RWMutex
}

// NewMonitor 创建鲸鱼档案管理器
func NewMonitor(whales repo.WhaleRepo, txs repo.WhaleTxRepo, engine *scorer.Engine, minTrades int, minQuality float64) *Monitor {
	return &Monitor{
		whales:     whales,
		txs:        txs,
		scorer:     engine,
		minTrades:  minTrades,
		minQuality: minQuality,
		cache:      make(map[string]*model.Whale),
	}
}

// GetWhale 查询鲸鱼，优先走缓存，未知地址返回nil
func (m *Monitor) GetWhale(address string) (*model.Whale, error) {
	address = model.NormalizeAddress(address)

	m.mutex.RLock()
	whale, ok := m.cache[address]
	m.mutex.RUnlock()
	if ok {
		return whale, nil
	}

	whale, err := m.whales.GetByAddress(address)
	if err != nil {
		return nil, err
	}
	if whale != nil {
		m.mutex.Lock()
		m.cache[address] = whale
		m.mutex.Unlock()
	}
	return whale, nil
}

// CreateWhale 首次发现：累计交易量跨过阈值时建档
func (m *Monitor) CreateWhale(address string, volume decimal.Decimal, trades int, observedAt time.Time) (*model.Whale, error) {
	whale := &model.Whale{
		Address:      model.NormalizeAddress(address),
		TotalVolume:  volume,
		TotalTrades:  trades,
		WhaleType:    model.WhaleTypeNeutral,
		FirstSeen:    observedAt,
		LastActivity: observedAt,
	}

	if err := m.whales.Upsert(whale); err != nil {
		return nil, err
	}

	m.mutex.Lock()
	m.cache[whale.Address] = whale
	m.mutex.Unlock()

	logger.Info("🐋 发现新鲸鱼",
		logger.String("address", utils.GetDisplayWalletAddress(whale.Address)),
		logger.String("total_volume", volume.String()),
		logger.Int("total_trades", trades))

	return whale, nil
}

// RecordActivity 记录一笔鲸鱼成交：更新统计、落库历史、按需重新评分
func (m *Monitor) RecordActivity(whale *model.Whale, marketID, side string, price, amountUSD decimal.Decimal, tradedAt time.Time) error {
	whale.TotalVolume = whale.TotalVolume.Add(amountUSD)
	whale.TotalTrades++
	return m.recordTransaction(whale, marketID, side, price, amountUSD, tradedAt)
}

// RecordPromotingTrade 记录建档那笔成交：累计统计已在建档时由候选统计计入，
// 这里只落库历史，避免重复计数
func (m *Monitor) RecordPromotingTrade(whale *model.Whale, marketID, side string, price, amountUSD decimal.Decimal, tradedAt time.Time) error {
	return m.recordTransaction(whale, marketID, side, price, amountUSD, tradedAt)
}

func (m *Monitor) recordTransaction(whale *model.Whale, marketID, side string, price, amountUSD decimal.Decimal, tradedAt time.Time) error {
	whale.LastActivity = tradedAt

	if err := m.txs.Insert(&model.WhaleTransaction{
		WhaleAddress: whale.Address,
		MarketID:     marketID,
		Side:         side,
		Price:        price,
		AmountUSD:    amountUSD,
		TradedAt:     tradedAt,
	}); err != nil {
		return err
	}

	// 样本达到门槛后每笔成交都重新评分，评分是幂等的
	if whale.TotalTrades >= m.minTrades {
		if err := m.Rescore(whale); err != nil {
			return err
		}
	}

	return m.whales.Save(whale)
}

// UpdateStats 结算回填鲸鱼胜负统计。行情流里看不到市场结算结果，
// 胜负计数由结算任务回填后重算胜率、重新评分并持久化。
func (m *Monitor) UpdateStats(address string, winningTrades, losingTrades int) (*model.Whale, error) {
	whale, err := m.GetWhale(address)
	if err != nil {
		return nil, err
	}
	if whale == nil {
		logger.Warn("⚠️ 鲸鱼不存在，无法回填胜负统计",
			logger.String("address", utils.GetDisplayWalletAddress(address)))
		return nil, nil
	}

	// 先在副本上校验，避免非法计数污染缓存里的档案
	scratch := *whale
	scratch.WinningTrades = winningTrades
	scratch.LosingTrades = losingTrades
	if !scratch.StatsValid() {
		return nil, errors.Errorf("胜负场次之和 %d 超过总场次 %d",
			winningTrades+losingTrades, whale.TotalTrades)
	}

	whale.WinningTrades = winningTrades
	whale.LosingTrades = losingTrades
	whale.RecalcWinRate()

	if err := m.Rescore(whale); err != nil {
		return nil, err
	}
	if err := m.whales.Save(whale); err != nil {
		return nil, err
	}

	logger.Info("📊 回填鲸鱼胜负统计",
		logger.String("address", utils.GetDisplayWalletAddress(whale.Address)),
		logger.Int("winning_trades", winningTrades),
		logger.Int("losing_trades", losingTrades),
		logger.Float64("win_rate", whale.WinRate),
		logger.Float64("quality_score", whale.QualityScore))

	return whale, nil
}

// Rescore 重新计算质量评分与分类，并按门槛翻转跟踪状态
func (m *Monitor) Rescore(whale *model.Whale) error {
	since := time.Now().AddDate(0, 0, -90)
	history, err := m.txs.RecentByWhale(whale.Address, since)
	if err != nil {
		return err
	}

	score := m.scorer.Score(whale, history)
	wasTracked := whale.IsTracked

	whale.QualityScore = score
	whale.WhaleType = m.scorer.Classify(score)
	whale.IsTracked = score >= m.minQuality

	if whale.IsTracked && !wasTracked {
		logger.Info("⭐ 鲸鱼进入跟踪名单",
			logger.String("address", utils.GetDisplayWalletAddress(whale.Address)),
			logger.Float64("quality_score", score),
			logger.String("whale_type", string(whale.WhaleType)))
	}
	if !whale.IsTracked && wasTracked {
		logger.Info("💤 鲸鱼移出跟踪名单",
			logger.String("address", utils.GetDisplayWalletAddress(whale.Address)),
			logger.Float64("quality_score", score))
	}

	return nil
}

// TopWhales 质量评分最高的前N个鲸鱼
func (m *Monitor) TopWhales(limit int) ([]*model.Whale, error) {
	return m.whales.TopByQuality(limit)
}

// TrackedCount 被跟踪鲸鱼数量
func (m *Monitor) TrackedCount() (int64, error) {
	return m.whales.CountTracked()
}
