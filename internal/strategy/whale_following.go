package strategy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/alert"
	"github.com/ninja0404/whale-signal/internal/config"
	"github.com/ninja0404/whale-signal/internal/market"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/risk"
	"github.com/ninja0404/whale-signal/internal/signal"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

const WhaleFollowingName = "whale_following"

var (
	// maxPriceDriftPct 信号价与现价偏离超过该百分比时放弃跟单
	maxPriceDriftPct = decimal.NewFromInt(5)
	// maxSlippageRatio 建仓允许的最大滑点倍数
	maxSlippageRatio = decimal.NewFromFloat(1.02)
	// minPositionUSD 低于该金额的仓位不值得下单
	minPositionUSD = decimal.NewFromInt(5)
)

// WhaleFollowing 鲸鱼跟单策略：消费延迟窗口过后的pending信号，
// 按鲸鱼质量排序跟单建仓，EXIT信号触发对应持仓的平仓。
type WhaleFollowing struct {
	store   *signal.Store
	riskMgr *risk.Manager
	markets market.Client
	trades  repo.TradeRepo
	alerts  *alert.Manager

	enabled        bool
	topN           int
	copyDelay      time.Duration
	maxPositionPct float64
}

// NewWhaleFollowing 创建鲸鱼跟单策略
func NewWhaleFollowing(
	store *signal.Store,
	riskMgr *risk.Manager,
	markets market.Client,
	trades repo.TradeRepo,
	alerts *alert.Manager,
	whaleCfg config.WhaleConfig,
	cfg config.WhaleFollowingConfig,
) *WhaleFollowing {
	topN := cfg.TopN
	if topN <= 0 {
		topN = 5
	}

	return &WhaleFollowing{
		store:          store,
		riskMgr:        riskMgr,
		markets:        markets,
		trades:         trades,
		alerts:         alerts,
		enabled:        cfg.Enabled,
		topN:           topN,
		copyDelay:      whaleCfg.CopyDelay,
		maxPositionPct: whaleCfg.MaxPositionPct,
	}
}

func (s *WhaleFollowing) Name() string {
	return WhaleFollowingName
}

func (s *WhaleFollowing) Enabled() bool {
	return s.enabled
}

// FindOpportunities 扫描可跟单信号。EXIT信号就地处理平仓，
// ENTRY信号按置信度排序后取前N个作为候选机会。
func (s *WhaleFollowing) FindOpportunities(ctx context.Context) ([]*Opportunity, error) {
	signals, err := s.store.Copyable(s.copyDelay)
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return nil, nil
	}

	logger.Info("🐋 扫描可跟单信号",
		logger.String("strategy", s.Name()),
		logger.Int("count", len(signals)))

	var opportunities []*Opportunity
	for _, sig := range signals {
		if sig.SignalType == model.SignalTypeExit {
			s.handleExit(sig)
			continue
		}
		if sig.SignalType != model.SignalTypeEntry {
			continue
		}

		opp, err := s.evaluateEntry(ctx, sig)
		if err != nil {
			logger.Warn("⚠️ 评估信号失败，留待下轮",
				logger.String("signal_id", sig.ID),
				logger.FieldErr(err))
			continue
		}
		if opp != nil {
			opportunities = append(opportunities, opp)
		}
	}

	// 置信度高的鲸鱼优先
	sort.Slice(opportunities, func(i, j int) bool {
		return opportunities[i].Confidence > opportunities[j].Confidence
	})
	if len(opportunities) > s.topN {
		opportunities = opportunities[:s.topN]
	}

	return opportunities, nil
}

// evaluateEntry 评估一条ENTRY信号，不可跟单时就地标记ignored并返回nil
func (s *WhaleFollowing) evaluateEntry(ctx context.Context, sig *model.Signal) (*Opportunity, error) {
	// 同一市场下本策略已有持仓时不再加仓
	active, err := s.trades.ActiveByMarket(sig.MarketID, s.Name())
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		if err := s.store.MarkIgnored(sig.ID, fmt.Sprintf("already have open position in %s", sig.MarketID)); err != nil {
			return nil, err
		}
		return nil, nil
	}

	mkt, err := s.markets.GetMarket(ctx, sig.MarketID)
	if err != nil {
		// 市场数据拿不到时信号保持pending，下轮重试
		return nil, err
	}
	if !mkt.HasPrices() {
		return nil, nil
	}

	current := mkt.YesPrice()
	if sig.Side == model.SideNo {
		current = mkt.NoPrice()
	}
	if !current.IsPositive() {
		return nil, nil
	}

	// 信号价与现价偏离过大，鲸鱼的入场价位已不存在
	drift := current.Sub(sig.Price).Abs().Div(sig.Price).Mul(decimal.NewFromInt(100))
	if drift.GreaterThan(maxPriceDriftPct) {
		if err := s.store.MarkIgnored(sig.ID, fmt.Sprintf("price moved %s%% since signal", drift.Round(1))); err != nil {
			return nil, err
		}
		return nil, nil
	}

	// 建仓滑点保护
	if current.GreaterThan(sig.Price.Mul(maxSlippageRatio)) {
		if err := s.store.MarkIgnored(sig.ID, fmt.Sprintf("slippage: current %s above limit", utils.FormatOutcomePrice(current))); err != nil {
			return nil, err
		}
		return nil, nil
	}

	size := s.riskMgr.SizeWhaleCopy(sig.Confidence, sig.SizeUSD, s.maxPositionPct)
	if size.LessThan(minPositionUSD) {
		if err := s.store.MarkIgnored(sig.ID, fmt.Sprintf("position %s below minimum", utils.FormatUSD(size))); err != nil {
			return nil, err
		}
		return nil, nil
	}

	// 预期收益按结算价1.0计算
	profitPct := decimal.NewFromInt(1).Sub(current).Div(current).Mul(decimal.NewFromInt(100))
	expectedProfit := size.Mul(profitPct).Div(decimal.NewFromInt(100))

	return &Opportunity{
		Strategy:       s.Name(),
		MarketID:       sig.MarketID,
		MarketQuestion: mkt.Question,
		Side:           sig.Side,
		Price:          current,
		SizeUSD:        size,
		Confidence:     sig.Confidence,
		ExpectedProfit: expectedProfit,
		SignalID:       sig.ID,
		WhaleAddress:   sig.WhaleAddress,
		Notes:          sig.Reasoning,
	}, nil
}

// handleExit 鲸鱼清仓：平掉该市场下本策略的持仓
func (s *WhaleFollowing) handleExit(sig *model.Signal) {
	active, err := s.trades.ActiveByMarket(sig.MarketID, s.Name())
	if err != nil {
		logger.Error("查询持仓失败",
			logger.String("signal_id", sig.ID),
			logger.String("market", sig.MarketID),
			logger.FieldErr(err))
		return
	}
	if len(active) == 0 {
		if err := s.store.MarkIgnored(sig.ID, "no open position to exit"); err != nil {
			logger.Error("标记信号失败", logger.String("signal_id", sig.ID), logger.FieldErr(err))
		}
		return
	}

	var lastClosed uint64
	for _, t := range active {
		closed, err := s.trades.Close(t.ID, sig.Price, s.riskMgr.GasEstimate())
		if err != nil {
			logger.Error("平仓失败",
				logger.Uint64("trade_id", t.ID),
				logger.FieldErr(err))
			continue
		}
		lastClosed = t.ID

		logger.Info("📉 跟随鲸鱼平仓",
			logger.Uint64("trade_id", t.ID),
			logger.String("market", sig.MarketID),
			logger.String("exit_price", sig.Price.String()),
			logger.String("net_profit_usd", closed.NetProfitUSD.String()))

		s.alerts.Emit("trade_closed", alert.SeverityInfo, "跟随鲸鱼平仓",
			fmt.Sprintf("市场 %s 平仓，净盈亏 %s", sig.MarketID, utils.FormatUSD(closed.NetProfitUSD)),
			map[string]string{
				"strategy": s.Name(),
				"whale":    utils.GetDisplayWalletAddress(sig.WhaleAddress),
			})
	}

	if lastClosed > 0 {
		if err := s.store.MarkExecuted(sig.ID, lastClosed); err != nil {
			logger.Error("标记信号失败", logger.String("signal_id", sig.ID), logger.FieldErr(err))
		}
	}
}

// Execute 执行一条跟单机会：过风控、开仓、标记信号
func (s *WhaleFollowing) Execute(ctx context.Context, opp *Opportunity) error {
	gas := s.riskMgr.GasEstimate()
	ok, reasons, err := s.riskMgr.Validate(opp.MarketID, opp.SizeUSD, opp.ExpectedProfit, gas)
	if err != nil {
		return err
	}
	if !ok {
		return s.store.MarkIgnored(opp.SignalID, strings.Join(reasons, "; "))
	}

	trade := &model.Trade{
		MarketID:        opp.MarketID,
		MarketQuestion:  opp.MarketQuestion,
		Strategy:        s.Name(),
		Side:            opp.Side,
		EntryPrice:      opp.Price,
		SizeUSD:         opp.SizeUSD,
		GasCostUSD:      gas,
		Status:          model.TradeStatusOpen,
		ConfidenceScore: opp.Confidence,
		Notes:           opp.Notes,
		PaperTrade:      true,
	}
	if err := s.trades.Open(trade); err != nil {
		return err
	}

	if err := s.store.MarkExecuted(opp.SignalID, trade.ID); err != nil {
		return err
	}

	logger.Info("✅ 跟单建仓",
		logger.Uint64("trade_id", trade.ID),
		logger.String("market", opp.MarketID),
		logger.String("side", opp.Side),
		logger.String("price", opp.Price.String()),
		logger.String("size_usd", opp.SizeUSD.String()),
		logger.Float64("confidence", opp.Confidence))

	s.alerts.Emit("trade_opened", alert.SeverityInfo, "跟单建仓",
		fmt.Sprintf("跟随鲸鱼 %s 在市场 %s 建仓 %s @ %s",
			utils.GetDisplayWalletAddress(opp.WhaleAddress), opp.MarketID,
			utils.FormatUSD(opp.SizeUSD), utils.FormatOutcomePrice(opp.Price)),
		map[string]string{
			"strategy":  s.Name(),
			"signal_id": opp.SignalID,
			"whale":     utils.GetDisplayWalletAddress(opp.WhaleAddress),
		})

	return nil
}
