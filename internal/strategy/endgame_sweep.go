package strategy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/alert"
	"github.com/ninja0404/whale-signal/internal/config"
	"github.com/ninja0404/whale-signal/internal/market"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/risk"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

const EndgameSweepName = "endgame_sweep"

// EndgameSweep 终局扫尾策略：买入临近结算且价格接近确定性的一侧，
// 吃掉最后几个点的收敛收益。
type EndgameSweep struct {
	riskMgr *risk.Manager
	markets market.Client
	trades  repo.TradeRepo
	alerts  *alert.Manager
	config  config.EndgameSweepConfig
}

// NewEndgameSweep 创建终局扫尾策略
func NewEndgameSweep(
	riskMgr *risk.Manager,
	markets market.Client,
	trades repo.TradeRepo,
	alerts *alert.Manager,
	cfg config.EndgameSweepConfig,
) *EndgameSweep {
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}

	return &EndgameSweep{
		riskMgr: riskMgr,
		markets: markets,
		trades:  trades,
		alerts:  alerts,
		config:  cfg,
	}
}

func (s *EndgameSweep) Name() string {
	return EndgameSweepName
}

func (s *EndgameSweep) Enabled() bool {
	return s.config.Enabled
}

// FindOpportunities 扫描价格落在收敛区间且临近结算的市场，
// 按预期收益降序取前N个。
func (s *EndgameSweep) FindOpportunities(ctx context.Context) ([]*Opportunity, error) {
	markets, err := s.markets.GetTradeableMarkets(ctx)
	if err != nil {
		return nil, err
	}

	minPrice := decimal.NewFromFloat(s.config.MinPrice)
	maxPrice := decimal.NewFromFloat(s.config.MaxPrice)
	now := time.Now()

	var opportunities []*Opportunity
	for _, mkt := range markets {
		if !mkt.HasPrices() {
			continue
		}
		hours, ok := mkt.HoursToSettlement(now)
		if !ok || hours <= 0 || hours > s.config.MaxHoursToSettlement {
			continue
		}

		// 同一市场已有本策略持仓时不重复进入
		active, err := s.trades.ActiveByMarket(mkt.ID, s.Name())
		if err != nil {
			return nil, err
		}
		if len(active) > 0 {
			continue
		}

		for _, side := range []string{model.SideYes, model.SideNo} {
			price := mkt.YesPrice()
			if side == model.SideNo {
				price = mkt.NoPrice()
			}
			if price.LessThan(minPrice) || price.GreaterThan(maxPrice) {
				continue
			}

			// 价格即市场共识的结算概率
			confidence, _ := price.Float64()
			if confidence < s.config.MinConfidence {
				continue
			}

			size := s.riskMgr.SizeByConfidence(confidence)
			if !size.IsPositive() {
				continue
			}

			profitPct := decimal.NewFromInt(1).Sub(price).Div(price).Mul(decimal.NewFromInt(100))
			expectedProfit := size.Mul(profitPct).Div(decimal.NewFromInt(100))

			opportunities = append(opportunities, &Opportunity{
				Strategy:       s.Name(),
				MarketID:       mkt.ID,
				MarketQuestion: mkt.Question,
				Side:           side,
				Price:          price,
				SizeUSD:        size,
				Confidence:     confidence,
				ExpectedProfit: expectedProfit,
				Notes:          fmt.Sprintf("Endgame: %.1fh to settlement at %s", hours, utils.FormatOutcomePrice(price)),
			})
		}
	}

	sort.Slice(opportunities, func(i, j int) bool {
		return opportunities[i].ExpectedProfit.GreaterThan(opportunities[j].ExpectedProfit)
	})
	if len(opportunities) > s.config.TopN {
		opportunities = opportunities[:s.config.TopN]
	}

	if len(opportunities) > 0 {
		logger.Info("🎯 发现终局扫尾机会",
			logger.String("strategy", s.Name()),
			logger.Int("count", len(opportunities)))
	}
	return opportunities, nil
}

// Execute 执行一条扫尾机会：过风控后开仓
func (s *EndgameSweep) Execute(ctx context.Context, opp *Opportunity) error {
	gas := s.riskMgr.GasEstimate()
	ok, reasons, err := s.riskMgr.Validate(opp.MarketID, opp.SizeUSD, opp.ExpectedProfit, gas)
	if err != nil {
		return err
	}
	if !ok {
		logger.Info("🚫 扫尾机会未通过风控",
			logger.String("market", opp.MarketID),
			logger.Any("reasons", reasons))
		return nil
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

	logger.Info("✅ 终局扫尾建仓",
		logger.Uint64("trade_id", trade.ID),
		logger.String("market", opp.MarketID),
		logger.String("side", opp.Side),
		logger.String("price", opp.Price.String()),
		logger.String("size_usd", opp.SizeUSD.String()))

	s.alerts.Emit("trade_opened", alert.SeverityInfo, "终局扫尾建仓",
		fmt.Sprintf("市场 %s 建仓 %s @ %s", opp.MarketID,
			utils.FormatUSD(opp.SizeUSD), utils.FormatOutcomePrice(opp.Price)),
		map[string]string{"strategy": s.Name()})

	return nil
}
