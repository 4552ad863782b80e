package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/config"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

// Snapshot 风险快照。每次调用即时重算，不做跨调用缓存（交易状态随时被外部改变）
type Snapshot struct {
	AvailableCapital decimal.Decimal            `json:"available_capital"`
	TotalExposure    decimal.Decimal            `json:"total_exposure"`
	MarketExposure   map[string]decimal.Decimal `json:"market_exposure"`
	DailyPnl         decimal.Decimal            `json:"daily_pnl"`
	WeeklyPnl        decimal.Decimal            `json:"weekly_pnl"`
	OpenPositions    int                        `json:"open_positions"`
}

// Summary 对外的风控报告
type Summary struct {
	AvailableCapital decimal.Decimal            `json:"available_capital"`
	TotalExposure    decimal.Decimal            `json:"total_exposure"`
	MarketExposure   map[string]decimal.Decimal `json:"market_exposure"`
	OpenPositions    int                        `json:"open_positions"`
	DailyPnl         decimal.Decimal            `json:"daily_pnl"`
	DailyLimitOK     bool                       `json:"daily_limit_ok"`
	WeeklyPnl        decimal.Decimal            `json:"weekly_pnl"`
	WeeklyLimitOK    bool                       `json:"weekly_limit_ok"`
	Diversified      bool                       `json:"diversified"`
}

// Manager 风控闸门：任何执行前都必须经过它的仓位计算和校验
type Manager struct {
	trades repo.TradeRepo
	config config.RiskConfig
}

// NewManager 创建风控管理器
func NewManager(trades repo.TradeRepo, cfg config.RiskConfig) *Manager {
	return &Manager{
		trades: trades,
		config: cfg,
	}
}

// AvailableCapital 可用资金。纸面交易模式下为配置的模拟资金
func (m *Manager) AvailableCapital() decimal.Decimal {
	return decimal.NewFromFloat(m.config.PaperCapitalUSD)
}

// GasEstimate 单笔交易的Gas成本估计
func (m *Manager) GasEstimate() decimal.Decimal {
	return decimal.NewFromFloat(m.config.GasEstimateUSD)
}

// snapshot 即时重算风险状态
func (m *Manager) snapshot() (*Snapshot, error) {
	open, err := m.trades.ListOpen()
	if err != nil {
		return nil, err
	}

	exposure := decimal.Zero
	byMarket := make(map[string]decimal.Decimal)
	for _, t := range open {
		exposure = exposure.Add(t.SizeUSD)
		byMarket[t.MarketID] = byMarket[t.MarketID].Add(t.SizeUSD)
	}

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dailyPnl, err := m.trades.RealizedNetProfitSince(dayStart)
	if err != nil {
		return nil, err
	}
	weeklyPnl, err := m.trades.RealizedNetProfitSince(now.AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		AvailableCapital: m.AvailableCapital(),
		TotalExposure:    exposure,
		MarketExposure:   byMarket,
		DailyPnl:         dailyPnl,
		WeeklyPnl:        weeklyPnl,
		OpenPositions:    len(open),
	}, nil
}

// SizeByConfidence 置信度Kelly仓位：kelly = confidence - (1 - confidence)，
// 取半Kelly，并以单仓上限封顶。
func (m *Manager) SizeByConfidence(confidence float64) decimal.Decimal {
	kelly := confidence - (1 - confidence)
	kelly *= 0.5 // 半Kelly
	if kelly < 0 {
		kelly = 0
	}
	if kelly > 1 {
		kelly = 1
	}

	maxFraction := m.config.MaxPositionSizePct / 100.0
	if kelly > maxFraction {
		kelly = maxFraction
	}

	return m.AvailableCapital().Mul(decimal.NewFromFloat(kelly))
}

// SizeWhaleCopy 鲸鱼跟单Kelly仓位：kelly = (p*b - q)/b，p为鲸鱼质量评分，b=1（均注假设）。
// 取1/4 Kelly，按跟单单仓上限封顶，且不超过鲸鱼自身仓位的一半。
func (m *Manager) SizeWhaleCopy(quality float64, whaleSizeUSD decimal.Decimal, maxPositionPct float64) decimal.Decimal {
	p := quality
	q := 1 - p
	b := 1.0
	kelly := (p*b - q) / b
	kelly *= 0.25 // 1/4 Kelly

	maxFraction := maxPositionPct / 100.0
	if kelly < 0 {
		kelly = 0
	}
	if kelly > maxFraction {
		kelly = maxFraction
	}

	size := m.AvailableCapital().Mul(decimal.NewFromFloat(kelly))

	// 跟单仓位不超过鲸鱼自身仓位的一半
	halfWhale := whaleSizeUSD.Mul(decimal.NewFromFloat(0.5))
	if size.GreaterThan(halfWhale) {
		size = halfWhale
	}
	return size
}

// Validate 校验候选交易。所有检查独立执行，失败原因全部收集后一起返回
func (m *Manager) Validate(marketID string, size, expectedProfit, gasEstimate decimal.Decimal) (bool, []string, error) {
	snap, err := m.snapshot()
	if err != nil {
		return false, nil, err
	}

	var reasons []string

	capital := snap.AvailableCapital
	maxPosition := capital.Mul(decimal.NewFromFloat(m.config.MaxPositionSizePct / 100.0))

	// 单仓上限
	if size.GreaterThan(maxPosition) {
		reasons = append(reasons, fmt.Sprintf("position size $%s exceeds max $%s",
			size.Round(2), maxPosition.Round(2)))
	}

	// 单市场敞口上限（已有敞口+新仓位）
	existing := snap.MarketExposure[marketID]
	if existing.Add(size).GreaterThan(maxPosition) {
		reasons = append(reasons, fmt.Sprintf("market exposure $%s exceeds max $%s",
			existing.Add(size).Round(2), maxPosition.Round(2)))
	}

	// 日亏损限额：触发后阻断所有市场的新交易
	maxDailyLoss := capital.Mul(decimal.NewFromFloat(m.config.DailyLossLimitPct / 100.0))
	if snap.DailyPnl.LessThan(maxDailyLoss.Neg()) {
		reasons = append(reasons, fmt.Sprintf("daily loss $%s exceeds limit $%s",
			snap.DailyPnl.Abs().Round(2), maxDailyLoss.Round(2)))
	}

	// 周亏损限额
	maxWeeklyLoss := capital.Mul(decimal.NewFromFloat(m.config.WeeklyLossLimitPct / 100.0))
	if snap.WeeklyPnl.LessThan(maxWeeklyLoss.Neg()) {
		reasons = append(reasons, fmt.Sprintf("weekly loss $%s exceeds limit $%s",
			snap.WeeklyPnl.Abs().Round(2), maxWeeklyLoss.Round(2)))
	}

	// Gas成本占比：预期收益非正时按100%处理，必然不通过
	gasPct := 100.0
	if expectedProfit.IsPositive() {
		ratio, _ := gasEstimate.Div(expectedProfit).Float64()
		gasPct = ratio * 100
	}
	if gasPct > m.config.GasFeeMaxPctOfProfit {
		reasons = append(reasons, fmt.Sprintf("gas cost %.1f%% of profit exceeds max %.1f%%",
			gasPct, m.config.GasFeeMaxPctOfProfit))
	}

	// 最小收益率
	if size.IsPositive() {
		profitPct, _ := expectedProfit.Div(size).Float64()
		profitPct *= 100
		if profitPct < m.config.MinProfitThresholdPct {
			reasons = append(reasons, fmt.Sprintf("expected profit %.2f%% below threshold %.2f%%",
				profitPct, m.config.MinProfitThresholdPct))
		}
	}

	// 分散度只做提示，不阻断
	if snap.OpenPositions < m.config.MinMarketsForDiversification {
		logger.Debug("📎 持仓市场数低于分散度建议值",
			logger.Int("open_positions", snap.OpenPositions),
			logger.Int("min_markets", m.config.MinMarketsForDiversification))
	}

	return len(reasons) == 0, reasons, nil
}

// CircuitBreaker 日/周亏损熔断检查，触发时整轮扫描都不应执行
func (m *Manager) CircuitBreaker() (breached bool, reason string, err error) {
	snap, err := m.snapshot()
	if err != nil {
		return false, "", err
	}

	capital := snap.AvailableCapital
	maxDailyLoss := capital.Mul(decimal.NewFromFloat(m.config.DailyLossLimitPct / 100.0))
	if snap.DailyPnl.LessThan(maxDailyLoss.Neg()) {
		return true, fmt.Sprintf("daily loss $%s exceeds limit $%s",
			snap.DailyPnl.Abs().Round(2), maxDailyLoss.Round(2)), nil
	}

	maxWeeklyLoss := capital.Mul(decimal.NewFromFloat(m.config.WeeklyLossLimitPct / 100.0))
	if snap.WeeklyPnl.LessThan(maxWeeklyLoss.Neg()) {
		return true, fmt.Sprintf("weekly loss $%s exceeds limit $%s",
			snap.WeeklyPnl.Abs().Round(2), maxWeeklyLoss.Round(2)), nil
	}

	return false, "", nil
}

// GetSummary 生成风控报告
func (m *Manager) GetSummary() (*Summary, error) {
	snap, err := m.snapshot()
	if err != nil {
		return nil, err
	}

	capital := snap.AvailableCapital
	maxDailyLoss := capital.Mul(decimal.NewFromFloat(m.config.DailyLossLimitPct / 100.0))
	maxWeeklyLoss := capital.Mul(decimal.NewFromFloat(m.config.WeeklyLossLimitPct / 100.0))

	return &Summary{
		AvailableCapital: snap.AvailableCapital,
		TotalExposure:    snap.TotalExposure,
		MarketExposure:   snap.MarketExposure,
		OpenPositions:    snap.OpenPositions,
		DailyPnl:         snap.DailyPnl,
		DailyLimitOK:     !snap.DailyPnl.LessThan(maxDailyLoss.Neg()),
		WeeklyPnl:        snap.WeeklyPnl,
		WeeklyLimitOK:    !snap.WeeklyPnl.LessThan(maxWeeklyLoss.Neg()),
		Diversified:      snap.OpenPositions >= m.config.MinMarketsForDiversification,
	}, nil
}
