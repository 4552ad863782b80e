package scorer

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

const (
	// 各子评分权重，合计必须为1.0
	WeightWinRate     = 0.40
	WeightConsistency = 0.20
	WeightTiming      = 0.15
	WeightSelection   = 0.15
	WeightRisk        = 0.10

	// 胜率子评分在85%胜率处饱和
	winRateSaturation = 0.85

	// 稳定性子评分的回看窗口与周桶
	consistencyWindow = 90 * 24 * time.Hour
	consistencyBucket = 7 * 24 * time.Hour
	// 窗口内样本不足时返回中性评分
	consistencyMinSample = 10

	// 分类阈值
	smartMoneyThreshold = 0.75
	neutralThreshold    = 0.50
)

func init() {
	sum := WeightWinRate + WeightConsistency + WeightTiming + WeightSelection + WeightRisk
	if math.Abs(sum-1.0) > 1e-9 {
		panic("scorer: sub-score weights must sum to 1.0")
	}
}

// Engine 鲸鱼质量评分引擎
type Engine struct {
	minTrades int // 评分所需最低样本数
}

// NewEngine 创建评分引擎
func NewEngine(minTrades int) *Engine {
	if minTrades <= 0 {
		minTrades = 10
	}
	return &Engine{
		minTrades: minTrades,
	}
}

// Score 计算鲸鱼综合质量评分，样本不足返回0.0（未评分不是错误）
func (e *Engine) Score(whale *model.Whale, history []*model.WhaleTransaction) float64 {
	if whale.TotalTrades < e.minTrades {
		logger.Debug("📉 样本不足，跳过评分",
			logger.String("address", whale.Address),
			logger.Int("total_trades", whale.TotalTrades),
			logger.Int("min_trades", e.minTrades))
		return 0.0
	}

	winRate := winRateScore(whale.WinRate)
	consistency := e.consistencyScore(history, time.Now())
	timing := timingScore()
	selection := selectionScore(whale.Specialization)
	risk := riskScore(whale.SharpeRatio)

	score := winRate*WeightWinRate +
		consistency*WeightConsistency +
		timing*WeightTiming +
		selection*WeightSelection +
		risk*WeightRisk

	logger.Debug("📊 鲸鱼质量评分",
		logger.String("address", whale.Address),
		logger.Float64("win_rate_score", winRate),
		logger.Float64("consistency_score", consistency),
		logger.Float64("timing_score", timing),
		logger.Float64("selection_score", selection),
		logger.Float64("risk_score", risk),
		logger.Float64("total", score))

	return score
}

// Classify 评分到分类的纯函数映射
func (e *Engine) Classify(score float64) model.WhaleType {
	switch {
	case score >= smartMoneyThreshold:
		return model.WhaleTypeSmartMoney
	case score >= neutralThreshold:
		return model.WhaleTypeNeutral
	default:
		return model.WhaleTypeDumbMoney
	}
}

// winRateScore 胜率子评分，85%胜率即满分
func winRateScore(winRate float64) float64 {
	score := winRate / winRateSaturation
	if score > 1.0 {
		return 1.0
	}
	if score < 0 {
		return 0
	}
	return score
}

// consistencyScore 稳定性子评分：90天内净流入为正的周桶占比。
// 卖出计入正向资金流，买入计入负向，样本不足返回中性0.5。
func (e *Engine) consistencyScore(history []*model.WhaleTransaction, now time.Time) float64 {
	windowStart := now.Add(-consistencyWindow)

	var inWindow []*model.WhaleTransaction
	for _, tx := range history {
		if !tx.TradedAt.Before(windowStart) {
			inWindow = append(inWindow, tx)
		}
	}

	if len(inWindow) < consistencyMinSample {
		return 0.5
	}

	buckets := make(map[int64]decimal.Decimal)
	for _, tx := range inWindow {
		bucket := tx.TradedAt.Sub(windowStart).Nanoseconds() / consistencyBucket.Nanoseconds()
		flow := tx.AmountUSD
		if tx.Side == model.TradeSideBuy {
			flow = flow.Neg()
		}
		buckets[bucket] = buckets[bucket].Add(flow)
	}

	positive := 0
	for _, net := range buckets {
		if net.IsPositive() {
			positive++
		}
	}

	return float64(positive) / float64(len(buckets))
}

// timingScore 入场时机子评分。没有价格反应历史可用，按约定返回中性常量。
func timingScore() float64 {
	return 0.6
}

// selectionScore 市场选择子评分：已知擅长类别给0.8，否则中性0.5
func selectionScore(specialization string) float64 {
	if specialization != "" {
		return 0.8
	}
	return 0.5
}

// riskScore 风险控制子评分：有正夏普比率时按sharpe/2折算，否则默认0.6
func riskScore(sharpe float64) float64 {
	if sharpe > 0 {
		score := sharpe / 2.0
		if score > 1.0 {
			return 1.0
		}
		return score
	}
	return 0.6
}
