package signal

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

// Stats 信号统计报告
type Stats struct {
	Pending       int64   `json:"pending"`
	Executed      int64   `json:"executed"`
	Ignored       int64   `json:"ignored"`
	Expired       int64   `json:"expired"`
	Total         int64   `json:"total"`
	AvgConfidence float64 `json:"avg_confidence"`
	ExecutionRate float64 `json:"execution_rate"` // executed / total
}

// Store 信号生命周期管理器，状态机的唯一入口
type Store struct {
	signals    repo.SignalRepo
	minQuality float64 // 低于该质量评分的鲸鱼活动不产生信号
}

// NewStore 创建信号存储
func NewStore(signals repo.SignalRepo, minQuality float64) *Store {
	return &Store{
		signals:    signals,
		minQuality: minQuality,
	}
}

// CreateEntrySignal 为鲸鱼建仓创建ENTRY信号，质量不达标返回nil（不产生信号）
func (s *Store) CreateEntrySignal(whale *model.Whale, marketID, side string, price, sizeUSD decimal.Decimal, reasoning string) (*model.Signal, error) {
	return s.create(whale, model.SignalTypeEntry, marketID, side, price, sizeUSD, reasoning)
}

// CreateExitSignal 为鲸鱼清仓创建EXIT信号，同样的质量门槛
func (s *Store) CreateExitSignal(whale *model.Whale, marketID, side string, price, sizeUSD decimal.Decimal, reasoning string) (*model.Signal, error) {
	return s.create(whale, model.SignalTypeExit, marketID, side, price, sizeUSD, reasoning)
}

func (s *Store) create(whale *model.Whale, signalType model.SignalType, marketID, side string, price, sizeUSD decimal.Decimal, reasoning string) (*model.Signal, error) {
	if whale.QualityScore < s.minQuality {
		logger.Debug("🚫 鲸鱼质量不达标，不生成信号",
			logger.String("address", whale.Address),
			logger.Float64("quality_score", whale.QualityScore),
			logger.Float64("min_quality", s.minQuality))
		return nil, nil
	}

	sig := &model.Signal{
		ID:           utils.GenerateULID(),
		WhaleAddress: whale.Address,
		SignalType:   signalType,
		MarketID:     marketID,
		Side:         side,
		Price:        price,
		SizeUSD:      sizeUSD,
		Confidence:   whale.QualityScore, // 创建时的质量评分快照，之后不变
		Reasoning:    reasoning,
		Status:       model.SignalStatusPending,
		CreatedAt:    time.Now(),
	}

	if err := s.signals.Create(sig); err != nil {
		return nil, err
	}

	logger.Info("🚨 生成跟单信号",
		logger.String("signal_id", sig.ID),
		logger.String("type", string(signalType)),
		logger.String("whale", utils.GetDisplayWalletAddress(whale.Address)),
		logger.String("market", marketID),
		logger.String("side", side),
		logger.String("price", price.String()),
		logger.String("size_usd", sizeUSD.String()),
		logger.Float64("confidence", sig.Confidence))

	return sig, nil
}

// Copyable 返回可跟单信号：延迟窗口已过且置信度达标的pending信号，最早创建的排在最前
func (s *Store) Copyable(delay time.Duration) ([]*model.Signal, error) {
	return s.signals.Copyable(delay, s.minQuality)
}

// MarkExecuted 标记信号已执行。非pending信号静默跳过（并发调度允许竞争标记）
func (s *Store) MarkExecuted(signalID string, tradeID uint64) error {
	transitioned, err := s.signals.MarkExecuted(signalID, tradeID, time.Now())
	if err != nil {
		return err
	}
	if !transitioned {
		logger.Info("⏭️ 信号已处于终态，跳过executed标记",
			logger.String("signal_id", signalID))
		return nil
	}

	logger.Info("✅ 信号已执行",
		logger.String("signal_id", signalID),
		logger.Uint64("trade_id", tradeID))
	return nil
}

// MarkIgnored 标记信号被跳过并在说明中追加原因，非pending静默跳过
func (s *Store) MarkIgnored(signalID string, reason string) error {
	sig, err := s.signals.GetByID(signalID)
	if err != nil {
		return err
	}
	if sig == nil {
		logger.Warn("⚠️ 信号不存在，无法标记ignored", logger.String("signal_id", signalID))
		return nil
	}

	reasoning := fmt.Sprintf("%s | Ignored: %s", sig.Reasoning, reason)
	transitioned, err := s.signals.MarkIgnored(signalID, reasoning)
	if err != nil {
		return err
	}
	if !transitioned {
		logger.Info("⏭️ 信号已处于终态，跳过ignored标记",
			logger.String("signal_id", signalID))
		return nil
	}

	logger.Info("🚫 信号已跳过",
		logger.String("signal_id", signalID),
		logger.String("reason", reason))
	return nil
}

// ExpireStale 批量过期超龄pending信号
func (s *Store) ExpireStale(maxAge time.Duration) (int64, error) {
	count, err := s.signals.ExpireStale(maxAge)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		logger.Info("⌛ 过期超龄信号",
			logger.Int64("count", count),
			logger.String("max_age", maxAge.String()))
	}
	return count, nil
}

// Cleanup 删除超过保留期的终态信号，纯存储清理
func (s *Store) Cleanup(retainDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retainDays)
	count, err := s.signals.DeleteTerminalBefore(cutoff)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		logger.Info("🧹 清理历史信号",
			logger.Int64("count", count),
			logger.Int("retain_days", retainDays))
	}
	return count, nil
}

// GetStats 生成信号统计报告
func (s *Store) GetStats() (*Stats, error) {
	counts, err := s.signals.CountByStatus()
	if err != nil {
		return nil, err
	}
	avg, err := s.signals.AvgConfidence()
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Pending:       counts[model.SignalStatusPending],
		Executed:      counts[model.SignalStatusExecuted],
		Ignored:       counts[model.SignalStatusIgnored],
		Expired:       counts[model.SignalStatusExpired],
		AvgConfidence: avg,
	}
	stats.Total = stats.Pending + stats.Executed + stats.Ignored + stats.Expired
	if stats.Total > 0 {
		stats.ExecutionRate = float64(stats.Executed) / float64(stats.Total)
	}
	return stats, nil
}
