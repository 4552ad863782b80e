package repo

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ninja0404/whale-signal/internal/model"
)

// SignalStatusCounts 各状态信号数量
type SignalStatusCounts map[model.SignalStatus]int64

type SignalRepo interface {
	// Create 创建新信号
	Create(signal *model.Signal) error

	// GetByID 按ID查询信号
	GetByID(id string) (*model.Signal, error)

	// Copyable 获取可跟单信号：pending、年龄>=delay、置信度>=minConfidence，按创建时间升序
	Copyable(delay time.Duration, minConfidence float64) ([]*model.Signal, error)

	// MarkExecuted 将pending信号CAS到executed，返回是否发生转移
	MarkExecuted(id string, tradeID uint64, executedAt time.Time) (bool, error)

	// MarkIgnored 将pending信号CAS到ignored并追加原因，返回是否发生转移
	MarkIgnored(id string, reasoning string) (bool, error)

	// ExpireStale 将超龄pending信号批量置为expired，返回条数
	ExpireStale(maxAge time.Duration) (int64, error)

	// DeleteTerminalBefore 删除cutoff之前的终态信号，返回条数
	DeleteTerminalBefore(cutoff time.Time) (int64, error)

	// CountByStatus 统计各状态信号数量
	CountByStatus() (SignalStatusCounts, error)

	// AvgConfidence 全部信号的平均置信度
	AvgConfidence() (float64, error)
}

type signalRepoImpl struct {
	db *gorm.DB
}

func NewSignalRepo(db *gorm.DB) SignalRepo {
	return &signalRepoImpl{
		db: db,
	}
}

func (r *signalRepoImpl) Create(signal *model.Signal) error {
	return r.db.Create(signal).Error
}

func (r *signalRepoImpl) GetByID(id string) (*model.Signal, error) {
	var signal model.Signal

	err := r.db.Where("id = ?", id).First(&signal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &signal, nil
}

func (r *signalRepoImpl) Copyable(delay time.Duration, minConfidence float64) ([]*model.Signal, error) {
	var signals []*model.Signal

	cutoff := time.Now().Add(-delay)
	err := r.db.
		Where("status = ? AND created_at <= ? AND confidence >= ?",
			model.SignalStatusPending, cutoff, minConfidence).
		Order("created_at ASC").
		Find(&signals).Error

	return signals, err
}

// MarkExecuted 状态转移以 WHERE status='pending' 作为CAS条件，重复调用不生效
func (r *signalRepoImpl) MarkExecuted(id string, tradeID uint64, executedAt time.Time) (bool, error) {
	result := r.db.Model(&model.Signal{}).
		Where("id = ? AND status = ?", id, model.SignalStatusPending).
		Updates(map[string]interface{}{
			"status":            model.SignalStatusExecuted,
			"executed_at":       executedAt,
			"executed_trade_id": tradeID,
		})

	return result.RowsAffected > 0, result.Error
}

func (r *signalRepoImpl) MarkIgnored(id string, reasoning string) (bool, error) {
	result := r.db.Model(&model.Signal{}).
		Where("id = ? AND status = ?", id, model.SignalStatusPending).
		Updates(map[string]interface{}{
			"status":    model.SignalStatusIgnored,
			"reasoning": reasoning,
		})

	return result.RowsAffected > 0, result.Error
}

func (r *signalRepoImpl) ExpireStale(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)

	result := r.db.Model(&model.Signal{}).
		Where("status = ? AND created_at < ?", model.SignalStatusPending, cutoff).
		Update("status", model.SignalStatusExpired)

	return result.RowsAffected, result.Error
}

func (r *signalRepoImpl) DeleteTerminalBefore(cutoff time.Time) (int64, error) {
	result := r.db.
		Where("status IN (?, ?, ?) AND created_at < ?",
			model.SignalStatusExecuted, model.SignalStatusIgnored, model.SignalStatusExpired, cutoff).
		Delete(&model.Signal{})

	return result.RowsAffected, result.Error
}

func (r *signalRepoImpl) CountByStatus() (SignalStatusCounts, error) {
	type row struct {
		Status model.SignalStatus
		Cnt    int64
	}
	var rows []row

	err := r.db.Model(&model.Signal{}).
		Select("status, COUNT(*) AS cnt").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(SignalStatusCounts, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Cnt
	}
	return counts, nil
}

func (r *signalRepoImpl) AvgConfidence() (float64, error) {
	var avg float64

	err := r.db.Model(&model.Signal{}).
		Select("COALESCE(AVG(confidence), 0)").
		Scan(&avg).Error

	return avg, err
}
