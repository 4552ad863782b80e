package repo

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ninja0404/whale-signal/internal/model"
)

type WhaleRepo interface {
	// GetByAddress 按地址查询鲸鱼（地址内部统一小写）
	GetByAddress(address string) (*model.Whale, error)

	// Upsert 按地址插入或更新鲸鱼
	Upsert(whale *model.Whale) error

	// Save 保存鲸鱼全部字段
	Save(whale *model.Whale) error

	// ListTracked 获取所有被跟踪的鲸鱼
	ListTracked() ([]*model.Whale, error)

	// TopByQuality 按质量评分倒序取前N个
	TopByQuality(limit int) ([]*model.Whale, error)

	// CountTracked 统计被跟踪鲸鱼数量
	CountTracked() (int64, error)
}

type whaleRepoImpl struct {
	db *gorm.DB
}

func NewWhaleRepo(db *gorm.DB) WhaleRepo {
	return &whaleRepoImpl{
		db: db,
	}
}

func (r *whaleRepoImpl) GetByAddress(address string) (*model.Whale, error) {
	var whale model.Whale

	err := r.db.
		Where("address = ?", model.NormalizeAddress(address)).
		First(&whale).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &whale, nil
}

func (r *whaleRepoImpl) Upsert(whale *model.Whale) error {
	whale.Address = model.NormalizeAddress(whale.Address)
	if whale.FirstSeen.IsZero() {
		whale.FirstSeen = time.Now()
	}

	return r.db.
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"nickname", "total_volume", "total_trades", "winning_trades", "losing_trades",
				"win_rate", "quality_score", "whale_type", "specialization", "sharpe_ratio",
				"is_tracked", "last_activity",
			}),
		}).
		Create(whale).Error
}

func (r *whaleRepoImpl) Save(whale *model.Whale) error {
	whale.Address = model.NormalizeAddress(whale.Address)
	return r.db.Save(whale).Error
}

func (r *whaleRepoImpl) ListTracked() ([]*model.Whale, error) {
	var whales []*model.Whale

	err := r.db.
		Where("is_tracked = ?", true).
		Order("quality_score DESC").
		Find(&whales).Error

	return whales, err
}

func (r *whaleRepoImpl) TopByQuality(limit int) ([]*model.Whale, error) {
	var whales []*model.Whale

	err := r.db.
		Order("quality_score DESC").
		Limit(limit).
		Find(&whales).Error

	return whales, err
}

func (r *whaleRepoImpl) CountTracked() (int64, error) {
	var count int64

	err := r.db.Model(&model.Whale{}).
		Where("is_tracked = ?", true).
		Count(&count).Error

	return count, err
}
