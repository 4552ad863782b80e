package repo

import (
	"time"

	"gorm.io/gorm"

	"github.com/ninja0404/whale-signal/internal/model"
)

type WhaleTxRepo interface {
	// Insert 插入一条鲸鱼成交记录
	Insert(tx *model.WhaleTransaction) error

	// RecentByWhale 获取指定鲸鱼在since之后的成交记录（按时间升序）
	RecentByWhale(address string, since time.Time) ([]*model.WhaleTransaction, error)

	// CountByWhale 统计指定鲸鱼的成交记录数
	CountByWhale(address string) (int64, error)
}

type whaleTxRepoImpl struct {
	db *gorm.DB
}

func NewWhaleTxRepo(db *gorm.DB) WhaleTxRepo {
	return &whaleTxRepoImpl{
		db: db,
	}
}

func (r *whaleTxRepoImpl) Insert(tx *model.WhaleTransaction) error {
	tx.WhaleAddress = model.NormalizeAddress(tx.WhaleAddress)
	return r.db.Create(tx).Error
}

func (r *whaleTxRepoImpl) RecentByWhale(address string, since time.Time) ([]*model.WhaleTransaction, error) {
	var txs []*model.WhaleTransaction

	err := r.db.
		Where("whale_address = ? AND traded_at >= ?", model.NormalizeAddress(address), since).
		Order("traded_at ASC").
		Find(&txs).Error

	return txs, err
}

func (r *whaleTxRepoImpl) CountByWhale(address string) (int64, error) {
	var count int64

	err := r.db.Model(&model.WhaleTransaction{}).
		Where("whale_address = ?", model.NormalizeAddress(address)).
		Count(&count).Error

	return count, err
}
