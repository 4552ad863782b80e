package repo

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ninja0404/whale-signal/internal/model"
)

type TradeRepo interface {
	// Open 记录一笔开仓
	Open(trade *model.Trade) error

	// Close 平仓：写入平仓价、Gas成本并计算净盈亏
	Close(id uint64, exitPrice decimal.Decimal, gasCost decimal.Decimal) (*model.Trade, error)

	// GetByID 按ID查询
	GetByID(id uint64) (*model.Trade, error)

	// ListOpen 获取全部未平仓交易
	ListOpen() ([]*model.Trade, error)

	// ActiveByMarket 获取指定市场指定策略的未平仓交易
	ActiveByMarket(marketID string, strategy string) ([]*model.Trade, error)

	// RealizedNetProfitSince 统计since之后已平仓交易的净盈亏合计
	RealizedNetProfitSince(since time.Time) (decimal.Decimal, error)
}

type tradeRepoImpl struct {
	db *gorm.DB
}

func NewTradeRepo(db *gorm.DB) TradeRepo {
	return &tradeRepoImpl{
		db: db,
	}
}

func (r *tradeRepoImpl) Open(trade *model.Trade) error {
	if trade.Status == "" {
		trade.Status = model.TradeStatusOpen
	}
	if trade.EntryTime.IsZero() {
		trade.EntryTime = time.Now()
	}
	return r.db.Create(trade).Error
}

func (r *tradeRepoImpl) Close(id uint64, exitPrice decimal.Decimal, gasCost decimal.Decimal) (*model.Trade, error) {
	trade, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}
	if trade == nil || trade.Status != model.TradeStatusOpen {
		return trade, nil
	}

	// 盈亏 = 仓位 × (出场价 - 入场价) / 入场价
	profit := decimal.Zero
	if trade.EntryPrice.IsPositive() {
		profit = trade.SizeUSD.Mul(exitPrice.Sub(trade.EntryPrice)).Div(trade.EntryPrice)
	}
	now := time.Now()

	trade.ExitPrice = exitPrice
	trade.ProfitLoss = profit
	trade.GasCostUSD = gasCost
	trade.NetProfitUSD = profit.Sub(gasCost)
	trade.Status = model.TradeStatusClosed
	trade.ExitTime = &now

	if err := r.db.Save(trade).Error; err != nil {
		return nil, err
	}
	return trade, nil
}

func (r *tradeRepoImpl) GetByID(id uint64) (*model.Trade, error) {
	var trade model.Trade

	err := r.db.Where("id = ?", id).First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

func (r *tradeRepoImpl) ListOpen() ([]*model.Trade, error) {
	var trades []*model.Trade

	err := r.db.
		Where("status = ?", model.TradeStatusOpen).
		Order("entry_time ASC").
		Find(&trades).Error

	return trades, err
}

func (r *tradeRepoImpl) ActiveByMarket(marketID string, strategy string) ([]*model.Trade, error) {
	var trades []*model.Trade

	query := r.db.Where("market_id = ? AND status = ?", marketID, model.TradeStatusOpen)
	if strategy != "" {
		query = query.Where("strategy = ?", strategy)
	}
	err := query.Find(&trades).Error

	return trades, err
}

func (r *tradeRepoImpl) RealizedNetProfitSince(since time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal

	err := r.db.Model(&model.Trade{}).
		Where("status IN (?, ?) AND exit_time >= ?",
			model.TradeStatusClosed, model.TradeStatusSettled, since).
		Select("SUM(net_profit_usd)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
