package tracker

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/model"
)

// PositionEvent 被跟踪鲸鱼的仓位变动事件。
// 发现循环是唯一生产者，信号写入协程是唯一消费者。
type PositionEvent struct {
	Whale      *model.Whale
	Kind       model.SignalType // ENTRY或EXIT
	MarketID   string
	Side       string // YES或NO
	Price      decimal.Decimal
	SizeUSD    decimal.Decimal
	ObservedAt time.Time
}
