package signal

import (
	"context"
	"fmt"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/tracker"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

// Writer 信号写入协程：仓位事件的唯一消费者，也是信号的唯一创建者。
// 单写者保证了信号状态CAS不需要额外的跨实体锁。
type Writer struct {
	store  *Store
	events <-chan *tracker.PositionEvent

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWriter 创建信号写入协程
func NewWriter(store *Store, events <-chan *tracker.PositionEvent) *Writer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Writer{
		store:  store,
		events: events,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动写入协程
func (w *Writer) Start() error {
	go w.run()
	logger.Info("✍️ 信号写入协程已启动")
	return nil
}

// Stop 停止写入协程
func (w *Writer) Stop() error {
	logger.Info("🛑 停止信号写入协程")
	w.cancel()
	return nil
}

func (w *Writer) run() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.events:
			if !ok {
				return
			}
			if err := w.handle(event); err != nil {
				logger.Error("写入信号失败",
					logger.String("whale", utils.GetDisplayWalletAddress(event.Whale.Address)),
					logger.String("market", event.MarketID),
					logger.FieldErr(err))
			}
		}
	}
}

func (w *Writer) handle(event *tracker.PositionEvent) error {
	reasoning := fmt.Sprintf("Whale %s %s %s %s @ %s (quality %.2f)",
		utils.GetDisplayWalletAddress(event.Whale.Address),
		string(event.Kind),
		utils.FormatUSD(event.SizeUSD),
		event.Side,
		utils.FormatOutcomePrice(event.Price),
		event.Whale.QualityScore)

	var err error
	switch event.Kind {
	case model.SignalTypeExit:
		_, err = w.store.CreateExitSignal(event.Whale, event.MarketID, event.Side, event.Price, event.SizeUSD, reasoning)
	default:
		_, err = w.store.CreateEntrySignal(event.Whale, event.MarketID, event.Side, event.Price, event.SizeUSD, reasoning)
	}
	return err
}
