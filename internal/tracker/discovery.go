package tracker

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

// DiscoveryConfig 鲸鱼发现配置
type DiscoveryConfig struct {
	MinVolumeUSD    decimal.Decimal // 建档的累计交易量阈值
	MinTradeSizeUSD decimal.Decimal // 单笔最小计入金额
	StatsInterval   time.Duration   // 周期统计输出间隔
}

// candidate 尚未跨过建档阈值的地址的累计统计
type candidate struct {
	volume   decimal.Decimal
	trades   int
	lastSeen time.Time
}

// Discovery 鲸鱼发现循环：消费行情成交流，建档新鲸鱼，
// 并把被跟踪鲸鱼的仓位变动作为事件发给信号写入协程。
type Discovery struct {
	monitor    *Monitor
	config     DiscoveryConfig
	trades     <-chan *model.FeedTrade
	events     chan *PositionEvent
	candidates map[string]*candidate

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDiscovery 创建发现循环
func NewDiscovery(monitor *Monitor, config DiscoveryConfig, trades <-chan *model.FeedTrade) *Discovery {
	ctx, cancel := context.WithCancel(context.Background())

	if config.StatsInterval <= 0 {
		config.StatsInterval = 5 * time.Minute
	}

	return &Discovery{
		monitor:    monitor,
		config:     config,
		trades:     trades,
		events:     make(chan *PositionEvent, 1000),
		candidates: make(map[string]*candidate),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Events 仓位变动事件流，由唯一的信号写入协程消费
func (d *Discovery) Events() <-chan *PositionEvent {
	return d.events
}

// Start 启动发现循环
func (d *Discovery) Start() error {
	go d.run()

	logger.Info("🔭 鲸鱼发现循环已启动",
		logger.String("min_volume_usd", d.config.MinVolumeUSD.String()),
		logger.String("min_trade_size_usd", d.config.MinTradeSizeUSD.String()))
	return nil
}

// Stop 停止发现循环
func (d *Discovery) Stop() error {
	logger.Info("🛑 停止鲸鱼发现循环")
	d.cancel()
	return nil
}

func (d *Discovery) run() {
	// 事件通道由发送方关闭，避免Stop与emit竞争
	defer close(d.events)

	ticker := time.NewTicker(d.config.StatsInterval)
	defer ticker.Stop()

	processed := int64(0)
	promoted := int64(0)

	for {
		select {
		case <-d.ctx.Done():
			return
		case trade, ok := <-d.trades:
			if !ok {
				return
			}
			processed++

			// 成交双方都可能是鲸鱼：taker按成交方向计，maker按反方向计
			if n, err := d.processParty(trade.Taker, tradeSide(trade.Side), trade); err != nil {
				logger.Error("处理taker失败", logger.FieldErr(err))
			} else {
				promoted += n
			}
			if n, err := d.processParty(trade.Maker, oppositeSide(tradeSide(trade.Side)), trade); err != nil {
				logger.Error("处理maker失败", logger.FieldErr(err))
			} else {
				promoted += n
			}
		case <-ticker.C:
			d.prune()
			logger.Info("📊 鲸鱼发现统计",
				logger.Int64("trades_processed", processed),
				logger.Int64("whales_promoted", promoted),
				logger.Int("candidates", len(d.candidates)))
		}
	}
}

// processParty 处理成交一方，返回本次新建档的鲸鱼数(0或1)
func (d *Discovery) processParty(address, side string, trade *model.FeedTrade) (int64, error) {
	if address == "" {
		return 0, nil
	}
	// 小额成交不计入
	if trade.SizeUSD.LessThan(d.config.MinTradeSizeUSD) {
		return 0, nil
	}

	address = model.NormalizeAddress(address)

	whale, err := d.monitor.GetWhale(address)
	if err != nil {
		return 0, err
	}

	created := int64(0)
	record := d.monitor.RecordActivity
	if whale == nil {
		whale = d.accumulate(address, trade)
		if whale == nil {
			return 0, nil // 仍未跨过阈值
		}
		created = 1
		// 建档那笔成交的统计已在候选累计里，只落库历史
		record = d.monitor.RecordPromotingTrade
	}

	if err := record(whale, trade.MarketID, side, trade.Price, trade.SizeUSD, trade.Timestamp); err != nil {
		return created, err
	}

	// 只有被跟踪的鲸鱼的动作才会生成事件
	if whale.IsTracked {
		d.emit(whale, side, trade)
	}
	return created, nil
}

// accumulate 为未知地址累计统计，跨过阈值时建档并返回新鲸鱼
func (d *Discovery) accumulate(address string, trade *model.FeedTrade) *model.Whale {
	cand, ok := d.candidates[address]
	if !ok {
		cand = &candidate{volume: decimal.Zero}
		d.candidates[address] = cand
	}
	cand.volume = cand.volume.Add(trade.SizeUSD)
	cand.trades++
	cand.lastSeen = trade.Timestamp

	if cand.volume.LessThan(d.config.MinVolumeUSD) {
		return nil
	}

	whale, err := d.monitor.CreateWhale(address, cand.volume, cand.trades, trade.Timestamp)
	if err != nil {
		logger.Error("鲸鱼建档失败",
			logger.String("address", utils.GetDisplayWalletAddress(address)),
			logger.FieldErr(err))
		return nil
	}
	delete(d.candidates, address)
	return whale
}

func (d *Discovery) emit(whale *model.Whale, side string, trade *model.FeedTrade) {
	kind := model.SignalTypeEntry
	if side == model.TradeSideSell {
		kind = model.SignalTypeExit
	}

	event := &PositionEvent{
		Whale:      whale,
		Kind:       kind,
		MarketID:   trade.MarketID,
		Side:       outcomeSide(trade.Outcome),
		Price:      trade.Price,
		SizeUSD:    trade.SizeUSD,
		ObservedAt: trade.Timestamp,
	}

	select {
	case d.events <- event:
	case <-d.ctx.Done():
	default:
		logger.Warn("⚠️ 仓位事件通道已满，丢弃事件",
			logger.String("whale", utils.GetDisplayWalletAddress(whale.Address)),
			logger.String("market", trade.MarketID))
	}
}

// prune 清理超过24小时没有活动的候选地址
func (d *Discovery) prune() {
	cutoff := time.Now().Add(-24 * time.Hour)
	for addr, cand := range d.candidates {
		if cand.lastSeen.Before(cutoff) {
			delete(d.candidates, addr)
		}
	}
}

func tradeSide(side string) string {
	if strings.EqualFold(side, "SELL") {
		return model.TradeSideSell
	}
	return model.TradeSideBuy
}

func oppositeSide(side string) string {
	if side == model.TradeSideBuy {
		return model.TradeSideSell
	}
	return model.TradeSideBuy
}

// outcomeSide 行情outcome字段映射到下注方向，未知时默认YES
func outcomeSide(outcome string) string {
	if strings.EqualFold(outcome, "no") {
		return model.SideNo
	}
	return model.SideYes
}
