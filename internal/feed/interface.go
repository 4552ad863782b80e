package feed

import (
	"context"

	"github.com/ninja0404/whale-signal/internal/model"
)

// TradeFeed 市场成交数据源接口
type TradeFeed interface {
	// Start 启动数据源
	Start(ctx context.Context) error

	// Stop 停止数据源
	Stop() error

	// Subscribe 订阅成交数据流
	Subscribe() <-chan *model.FeedTrade

	// Errors 错误通道
	Errors() <-chan error

	// String 数据源名称
	String() string
}

// Manager 行情源管理器：把多个数据源汇聚成一条成交流
type Manager struct {
	feeds     []TradeFeed
	tradeChan chan *model.FeedTrade
	errorChan chan error
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewManager 创建行情源管理器
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		feeds:     make([]TradeFeed, 0),
		tradeChan: make(chan *model.FeedTrade, 100_000), // 缓冲通道
		errorChan: make(chan error, 100),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// AddFeed 添加数据源
func (m *Manager) AddFeed(feed TradeFeed) {
	m.feeds = append(m.feeds, feed)
}

// Start 启动所有数据源
func (m *Manager) Start() error {
	for _, feed := range m.feeds {
		if err := feed.Start(m.ctx); err != nil {
			return err
		}

		// 启动协程监听每个数据源
		go m.listenFeed(feed)
	}

	return nil
}

// Stop 停止所有数据源
func (m *Manager) Stop() error {
	m.cancel()

	for _, feed := range m.feeds {
		if err := feed.Stop(); err != nil {
			return err
		}
	}

	close(m.tradeChan)
	close(m.errorChan)

	return nil
}

// Trades 获取汇聚后的成交数据流
func (m *Manager) Trades() <-chan *model.FeedTrade {
	return m.tradeChan
}

// Errors 获取错误流
func (m *Manager) Errors() <-chan error {
	return m.errorChan
}

// listenFeed 监听单个数据源
func (m *Manager) listenFeed(feed TradeFeed) {
	tradeChan := feed.Subscribe()
	errChan := feed.Errors()

	for {
		select {
		case <-m.ctx.Done():
			return
		case trade, ok := <-tradeChan:
			if !ok {
				return
			}
			select {
			case m.tradeChan <- trade:
			case <-m.ctx.Done():
				return
			}
		case err, ok := <-errChan:
			if !ok {
				return
			}
			select {
			case m.errorChan <- err:
			case <-m.ctx.Done():
				return
			}
		}
	}
}
