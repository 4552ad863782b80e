package clob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

const (
	defaultBaseURL      = "https://clob.polymarket.com"
	defaultPollInterval = 3 * time.Second
	defaultLookback     = 5 * time.Minute
	defaultBatchLimit   = 100
)

// SourceConfig CLOB REST轮询行情源配置
type SourceConfig struct {
	BaseURL      string        // CLOB接口地址
	PollInterval time.Duration // 轮询间隔
	Lookback     time.Duration // 首轮回看窗口
	BatchLimit   int           // 单次拉取上限
}

// tradeResponse CLOB成交接口的结构
type tradeResponse struct {
	ID           string `json:"id"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	MakerAddress string `json:"maker_address"`
	TakerAddress string `json:"taker_address"`
	Side         string `json:"side"`
	Size         string `json:"size"`
	Price        string `json:"price"`
	Outcome      string `json:"outcome"`
	Timestamp    int64  `json:"timestamp"` // 毫秒时间戳
}

// Source CLOB REST轮询行情源实现
type Source struct {
	tradeChan chan *model.FeedTrade
	errChan   chan error
	ctx       context.Context
	cancel    context.CancelFunc
	config    SourceConfig
	client    *http.Client
	lastPoll  time.Time
}

// NewSource 创建CLOB轮询行情源
func NewSource(config SourceConfig) *Source {
	ctx, cancel := context.WithCancel(context.Background())

	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	if config.Lookback <= 0 {
		config.Lookback = defaultLookback
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = defaultBatchLimit
	}

	return &Source{
		tradeChan: make(chan *model.FeedTrade, 1000),
		errChan:   make(chan error, 100),
		ctx:       ctx,
		cancel:    cancel,
		config:    config,
		client:    &http.Client{Timeout: 10 * time.Second},
		lastPoll:  time.Now().Add(-config.Lookback),
	}
}

// Start 启动轮询
func (s *Source) Start(ctx context.Context) error {
	logger.Info("🔭 启动CLOB行情源",
		logger.String("base_url", s.config.BaseURL),
		logger.String("poll_interval", s.config.PollInterval.String()),
		logger.Int("batch_limit", s.config.BatchLimit))

	go s.startPolling()

	logger.Info("✅ CLOB行情源已启动")
	return nil
}

// Stop 停止轮询
func (s *Source) Stop() error {
	logger.Info("🛑 停止CLOB行情源")
	s.cancel()

	close(s.tradeChan)
	close(s.errChan)

	return nil
}

// Subscribe 订阅成交数据流
func (s *Source) Subscribe() <-chan *model.FeedTrade {
	return s.tradeChan
}

// Errors 获取错误通道
func (s *Source) Errors() <-chan error {
	return s.errChan
}

// String 数据源名称
func (s *Source) String() string {
	return fmt.Sprintf("clob(%s)", s.config.BaseURL)
}

func (s *Source) startPolling() {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	// 首次拉取
	if err := s.poll(); err != nil {
		logger.Warn("⚠️ 首次拉取失败", logger.FieldErr(err))
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.poll(); err != nil {
				select {
				case s.errChan <- err:
				default:
				}
				logger.Debug("拉取成交失败", logger.FieldErr(err))
			}
		}
	}
}

// poll 拉取lastPoll之后的成交并推入通道
func (s *Source) poll() error {
	trades, err := s.fetchRecentTrades(s.lastPoll)
	if err != nil {
		return fmt.Errorf("拉取成交失败: %w", err)
	}
	if len(trades) == 0 {
		return nil
	}

	s.lastPoll = time.Now()
	for _, trade := range trades {
		select {
		case s.tradeChan <- trade:
		case <-s.ctx.Done():
			return nil
		default:
			logger.Warn("⚠️ 成交通道已满，丢弃成交", logger.String("trade_id", trade.ID))
		}
	}

	logger.Debug("📨 拉取到市场成交", logger.Int("count", len(trades)))
	return nil
}

func (s *Source) fetchRecentTrades(after time.Time) ([]*model.FeedTrade, error) {
	url := fmt.Sprintf("%s/trades?after=%d&limit=%d", s.config.BaseURL, after.UnixMilli(), s.config.BatchLimit)

	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("返回错误状态码: %d", resp.StatusCode)
	}

	var apiTrades []tradeResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiTrades); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	trades := make([]*model.FeedTrade, 0, len(apiTrades))
	for i := range apiTrades {
		trade := convertTrade(&apiTrades[i])
		if trade == nil {
			continue
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// convertTrade 转换CLOB成交结构，价格非法时返回nil
func convertTrade(resp *tradeResponse) *model.FeedTrade {
	price, err := decimal.NewFromString(resp.Price)
	if err != nil || !price.IsPositive() {
		return nil
	}
	size, err := decimal.NewFromString(resp.Size)
	if err != nil {
		return nil
	}

	return &model.FeedTrade{
		ID:        resp.ID,
		MarketID:  resp.Market,
		AssetID:   resp.AssetID,
		Maker:     resp.MakerAddress,
		Taker:     resp.TakerAddress,
		Side:      resp.Side,
		Outcome:   resp.Outcome,
		Price:     price,
		SizeUSD:   price.Mul(size),
		Timestamp: time.UnixMilli(resp.Timestamp),
	}
}
