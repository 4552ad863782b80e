package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/config"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

const (
	defaultBaseURL     = "https://gamma-api.polymarket.com"
	defaultTimeout     = 10 * time.Second
	defaultMarketLimit = 200
)

// Client 市场数据客户端。调用方把错误和空结果都当作"本轮没有数据"，
// 下一轮扫描自然重试，不做紧循环重试。
type Client interface {
	// GetTradeableMarkets 获取当前可交易的市场列表
	GetTradeableMarkets(ctx context.Context) ([]*model.Market, error)

	// GetMarket 按ID获取单个市场
	GetMarket(ctx context.Context, id string) (*model.Market, error)

	// GetRecentTrades 获取指定token的近期成交
	GetRecentTrades(ctx context.Context, tokenID string, limit int) ([]*model.FeedTrade, error)
}

// marketResponse gamma接口的市场结构，outcomePrices是字符串形式的JSON数组
type marketResponse struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	OutcomePrices string   `json:"outcomePrices"`
	EndDate       string   `json:"endDate"`
	Tags          []string `json:"tags"`
	Volume24hr    float64  `json:"volume24hr"`
	Active        bool     `json:"active"`
	Closed        bool     `json:"closed"`
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
	Timestamp    int64  `json:"timestamp"`
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

// NewClient 创建HTTP市场数据客户端
func NewClient(cfg config.MarketConfig) Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) GetTradeableMarkets(ctx context.Context) ([]*model.Market, error) {
	endpoint := fmt.Sprintf("%s/markets?active=true&closed=false&limit=%d", c.baseURL, defaultMarketLimit)

	var resp []marketResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, errors.Wrap(err, "fetch tradeable markets")
	}

	markets := make([]*model.Market, 0, len(resp))
	for i := range resp {
		m := convertMarket(&resp[i])
		if m == nil {
			continue
		}
		markets = append(markets, m)
	}

	logger.Debug("获取可交易市场",
		logger.Int("total", len(resp)),
		logger.Int("usable", len(markets)))
	return markets, nil
}

func (c *httpClient) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	endpoint := fmt.Sprintf("%s/markets/%s", c.baseURL, url.PathEscape(id))

	var resp marketResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, errors.Wrapf(err, "fetch market %s", id)
	}

	m := convertMarket(&resp)
	if m == nil {
		return nil, errors.Errorf("market %s has no usable data", id)
	}
	return m, nil
}

func (c *httpClient) GetRecentTrades(ctx context.Context, tokenID string, limit int) ([]*model.FeedTrade, error) {
	if limit <= 0 {
		limit = 100
	}
	endpoint := fmt.Sprintf("%s/trades?asset_id=%s&limit=%d", c.baseURL, url.QueryEscape(tokenID), limit)

	var resp []tradeResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, errors.Wrapf(err, "fetch trades for token %s", tokenID)
	}

	trades := make([]*model.FeedTrade, 0, len(resp))
	for i := range resp {
		trades = append(trades, convertTrade(&resp[i]))
	}
	return trades, nil
}

func (c *httpClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// convertMarket 转换gamma市场结构，缺关键字段时返回nil
func convertMarket(resp *marketResponse) *model.Market {
	if resp.ID == "" {
		return nil
	}

	m := &model.Market{
		ID:        resp.ID,
		Question:  resp.Question,
		Tags:      resp.Tags,
		Volume24h: decimal.NewFromFloat(resp.Volume24hr),
	}

	if prices := parseOutcomePrices(resp.OutcomePrices); len(prices) == 2 {
		m.OutcomePrices = prices
	}
	if resp.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, resp.EndDate); err == nil {
			m.EndDate = &t
		}
	}
	return m
}

// parseOutcomePrices 解析字符串形式的价格数组，非法输入返回nil
func parseOutcomePrices(raw string) []decimal.Decimal {
	if raw == "" {
		return nil
	}

	var strs []string
	if err := json.Unmarshal([]byte(raw), &strs); err != nil {
		return nil
	}
	if len(strs) != 2 {
		return nil
	}

	prices := make([]decimal.Decimal, 0, 2)
	for _, s := range strs {
		p, err := decimal.NewFromString(s)
		if err != nil {
			return nil
		}
		prices = append(prices, p)
	}
	return prices
}

func convertTrade(resp *tradeResponse) *model.FeedTrade {
	price, _ := decimal.NewFromString(resp.Price)
	size, _ := decimal.NewFromString(resp.Size)

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
