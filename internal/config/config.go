package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/ninja0404/whale-signal/pkg/database/mysql"
	"github.com/ninja0404/whale-signal/pkg/logger"
	kafkamq "github.com/ninja0404/whale-signal/pkg/mq/kafka"
)

// AppConfig 应用配置结构
type AppConfig struct {
	Logger   LoggerConfig      `mapstructure:"logger"`
	Mysql    mysql.MysqlConfig `mapstructure:"mysql"`
	Feed     FeedConfig        `mapstructure:"feed"`
	Market   MarketConfig      `mapstructure:"market"`
	Whale    WhaleConfig       `mapstructure:"whale"`
	Risk     RiskConfig        `mapstructure:"risk"`
	Strategy StrategyConfig    `mapstructure:"strategy"`
	Alert    AlertConfig       `mapstructure:"alert"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Output        string `mapstructure:"output"`
	Dir           string `mapstructure:"dir"`
	Name          string `mapstructure:"name"`
	Debug         bool   `mapstructure:"debug"`
	Level         string `mapstructure:"level"`
	AddCaller     bool   `mapstructure:"add_caller"`
	CallerSkip    int    `mapstructure:"caller_skip"`
	DisableSentry bool   `mapstructure:"disable_sentry"`
	SentryLevel   string `mapstructure:"sentry_level"`
}

// FeedConfig 行情源配置
type FeedConfig struct {
	// Mode 行情源模式：kafka、clob、both
	Mode  string          `mapstructure:"mode"`
	Kafka KafkaFeedConfig `mapstructure:"kafka"`
	Clob  ClobFeedConfig  `mapstructure:"clob"`
}

// KafkaFeedConfig Kafka行情源配置
type KafkaFeedConfig struct {
	Brokers  []string                    `mapstructure:"brokers"`
	Topic    string                      `mapstructure:"topic"`
	Consumer kafkamq.KafkaConsumerConfig `mapstructure:"consumer"`
}

// ClobFeedConfig CLOB REST轮询行情源配置
type ClobFeedConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Lookback     time.Duration `mapstructure:"lookback"`
	BatchLimit   int           `mapstructure:"batch_limit"`
}

// MarketConfig 市场数据客户端配置
type MarketConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WhaleConfig 鲸鱼发现与信号配置
type WhaleConfig struct {
	MinVolumeUSD        float64       `mapstructure:"min_volume_usd"`        // 发现阈值：累计交易量
	MinTradeSizeUSD     float64       `mapstructure:"min_trade_size_usd"`    // 单笔最小计入金额
	MinQualityScore     float64       `mapstructure:"min_quality_score"`     // 跟单最低质量评分
	MinTradesForScoring int           `mapstructure:"min_trades_for_scoring"` // 评分最低样本数
	CopyDelay           time.Duration `mapstructure:"copy_delay"`            // 跟单延迟窗口
	MaxPositionPct      float64       `mapstructure:"max_position_pct"`      // 鲸鱼跟单单仓上限(%)
	SignalExpireAge     time.Duration `mapstructure:"signal_expire_age"`     // 信号过期年龄
	SignalRetainDays    int           `mapstructure:"signal_retain_days"`    // 终态信号保留天数
	DiscoveryInterval   time.Duration `mapstructure:"discovery_interval"`    // 发现循环间隔
}

// RiskConfig 风控配置
type RiskConfig struct {
	PaperCapitalUSD              float64 `mapstructure:"paper_capital_usd"`
	MaxPositionSizePct           float64 `mapstructure:"max_position_size_pct"`
	DailyLossLimitPct            float64 `mapstructure:"daily_loss_limit_pct"`
	WeeklyLossLimitPct           float64 `mapstructure:"weekly_loss_limit_pct"`
	MinProfitThresholdPct        float64 `mapstructure:"min_profit_threshold_pct"`
	GasFeeMaxPctOfProfit         float64 `mapstructure:"gas_fee_max_pct_of_profit"`
	MinMarketsForDiversification int     `mapstructure:"min_markets_for_diversification"`
	GasEstimateUSD               float64 `mapstructure:"gas_estimate_usd"`
}

// StrategyConfig 策略配置
type StrategyConfig struct {
	ScanInterval   time.Duration        `mapstructure:"scan_interval"`
	WhaleFollowing WhaleFollowingConfig `mapstructure:"whale_following"`
	EndgameSweep   EndgameSweepConfig   `mapstructure:"endgame_sweep"`
}

// WhaleFollowingConfig 鲸鱼跟单策略配置
type WhaleFollowingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	TopN    int  `mapstructure:"top_n"`
}

// EndgameSweepConfig 终局扫尾策略配置
type EndgameSweepConfig struct {
	Enabled              bool    `mapstructure:"enabled"`
	MinPrice             float64 `mapstructure:"min_price"`
	MaxPrice             float64 `mapstructure:"max_price"`
	MaxHoursToSettlement float64 `mapstructure:"max_hours_to_settlement"`
	MinConfidence        float64 `mapstructure:"min_confidence"`
	TopN                 int     `mapstructure:"top_n"`
}

// AlertConfig 告警配置
type AlertConfig struct {
	LarkWebhookURL string                      `mapstructure:"lark_webhook_url"`
	KafkaBrokers   []string                    `mapstructure:"kafka_brokers"`
	KafkaTopic     string                      `mapstructure:"kafka_topic"`
	KafkaProducer  kafkamq.KafkaProducerConfig `mapstructure:"kafka_producer"`
}

// Manager 配置管理器
type Manager struct {
	config *AppConfig
}

// NewManager 创建配置管理器
func NewManager() *Manager {
	return &Manager{}
}

// Load 加载配置文件
func (m *Manager) Load(configPath string) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return errors.Wrap(err, "读取配置文件失败")
	}

	var appConfig AppConfig
	if err := v.Unmarshal(&appConfig); err != nil {
		return errors.Wrap(err, "解析配置失败")
	}

	m.config = &appConfig
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.add_caller", true)
	v.SetDefault("logger.disable_sentry", true)
	v.SetDefault("logger.sentry_level", "error")

	v.SetDefault("feed.mode", "clob")
	v.SetDefault("feed.clob.base_url", "https://clob.polymarket.com")
	v.SetDefault("feed.clob.poll_interval", 3*time.Second)
	v.SetDefault("feed.clob.lookback", 5*time.Minute)
	v.SetDefault("feed.clob.batch_limit", 100)

	v.SetDefault("market.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("market.timeout", 10*time.Second)

	v.SetDefault("whale.min_volume_usd", 50000.0)
	v.SetDefault("whale.min_trade_size_usd", 1000.0)
	v.SetDefault("whale.min_quality_score", 0.70)
	v.SetDefault("whale.min_trades_for_scoring", 10)
	v.SetDefault("whale.copy_delay", 300*time.Second)
	v.SetDefault("whale.max_position_pct", 8.0)
	v.SetDefault("whale.signal_expire_age", 24*time.Hour)
	v.SetDefault("whale.signal_retain_days", 30)
	v.SetDefault("whale.discovery_interval", 5*time.Minute)

	v.SetDefault("risk.paper_capital_usd", 10000.0)
	v.SetDefault("risk.max_position_size_pct", 10.0)
	v.SetDefault("risk.daily_loss_limit_pct", 5.0)
	v.SetDefault("risk.weekly_loss_limit_pct", 10.0)
	v.SetDefault("risk.min_profit_threshold_pct", 0.3)
	v.SetDefault("risk.gas_fee_max_pct_of_profit", 10.0)
	v.SetDefault("risk.min_markets_for_diversification", 5)
	v.SetDefault("risk.gas_estimate_usd", 0.5)

	v.SetDefault("strategy.scan_interval", 15*time.Minute)
	v.SetDefault("strategy.whale_following.enabled", true)
	v.SetDefault("strategy.whale_following.top_n", 5)
	v.SetDefault("strategy.endgame_sweep.enabled", true)
	v.SetDefault("strategy.endgame_sweep.min_price", 0.95)
	v.SetDefault("strategy.endgame_sweep.max_price", 0.99)
	v.SetDefault("strategy.endgame_sweep.max_hours_to_settlement", 24.0)
	v.SetDefault("strategy.endgame_sweep.min_confidence", 0.70)
	v.SetDefault("strategy.endgame_sweep.top_n", 10)
}

// GetAppConfig 获取应用配置
func (m *Manager) GetAppConfig() *AppConfig {
	return m.config
}

// InitLogger 初始化日志系统
func (m *Manager) InitLogger() error {
	loggerConfig := logger.DefaultConfig()
	lc := m.config.Logger
	if lc.Output != "" {
		loggerConfig.OUTPUT = lc.Output
	}
	if lc.Dir != "" {
		loggerConfig.Dir = lc.Dir
	}
	if lc.Name != "" {
		loggerConfig.Name = lc.Name
	}
	if lc.Level != "" {
		loggerConfig.Level = lc.Level
	}
	loggerConfig.Debug = lc.Debug
	loggerConfig.AddCaller = lc.AddCaller
	loggerConfig.CallerSkip = lc.CallerSkip
	loggerConfig.DisableSentry = lc.DisableSentry
	if lc.SentryLevel != "" {
		loggerConfig.SentryLevel = lc.SentryLevel
	}

	loggerInstance := loggerConfig.Build()
	logger.SetDefault(loggerInstance)
	logger.SetDefaultL1(loggerInstance)
	return nil
}
