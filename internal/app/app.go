package app

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ninja0404/whale-signal/internal/alert"
	"github.com/ninja0404/whale-signal/internal/config"
	"github.com/ninja0404/whale-signal/internal/engine"
	"github.com/ninja0404/whale-signal/internal/feed"
	feedclob "github.com/ninja0404/whale-signal/internal/feed/clob"
	feedkafka "github.com/ninja0404/whale-signal/internal/feed/kafka"
	"github.com/ninja0404/whale-signal/internal/market"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/risk"
	"github.com/ninja0404/whale-signal/internal/scorer"
	signalstore "github.com/ninja0404/whale-signal/internal/signal"
	"github.com/ninja0404/whale-signal/internal/strategy"
	"github.com/ninja0404/whale-signal/internal/tracker"
	"github.com/ninja0404/whale-signal/pkg/database/mysql"
	"github.com/ninja0404/whale-signal/pkg/logger"
	kafkamq "github.com/ninja0404/whale-signal/pkg/mq/kafka"
)

// Application 鲸鱼跟单信号应用
type Application struct {
	configManager *config.Manager
	db            *gorm.DB

	feedManager *feed.Manager
	discovery   *tracker.Discovery
	writer      *signalstore.Writer
	engine      *engine.Engine
	alerts      *alert.Manager

	kafkaProducerUp bool
}

// New 创建应用实例
func New() *Application {
	return &Application{
		configManager: config.NewManager(),
	}
}

// Initialize 初始化应用
func (app *Application) Initialize(configPath string) error {
	// 1. 加载配置
	if err := app.configManager.Load(configPath); err != nil {
		return err
	}

	// 2. 初始化日志系统
	if err := app.configManager.InitLogger(); err != nil {
		return err
	}
	logger.Info("🚀 鲸鱼跟单信号服务初始化开始", logger.String("config_path", configPath))

	cfg := app.configManager.GetAppConfig()

	// 3. 初始化数据库
	if err := mysql.SetupDatabase(&cfg.Mysql); err != nil {
		return err
	}
	db, err := mysql.GetDb()
	if err != nil {
		return err
	}
	app.db = db
	logger.Info("🗄️ 数据库连接已建立")

	whaleRepo := repo.NewWhaleRepo(db)
	whaleTxRepo := repo.NewWhaleTxRepo(db)
	signalRepo := repo.NewSignalRepo(db)
	tradeRepo := repo.NewTradeRepo(db)

	// 4. 告警
	app.alerts = alert.NewManager()
	app.alerts.AddSink(&alert.LogSink{})
	if cfg.Alert.LarkWebhookURL != "" {
		app.alerts.AddSink(alert.NewLarkSink(cfg.Alert.LarkWebhookURL))
	}
	if cfg.Alert.KafkaTopic != "" && len(cfg.Alert.KafkaBrokers) > 0 {
		if err := kafkamq.SetupKafkaProducer(cfg.Alert.KafkaBrokers, cfg.Alert.KafkaProducer); err != nil {
			return err
		}
		app.kafkaProducerUp = true
		app.alerts.AddSink(alert.NewKafkaSink(cfg.Alert.KafkaTopic))
	}

	// 5. 鲸鱼评分与档案
	scorerEngine := scorer.NewEngine(cfg.Whale.MinTradesForScoring)
	monitor := tracker.NewMonitor(whaleRepo, whaleTxRepo, scorerEngine,
		cfg.Whale.MinTradesForScoring, cfg.Whale.MinQualityScore)

	// 6. 行情源
	app.feedManager = feed.NewManager()
	app.setupFeeds(cfg)

	// 7. 发现循环与信号写入：发现循环是仓位事件的唯一生产者，
	// 写入协程是信号的唯一创建者
	app.discovery = tracker.NewDiscovery(monitor, tracker.DiscoveryConfig{
		MinVolumeUSD:    decimal.NewFromFloat(cfg.Whale.MinVolumeUSD),
		MinTradeSizeUSD: decimal.NewFromFloat(cfg.Whale.MinTradeSizeUSD),
		StatsInterval:   cfg.Whale.DiscoveryInterval,
	}, app.feedManager.Trades())

	store := signalstore.NewStore(signalRepo, cfg.Whale.MinQualityScore)
	app.writer = signalstore.NewWriter(store, app.discovery.Events())

	// 8. 风控、市场数据与策略
	riskMgr := risk.NewManager(tradeRepo, cfg.Risk)
	marketClient := market.NewClient(cfg.Market)

	registry := strategy.NewRegistry()
	registry.Register(strategy.NewWhaleFollowing(store, riskMgr, marketClient, tradeRepo,
		app.alerts, cfg.Whale, cfg.Strategy.WhaleFollowing))
	registry.Register(strategy.NewEndgameSweep(riskMgr, marketClient, tradeRepo,
		app.alerts, cfg.Strategy.EndgameSweep))

	// 9. 扫描引擎
	app.engine = engine.NewEngine(registry, store, riskMgr, app.alerts, engine.Config{
		ScanInterval:     cfg.Strategy.ScanInterval,
		SignalExpireAge:  cfg.Whale.SignalExpireAge,
		SignalRetainDays: cfg.Whale.SignalRetainDays,
	})

	logger.Info("✅ 鲸鱼跟单信号服务初始化完成")
	return nil
}

// setupFeeds 按配置装配行情源
func (app *Application) setupFeeds(cfg *config.AppConfig) {
	mode := cfg.Feed.Mode
	if mode == "" {
		mode = "clob"
	}

	if mode == "kafka" || mode == "both" {
		app.feedManager.AddFeed(feedkafka.NewSource(feedkafka.SourceConfig{
			Topic:       cfg.Feed.Kafka.Topic,
			Brokers:     cfg.Feed.Kafka.Brokers,
			KafkaConfig: cfg.Feed.Kafka.Consumer,
		}))
	}
	if mode == "clob" || mode == "both" {
		app.feedManager.AddFeed(feedclob.NewSource(feedclob.SourceConfig{
			BaseURL:      cfg.Feed.Clob.BaseURL,
			PollInterval: cfg.Feed.Clob.PollInterval,
			Lookback:     cfg.Feed.Clob.Lookback,
			BatchLimit:   cfg.Feed.Clob.BatchLimit,
		}))
	}

	logger.Info("📡 已配置行情源", logger.String("mode", mode))
}

// Run 运行应用
func (app *Application) Run() error {
	if err := app.alerts.Start(); err != nil {
		return err
	}
	if err := app.discovery.Start(); err != nil {
		return err
	}
	if err := app.writer.Start(); err != nil {
		return err
	}
	if err := app.feedManager.Start(); err != nil {
		return err
	}
	if err := app.engine.Start(); err != nil {
		return err
	}

	go app.drainFeedErrors()

	logger.Info("🔥 鲸鱼跟单信号服务已启动，开始监控市场成交...")

	app.waitForShutdown()
	return nil
}

// drainFeedErrors 消费行情源错误流
func (app *Application) drainFeedErrors() {
	for err := range app.feedManager.Errors() {
		logger.Warn("⚠️ 行情源错误", logger.FieldErr(err))
	}
}

// waitForShutdown 等待关闭信号
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info("📤 收到终止信号，开始优雅关闭应用...", logger.String("signal", sig.String()))

	app.Shutdown()
}

// Shutdown 优雅关闭应用
func (app *Application) Shutdown() {
	logger.Info("🛑 开始关闭鲸鱼跟单信号服务...")

	if err := app.engine.Stop(); err != nil {
		logger.Error("停止扫描引擎失败", logger.FieldErr(err))
	}
	if err := app.feedManager.Stop(); err != nil {
		logger.Error("停止行情源失败", logger.FieldErr(err))
	}
	if err := app.discovery.Stop(); err != nil {
		logger.Error("停止发现循环失败", logger.FieldErr(err))
	}
	if err := app.writer.Stop(); err != nil {
		logger.Error("停止信号写入协程失败", logger.FieldErr(err))
	}
	if err := app.alerts.Stop(); err != nil {
		logger.Error("停止告警管理器失败", logger.FieldErr(err))
	}
	if app.kafkaProducerUp {
		if err := kafkamq.CloseProducer(); err != nil {
			logger.Error("关闭Kafka生产者失败", logger.FieldErr(err))
		}
	}
	if err := mysql.Stop(); err != nil {
		logger.Error("关闭数据库连接失败", logger.FieldErr(err))
	}

	logger.Info("✨ 鲸鱼跟单信号服务已成功关闭")
}

// Start 启动应用的便捷方法
func (app *Application) Start(configPath string) error {
	if err := app.Initialize(configPath); err != nil {
		logger.Error("❌ 鲸鱼跟单信号服务初始化失败", logger.FieldErr(err))
		return err
	}

	if err := app.Run(); err != nil {
		logger.Error("❌ 鲸鱼跟单信号服务运行失败", logger.FieldErr(err))
		return err
	}

	return nil
}

// GetConfigManager 获取配置管理器
func (app *Application) GetConfigManager() *config.Manager {
	return app.configManager
}

// GetDatabase 获取数据库连接
func (app *Application) GetDatabase() *gorm.DB {
	return app.db
}

// GetEngine 获取扫描引擎（用于手动触发扫描）
func (app *Application) GetEngine() *engine.Engine {
	return app.engine
}
