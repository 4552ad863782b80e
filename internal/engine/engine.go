package engine

import (
	"context"
	"time"

	"github.com/ninja0404/whale-signal/internal/alert"
	"github.com/ninja0404/whale-signal/internal/risk"
	"github.com/ninja0404/whale-signal/internal/signal"
	"github.com/ninja0404/whale-signal/internal/strategy"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

const (
	defaultScanInterval = 15 * time.Minute
	maintenanceInterval = 1 * time.Hour
)

// Config 引擎配置
type Config struct {
	ScanInterval     time.Duration // 策略扫描间隔
	SignalExpireAge  time.Duration // pending信号的最大年龄
	SignalRetainDays int           // 终态信号保留天数
}

// Engine 扫描引擎：定时驱动全部策略，扫描前先过熔断检查，
// 单个策略的失败或panic不影响同轮的其他策略。
type Engine struct {
	registry *strategy.Registry
	store    *signal.Store
	riskMgr  *risk.Manager
	alerts   *alert.Manager
	config   Config

	trigger chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewEngine 创建扫描引擎
func NewEngine(registry *strategy.Registry, store *signal.Store, riskMgr *risk.Manager, alerts *alert.Manager, config Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	if config.ScanInterval <= 0 {
		config.ScanInterval = defaultScanInterval
	}
	if config.SignalExpireAge <= 0 {
		config.SignalExpireAge = 24 * time.Hour
	}
	if config.SignalRetainDays <= 0 {
		config.SignalRetainDays = 30
	}

	return &Engine{
		registry: registry,
		store:    store,
		riskMgr:  riskMgr,
		alerts:   alerts,
		config:   config,
		trigger:  make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 启动扫描循环和维护循环
func (e *Engine) Start() error {
	go e.runScanLoop()
	go e.runMaintenanceLoop()

	logger.Info("🚀 扫描引擎已启动",
		logger.String("scan_interval", e.config.ScanInterval.String()),
		logger.Int("strategies", len(e.registry.All())))
	return nil
}

// Stop 停止引擎
func (e *Engine) Stop() error {
	logger.Info("🛑 停止扫描引擎")
	e.cancel()
	return nil
}

// TriggerScan 手动触发一轮扫描，已有待处理触发时直接返回
func (e *Engine) TriggerScan() {
	select {
	case e.trigger <- struct{}{}:
		logger.Info("📣 手动触发扫描")
	default:
	}
}

func (e *Engine) runScanLoop() {
	ticker := time.NewTicker(e.config.ScanInterval)
	defer ticker.Stop()

	// 启动后先跑一轮
	e.RunCycle()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.RunCycle()
		case <-e.trigger:
			e.RunCycle()
		}
	}
}

func (e *Engine) runMaintenanceLoop() {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.runMaintenance()
		}
	}
}

// runMaintenance 信号过期与历史清理
func (e *Engine) runMaintenance() {
	if _, err := e.store.ExpireStale(e.config.SignalExpireAge); err != nil {
		logger.Error("过期信号失败", logger.FieldErr(err))
	}
	if _, err := e.store.Cleanup(e.config.SignalRetainDays); err != nil {
		logger.Error("清理信号失败", logger.FieldErr(err))
	}
}

// RunCycle 跑一轮完整扫描
func (e *Engine) RunCycle() {
	start := time.Now()

	// 熔断检查：日/周亏损超限时整轮不执行
	breached, reason, err := e.riskMgr.CircuitBreaker()
	if err != nil {
		logger.Error("熔断检查失败，跳过本轮扫描", logger.FieldErr(err))
		return
	}
	if breached {
		logger.Error("🚨 风控熔断触发，暂停所有策略", logger.String("reason", reason))
		e.alerts.Emit("circuit_breaker", alert.SeverityCritical, "风控熔断触发", reason, nil)
		return
	}

	executed := 0
	for _, s := range e.registry.All() {
		if !s.Enabled() {
			continue
		}
		executed += e.runStrategy(s)
	}

	e.reportCycle(executed, time.Since(start))
}

// runStrategy 跑单个策略，panic和错误都只影响自身，返回执行的机会数
func (e *Engine) runStrategy(s strategy.Strategy) (executed int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("🚨 策略panic",
				logger.String("strategy", s.Name()),
				logger.Any("panic", r),
				logger.String("stack", string(utils.GetStack())))
			e.alerts.Emit("strategy_panic", alert.SeverityCritical, "策略panic",
				s.Name(), map[string]string{"strategy": s.Name()})
		}
	}()

	opportunities, err := s.FindOpportunities(e.ctx)
	if err != nil {
		logger.Error("策略扫描失败",
			logger.String("strategy", s.Name()),
			logger.FieldErr(err))
		return 0
	}

	for _, opp := range opportunities {
		if err := s.Execute(e.ctx, opp); err != nil {
			logger.Error("执行机会失败",
				logger.String("strategy", s.Name()),
				logger.String("market", opp.MarketID),
				logger.FieldErr(err))
			continue
		}
		executed++
	}
	return executed
}

// reportCycle 输出本轮的风控与信号统计
func (e *Engine) reportCycle(executed int, elapsed time.Duration) {
	fields := []logger.Field{
		logger.Int("executed", executed),
		logger.String("elapsed", elapsed.String()),
	}

	if summary, err := e.riskMgr.GetSummary(); err == nil {
		fields = append(fields,
			logger.String("total_exposure", summary.TotalExposure.String()),
			logger.Int("open_positions", summary.OpenPositions),
			logger.String("daily_pnl", summary.DailyPnl.String()),
			logger.String("weekly_pnl", summary.WeeklyPnl.String()))
	}
	if stats, err := e.store.GetStats(); err == nil {
		fields = append(fields,
			logger.Int64("signals_pending", stats.Pending),
			logger.Int64("signals_executed", stats.Executed),
			logger.Float64("execution_rate", stats.ExecutionRate))
	}

	logger.Info("📊 扫描轮次完成", fields...)
}
