package alert

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/ninja0404/whale-signal/pkg/logger"
)

// Severity 告警级别
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert 一条告警消息
type Alert struct {
	Type      string            `json:"type"`
	Severity  Severity          `json:"severity"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Sink 告警输出端
type Sink interface {
	// Send 投递一条告警
	Send(alert *Alert) error

	// GetType 输出端类型
	GetType() string

	// Close 关闭输出端
	Close() error
}

// Manager 告警管理器：Emit只进缓冲队列立刻返回，投递由独立协程完成，
// 队列满时丢弃告警，绝不阻塞核心循环。
type Manager struct {
	sinks  []Sink
	queue  chan *Alert
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager 创建告警管理器
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sinks:  make([]Sink, 0),
		queue:  make(chan *Alert, 256),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// AddSink 注册告警输出端
func (m *Manager) AddSink(sink Sink) {
	m.sinks = append(m.sinks, sink)
}

// Start 启动投递协程
func (m *Manager) Start() error {
	for _, sink := range m.sinks {
		logger.Info("✅ 已加载告警输出端", logger.String("type", sink.GetType()))
	}

	go m.run()
	logger.Info("📡 告警管理器已启动")
	return nil
}

// Emit 发出一条告警，立即返回
func (m *Manager) Emit(alertType string, severity Severity, title, message string, context map[string]string) {
	alert := &Alert{
		Type:      alertType,
		Severity:  severity,
		Title:     title,
		Message:   message,
		Context:   context,
		Timestamp: time.Now(),
	}

	select {
	case m.queue <- alert:
	default:
		logger.Warn("⚠️ 告警队列已满，丢弃告警",
			logger.String("type", alertType),
			logger.String("title", title))
	}
}

func (m *Manager) run() {
	defer close(m.done)

	for {
		select {
		case <-m.ctx.Done():
			return
		case alert, ok := <-m.queue:
			if !ok {
				return
			}
			m.dispatch(alert)
		}
	}
}

func (m *Manager) dispatch(alert *Alert) {
	for _, sink := range m.sinks {
		if err := sink.Send(alert); err != nil {
			logger.Error("投递告警失败",
				logger.String("sink", sink.GetType()),
				logger.String("type", alert.Type),
				logger.FieldErr(err))
		}
	}
}

// Stop 停止投递并关闭所有输出端
func (m *Manager) Stop() error {
	m.cancel()

	select {
	case <-m.done:
	case <-time.After(3 * time.Second):
		logger.Warn("⚠️ 等待告警投递协程退出超时")
	}

	var result error
	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	logger.Info("告警管理器已停止")
	return result
}

// LogSink 日志输出端：把告警写进结构化日志
type LogSink struct{}

func (s *LogSink) GetType() string {
	return "log"
}

func (s *LogSink) Send(alert *Alert) error {
	fields := []logger.Field{
		logger.String("type", alert.Type),
		logger.String("severity", string(alert.Severity)),
		logger.String("message", alert.Message),
	}
	for k, v := range alert.Context {
		fields = append(fields, logger.String(k, v))
	}

	switch alert.Severity {
	case SeverityCritical:
		logger.Error("🚨 "+alert.Title, fields...)
	case SeverityWarning:
		logger.Warn("⚠️ "+alert.Title, fields...)
	default:
		logger.Info("📢 "+alert.Title, fields...)
	}
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
