package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/mq/kafka"
)

// Source Kafka行情源实现
type Source struct {
	tradeChan    chan *model.FeedTrade
	errChan      chan error
	ctx          context.Context
	cancel       context.CancelFunc
	config       SourceConfig
	consumerName string
}

// SourceConfig Kafka行情源配置
type SourceConfig struct {
	Topic       string
	Brokers     []string
	KafkaConfig kafka.KafkaConsumerConfig // 直接使用完整配置
}

// NewSource 创建Kafka行情源
func NewSource(config SourceConfig) *Source {
	ctx, cancel := context.WithCancel(context.Background())

	return &Source{
		tradeChan:    make(chan *model.FeedTrade, 1000),
		errChan:      make(chan error, 100),
		ctx:          ctx,
		cancel:       cancel,
		config:       config,
		consumerName: fmt.Sprintf("whale-signal-%s", config.KafkaConfig.GroupId),
	}
}

// Start 启动Kafka行情源
func (s *Source) Start(ctx context.Context) error {
	// 使用完整的Kafka配置，只覆盖Topic
	kafkaConfig := s.config.KafkaConfig
	kafkaConfig.Topics = []string{s.config.Topic}

	if err := kafka.SetupNamedKafkaConsumer(s.consumerName, s.config.Brokers, kafkaConfig); err != nil {
		return fmt.Errorf("设置Kafka消费者失败: %w", err)
	}

	if err := kafka.RegisterTopicHandlerForConsumer(s.consumerName, s.config.Topic, s.handleMessage); err != nil {
		return fmt.Errorf("注册消息处理器失败: %w", err)
	}

	if err := kafka.StartNamedConsumer(s.consumerName); err != nil {
		return fmt.Errorf("启动Kafka消费者失败: %w", err)
	}

	logger.Info("✅ Kafka行情源已启动",
		logger.String("topic", s.config.Topic),
		logger.String("group_id", s.config.KafkaConfig.GroupId),
		logger.String("consumer_name", s.consumerName))

	return nil
}

// Stop 停止Kafka行情源
func (s *Source) Stop() error {
	logger.Info("🛑 停止Kafka行情源")
	s.cancel()

	if err := kafka.CloseNamedConsumer(s.consumerName); err != nil {
		logger.Error("关闭Kafka消费者失败", logger.FieldErr(err))
	}

	close(s.tradeChan)
	close(s.errChan)

	return nil
}

// Subscribe 获取成交数据通道
func (s *Source) Subscribe() <-chan *model.FeedTrade {
	return s.tradeChan
}

// Errors 获取错误通道
func (s *Source) Errors() <-chan error {
	return s.errChan
}

// handleMessage 处理Kafka消息 - 使用MessageHandler签名
func (s *Source) handleMessage(data []byte) error {
	select {
	case <-s.ctx.Done():
		return fmt.Errorf("上下文已取消")
	default:
	}

	var trade model.FeedTrade
	if err := json.Unmarshal(data, &trade); err != nil {
		err = fmt.Errorf("解析成交数据失败: %w", err)
		select {
		case s.errChan <- err:
		case <-s.ctx.Done():
		}
		return err
	}

	// 没有价格的成交无法参与任何计算，直接忽略
	if !trade.Price.IsPositive() {
		return nil
	}

	select {
	case s.tradeChan <- &trade:
		logger.Debug("📨 处理市场成交",
			logger.String("trade_id", trade.ID),
			logger.String("market", trade.MarketID),
			logger.String("size_usd", trade.SizeUSD.String()))
	case <-s.ctx.Done():
		return fmt.Errorf("上下文已取消")
	}

	return nil
}

// String 数据源名称
func (s *Source) String() string {
	return fmt.Sprintf("kafka(%s)", s.config.Topic)
}

// GetStats 获取数据源统计信息
func (s *Source) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"topic":              s.config.Topic,
		"group_id":           s.config.KafkaConfig.GroupId,
		"consumer_name":      s.consumerName,
		"trade_channel_size": len(s.tradeChan),
		"err_channel_size":   len(s.errChan),
	}
}
