package alert

import (
	"encoding/json"

	"github.com/pkg/errors"

	kafkamq "github.com/ninja0404/whale-signal/pkg/mq/kafka"
)

// KafkaSink Kafka输出端：告警以JSON写入指定topic，供下游系统消费
type KafkaSink struct {
	topic string
}

// NewKafkaSink 创建Kafka输出端，依赖已初始化的全局生产者
func NewKafkaSink(topic string) *KafkaSink {
	return &KafkaSink{topic: topic}
}

func (s *KafkaSink) GetType() string {
	return "kafka"
}

func (s *KafkaSink) Send(alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return errors.Wrap(err, "marshal alert")
	}
	return kafkamq.SendMessage(s.topic, payload)
}

func (s *KafkaSink) Close() error {
	return nil
}
