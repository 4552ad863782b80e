package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// larkTextMessageContent 飞书文本消息内容结构
type larkTextMessageContent struct {
	Text string `json:"text"`
}

// larkMessage 飞书机器人消息结构
type larkMessage struct {
	MsgType string                 `json:"msg_type"`
	Content larkTextMessageContent `json:"content"`
}

// larkResponse 飞书机器人响应结构 (用于检查错误)
type larkResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// LarkSink 飞书Webhook输出端
type LarkSink struct {
	webhookURL string
	client     *http.Client
}

// NewLarkSink 创建飞书输出端
func NewLarkSink(webhookURL string) *LarkSink {
	return &LarkSink{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *LarkSink) GetType() string {
	return "lark"
}

func (s *LarkSink) Send(alert *Alert) error {
	if s.webhookURL == "" {
		return errors.New("飞书 Webhook URL 为空")
	}

	msg := larkMessage{
		MsgType: "text",
		Content: larkTextMessageContent{
			Text: s.formatAlert(alert),
		},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "序列化飞书消息失败")
	}

	req, err := http.NewRequest(http.MethodPost, s.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return errors.Wrap(err, "创建飞书请求失败")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "发送飞书消息失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("发送飞书消息返回错误状态码 %d", resp.StatusCode)
	}

	var larkResp larkResponse
	if err := json.NewDecoder(resp.Body).Decode(&larkResp); err == nil && larkResp.Code != 0 {
		return errors.Errorf("飞书API返回错误 Code: %d, Msg: %s", larkResp.Code, larkResp.Msg)
	}
	return nil
}

func (s *LarkSink) Close() error {
	return nil
}

func (s *LarkSink) formatAlert(alert *Alert) string {
	emoji := "📢"
	switch alert.Severity {
	case SeverityCritical:
		emoji = "🚨"
	case SeverityWarning:
		emoji = "⚠️"
	}

	text := fmt.Sprintf("%s %s\n\n类型: %s\n级别: %s\n内容: %s",
		emoji, alert.Title, alert.Type, string(alert.Severity), alert.Message)
	for k, v := range alert.Context {
		text += fmt.Sprintf("\n%s: %s", k, v)
	}
	text += fmt.Sprintf("\n⏰ 时间: %s", alert.Timestamp.Format("2006-01-02 15:04:05"))
	return text
}
