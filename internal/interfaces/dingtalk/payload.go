package dingtalk

import (
	"encoding/json"

	"github.com/ygai/gateway/internal/domain/service"
)

// 钉钉 Stream 模式的机器人消息 topic
const chatbotTopic = "/v1.0/im/bot/messages/get"

// streamFrame Stream 连接上的一帧下行数据
type streamFrame struct {
	SpecVersion string `json:"specVersion"`
	Type        string `json:"type"` // SYSTEM / CALLBACK / EVENT
	Headers     struct {
		Topic     string `json:"topic"`
		MessageID string `json:"messageId"`
	} `json:"headers"`
	Data string `json:"data"` // 嵌套 JSON 串
}

// streamAck 对一帧的应答
type streamAck struct {
	Code    int               `json:"code"`
	Headers map[string]string `json:"headers"`
	Message string            `json:"message"`
	Data    string            `json:"data"`
}

// chatbotMessage 机器人回调载荷（字段子集）
type chatbotMessage struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
	Content struct {
		RichText     []service.RichTextItem `json:"richText"`
		ChatRecord   string                 `json:"chatRecord"`
		Summary      string                 `json:"summary"`
		DownloadCode string                 `json:"downloadCode"`
	} `json:"content"`
	SenderStaffID    string `json:"senderStaffId"`
	SenderNick       string `json:"senderNick"`
	MsgID            string `json:"msgId"`
	ConversationID   string `json:"conversationId"`
	ConversationType string `json:"conversationType"`
	SessionWebhook   string `json:"sessionWebhook"`
	RobotCode        string `json:"robotCode"`
	AtUsers          []struct {
		DingtalkID string `json:"dingtalkId"`
	} `json:"atUsers"`
}

// toPayload 转成平台无关的入站载荷
func (m *chatbotMessage) toPayload() *service.IncomingPayload {
	atIDs := make([]string, 0, len(m.AtUsers))
	for _, u := range m.AtUsers {
		atIDs = append(atIDs, u.DingtalkID)
	}
	return &service.IncomingPayload{
		MsgType:          m.MsgType,
		Text:             m.Text.Content,
		RichText:         m.Content.RichText,
		ChatRecord:       m.Content.ChatRecord,
		Summary:          m.Content.Summary,
		DownloadCode:     m.Content.DownloadCode,
		SenderID:         m.SenderStaffID,
		SenderNick:       m.SenderNick,
		MessageID:        m.MsgID,
		ConversationType: m.ConversationType,
		AtUserIDs:        atIDs,
		ReplyTarget:      m.SessionWebhook,
	}
}

func parseChatbotMessage(data string) (*chatbotMessage, error) {
	var msg chatbotMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
