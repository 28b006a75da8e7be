package dingtalk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/application/usecase"
	"github.com/ygai/gateway/internal/domain/entity"
	"github.com/ygai/gateway/pkg/safego"
)

const (
	gatewayEndpoint = "https://api.dingtalk.com/v1.0/gateway/connections/open"
	// 断线重连退避上限
	maxBackoff = 60 * time.Second
)

// Listener 钉钉 Stream 模式监听器。
// 走官方连接网关换取 websocket 地址后长连接收消息，
// 消息逐条丢给处理管线，应答通过 sessionWebhook 回发。
type Listener struct {
	appKey    string
	appSecret string
	processor *usecase.ProcessMessageUseCase
	http      *http.Client
	logger    *zap.Logger
}

// NewListener 创建 Stream 监听器
func NewListener(appKey, appSecret string, processor *usecase.ProcessMessageUseCase, logger *zap.Logger) *Listener {
	return &Listener{
		appKey:    appKey,
		appSecret: appSecret,
		processor: processor,
		http:      &http.Client{Timeout: 15 * time.Second},
		logger:    logger.With(zap.String("component", "dingtalk-stream")),
	}
}

// Run 持续监听直到 ctx 取消，断线自动指数退避重连
func (l *Listener) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := l.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("Stream 连接断开，准备重连",
				zap.Error(err),
				zap.Duration("backoff", backoff))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (l *Listener) runOnce(ctx context.Context) error {
	endpoint, ticket, err := l.openConnection(ctx)
	if err != nil {
		return fmt.Errorf("open stream connection: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint+"?ticket="+ticket, nil)
	if err != nil {
		return fmt.Errorf("dial stream gateway: %w", err)
	}
	defer conn.Close()

	l.logger.Info("钉钉 Stream 连接已建立")

	// ctx 取消时主动断开，解除 ReadMessage 阻塞
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		var frame streamFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			l.logger.Warn("无法解析的下行帧", zap.ByteString("raw", raw))
			continue
		}

		switch {
		case frame.Type == "SYSTEM" && frame.Headers.Topic == "ping":
			l.ack(conn, &frame, frame.Data)
		case frame.Type == "SYSTEM" && frame.Headers.Topic == "disconnect":
			l.logger.Info("服务端要求断开，将重连")
			return nil
		case frame.Type == "CALLBACK" && frame.Headers.Topic == chatbotTopic:
			l.ack(conn, &frame, "{}")
			l.dispatch(ctx, frame.Data)
		default:
			l.ack(conn, &frame, "{}")
		}
	}
}

// dispatch 单条消息走独立 goroutine，处理崩溃不影响连接
func (l *Listener) dispatch(ctx context.Context, data string) {
	msg, err := parseChatbotMessage(data)
	if err != nil {
		l.logger.Error("解析机器人消息失败", zap.Error(err))
		return
	}

	safego.Go(l.logger, "dingtalk-message", func() {
		reply := l.processor.Execute(ctx, entity.PlatformDingTalk, msg.toPayload())
		if reply == "" {
			return
		}
		if err := l.replyMarkdown(ctx, msg.SessionWebhook, reply); err != nil {
			l.logger.Error("回复消息失败", zap.String("msg_id", msg.MsgID), zap.Error(err))
		}
	})
}

func (l *Listener) ack(conn *websocket.Conn, frame *streamFrame, data string) {
	ack := streamAck{
		Code: 200,
		Headers: map[string]string{
			"contentType": "application/json",
			"messageId":   frame.Headers.MessageID,
		},
		Message: "OK",
		Data:    data,
	}
	if err := conn.WriteJSON(ack); err != nil {
		l.logger.Warn("应答下行帧失败", zap.Error(err))
	}
}

// openConnection 向连接网关注册，换取 websocket 地址与一次性 ticket
func (l *Listener) openConnection(ctx context.Context) (endpoint, ticket string, err error) {
	body, err := json.Marshal(map[string]interface{}{
		"clientId":     l.appKey,
		"clientSecret": l.appSecret,
		"ua":           "ygai-gateway/1.0",
		"subscriptions": []map[string]string{
			{"type": "CALLBACK", "topic": chatbotTopic},
		},
	})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", gatewayEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("gateway returned %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Endpoint string `json:"endpoint"`
		Ticket   string `json:"ticket"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", "", err
	}
	if result.Endpoint == "" || result.Ticket == "" {
		return "", "", fmt.Errorf("gateway returned empty endpoint or ticket")
	}
	return result.Endpoint, result.Ticket, nil
}

// replyMarkdown 通过会话 webhook 回发 markdown 消息
func (l *Listener) replyMarkdown(ctx context.Context, webhook, text string) error {
	if webhook == "" {
		return fmt.Errorf("empty session webhook")
	}

	body, err := json.Marshal(map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": "回复",
			"text":  text,
		},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("session webhook returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
