package oracle

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/ygai/gateway/pkg/errors"
)

// Config 大模型客户端配置
type Config struct {
	APIKey      string
	BaseURL     string
	TextModel   string
	StrongModel string
	VisionModel string
	Timeout     time.Duration
}

// Client DashScope 兼容模式（OpenAI Chat Completions 协议）HTTP 客户端。
// 所有上层 Oracle（分类/提取/识别/回复/摘要）共用这一个连接池。
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewClient 创建大模型客户端
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger: logger.With(zap.String("component", "oracle")),
	}
}

// Configured API Key 是否已配置
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// TextModel 返回轻量文本模型名
func (c *Client) TextModel() string { return c.cfg.TextModel }

// StrongModel 返回强文本模型名
func (c *Client) StrongModel() string { return c.cfg.StrongModel }

// VisionModel 返回多模态模型名
func (c *Client) VisionModel() string { return c.cfg.VisionModel }

// --- Chat Completions 协议 ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string 或 []contentPart（多模态）
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete 发送单轮纯文本请求，返回模型输出文本
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	if !c.Configured() {
		return "", domainErrors.NewUnconfiguredError("oracle api key not configured")
	}
	return c.call(ctx, &chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
}

// CompleteVision 发送带图片的多模态请求，imageURLs 顺序保留
func (c *Client) CompleteVision(ctx context.Context, model, prompt string, imageURLs []string) (string, error) {
	if !c.Configured() {
		return "", domainErrors.NewUnconfiguredError("oracle api key not configured")
	}

	parts := make([]contentPart, 0, len(imageURLs)+1)
	for _, u := range imageURLs {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: u}})
	}
	parts = append(parts, contentPart{Type: "text", Text: prompt})

	return c.call(ctx, &chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: parts}},
	})
}

func (c *Client) call(ctx context.Context, req *chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", domainErrors.NewServiceUnavailError("oracle request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", domainErrors.NewServiceUnavailError(
			fmt.Sprintf("oracle API error %d: %s", resp.StatusCode, truncate(string(respBody), 200)), nil)
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("empty response: no choices")
	}

	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
