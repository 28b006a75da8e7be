package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ygai/gateway/internal/domain/service"
	domainErrors "github.com/ygai/gateway/pkg/errors"
)

const openAPIEndpoint = "https://api.dingtalk.com"

// DingTalkConfig 钉钉 OpenAPI 凭据
type DingTalkConfig struct {
	AppKey       string
	AppSecret    string
	RobotCode    string
	NotifyUserID string
}

// DingTalkClient 钉钉 OpenAPI 出站客户端：单聊推送、用户信息、
// 图片 downloadCode 换临时下载链接。
// access_token 带过期缓存，并发刷新用 singleflight 合并为一次请求。
type DingTalkClient struct {
	cfg     DingTalkConfig
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu             sync.Mutex
	token          string
	tokenExpiresAt time.Time
	refreshGroup   singleflight.Group
}

// NewDingTalkClient 创建钉钉出站客户端
func NewDingTalkClient(cfg DingTalkConfig, logger *zap.Logger) *DingTalkClient {
	if cfg.RobotCode == "" {
		cfg.RobotCode = cfg.AppKey
	}
	return &DingTalkClient{
		cfg:     cfg,
		baseURL: openAPIEndpoint,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With(zap.String("component", "dingtalk-client")),
	}
}

var _ service.NotificationSink = (*DingTalkClient)(nil)
var _ service.ImageResolver = (*DingTalkClient)(nil)

// Configured AppKey/AppSecret 是否已配置
func (c *DingTalkClient) Configured() bool {
	return c.cfg.AppKey != "" && c.cfg.AppSecret != ""
}

// RobotCode 返回机器人编码
func (c *DingTalkClient) RobotCode() string { return c.cfg.RobotCode }

// NotifyUserID 返回默认通知对象
func (c *DingTalkClient) NotifyUserID() string { return c.cfg.NotifyUserID }

// accessToken 返回缓存的 access_token，过期前 60 秒主动刷新
func (c *DingTalkClient) accessToken(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", domainErrors.NewUnconfiguredError("dingtalk credentials not configured")
	}

	c.mu.Lock()
	if c.token != "" && time.Now().Before(c.tokenExpiresAt) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	v, err, _ := c.refreshGroup.Do("access-token", func() (interface{}, error) {
		return c.fetchAccessToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *DingTalkClient) fetchAccessToken(ctx context.Context) (string, error) {
	var resp struct {
		AccessToken string `json:"accessToken"`
		ExpireIn    int64  `json:"expireIn"`
	}
	err := c.post(ctx, "/v1.0/oauth2/accessToken", "", map[string]string{
		"appKey":    c.cfg.AppKey,
		"appSecret": c.cfg.AppSecret,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("dingtalk returned empty access token")
	}

	expireIn := resp.ExpireIn
	if expireIn <= 0 {
		expireIn = 7200
	}

	c.mu.Lock()
	c.token = resp.AccessToken
	c.tokenExpiresAt = time.Now().Add(time.Duration(expireIn-60) * time.Second)
	c.mu.Unlock()

	return resp.AccessToken, nil
}

// SendText 通过机器人 BatchSendOTO 接口发送单聊文本消息
func (c *DingTalkClient) SendText(ctx context.Context, userID, content string) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	msgParam, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("marshal msgParam: %w", err)
	}

	return c.post(ctx, "/v1.0/robot/oToMessages/batchSend", token, map[string]interface{}{
		"robotCode": c.cfg.RobotCode,
		"userIds":   []string{userID},
		"msgKey":    "sampleText",
		"msgParam":  string(msgParam),
	}, nil)
}

// Notify 实现通知出口：发给默认通知对象或指定用户
func (c *DingTalkClient) Notify(ctx context.Context, userID, text string) error {
	if userID == "" {
		userID = c.cfg.NotifyUserID
	}
	if userID == "" {
		return domainErrors.NewUnconfiguredError("dingtalk notify user not configured")
	}
	return c.SendText(ctx, userID, text)
}

// UserInfo 通讯录用户信息
type UserInfo struct {
	Nick   string `json:"nick"`
	UserID string `json:"userid"`
}

// GetUserInfo 查询通讯录用户，失败返回零值（调用方用平台昵称兜底）
func (c *DingTalkClient) GetUserInfo(ctx context.Context, userID string) UserInfo {
	token, err := c.accessToken(ctx)
	if err != nil {
		c.logger.Warn("获取用户信息前取 token 失败", zap.Error(err))
		return UserInfo{}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1.0/contact/users/"+userID, nil)
	if err != nil {
		return UserInfo{}
	}
	req.Header.Set("x-acs-dingtalk-access-token", token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("查询用户信息失败", zap.String("user_id", userID), zap.Error(err))
		return UserInfo{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("查询用户信息失败", zap.String("user_id", userID), zap.Int("status", resp.StatusCode))
		return UserInfo{}
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return UserInfo{}
	}
	return info
}

// ResolveImageURL 用消息里的 downloadCode 换取临时下载链接
func (c *DingTalkClient) ResolveImageURL(ctx context.Context, downloadCode string) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	var resp struct {
		DownloadURL string `json:"downloadUrl"`
	}
	err = c.post(ctx, "/v1.0/robot/messageFiles/download", token, map[string]string{
		"downloadCode": downloadCode,
		"robotCode":    c.cfg.RobotCode,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.DownloadURL == "" {
		return "", fmt.Errorf("dingtalk returned empty download url")
	}
	return resp.DownloadURL, nil
}

func (c *DingTalkClient) post(ctx context.Context, path, token string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("x-acs-dingtalk-access-token", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domainErrors.NewServiceUnavailError("dingtalk request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := string(respBody)
		if len(detail) > 200 {
			detail = detail[:200]
		}
		return domainErrors.NewServiceUnavailError(
			fmt.Sprintf("dingtalk API error %d: %s", resp.StatusCode, detail), nil)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
