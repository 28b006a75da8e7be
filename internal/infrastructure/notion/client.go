package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domainErrors "github.com/ygai/gateway/pkg/errors"
)

const (
	apiBase    = "https://api.notion.com/v1"
	apiVersion = "2022-06-28"
)

// Client Notion REST API 低层客户端，知识库与任务库共用。
// 只做传输与 JSON 编解码，属性形状由上层各自拼装。
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// Option 客户端可选配置
type Option func(*Client)

// WithBaseURL 覆盖 API 地址（测试用）
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// NewClient 创建 Notion API 客户端
func NewClient(apiKey string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: apiBase,
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured API Key 是否已配置
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Page Notion 页面响应（只保留管线用到的字段）
type Page struct {
	ID         string                     `json:"id"`
	Properties map[string]json.RawMessage `json:"properties"`
}

type queryResponse struct {
	Results []Page `json:"results"`
}

// QueryDatabase 查询数据库，body 为 Notion 过滤/排序请求体
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, body map[string]interface{}) ([]Page, error) {
	var resp queryResponse
	if err := c.do(ctx, "POST", fmt.Sprintf("/databases/%s/query", databaseID), body, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// CreatePage 在数据库下创建页面，children 可为 nil
func (c *Client) CreatePage(ctx context.Context, databaseID string, properties map[string]interface{}, children []map[string]interface{}) (string, error) {
	body := map[string]interface{}{
		"parent":     map[string]interface{}{"database_id": databaseID},
		"properties": properties,
	}
	if len(children) > 0 {
		body["children"] = children
	}
	var resp Page
	if err := c.do(ctx, "POST", "/pages", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdatePage 更新页面属性
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties map[string]interface{}) error {
	body := map[string]interface{}{"properties": properties}
	return c.do(ctx, "PATCH", "/pages/"+pageID, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if !c.Configured() {
		return domainErrors.NewUnconfiguredError("notion api key not configured")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal notion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create notion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domainErrors.NewServiceUnavailError("notion request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read notion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := string(respBody)
		if len(detail) > 300 {
			detail = detail[:300]
		}
		return domainErrors.NewServiceUnavailError(
			fmt.Sprintf("notion API error %d: %s", resp.StatusCode, detail), nil)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse notion response: %w", err)
		}
	}
	return nil
}

// --- 属性构造与解析辅助 ---

// TitleProp 构造 title 属性
func TitleProp(text string) map[string]interface{} {
	return map[string]interface{}{
		"title": []map[string]interface{}{
			{"text": map[string]interface{}{"content": text}},
		},
	}
}

// RichTextProp 构造 rich_text 属性
func RichTextProp(text string) map[string]interface{} {
	return map[string]interface{}{
		"rich_text": []map[string]interface{}{
			{"text": map[string]interface{}{"content": text}},
		},
	}
}

// SelectProp 构造 select 属性
func SelectProp(name string) map[string]interface{} {
	return map[string]interface{}{
		"select": map[string]interface{}{"name": name},
	}
}

// StatusProp 构造 status 属性
func StatusProp(name string) map[string]interface{} {
	return map[string]interface{}{
		"status": map[string]interface{}{"name": name},
	}
}

// URLProp 构造 url 属性
func URLProp(u string) map[string]interface{} {
	return map[string]interface{}{"url": u}
}

// DateProp 构造 date 属性
func DateProp(start string) map[string]interface{} {
	return map[string]interface{}{
		"date": map[string]interface{}{"start": start},
	}
}

// ParseTitle 取 title 属性的纯文本，缺失返回空串
func (p Page) ParseTitle(name string) string {
	var prop struct {
		Title []struct {
			Text struct {
				Content string `json:"content"`
			} `json:"text"`
			PlainText string `json:"plain_text"`
		} `json:"title"`
	}
	raw, ok := p.Properties[name]
	if !ok || json.Unmarshal(raw, &prop) != nil || len(prop.Title) == 0 {
		return ""
	}
	if prop.Title[0].Text.Content != "" {
		return prop.Title[0].Text.Content
	}
	return prop.Title[0].PlainText
}

// ParseRichText 取 rich_text 属性的纯文本，缺失返回空串
func (p Page) ParseRichText(name string) string {
	var prop struct {
		RichText []struct {
			Text struct {
				Content string `json:"content"`
			} `json:"text"`
			PlainText string `json:"plain_text"`
		} `json:"rich_text"`
	}
	raw, ok := p.Properties[name]
	if !ok || json.Unmarshal(raw, &prop) != nil || len(prop.RichText) == 0 {
		return ""
	}
	if prop.RichText[0].Text.Content != "" {
		return prop.RichText[0].Text.Content
	}
	return prop.RichText[0].PlainText
}

// ParseSelect 取 select 属性的选项名，缺失返回空串
func (p Page) ParseSelect(name string) string {
	var prop struct {
		Select *struct {
			Name string `json:"name"`
		} `json:"select"`
	}
	raw, ok := p.Properties[name]
	if !ok || json.Unmarshal(raw, &prop) != nil || prop.Select == nil {
		return ""
	}
	return prop.Select.Name
}

// ParseMultiSelect 取 multi_select 属性的全部选项名，逗号连接，缺失返回空串
func (p Page) ParseMultiSelect(name string) string {
	var prop struct {
		MultiSelect []struct {
			Name string `json:"name"`
		} `json:"multi_select"`
	}
	raw, ok := p.Properties[name]
	if !ok || json.Unmarshal(raw, &prop) != nil || len(prop.MultiSelect) == 0 {
		return ""
	}
	names := make([]string, 0, len(prop.MultiSelect))
	for _, item := range prop.MultiSelect {
		names = append(names, item.Name)
	}
	return strings.Join(names, ", ")
}

// ParseStatus 取 status 属性的状态名，缺失返回空串
func (p Page) ParseStatus(name string) string {
	var prop struct {
		Status *struct {
			Name string `json:"name"`
		} `json:"status"`
	}
	raw, ok := p.Properties[name]
	if !ok || json.Unmarshal(raw, &prop) != nil || prop.Status == nil {
		return ""
	}
	return prop.Status.Name
}

// ParseDate 取 date 属性的起始日期，缺失返回空串
func (p Page) ParseDate(name string) string {
	var prop struct {
		Date *struct {
			Start string `json:"start"`
		} `json:"date"`
	}
	raw, ok := p.Properties[name]
	if !ok || json.Unmarshal(raw, &prop) != nil || prop.Date == nil {
		return ""
	}
	return strings.TrimSpace(prop.Date.Start)
}
