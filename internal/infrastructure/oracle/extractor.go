package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/domain/entity"
	"github.com/ygai/gateway/internal/domain/service"
	domainErrors "github.com/ygai/gateway/pkg/errors"
)

const extractPrompt = `你是一个任务提取助手。当前系统时间是：%s。
请从以下消息中提取任务信息。如果消息中包含"明天"、"下周"、"一小时后"等相对时间，请务必基于当前系统时间进行推算。

**重要：如果消息中包含多个不同的任务（例如来自多张图片、多条聊天记录），请将每个任务作为独立的对象返回。**

请以 JSON 数组格式返回，每个任务是数组中的一个对象：
[
  {
    "title": "任务标题（简洁明了，不超过50字）",
    "description": "任务描述（可选，补充说明）",
    "priority": 2, // 1表示高，2表示中，3表示低，默认2
    "task_type": "任务类型，必须从以下选项中选择一个：生产问题、AI产品、管理、迭代事项、技术调研、运维事项、信息化、客户支持、其他。请根据任务内容智能判断，例如：多维表/多维表格/运营系统相关的事项属于'信息化'，服务器/机房/网络问题属于'运维事项'，bug修复属于'生产问题'，日常开发属于'迭代事项'，技术预研属于'技术调研'。如果确实无法归类，请选择'其他'",
    "due_date": "截止时间（ISO 8601 格式，如 2026-02-25T18:00:00，如果没有则为 null）"
  }
]

即使只有一个任务，也请返回数组格式。只返回 JSON 数组，不要返回其他内容。

消息内容：%s`

const extractSenderContext = `
当前请求提取任务的用户是：【%s】。
请注意：
1. 如果消息中包含多个任务，请只提取分配给该用户（或者涉及全公司/全部门）的任务，直接忽略明确分配给其他人的具体任务。
2. 不要把任务拆得太细，尽量保持任务的完整性和连贯性。`

// 兜底草稿标题的最大长度（按字符计）
const fallbackTitleLimit = 100

// firstRunes 取前 n 个字符，避免在多字节字符中间截断
func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Extractor 任务提取 Oracle 客户端
type Extractor struct {
	client *Client
	logger *zap.Logger
	now    func() time.Time // 可注入，测试用
}

// NewExtractor 创建任务提取客户端
func NewExtractor(client *Client, logger *zap.Logger) *Extractor {
	return &Extractor{client: client, logger: logger, now: time.Now}
}

var _ service.TaskExtractor = (*Extractor)(nil)

// oracleDraft 模型返回的原始草稿；字段全部可缺省
type oracleDraft struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Priority    int         `json:"priority"`
	TaskType    string      `json:"task_type"`
	DueDate     interface{} `json:"due_date"`
}

// ExtractTasks 从消息文本（可带图片）提取任务草稿列表。
// Oracle 成功但判定无相关任务 → 空列表；Oracle 不可达/输出不可解析 →
// 单条兜底草稿（标题取原文前 100 字节）。
func (e *Extractor) ExtractTasks(ctx context.Context, content string, imageURLs []string, senderName string) []entity.TaskDraft {
	fallback := []entity.TaskDraft{{
		Title:    firstRunes(content, fallbackTitleLimit),
		Priority: entity.PriorityImportant,
		TaskType: entity.DefaultTaskType,
	}}

	prompt := fmt.Sprintf(extractPrompt, e.now().Format("2006-01-02 15:04:05"), content)
	if senderName != "" {
		prompt += fmt.Sprintf(extractSenderContext, senderName)
	}

	var raw string
	var err error
	if len(imageURLs) > 0 {
		e.logger.Info("使用多模态模型进行任务提取", zap.Int("images", len(imageURLs)))
		raw, err = e.client.CompleteVision(ctx, e.client.VisionModel(), prompt, imageURLs)
	} else {
		raw, err = e.client.Complete(ctx, e.client.StrongModel(), prompt)
	}
	if err != nil {
		if domainErrors.IsUnconfigured(err) {
			e.logger.Warn("Oracle 未配置，使用消息内容作为任务标题")
		} else {
			e.logger.Error("任务提取失败", zap.Error(err))
		}
		return fallback
	}

	items, err := decodeDrafts(StripCodeFence(raw))
	if err != nil {
		e.logger.Error("任务提取返回的 JSON 无法解析", zap.String("raw", raw), zap.Error(err))
		return fallback
	}

	drafts := make([]entity.TaskDraft, 0, len(items))
	for _, item := range items {
		drafts = append(drafts, e.normalize(item, content))
	}
	return drafts
}

// decodeDrafts 解析 JSON 数组；兼容模型偶尔返回单个对象的情况
func decodeDrafts(text string) ([]oracleDraft, error) {
	var list []oracleDraft
	if err := json.Unmarshal([]byte(text), &list); err == nil {
		return list, nil
	}
	var single oracleDraft
	if err := json.Unmarshal([]byte(text), &single); err != nil {
		return nil, err
	}
	return []oracleDraft{single}, nil
}

// normalize 补齐缺失字段并解析截止时间
func (e *Extractor) normalize(item oracleDraft, content string) entity.TaskDraft {
	draft := entity.TaskDraft{
		Title:       item.Title,
		Description: item.Description,
		Priority:    entity.Priority(item.Priority),
		TaskType:    item.TaskType,
	}
	if draft.Title == "" {
		draft.Title = firstRunes(content, fallbackTitleLimit)
	}
	if draft.Priority < entity.PriorityUrgent || draft.Priority > entity.PriorityLow {
		draft.Priority = entity.PriorityImportant
	}
	if draft.TaskType == "" {
		draft.TaskType = entity.DefaultTaskType
	}
	if s, ok := item.DueDate.(string); ok && s != "" {
		draft.DueDate = parseDueDate(s)
	}
	return draft
}

// parseDueDate 解析 ISO 8601 截止时间。
// 解析失败静默丢弃（任务照常创建）；无时区的时间提升为本地时区。
func parseDueDate(s string) *time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t
		}
	}
	return nil
}
