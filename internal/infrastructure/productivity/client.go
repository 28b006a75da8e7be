package productivity

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/domain/entity"
	"github.com/ygai/gateway/internal/domain/service"
	"github.com/ygai/gateway/internal/infrastructure/notion"
	domainErrors "github.com/ygai/gateway/pkg/errors"
)

// 本地状态到外部任务库状态选项的映射
var statusMapping = map[entity.TaskStatus]string{
	entity.StatusPending:    "全景时段（排任务、调优先级）",
	entity.StatusInProgress: "单核时段（当前执行）",
	entity.StatusDone:       "已完成",
}

// 外部优先级选项回折成本地数值
var priorityOrder = map[string]entity.Priority{
	"高": entity.PriorityUrgent,
	"中": entity.PriorityImportant,
	"低": entity.PriorityNormal,
}

// 引用块正文长度上限（Notion 单块限制）
const quoteContentLimit = 2000

// Store Notion 任务库客户端
type Store struct {
	client     *notion.Client
	databaseID string
	logger     *zap.Logger
}

// NewStore 创建任务库客户端
func NewStore(client *notion.Client, databaseID string, logger *zap.Logger) *Store {
	return &Store{
		client:     client,
		databaseID: databaseID,
		logger:     logger.With(zap.String("component", "productivity")),
	}
}

var _ service.ProductivityStore = (*Store)(nil)

// Configured API Key 与数据库 ID 是否都已配置
func (s *Store) Configured() bool {
	return s.client.Configured() && s.databaseID != ""
}

func buildProperties(task *entity.Task) map[string]interface{} {
	taskType := task.TaskType
	if taskType == "" {
		taskType = entity.DefaultTaskType
	}
	status, ok := statusMapping[task.Status]
	if !ok {
		status = "未开始"
	}

	properties := map[string]interface{}{
		"任务名称": notion.TitleProp(task.Title),
		"描述":   notion.RichTextProp(task.Description),
		"优先级":  notion.SelectProp(task.Priority.Display()),
		"状态":   notion.StatusProp(status),
		"任务类型": map[string]interface{}{
			"multi_select": []map[string]interface{}{{"name": taskType}},
		},
	}
	if task.DueDate != nil {
		properties["截止日期"] = notion.DateProp(task.DueDate.Format(time.RFC3339))
	}
	return properties
}

// sourceBlocks 把原始消息拼成页面正文块：
// 图片消息展开为图片块（多图逗号分隔），其余作为文本引用块
func sourceBlocks(msg *entity.Message) []map[string]interface{} {
	if msg == nil {
		return nil
	}

	if msg.MessageType == entity.MessageTypeImage {
		var blocks []map[string]interface{}
		for _, u := range strings.Split(msg.Content, ",") {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			blocks = append(blocks, map[string]interface{}{
				"object": "block",
				"type":   "image",
				"image": map[string]interface{}{
					"type":     "external",
					"external": map[string]interface{}{"url": u},
				},
			})
		}
		return blocks
	}

	content := msg.Content
	if len(content) > quoteContentLimit {
		content = content[:quoteContentLimit]
	}
	return []map[string]interface{}{{
		"object": "block",
		"type":   "quote",
		"quote": map[string]interface{}{
			"rich_text": []map[string]interface{}{
				{"type": "text", "text": map[string]interface{}{"content": content}},
			},
		},
	}}
}

// CreateTaskPage 创建任务页面并返回页面 ID；sourceMsg 非空时把原始消息附到页面正文
func (s *Store) CreateTaskPage(ctx context.Context, task *entity.Task, sourceMsg *entity.Message) (string, error) {
	if !s.Configured() {
		return "", domainErrors.NewUnconfiguredError("notion task database not configured")
	}

	pageID, err := s.client.CreatePage(ctx, s.databaseID, buildProperties(task), sourceBlocks(sourceMsg))
	if err != nil {
		return "", err
	}
	s.logger.Info("任务页面已创建",
		zap.Uint("task_id", task.ID),
		zap.String("page_id", pageID))
	return pageID, nil
}

// UpdateTaskPage 按任务当前字段整体更新页面属性
func (s *Store) UpdateTaskPage(ctx context.Context, task *entity.Task) error {
	if !s.Configured() || task.NotionPageID == "" {
		return domainErrors.NewUnconfiguredError("notion task database not configured")
	}
	if err := s.client.UpdatePage(ctx, task.NotionPageID, buildProperties(task)); err != nil {
		return err
	}
	s.logger.Info("任务页面已更新",
		zap.Uint("task_id", task.ID),
		zap.String("page_id", task.NotionPageID))
	return nil
}

// QueryIncomplete 查询所有未完成任务（状态 != 已完成）
func (s *Store) QueryIncomplete(ctx context.Context) ([]entity.RemoteTask, error) {
	return s.query(ctx, map[string]interface{}{
		"property": "状态",
		"status":   map[string]interface{}{"does_not_equal": "已完成"},
	})
}

// QueryLastWeekCompleted 查询上周完成的任务。
// 窗口锚定到上周一零点至本周一零点，用页面最后编辑时间近似完成时间。
func (s *Store) QueryLastWeekCompleted(ctx context.Context) ([]entity.RemoteTask, error) {
	now := time.Now()
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	thisMonday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, -daysSinceMonday)
	lastMonday := thisMonday.AddDate(0, 0, -7)

	return s.query(ctx, map[string]interface{}{
		"and": []map[string]interface{}{
			{
				"property": "状态",
				"status":   map[string]interface{}{"equals": "已完成"},
			},
			{
				"timestamp":        "last_edited_time",
				"last_edited_time": map[string]interface{}{"on_or_after": lastMonday.Format(time.RFC3339)},
			},
			{
				"timestamp":        "last_edited_time",
				"last_edited_time": map[string]interface{}{"before": thisMonday.Format(time.RFC3339)},
			},
		},
	})
}

func (s *Store) query(ctx context.Context, filter map[string]interface{}) ([]entity.RemoteTask, error) {
	if !s.Configured() {
		s.logger.Warn("任务库未配置，跳过查询")
		return nil, nil
	}

	pages, err := s.client.QueryDatabase(ctx, s.databaseID, map[string]interface{}{
		"page_size": 100,
		"filter":    filter,
	})
	if err != nil {
		return nil, err
	}

	tasks := make([]entity.RemoteTask, 0, len(pages))
	for _, p := range pages {
		tasks = append(tasks, parsePage(p))
	}
	return tasks, nil
}

func parsePage(p notion.Page) entity.RemoteTask {
	priorityName := p.ParseSelect("优先级")
	if priorityName == "" {
		priorityName = "中"
	}
	priority, ok := priorityOrder[priorityName]
	if !ok {
		priority = entity.PriorityImportant
	}

	taskType := p.ParseMultiSelect("任务类型")
	if taskType == "" {
		taskType = entity.DefaultTaskType
	}

	var dueDate *time.Time
	if raw := p.ParseDate("截止日期"); raw != "" {
		if t, err := parseNotionDate(raw); err == nil {
			dueDate = &t
		}
	}

	return entity.RemoteTask{
		Title:        p.ParseTitle("任务名称"),
		Description:  p.ParseRichText("描述"),
		Status:       p.ParseStatus("状态"),
		Priority:     priority,
		PriorityName: priorityName,
		TaskType:     taskType,
		DueDate:      dueDate,
		PageID:       p.ID,
	}
}

// parseNotionDate Notion date 属性可能是纯日期或完整时间戳
func parseNotionDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", raw, time.Local)
}
