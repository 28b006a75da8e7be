package productivity

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ygai/gateway/internal/domain/entity"
	"github.com/ygai/gateway/internal/infrastructure/notion"
)

func TestBuildProperties(t *testing.T) {
	due := time.Date(2026, 9, 1, 18, 0, 0, 0, time.FixedZone("CST", 8*3600))
	task := &entity.Task{
		Title:       "修复登录超时",
		Description: "线上偶发",
		Priority:    entity.PriorityUrgent,
		Status:      entity.StatusPending,
		TaskType:    "生产问题",
		DueDate:     &due,
	}

	props := buildProperties(task)

	if props["优先级"].(map[string]interface{})["select"].(map[string]interface{})["name"] != "高" {
		t.Fatal("priority 1 should map to 高")
	}
	status := props["状态"].(map[string]interface{})["status"].(map[string]interface{})["name"]
	if status != "全景时段（排任务、调优先级）" {
		t.Fatalf("unexpected status option: %v", status)
	}
	ms := props["任务类型"].(map[string]interface{})["multi_select"].([]map[string]interface{})
	if len(ms) != 1 || ms[0]["name"] != "生产问题" {
		t.Fatalf("unexpected task type: %v", ms)
	}
	date := props["截止日期"].(map[string]interface{})["date"].(map[string]interface{})["start"]
	if date != "2026-09-01T18:00:00+08:00" {
		t.Fatalf("unexpected due date: %v", date)
	}
}

func TestBuildProperties_Defaults(t *testing.T) {
	task := &entity.Task{Title: "t", Status: entity.TaskStatus("weird"), Priority: entity.PriorityNormal}

	props := buildProperties(task)

	status := props["状态"].(map[string]interface{})["status"].(map[string]interface{})["name"]
	if status != "未开始" {
		t.Fatalf("unknown status should fall back to 未开始, got %v", status)
	}
	ms := props["任务类型"].(map[string]interface{})["multi_select"].([]map[string]interface{})
	if ms[0]["name"] != entity.DefaultTaskType {
		t.Fatalf("empty task type should default, got %v", ms[0]["name"])
	}
	if _, ok := props["截止日期"]; ok {
		t.Fatal("nil due date must omit the property")
	}
}

func TestSourceBlocks_ImageMessage(t *testing.T) {
	msg := &entity.Message{
		MessageType: entity.MessageTypeImage,
		Content:     "https://img/1, https://img/2",
	}

	blocks := sourceBlocks(msg)

	if len(blocks) != 2 {
		t.Fatalf("expected 2 image blocks, got %d", len(blocks))
	}
	for i, want := range []string{"https://img/1", "https://img/2"} {
		if blocks[i]["type"] != "image" {
			t.Fatalf("block %d: unexpected type %v", i, blocks[i]["type"])
		}
		url := blocks[i]["image"].(map[string]interface{})["external"].(map[string]interface{})["url"]
		if url != want {
			t.Fatalf("block %d: url %v, want %s", i, url, want)
		}
	}
}

func TestSourceBlocks_TextQuoteTruncated(t *testing.T) {
	msg := &entity.Message{
		MessageType: entity.MessageTypeText,
		Content:     strings.Repeat("x", 3000),
	}

	blocks := sourceBlocks(msg)

	if len(blocks) != 1 || blocks[0]["type"] != "quote" {
		t.Fatalf("unexpected blocks: %v", blocks)
	}
	rich := blocks[0]["quote"].(map[string]interface{})["rich_text"].([]map[string]interface{})
	content := rich[0]["text"].(map[string]interface{})["content"].(string)
	if len(content) != quoteContentLimit {
		t.Fatalf("quote content should be truncated to %d, got %d", quoteContentLimit, len(content))
	}
}

func TestSourceBlocks_NilMessage(t *testing.T) {
	if blocks := sourceBlocks(nil); blocks != nil {
		t.Fatalf("expected nil, got %v", blocks)
	}
}

func fakePage(props map[string]string) notion.Page {
	p := notion.Page{ID: "page-1", Properties: map[string]json.RawMessage{}}
	for name, raw := range props {
		p.Properties[name] = json.RawMessage(raw)
	}
	return p
}

func TestParsePage(t *testing.T) {
	p := fakePage(map[string]string{
		"任务名称": `{"title":[{"text":{"content":"修复登录超时"}}]}`,
		"描述":   `{"rich_text":[{"text":{"content":"线上偶发"}}]}`,
		"状态":   `{"status":{"name":"已完成"}}`,
		"优先级":  `{"select":{"name":"高"}}`,
		"任务类型": `{"multi_select":[{"name":"生产问题"},{"name":"运维事项"}]}`,
		"截止日期": `{"date":{"start":"2026-09-01"}}`,
	})

	task := parsePage(p)

	if task.Title != "修复登录超时" || task.Description != "线上偶发" || task.Status != "已完成" {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.Priority != entity.PriorityUrgent || task.PriorityName != "高" {
		t.Fatalf("unexpected priority: %+v", task)
	}
	if task.TaskType != "生产问题, 运维事项" {
		t.Fatalf("unexpected task type: %q", task.TaskType)
	}
	if task.DueDate == nil || task.DueDate.Format("2006-01-02") != "2026-09-01" {
		t.Fatalf("unexpected due date: %v", task.DueDate)
	}
	if task.PageID != "page-1" {
		t.Fatalf("unexpected page id: %q", task.PageID)
	}
}

func TestParsePage_Defaults(t *testing.T) {
	task := parsePage(fakePage(map[string]string{
		"任务名称": `{"title":[]}`,
	}))

	if task.PriorityName != "中" || task.Priority != entity.PriorityImportant {
		t.Fatalf("missing priority should default to 中, got %+v", task)
	}
	if task.TaskType != entity.DefaultTaskType {
		t.Fatalf("missing task type should default, got %q", task.TaskType)
	}
	if task.DueDate != nil {
		t.Fatal("missing date should stay nil")
	}
}

func TestParseNotionDate(t *testing.T) {
	if got, err := parseNotionDate("2026-09-01T18:00:00+08:00"); err != nil || got.Hour() != 18 {
		t.Fatalf("unexpected: %v %v", got, err)
	}
	if got, err := parseNotionDate("2026-09-01"); err != nil || got.Day() != 1 {
		t.Fatalf("unexpected: %v %v", got, err)
	}
	if _, err := parseNotionDate("not a date"); err == nil {
		t.Fatal("expected error")
	}
}
