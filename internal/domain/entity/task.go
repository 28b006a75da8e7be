package entity

import "time"

// Priority 任务优先级，数值越小越紧急
type Priority int

const (
	PriorityUrgent    Priority = 1
	PriorityImportant Priority = 2
	PriorityNormal    Priority = 3
	PriorityLow       Priority = 4
)

// Display 优先级中文名（与外部任务库的 select 选项一致）
func (p Priority) Display() string {
	switch p {
	case PriorityUrgent:
		return "高"
	case PriorityImportant:
		return "中"
	default:
		return "低"
	}
}

// TaskStatus 任务状态
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// DefaultTaskType 无法归类时的兜底任务类型
const DefaultTaskType = "其他"

// Task 待办任务实体。
// NotionPageID 由后台同步异步回填；该回填写入不得再次触发同步。
type Task struct {
	ID              uint
	Title           string
	Description     string
	Priority        Priority
	Status          TaskStatus
	Source          Platform
	SourceMessageID string
	DueDate         *time.Time
	TaskType        string
	NotionPageID    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TaskDraft 提取 Oracle 返回的任务草稿（尚未持久化）
type TaskDraft struct {
	Title       string
	Description string
	Priority    Priority
	TaskType    string
	DueDate     *time.Time
}

// RemoteTask 外部任务库中的一条任务记录（digest 查询结果）
type RemoteTask struct {
	Title        string
	Description  string
	Status       string
	Priority     Priority
	PriorityName string
	TaskType     string
	DueDate      *time.Time
	PageID       string
}
