package models

import "time"

// TaskModel 任务数据库模型。
// SourceMessageID 只存消息ID字符串（弱引用）：消息删除后任务仍保留。
type TaskModel struct {
	ID              uint   `gorm:"primaryKey"`
	Title           string `gorm:"size:200;not null"`
	Description     string `gorm:"type:text"`
	Priority        int    `gorm:"not null;default:2;index"`
	Status          string `gorm:"size:20;not null;default:pending"`
	Source          string `gorm:"size:20;not null;default:manual"`
	SourceMessageID string `gorm:"size:200"`
	DueDate         *time.Time
	TaskType        string `gorm:"size:50;default:其他"`
	NotionPageID    string `gorm:"size:100"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName 指定表名
func (TaskModel) TableName() string {
	return "tasks"
}
