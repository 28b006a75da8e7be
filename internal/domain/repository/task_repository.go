package repository

import (
	"context"

	"github.com/ygai/gateway/internal/domain/entity"
)

// TaskRepository 任务仓储接口
type TaskRepository interface {
	// Create 保存新任务
	Create(ctx context.Context, task *entity.Task) error

	// FindByID 根据ID查找任务
	FindByID(ctx context.Context, id uint) (*entity.Task, error)

	// Update 更新任务全部内容字段
	Update(ctx context.Context, task *entity.Task) error

	// SetNotionPageID 仅回填外部任务库页面ID。
	// 与 Update 区分开，持久层的同步钩子据此跳过再次同步。
	SetNotionPageID(ctx context.Context, id uint, pageID string) error

	// ListPending 按优先级列出未完成任务
	ListPending(ctx context.Context, limit int) ([]*entity.Task, error)
}
