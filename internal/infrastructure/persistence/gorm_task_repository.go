package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ygai/gateway/internal/domain/entity"
	"github.com/ygai/gateway/internal/domain/repository"
	"github.com/ygai/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/ygai/gateway/pkg/errors"
)

// GormTaskRepository GORM 实现的任务仓储。
// Create/Update 提交后触发 afterSave 钩子（用于 Notion 后台同步）；
// SetNotionPageID 是唯一不触发钩子的写入口，避免同步回写形成死循环。
type GormTaskRepository struct {
	db        *gorm.DB
	afterSave func(taskID uint)
}

// NewGormTaskRepository 创建 GORM 任务仓储
func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

var _ repository.TaskRepository = (*GormTaskRepository)(nil)

// SetAfterSaveHook 注册保存后钩子。钩子在事务提交后同步调用，
// 调用方自行决定是否转入后台 goroutine。
func (r *GormTaskRepository) SetAfterSaveHook(hook func(taskID uint)) {
	r.afterSave = hook
}

// Create 保存新任务并触发保存后钩子
func (r *GormTaskRepository) Create(ctx context.Context, task *entity.Task) error {
	model := r.toModel(task)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to create task: " + err.Error())
	}
	task.ID = model.ID
	task.CreatedAt = model.CreatedAt
	task.UpdatedAt = model.UpdatedAt

	if r.afterSave != nil {
		r.afterSave(task.ID)
	}
	return nil
}

// FindByID 根据ID查找任务
func (r *GormTaskRepository) FindByID(ctx context.Context, id uint) (*entity.Task, error) {
	var model models.TaskModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("task not found")
		}
		return nil, domainErrors.NewInternalError("failed to find task: " + err.Error())
	}
	return r.toEntity(&model), nil
}

// Update 更新任务内容并触发保存后钩子
func (r *GormTaskRepository) Update(ctx context.Context, task *entity.Task) error {
	model := r.toModel(task)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to update task: " + err.Error())
	}
	task.UpdatedAt = model.UpdatedAt

	if r.afterSave != nil {
		r.afterSave(task.ID)
	}
	return nil
}

// SetNotionPageID 仅回填外部页面ID，绕过保存后钩子
func (r *GormTaskRepository) SetNotionPageID(ctx context.Context, id uint, pageID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.TaskModel{}).
		Where("id = ?", id).
		Update("notion_page_id", pageID)
	if result.Error != nil {
		return domainErrors.NewInternalError("failed to set notion page id: " + result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("task not found")
	}
	return nil
}

// ListPending 按优先级列出未完成任务
func (r *GormTaskRepository) ListPending(ctx context.Context, limit int) ([]*entity.Task, error) {
	var rows []models.TaskModel
	err := r.db.WithContext(ctx).
		Where("status <> ?", string(entity.StatusDone)).
		Order("priority asc, created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to list pending tasks: " + err.Error())
	}

	tasks := make([]*entity.Task, 0, len(rows))
	for i := range rows {
		tasks = append(tasks, r.toEntity(&rows[i]))
	}
	return tasks, nil
}

func (r *GormTaskRepository) toModel(e *entity.Task) *models.TaskModel {
	return &models.TaskModel{
		ID:              e.ID,
		Title:           e.Title,
		Description:     e.Description,
		Priority:        int(e.Priority),
		Status:          string(e.Status),
		Source:          string(e.Source),
		SourceMessageID: e.SourceMessageID,
		DueDate:         e.DueDate,
		TaskType:        e.TaskType,
		NotionPageID:    e.NotionPageID,
		CreatedAt:       e.CreatedAt,
	}
}

func (r *GormTaskRepository) toEntity(m *models.TaskModel) *entity.Task {
	return &entity.Task{
		ID:              m.ID,
		Title:           m.Title,
		Description:     m.Description,
		Priority:        entity.Priority(m.Priority),
		Status:          entity.TaskStatus(m.Status),
		Source:          entity.Platform(m.Source),
		SourceMessageID: m.SourceMessageID,
		DueDate:         m.DueDate,
		TaskType:        m.TaskType,
		NotionPageID:    m.NotionPageID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
