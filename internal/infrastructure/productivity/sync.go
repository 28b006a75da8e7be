package productivity

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/domain/entity"
	"github.com/ygai/gateway/internal/domain/repository"
	"github.com/ygai/gateway/internal/domain/service"
	domainErrors "github.com/ygai/gateway/pkg/errors"
	"github.com/ygai/gateway/pkg/safego"
)

const syncTimeout = 60 * time.Second

// SyncWorker 把本地任务异步推送到外部任务库。
// 挂在任务仓储的保存钩子上：每次 Create/Update 后以 Task ID 触发一次，
// 页面 ID 回填走 SetNotionPageID，不经过钩子，保证不会循环触发。
type SyncWorker struct {
	store    service.ProductivityStore
	taskRepo repository.TaskRepository
	msgRepo  repository.MessageRepository
	logger   *zap.Logger
}

// NewSyncWorker 创建同步工作器
func NewSyncWorker(
	store service.ProductivityStore,
	taskRepo repository.TaskRepository,
	msgRepo repository.MessageRepository,
	logger *zap.Logger,
) *SyncWorker {
	return &SyncWorker{
		store:    store,
		taskRepo: taskRepo,
		msgRepo:  msgRepo,
		logger:   logger.With(zap.String("component", "notion-sync")),
	}
}

// Enqueue 异步同步一个任务，立即返回
func (w *SyncWorker) Enqueue(taskID uint) {
	if !w.store.Configured() {
		return
	}
	safego.Go(w.logger, "notion-sync", func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		w.sync(ctx, taskID)
	})
}

// sync 已有页面则更新，否则创建并回填页面ID
func (w *SyncWorker) sync(ctx context.Context, taskID uint) {
	task, err := w.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		w.logger.Error("同步前加载任务失败", zap.Uint("task_id", taskID), zap.Error(err))
		return
	}

	if task.NotionPageID != "" {
		if err := w.store.UpdateTaskPage(ctx, task); err != nil {
			w.logger.Error("更新任务页面失败",
				zap.Uint("task_id", taskID),
				zap.String("page_id", task.NotionPageID),
				zap.Error(err))
		}
		return
	}

	pageID, err := w.store.CreateTaskPage(ctx, task, w.loadSourceMessage(ctx, task))
	if err != nil {
		if domainErrors.IsUnconfigured(err) {
			return
		}
		w.logger.Error("创建任务页面失败", zap.Uint("task_id", taskID), zap.Error(err))
		return
	}

	if err := w.taskRepo.SetNotionPageID(ctx, taskID, pageID); err != nil {
		w.logger.Error("回填页面ID失败",
			zap.Uint("task_id", taskID),
			zap.String("page_id", pageID),
			zap.Error(err))
	}
}

// loadSourceMessage 加载任务的来源消息；引用无效只记日志，不影响同步
func (w *SyncWorker) loadSourceMessage(ctx context.Context, task *entity.Task) *entity.Message {
	if task.SourceMessageID == "" {
		return nil
	}
	msgID, err := strconv.ParseUint(task.SourceMessageID, 10, 64)
	if err != nil {
		w.logger.Warn("任务的来源消息引用无效",
			zap.Uint("task_id", task.ID),
			zap.String("source_message_id", task.SourceMessageID))
		return nil
	}
	msg, err := w.msgRepo.FindByID(ctx, uint(msgID))
	if err != nil {
		w.logger.Warn("加载来源消息失败",
			zap.Uint("task_id", task.ID),
			zap.String("source_message_id", task.SourceMessageID),
			zap.Error(err))
		return nil
	}
	return msg
}
