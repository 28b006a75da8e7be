package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/domain/repository"
	domainErrors "github.com/ygai/gateway/pkg/errors"
)

// RecordsHandler 消息与任务的只读查询接口
type RecordsHandler struct {
	msgRepo  repository.MessageRepository
	taskRepo repository.TaskRepository
	userRepo repository.ChannelUserRepository
	logger   *zap.Logger
}

// NewRecordsHandler 创建查询处理器
func NewRecordsHandler(
	msgRepo repository.MessageRepository,
	taskRepo repository.TaskRepository,
	userRepo repository.ChannelUserRepository,
	logger *zap.Logger,
) *RecordsHandler {
	return &RecordsHandler{
		msgRepo:  msgRepo,
		taskRepo: taskRepo,
		userRepo: userRepo,
		logger:   logger,
	}
}

// ListMessages GET /api/v1/users/:id/messages
func (h *RecordsHandler) ListMessages(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	limit := intQuery(c, "limit", 20)
	offset := intQuery(c, "offset", 0)

	if _, err := h.userRepo.FindByID(c.Request.Context(), uint(userID)); err != nil {
		if domainErrors.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("查询用户失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	messages, err := h.msgRepo.ListByUser(c.Request.Context(), uint(userID), limit, offset)
	if err != nil {
		h.logger.Error("查询消息失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

// ListPendingTasks GET /api/v1/tasks/pending
func (h *RecordsHandler) ListPendingTasks(c *gin.Context) {
	limit := intQuery(c, "limit", 50)

	tasks, err := h.taskRepo.ListPending(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("查询任务失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
