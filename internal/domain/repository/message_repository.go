package repository

import (
	"context"

	"github.com/ygai/gateway/internal/domain/entity"
)

// MessageRepository 消息仓储接口
type MessageRepository interface {
	// Create 保存新消息
	Create(ctx context.Context, message *entity.Message) error

	// FindByID 根据ID查找消息
	FindByID(ctx context.Context, id uint) (*entity.Message, error)

	// MarkProcessed 写入分类结果并置 processed 标记（每条入站消息仅一次）
	MarkProcessed(ctx context.Context, id uint, classification entity.Classification) error

	// ListByUser 按用户倒序分页查询
	ListByUser(ctx context.Context, channelUserID uint, limit, offset int) ([]*entity.Message, error)
}
