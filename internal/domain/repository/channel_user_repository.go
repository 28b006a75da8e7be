package repository

import (
	"context"

	"github.com/ygai/gateway/internal/domain/entity"
)

// ChannelUserRepository 渠道用户仓储接口
type ChannelUserRepository interface {
	// GetOrCreate 按 (platform, platformUserID) 查找用户，不存在则创建。
	// 并发消息下同一自然键只允许产生一行。
	GetOrCreate(ctx context.Context, platform entity.Platform, platformUserID, name string) (*entity.ChannelUser, error)

	// FindByID 根据ID查找用户
	FindByID(ctx context.Context, id uint) (*entity.ChannelUser, error)
}
