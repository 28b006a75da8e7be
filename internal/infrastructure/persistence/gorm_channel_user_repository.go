package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ygai/gateway/internal/domain/entity"
	"github.com/ygai/gateway/internal/domain/repository"
	"github.com/ygai/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/ygai/gateway/pkg/errors"
)

// GormChannelUserRepository GORM 实现的渠道用户仓储
type GormChannelUserRepository struct {
	db *gorm.DB
}

// NewGormChannelUserRepository 创建 GORM 渠道用户仓储
func NewGormChannelUserRepository(db *gorm.DB) repository.ChannelUserRepository {
	return &GormChannelUserRepository{db: db}
}

// GetOrCreate 按自然键查找或创建用户。
// (platform, platform_user_id) 上有唯一索引，并发插入冲突时重查一次，
// 保证同一自然键只有一行。
func (r *GormChannelUserRepository) GetOrCreate(ctx context.Context, platform entity.Platform, platformUserID, name string) (*entity.ChannelUser, error) {
	var model models.ChannelUserModel
	err := r.db.WithContext(ctx).
		Where("platform = ? AND platform_user_id = ?", platform, platformUserID).
		First(&model).Error
	if err == nil {
		// 用户名补齐：首次以 ID 占位创建的用户，拿到昵称后回填一次
		if model.Name == "" && name != "" && name != platformUserID {
			model.Name = name
			if err := r.db.WithContext(ctx).Model(&model).Update("name", name).Error; err != nil {
				return nil, domainErrors.NewInternalError("failed to backfill user name: " + err.Error())
			}
		}
		return r.toEntity(&model), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainErrors.NewInternalError("failed to query channel user: " + err.Error())
	}

	model = models.ChannelUserModel{
		Platform:       string(platform),
		PlatformUserID: platformUserID,
		Name:           name,
	}
	createErr := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
	if createErr != nil {
		return nil, domainErrors.NewInternalError("failed to create channel user: " + createErr.Error())
	}
	if model.ID == 0 {
		// 冲突被吞掉说明并发请求抢先插入，重查取回那一行
		if err := r.db.WithContext(ctx).
			Where("platform = ? AND platform_user_id = ?", platform, platformUserID).
			First(&model).Error; err != nil {
			return nil, domainErrors.NewInternalError("failed to reload channel user: " + err.Error())
		}
	}

	return r.toEntity(&model), nil
}

// FindByID 根据ID查找用户
func (r *GormChannelUserRepository) FindByID(ctx context.Context, id uint) (*entity.ChannelUser, error) {
	var model models.ChannelUserModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("channel user not found")
		}
		return nil, domainErrors.NewInternalError("failed to find channel user: " + err.Error())
	}
	return r.toEntity(&model), nil
}

func (r *GormChannelUserRepository) toEntity(model *models.ChannelUserModel) *entity.ChannelUser {
	return &entity.ChannelUser{
		ID:             model.ID,
		Platform:       entity.Platform(model.Platform),
		PlatformUserID: model.PlatformUserID,
		Name:           model.Name,
		CreatedAt:      model.CreatedAt,
	}
}
