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

// GormMessageRepository GORM 实现的消息仓储
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GORM 消息仓储
func NewGormMessageRepository(db *gorm.DB) repository.MessageRepository {
	return &GormMessageRepository{db: db}
}

// Create 保存新消息，回填自增ID与创建时间
func (r *GormMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	model := r.toModel(message)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to create message: " + err.Error())
	}
	message.ID = model.ID
	message.CreatedAt = model.CreatedAt
	return nil
}

// FindByID 根据ID查找消息
func (r *GormMessageRepository) FindByID(ctx context.Context, id uint) (*entity.Message, error) {
	var model models.MessageModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("message not found")
		}
		return nil, domainErrors.NewInternalError("failed to find message: " + err.Error())
	}
	return r.toEntity(&model), nil
}

// MarkProcessed 写入分类结果与 processed 标记，只更新这两列
func (r *GormMessageRepository) MarkProcessed(ctx context.Context, id uint, classification entity.Classification) error {
	result := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"ai_classification": string(classification),
			"processed":         true,
		})
	if result.Error != nil {
		return domainErrors.NewInternalError("failed to mark message processed: " + result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("message not found")
	}
	return nil
}

// ListByUser 按用户倒序分页查询
func (r *GormMessageRepository) ListByUser(ctx context.Context, channelUserID uint, limit, offset int) ([]*entity.Message, error) {
	var rows []models.MessageModel
	err := r.db.WithContext(ctx).
		Where("channel_user_id = ?", channelUserID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to list messages: " + err.Error())
	}

	messages := make([]*entity.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, r.toEntity(&rows[i]))
	}
	return messages, nil
}

func (r *GormMessageRepository) toModel(e *entity.Message) *models.MessageModel {
	return &models.MessageModel{
		ID:                e.ID,
		ChannelUserID:     e.ChannelUserID,
		Platform:          string(e.Platform),
		Content:           e.Content,
		MessageType:       string(e.MessageType),
		Direction:         string(e.Direction),
		PlatformMessageID: e.PlatformMessageID,
		AIClassification:  string(e.AIClassification),
		Processed:         e.Processed,
	}
}

func (r *GormMessageRepository) toEntity(m *models.MessageModel) *entity.Message {
	return &entity.Message{
		ID:                m.ID,
		ChannelUserID:     m.ChannelUserID,
		Platform:          entity.Platform(m.Platform),
		Content:           m.Content,
		MessageType:       entity.MessageType(m.MessageType),
		Direction:         entity.Direction(m.Direction),
		PlatformMessageID: m.PlatformMessageID,
		AIClassification:  entity.Classification(m.AIClassification),
		Processed:         m.Processed,
		CreatedAt:         m.CreatedAt,
	}
}
