package models

import "time"

// MessageModel 消息数据库模型。
// ChannelUserModel 删除时级联删除其消息（constraint:OnDelete:CASCADE）。
type MessageModel struct {
	ID                uint              `gorm:"primaryKey"`
	ChannelUserID     uint              `gorm:"index;not null"`
	ChannelUser       *ChannelUserModel `gorm:"constraint:OnDelete:CASCADE"`
	Platform          string            `gorm:"size:20;not null"`
	Content           string            `gorm:"type:text;not null"`
	MessageType       string            `gorm:"size:20;not null;default:text"`
	Direction         string            `gorm:"size:10;not null;default:inbound"`
	PlatformMessageID string            `gorm:"size:200"`
	AIClassification  string            `gorm:"size:20"`
	Processed         bool              `gorm:"not null;default:false"`
	CreatedAt         time.Time         `gorm:"index"`
}

// TableName 指定表名
func (MessageModel) TableName() string {
	return "messages"
}
