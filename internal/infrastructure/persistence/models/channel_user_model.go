package models

import "time"

// ChannelUserModel 渠道用户数据库模型
type ChannelUserModel struct {
	ID             uint   `gorm:"primaryKey"`
	Platform       string `gorm:"size:20;not null;uniqueIndex:idx_platform_user"`
	PlatformUserID string `gorm:"size:100;not null;uniqueIndex:idx_platform_user"`
	Name           string `gorm:"size:100"`
	CreatedAt      time.Time
}

// TableName 指定表名
func (ChannelUserModel) TableName() string {
	return "channel_users"
}
