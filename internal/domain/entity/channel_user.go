package entity

import "time"

// Platform 消息渠道平台
type Platform string

const (
	PlatformDingTalk Platform = "dingtalk"
	PlatformWeChat   Platform = "wechat"
	PlatformTelegram Platform = "telegram"
	PlatformEmail    Platform = "email"
	PlatformManual   Platform = "manual"
)

// ChannelUser 渠道用户实体。
// 同一平台下 (Platform, PlatformUserID) 唯一；首条消息到达时惰性创建，
// 之后除补齐用户名外不再变更。
type ChannelUser struct {
	ID             uint
	Platform       Platform
	PlatformUserID string
	Name           string
	CreatedAt      time.Time
}

// DisplayName 展示名称，用户名缺失时退回平台用户ID
func (u *ChannelUser) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.PlatformUserID
}
