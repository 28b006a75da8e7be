package entity

import "time"

// Direction 消息方向
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageType 消息类型
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// Classification AI 消息分类标签（封闭集合）
type Classification string

const (
	ClassUrgent    Classification = "urgent"
	ClassImportant Classification = "important"
	ClassNormal    Classification = "normal"
	ClassIgnore    Classification = "ignore"
)

// ValidClassification 判断标签是否属于封闭集合
func ValidClassification(s string) bool {
	switch Classification(s) {
	case ClassUrgent, ClassImportant, ClassNormal, ClassIgnore:
		return true
	}
	return false
}

// Message 单条入站/出站消息。
// 入站消息创建后仅有两处变更：AI 分类结果与 processed 标记，且各写入一次。
// 纯图片消息的 Content 存放逗号连接的图片 URL。
type Message struct {
	ID                uint
	ChannelUserID     uint
	Platform          Platform
	Content           string
	MessageType       MessageType
	Direction         Direction
	PlatformMessageID string
	AIClassification  Classification
	Processed         bool
	CreatedAt         time.Time
}

// MarkProcessed 记录分类结果并置已处理标记
func (m *Message) MarkProcessed(c Classification) {
	m.AIClassification = c
	m.Processed = true
}
