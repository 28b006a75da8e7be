package entity

// ConversationKind 会话类型
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// ImagePromptText 纯图片消息的替代文本，保证下游提取仍有语义输入
const ImagePromptText = "这是图片消息，请提取图片中的任务信息"

// NormalizedMessage 规范化后的平台无关消息（canonical message）。
// Images 保存平台侧的不透明图片凭据（如钉钉 downloadCode），顺序即原始顺序。
type NormalizedMessage struct {
	Text         string // 已剥离 @机器人 标记
	RawText      string // 剥离前原文，仅用于审计日志
	Images       []string
	SenderID     string
	SenderName   string
	Conversation ConversationKind
	RawKind      string // 平台原生 msgtype
	MessageID    string
	MessageType  MessageType
	ReplyTarget  string // 平台回复地址（如 sessionWebhook），透传给发送端
}

// Empty 文本与图片均为空：管线对该消息直接短路
func (n *NormalizedMessage) Empty() bool {
	return n.Text == "" && len(n.Images) == 0
}

// IsGroup 是否群聊消息
func (n *NormalizedMessage) IsGroup() bool {
	return n.Conversation == ConversationGroup
}
