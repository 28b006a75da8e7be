package service

import (
	"context"

	"github.com/ygai/gateway/internal/domain/entity"
)

// 本文件定义管线依赖的外部 Oracle 与协作方接口。
// Oracle 是黑盒：客户端实现负责全部解析、校验与降级，
// 任何失败都折算成文档化默认值，绝不向管线抛错。

// MessageClassifier 消息分类 Oracle
type MessageClassifier interface {
	// ClassifyMessage 返回封闭集合内的分类标签，失败时返回 normal
	ClassifyMessage(ctx context.Context, content string) entity.Classification
}

// ArticleAnalysis 文章深度分析结果
type ArticleAnalysis struct {
	Source  string
	Rating  string
	Summary string
}

// ArticleClassifier 文章分类与内容分析 Oracle
type ArticleClassifier interface {
	// ClassifyArticle 返回固定小分类法中的一项，失败时返回兜底分类
	ClassifyArticle(ctx context.Context, title, description string) string
	// AnalyzeArticle 提取来源/评分/概要，失败时返回默认三元组
	AnalyzeArticle(ctx context.Context, title, url, content string) ArticleAnalysis
}

// TaskExtractor 任务提取 Oracle。
// 成功但无相关任务时返回空列表；Oracle 不可达时返回以原文开头
// 截断为标题的单条兜底草稿——两种情况调用方必须区分。
type TaskExtractor interface {
	ExtractTasks(ctx context.Context, content string, imageURLs []string, senderName string) []entity.TaskDraft
}

// ImageRecognizer 图片识别 Oracle。
// 输出与输入等长同序；单张失败只影响该下标（占位描述）。
type ImageRecognizer interface {
	RecognizeImages(ctx context.Context, imageURLs []string) []string
}

// ReplyGenerator 自由回复 Oracle，失败时返回固定致谢语
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, content string) string
}

// Summarizer 摘要 Oracle，失败时返回空串（调用方回退到原始列表）
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) string
}

// PageMeta 网页抓取结果
type PageMeta struct {
	Title       string
	PublishDate string // ISO 8601，抓取不到则为空
	SourceName  string // 按域名推断的来源名
	BodyText    string // 去标签正文，供内容分析 Oracle 使用
}

// ContentFetcher 网页内容抓取器
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (*PageMeta, error)
}

// KnowledgeStore 外部知识库（按 URL 精确去重）
type KnowledgeStore interface {
	// FindLink 精确查 URL，未命中返回 (nil, nil)
	FindLink(ctx context.Context, url string) (*entity.LinkRecord, error)
	// SaveLink 写入新记录。调用方必须已通过 FindLink 证明不存在，
	// 本方法不再查重。
	SaveLink(ctx context.Context, record *entity.LinkRecord) error
}

// ProductivityStore 外部任务库（Notion 形状）
type ProductivityStore interface {
	Configured() bool
	// CreateTaskPage 创建页面并返回外部页面ID；sourceMsg 非空时把原始
	// 消息追加到页面正文（文本引用块或图片块）
	CreateTaskPage(ctx context.Context, task *entity.Task, sourceMsg *entity.Message) (string, error)
	UpdateTaskPage(ctx context.Context, task *entity.Task) error
	QueryIncomplete(ctx context.Context) ([]entity.RemoteTask, error)
	QueryLastWeekCompleted(ctx context.Context) ([]entity.RemoteTask, error)
}

// ImageResolver 把平台侧不透明图片凭据换成临时可抓取 URL
type ImageResolver interface {
	ResolveImageURL(ctx context.Context, token string) (string, error)
}

// NotificationSink 通知出口（尽力送达）
type NotificationSink interface {
	Notify(ctx context.Context, userID, text string) error
}
