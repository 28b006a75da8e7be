package service

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/domain/entity"
)

// URL 提取：中文字符、引号与换行视为边界
var urlPattern = regexp.MustCompile("https?://[^\\s\\x{4e00}-\\x{9fff}<>\"'\\n\\r]+")

// ExtractURLs 从文本中提取全部 URL，保持出现顺序
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// LinkResolver 链接处理服务：提取 URL，知识库查重命中直接复用，
// 未命中则抓取页面、走文章分类与深度分析、收录为新记录。
// 单条 URL 任一环节不可恢复的失败只丢弃该 URL，不影响消息主流程。
type LinkResolver struct {
	knowledge  KnowledgeStore
	fetcher    ContentFetcher
	classifier ArticleClassifier
	logger     *zap.Logger
}

// NewLinkResolver 创建链接处理服务
func NewLinkResolver(
	knowledge KnowledgeStore,
	fetcher ContentFetcher,
	classifier ArticleClassifier,
	logger *zap.Logger,
) *LinkResolver {
	return &LinkResolver{
		knowledge:  knowledge,
		fetcher:    fetcher,
		classifier: classifier,
		logger:     logger.With(zap.String("component", "link-resolver")),
	}
}

// Resolve 处理文本中的全部 URL，senderName 用作来源兜底。
// 返回结果与成功处理的 URL 一一对应，失败的 URL 不出现在结果里。
func (r *LinkResolver) Resolve(ctx context.Context, text, senderName string) []entity.LinkInfo {
	urls := ExtractURLs(text)
	if len(urls) == 0 {
		return nil
	}

	infos := make([]entity.LinkInfo, 0, len(urls))
	for _, url := range urls {
		info, ok := r.resolveOne(ctx, url, senderName)
		if ok {
			infos = append(infos, info)
		}
	}
	return infos
}

func (r *LinkResolver) resolveOne(ctx context.Context, url, senderName string) (entity.LinkInfo, bool) {
	// 知识库命中：原样复用存量字段，不重新抓取
	existing, err := r.knowledge.FindLink(ctx, url)
	if err != nil {
		r.logger.Error("知识库查重失败", zap.String("url", url), zap.Error(err))
	} else if existing != nil {
		r.logger.Info("URL 已存在于知识库，跳过抓取与保存", zap.String("url", url))
		return entity.LinkInfo{
			URL:      url,
			Title:    existing.Title,
			Category: existing.Category,
			Rating:   existing.Rating,
			Summary:  existing.Summary,
			Existing: true,
		}, true
	}

	meta, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		r.logger.Warn("获取 URL 标题或时间失败", zap.String("url", url), zap.Error(err))
		// 抓取失败仍按 URL 本身继续：分类与分析的输入降级为裸 URL
		meta = &PageMeta{Title: url}
	}

	category := r.classifier.ClassifyArticle(ctx, meta.Title, "")
	analysis := r.classifier.AnalyzeArticle(ctx, meta.Title, url, meta.BodyText)

	// 来源优先取分析结果，无法确定时先按域名推断，再用发送人名字兜底
	source := analysis.Source
	if source == "" || source == "未知来源" {
		source = meta.SourceName
	}
	if source == "" {
		source = senderName
	}

	record := &entity.LinkRecord{
		URL:         url,
		Title:       meta.Title,
		Source:      source,
		Category:    category,
		Rating:      analysis.Rating,
		Summary:     analysis.Summary,
		PublishDate: meta.PublishDate,
	}

	r.logger.Info("网页分析结果",
		zap.String("url", url),
		zap.String("title", meta.Title),
		zap.String("category", category),
		zap.String("publish_date", meta.PublishDate),
		zap.String("source", source),
		zap.String("rating", analysis.Rating))

	if err := r.knowledge.SaveLink(ctx, record); err != nil {
		r.logger.Error("保存 URL 到知识库失败", zap.String("url", url), zap.Error(err))
		return entity.LinkInfo{}, false
	}

	return entity.LinkInfo{
		URL:      url,
		Title:    meta.Title,
		Category: category,
		Rating:   analysis.Rating,
		Summary:  analysis.Summary,
	}, true
}
