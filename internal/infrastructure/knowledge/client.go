package knowledge

import (
	"context"

	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/domain/entity"
	"github.com/ygai/gateway/internal/domain/service"
	"github.com/ygai/gateway/internal/infrastructure/notion"
	domainErrors "github.com/ygai/gateway/pkg/errors"
)

// 新收录的链接默认状态
const statusUnread = "未阅读"

// Store Notion 知识库客户端。URL 属性是数据库里的唯一键，
// FindLink 按它精确查重，SaveLink 不再自查。
type Store struct {
	client     *notion.Client
	databaseID string
	logger     *zap.Logger
}

// NewStore 创建知识库客户端
func NewStore(client *notion.Client, databaseID string, logger *zap.Logger) *Store {
	return &Store{
		client:     client,
		databaseID: databaseID,
		logger:     logger.With(zap.String("component", "knowledge")),
	}
}

var _ service.KnowledgeStore = (*Store)(nil)

// FindLink 按 URL 精确查询，未命中返回 (nil, nil)
func (s *Store) FindLink(ctx context.Context, url string) (*entity.LinkRecord, error) {
	if !s.client.Configured() || s.databaseID == "" {
		return nil, nil
	}

	pages, err := s.client.QueryDatabase(ctx, s.databaseID, map[string]interface{}{
		"filter": map[string]interface{}{
			"property": "URL",
			"url":      map[string]interface{}{"equals": url},
		},
		"page_size": 1,
	})
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, nil
	}

	page := pages[0]
	record := &entity.LinkRecord{
		URL:      url,
		Title:    page.ParseTitle("标题"),
		Source:   page.ParseRichText("来源"),
		Category: page.ParseSelect("分类"),
		Rating:   page.ParseSelect("评分"),
		Summary:  page.ParseRichText("概要"),
	}
	// 存量记录缺字段时按收录时的默认值补齐
	if record.Title == "" {
		record.Title = url
	}
	if record.Category == "" {
		record.Category = "其他"
	}
	if record.Rating == "" {
		record.Rating = "⭐⭐⭐"
	}
	if record.Summary == "" {
		record.Summary = "暂无摘要"
	}
	return record, nil
}

// SaveLink 写入新记录，状态固定为「未阅读」；发布时间为空时不写日期属性
func (s *Store) SaveLink(ctx context.Context, record *entity.LinkRecord) error {
	if !s.client.Configured() || s.databaseID == "" {
		s.logger.Warn("知识库未配置，跳过链接收录", zap.String("url", record.URL))
		return domainErrors.NewUnconfiguredError("notion knowledge base not configured")
	}

	properties := map[string]interface{}{
		"标题": notion.TitleProp(record.Title),
		"URL": notion.URLProp(record.URL),
		"来源": notion.RichTextProp(record.Source),
		"概要": notion.RichTextProp(record.Summary),
		"状态": notion.StatusProp(statusUnread),
		"分类": notion.SelectProp(record.Category),
		"评分": notion.SelectProp(record.Rating),
	}
	if record.PublishDate != "" {
		properties["日期"] = notion.DateProp(record.PublishDate)
	}

	pageID, err := s.client.CreatePage(ctx, s.databaseID, properties, nil)
	if err != nil {
		return err
	}
	s.logger.Info("链接已收录到知识库",
		zap.String("url", record.URL),
		zap.String("page_id", pageID))
	return nil
}
