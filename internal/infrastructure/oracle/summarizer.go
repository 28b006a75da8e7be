package oracle

import (
	"context"

	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/domain/service"
	domainErrors "github.com/ygai/gateway/pkg/errors"
)

// Summarizer 摘要 Oracle 客户端，供定时简报任务生成自然语言总结。
// 使用强文本模型；失败返回空串，由调用方回退到原始任务列表。
type Summarizer struct {
	client *Client
	logger *zap.Logger
}

// NewSummarizer 创建摘要客户端
func NewSummarizer(client *Client, logger *zap.Logger) *Summarizer {
	return &Summarizer{client: client, logger: logger}
}

var _ service.Summarizer = (*Summarizer)(nil)

// Summarize 对给定提示词生成摘要文本，失败返回空串
func (s *Summarizer) Summarize(ctx context.Context, prompt string) string {
	result, err := s.client.Complete(ctx, s.client.StrongModel(), prompt)
	if err != nil {
		if domainErrors.IsUnconfigured(err) {
			s.logger.Warn("Oracle 未配置，简报退回原始列表")
		} else {
			s.logger.Error("摘要生成失败", zap.Error(err))
		}
		return ""
	}
	return result
}
