package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/domain/service"
	domainErrors "github.com/ygai/gateway/pkg/errors"
)

const replyPrompt = `你是一个友好的个人助手。请简洁地回复以下消息。

消息内容：%s

回复要求：简短、有帮助、专业。不超过100字。`

// 自由回复失败时的固定致谢语
const fallbackReply = "收到，我会尽快处理。"

// Responder 自由回复 Oracle 客户端，用于 normal 分类消息的会话式回复
type Responder struct {
	client *Client
	logger *zap.Logger
}

// NewResponder 创建回复生成客户端
func NewResponder(client *Client, logger *zap.Logger) *Responder {
	return &Responder{client: client, logger: logger}
}

var _ service.ReplyGenerator = (*Responder)(nil)

// GenerateReply 生成会话式简短回复，失败时返回固定致谢语
func (r *Responder) GenerateReply(ctx context.Context, content string) string {
	result, err := r.client.Complete(ctx, r.client.TextModel(), fmt.Sprintf(replyPrompt, content))
	if err != nil {
		if domainErrors.IsUnconfigured(err) {
			r.logger.Warn("Oracle 未配置，使用固定回复")
		} else {
			r.logger.Error("回复生成失败", zap.Error(err))
		}
		return fallbackReply
	}
	if result == "" {
		return fallbackReply
	}
	return result
}
