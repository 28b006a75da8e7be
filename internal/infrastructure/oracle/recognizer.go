package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/domain/service"
	domainErrors "github.com/ygai/gateway/pkg/errors"
)

const recognizePrompt = `请详细描述这张图片的内容，并提取图片中所有可见的文字信息（OCR）。`

// Recognizer 图片识别 Oracle 客户端。
// 每张图片独立调用一次多模态模型，互不影响：
// 单张失败只把对应下标替换成占位描述，输出与输入始终等长同序。
type Recognizer struct {
	client *Client
	logger *zap.Logger
}

// NewRecognizer 创建图片识别客户端
func NewRecognizer(client *Client, logger *zap.Logger) *Recognizer {
	return &Recognizer{client: client, logger: logger}
}

var _ service.ImageRecognizer = (*Recognizer)(nil)

// RecognizeImages 逐张识别图片内容，返回 "图N: <描述>" 列表
func (r *Recognizer) RecognizeImages(ctx context.Context, imageURLs []string) []string {
	if len(imageURLs) == 0 {
		return nil
	}

	results := make([]string, 0, len(imageURLs))
	for i, url := range imageURLs {
		text, err := r.client.CompleteVision(ctx, r.client.VisionModel(), recognizePrompt, []string{url})
		switch {
		case err == nil && text != "":
			results = append(results, fmt.Sprintf("图%d: %s", i+1, text))
		case err == nil:
			results = append(results, fmt.Sprintf("图%d: (识别失败)", i+1))
		case domainErrors.IsUnconfigured(err):
			r.logger.Warn("Oracle 未配置，跳过图片识别", zap.Int("index", i+1))
			results = append(results, fmt.Sprintf("图%d: (识别失败)", i+1))
		default:
			r.logger.Error("图片识别异常", zap.Int("index", i+1), zap.Error(err))
			results = append(results, fmt.Sprintf("图%d: (识别异常)", i+1))
		}
	}
	return results
}
