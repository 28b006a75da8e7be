package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/domain/entity"
	"github.com/ygai/gateway/internal/domain/service"
	domainErrors "github.com/ygai/gateway/pkg/errors"
)

const classificationPrompt = `你是一个消息分类助手。请将以下消息分类为以下四个类别之一：

- urgent: 紧急事项，需要立即处理（如紧急会议、线上事故、截止日期临近的任务）
- important: 重要事项，需要跟进但不紧急（如工作任务、项目安排、待办事项）
- normal: 普通消息，可以直接回复（如日常问候、简单问题、闲聊）
- ignore: 可忽略的消息（如广告、无意义的消息、系统通知）

只返回分类标签，不要返回其他内容。

消息内容：%s`

const articleClassificationPrompt = `你是一个专业的文章分类助手。
请根据文章标题和描述（如果有的话），将文章分类到以下唯一匹配的分类中：
AI、产品、技术、生活、管理、其他

只输出一个分类名称，不要输出其他任何解释和符号。

文章标题：%s
文章描述：%s`

const articleAnalysisPrompt = `你是一个专业的文章分析与评分专家。
请以中立、客观的视角仔细阅读以下文章内容（如果是纯文本的 HTML 请提取核心文本），并结合当前的行业背景和相关热点信息，完成以下三个任务：

1. **提取来源**：如果能从内容中看出文章来源（例如公众号名称、网站名称、作者等），请提取出来。如果无法确定，请返回"未知来源"。
2. **客观内容评分**：请摆脱强烈的情感色彩，客观评判文章的深度、原创性、逻辑结构和实际价值。给出一个1到5星的评分（必须是"⭐"、"⭐⭐"、"⭐⭐⭐"、"⭐⭐⭐⭐"、"⭐⭐⭐⭐⭐"之一）。如果是口水文、拼凑内容或者价值不高的营销文，请不要吝啬给出低分。
3. **结构化核心要点**：不要写成一段冗长的文字。请用 3 到 4 个精炼的 Bullet Points（用小圆点"•"开头）提炼出文章最核心的要点、新颖观点或实用结论。

请必须严格按照以下 JSON 格式输出，不要输出任何其他多余的字符或解释（确保能够被 JSON 解析）：

{
  "source": "来源名称",
  "rating": "⭐⭐⭐",
  "summary": "• 核心要点一\n\n• 核心要点二\n\n• 核心要点三"
}

---
以下是文章信息：
标题：%s
URL: %s
正文内容（截取部分）：
%s`

// 文章分析截取正文前 5000 字符（控制 token 成本）
const analysisContentLimit = 5000

var articleCategories = map[string]bool{
	"AI": true, "产品": true, "技术": true, "生活": true, "管理": true, "其他": true,
}

// Classifier 消息与文章分类 Oracle 客户端。
// 所有方法都不向调用方抛错：未配置、不可达、输出越界一律落到文档化默认值。
type Classifier struct {
	client *Client
	logger *zap.Logger
}

// NewClassifier 创建分类客户端
func NewClassifier(client *Client, logger *zap.Logger) *Classifier {
	return &Classifier{client: client, logger: logger}
}

var _ service.MessageClassifier = (*Classifier)(nil)
var _ service.ArticleClassifier = (*Classifier)(nil)

// ClassifyMessage 对消息文本分类，任何异常情况返回 normal
func (c *Classifier) ClassifyMessage(ctx context.Context, content string) entity.Classification {
	result, err := c.client.Complete(ctx, c.client.TextModel(), fmt.Sprintf(classificationPrompt, content))
	if err != nil {
		if domainErrors.IsUnconfigured(err) {
			c.logger.Warn("Oracle 未配置，使用默认分类 normal")
		} else {
			c.logger.Error("消息分类失败", zap.Error(err))
		}
		return entity.ClassNormal
	}

	label := strings.ToLower(strings.TrimSpace(result))
	if entity.ValidClassification(label) {
		return entity.Classification(label)
	}
	c.logger.Warn("Oracle 返回了未知分类，使用默认 normal", zap.String("raw", result))
	return entity.ClassNormal
}

// ClassifyArticle 对文章标题/描述分类，任何异常情况返回兜底分类「其他」
func (c *Classifier) ClassifyArticle(ctx context.Context, title, description string) string {
	result, err := c.client.Complete(ctx, c.client.TextModel(), fmt.Sprintf(articleClassificationPrompt, title, description))
	if err != nil {
		if domainErrors.IsUnconfigured(err) {
			c.logger.Warn("Oracle 未配置，文章分类默认使用: 其他")
		} else {
			c.logger.Error("文章分类失败", zap.Error(err))
		}
		return entity.DefaultTaskType
	}

	// 兼容模型可能加上标点的情况
	category := strings.Trim(strings.TrimSpace(result), "。，,.")
	if articleCategories[category] {
		return category
	}
	c.logger.Warn("Oracle 返回了枚举外的文章分类，使用默认: 其他", zap.String("raw", result))
	return entity.DefaultTaskType
}

// AnalyzeArticle 分析网页正文：提取来源、评分、生成概要。
// 全部失败路径返回同一组默认值。
func (c *Classifier) AnalyzeArticle(ctx context.Context, title, url, content string) service.ArticleAnalysis {
	fallback := service.ArticleAnalysis{
		Source:  "未知来源",
		Rating:  "⭐⭐⭐",
		Summary: "未能成功获取文章摘要。",
	}

	if len(content) > analysisContentLimit {
		content = content[:analysisContentLimit]
	}

	result, err := c.client.Complete(ctx, c.client.TextModel(), fmt.Sprintf(articleAnalysisPrompt, title, url, content))
	if err != nil {
		if domainErrors.IsUnconfigured(err) {
			c.logger.Warn("Oracle 未配置，跳过文章内容深度分析")
		} else {
			c.logger.Error("文章分析失败", zap.Error(err))
		}
		return fallback
	}

	var parsed struct {
		Source  string `json:"source"`
		Rating  string `json:"rating"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(StripCodeFence(result)), &parsed); err != nil {
		c.logger.Error("文章分析返回的 JSON 格式错误", zap.String("raw", result), zap.Error(err))
		return fallback
	}

	analysis := service.ArticleAnalysis{Source: parsed.Source, Rating: parsed.Rating, Summary: parsed.Summary}
	if analysis.Source == "" {
		analysis.Source = fallback.Source
	}
	if analysis.Rating == "" {
		analysis.Rating = fallback.Rating
	}
	if analysis.Summary == "" {
		analysis.Summary = "暂无摘要"
	}
	return analysis
}
