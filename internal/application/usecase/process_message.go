package usecase

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/domain/entity"
	"github.com/ygai/gateway/internal/domain/repository"
	"github.com/ygai/gateway/internal/domain/service"
)

// 管线内部出错时的统一致歉回复
const errorReply = "抱歉，处理消息时出现错误，请稍后重试。"

// 空消息提示
const emptyReply = "请发送文本或图片消息"

// ProcessMessageUseCase 消息处理管线：归一化 → 链接处理 → 用户识别 →
// 消息落库 → 图片识别 → 分类 → 任务提取/落库 → 回复拼装。
// 任何内部异常都折算成致歉回复，绝不让单条消息拖垮接入端。
type ProcessMessageUseCase struct {
	normalizer    *service.Normalizer
	linkResolver  *service.LinkResolver
	composer      *service.ReplyComposer
	userRepo      repository.ChannelUserRepository
	msgRepo       repository.MessageRepository
	taskRepo      repository.TaskRepository
	classifier    service.MessageClassifier
	extractor     service.TaskExtractor
	recognizer    service.ImageRecognizer
	responder     service.ReplyGenerator
	imageResolver service.ImageResolver
	logger        *zap.Logger
}

// NewProcessMessageUseCase 创建消息处理管线
func NewProcessMessageUseCase(
	linkResolver *service.LinkResolver,
	userRepo repository.ChannelUserRepository,
	msgRepo repository.MessageRepository,
	taskRepo repository.TaskRepository,
	classifier service.MessageClassifier,
	extractor service.TaskExtractor,
	recognizer service.ImageRecognizer,
	responder service.ReplyGenerator,
	imageResolver service.ImageResolver,
	logger *zap.Logger,
) *ProcessMessageUseCase {
	return &ProcessMessageUseCase{
		normalizer:    service.NewNormalizer(),
		linkResolver:  linkResolver,
		composer:      service.NewReplyComposer(),
		userRepo:      userRepo,
		msgRepo:       msgRepo,
		taskRepo:      taskRepo,
		classifier:    classifier,
		extractor:     extractor,
		recognizer:    recognizer,
		responder:     responder,
		imageResolver: imageResolver,
		logger:        logger.With(zap.String("component", "process-message")),
	}
}

// Execute 处理一条入站消息，返回应答文本（空串表示不回复）
func (uc *ProcessMessageUseCase) Execute(ctx context.Context, platform entity.Platform, payload *service.IncomingPayload) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error("处理消息失败",
				zap.Any("panic", r),
				zap.Stack("stack"))
			reply = errorReply
		}
	}()

	n := uc.normalizer.Normalize(payload)
	if n.Empty() {
		return emptyReply
	}

	// 审计日志保留剥离 @ 提及前的原始文本
	uc.logger.Info("收到消息",
		zap.String("platform", string(platform)),
		zap.String("sender", n.SenderName),
		zap.String("text", n.RawText),
		zap.Int("images", len(n.Images)))

	// 1. 链接提取与知识库收录
	linkInfos := uc.linkResolver.Resolve(ctx, n.Text, n.SenderName)

	// 2. 识别/创建渠道用户
	user, err := uc.userRepo.GetOrCreate(ctx, platform, n.SenderID, n.SenderName)
	if err != nil {
		uc.logger.Error("渠道用户识别失败", zap.Error(err))
		return errorReply
	}

	// 3. 图片凭据换临时 URL，单张失败跳过
	imageURLs := uc.resolveImages(ctx, n.Images)

	// 4. 消息落库。纯图片消息存逗号连接的图片 URL
	content := n.Text
	if n.MessageType == entity.MessageTypeImage && len(imageURLs) > 0 {
		content = strings.Join(imageURLs, ",")
	}
	message := &entity.Message{
		ChannelUserID:     user.ID,
		Platform:          platform,
		Content:           content,
		MessageType:       n.MessageType,
		Direction:         entity.DirectionInbound,
		PlatformMessageID: n.MessageID,
	}
	if err := uc.msgRepo.Create(ctx, message); err != nil {
		uc.logger.Error("消息落库失败", zap.Error(err))
		return errorReply
	}

	// 5. 逐张识别图片内容
	descriptions := uc.recognizer.RecognizeImages(ctx, imageURLs)
	if len(descriptions) > 0 {
		uc.logger.Info("图片识别结果", zap.Strings("descriptions", descriptions))
	}

	// 6. AI 分类（识别文本拼入正文，让分类更准确）
	fullText := n.Text
	if len(descriptions) > 0 {
		joined := strings.Join(descriptions, "\n")
		if fullText != "" {
			fullText = fullText + "\n\n" + joined
		} else {
			fullText = joined
		}
	}

	// 正文与识别文本都为空时不再问 Oracle，直接按重要处理
	classification := entity.ClassImportant
	if fullText != "" {
		classification = uc.classifier.ClassifyMessage(ctx, fullText)
	}

	if err := uc.msgRepo.MarkProcessed(ctx, message.ID, classification); err != nil {
		uc.logger.Error("写入分类结果失败", zap.Uint("message_id", message.ID), zap.Error(err))
	}
	message.MarkProcessed(classification)
	uc.logger.Info("AI 分类结果", zap.String("classification", string(classification)))

	// 7. 按分类分流
	switch classification {
	case entity.ClassUrgent, entity.ClassImportant:
		reply = uc.handleActionable(ctx, n, message, classification, fullText, imageURLs)
		reply = uc.composer.AppendLinkSummary(reply, linkInfos)

	case entity.ClassNormal, entity.ClassIgnore:
		if len(linkInfos) > 0 {
			reply = uc.composer.LinkOnlyReply(linkInfos)
		} else if !n.IsGroup() && classification == entity.ClassNormal {
			// 单聊且无链接时才对普通消息做会话式回复
			reply = uc.responder.GenerateReply(ctx, n.RawText)
		}
	}

	if reply != "" {
		uc.recordOutbound(ctx, user.ID, platform, reply)
	}
	return reply
}

// handleActionable 提取任务并落库，返回任务清单回复
func (uc *ProcessMessageUseCase) handleActionable(
	ctx context.Context,
	n *entity.NormalizedMessage,
	message *entity.Message,
	classification entity.Classification,
	fullText string,
	imageURLs []string,
) string {
	drafts := uc.extractor.ExtractTasks(ctx, fullText, imageURLs, n.SenderName)

	tasks := make([]*entity.Task, 0, len(drafts))
	for _, draft := range drafts {
		priority := draft.Priority
		// 紧急消息里提取出的任务一律置为最高优先级
		if classification == entity.ClassUrgent {
			priority = entity.PriorityUrgent
		}

		task := &entity.Task{
			Title:           draft.Title,
			Description:     draft.Description,
			Priority:        priority,
			Status:          entity.StatusPending,
			Source:          message.Platform,
			SourceMessageID: strconv.FormatUint(uint64(message.ID), 10),
			DueDate:         draft.DueDate,
			TaskType:        draft.TaskType,
		}
		if err := uc.taskRepo.Create(ctx, task); err != nil {
			uc.logger.Error("任务落库失败", zap.String("title", task.Title), zap.Error(err))
			continue
		}
		tasks = append(tasks, task)
	}

	return uc.composer.TaskReply(tasks, n.SenderName)
}

func (uc *ProcessMessageUseCase) resolveImages(ctx context.Context, codes []string) []string {
	if len(codes) == 0 || uc.imageResolver == nil {
		return nil
	}
	urls := make([]string, 0, len(codes))
	for _, code := range codes {
		url, err := uc.imageResolver.ResolveImageURL(ctx, code)
		if err != nil {
			uc.logger.Warn("图片凭据换取下载链接失败", zap.Error(err))
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

func (uc *ProcessMessageUseCase) recordOutbound(ctx context.Context, userID uint, platform entity.Platform, reply string) {
	out := &entity.Message{
		ChannelUserID: userID,
		Platform:      platform,
		Content:       reply,
		MessageType:   entity.MessageTypeText,
		Direction:     entity.DirectionOutbound,
	}
	if err := uc.msgRepo.Create(ctx, out); err != nil {
		uc.logger.Error("出站消息落库失败", zap.Error(err))
	}
}
