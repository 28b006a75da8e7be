package telegram

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/application/usecase"
	"github.com/ygai/gateway/internal/domain/entity"
	"github.com/ygai/gateway/internal/domain/service"
	"github.com/ygai/gateway/pkg/safego"
)

// Config Telegram 适配器配置
type Config struct {
	BotToken string
	Debug    bool
}

// Adapter Telegram 渠道适配器：long polling 收消息，
// 文本与图片（带说明文字）走同一条处理管线。
type Adapter struct {
	bot       *tgbotapi.BotAPI
	config    *Config
	processor *usecase.ProcessMessageUseCase
	logger    *zap.Logger
}

// NewAdapter 创建 Telegram 适配器。处理管线依赖 bot 实例（文件直链解析），
// 由调用方在装配完成后通过 SetProcessor 注入。
func NewAdapter(config *Config, logger *zap.Logger) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = config.Debug

	logger.Info("Telegram bot authorized",
		zap.String("username", bot.Self.UserName))

	return &Adapter{
		bot:    bot,
		config: config,
		logger: logger.With(zap.String("component", "telegram")),
	}, nil
}

// SetProcessor 注入消息处理管线
func (a *Adapter) SetProcessor(processor *usecase.ProcessMessageUseCase) {
	a.processor = processor
}

// FileResolver 把 Telegram 的 FileID 换成可抓取的文件直链
type FileResolver struct {
	bot *tgbotapi.BotAPI
}

// NewFileResolver 创建文件直链解析器
func NewFileResolver(bot *tgbotapi.BotAPI) *FileResolver {
	return &FileResolver{bot: bot}
}

var _ service.ImageResolver = (*FileResolver)(nil)

// ResolveImageURL 用 getFile 接口换取临时直链
func (r *FileResolver) ResolveImageURL(_ context.Context, fileID string) (string, error) {
	return r.bot.GetFileDirectURL(fileID)
}

// Bot 返回底层 bot 客户端，供 app 装配 FileResolver
func (a *Adapter) Bot() *tgbotapi.BotAPI { return a.bot }

// Run 持续 polling 直到 ctx 取消
func (a *Adapter) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			msg := update.Message
			safego.Go(a.logger, "telegram-message", func() {
				a.handleMessage(ctx, msg)
			})
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	payload := a.toPayload(msg)
	reply := a.processor.Execute(ctx, entity.PlatformTelegram, payload)
	if reply == "" {
		return
	}
	a.send(msg.Chat.ID, msg.MessageID, reply)
}

// toPayload 把 Telegram 消息映射成平台无关载荷。
// 图片取最大分辨率那一档的 FileID，说明文字并入正文。
func (a *Adapter) toPayload(msg *tgbotapi.Message) *service.IncomingPayload {
	senderID := ""
	senderName := ""
	if msg.From != nil {
		senderID = itoa64(msg.From.ID)
		senderName = msg.From.FirstName
		if msg.From.UserName != "" {
			senderName = msg.From.UserName
		}
	}

	conversationType := "1"
	if msg.Chat != nil && (msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()) {
		conversationType = "2"
	}

	payload := &service.IncomingPayload{
		MsgType:          "text",
		Text:             msg.Text,
		SenderID:         senderID,
		SenderNick:       senderName,
		MessageID:        itoa(msg.MessageID),
		ConversationType: conversationType,
	}

	if len(msg.Photo) > 0 {
		largest := msg.Photo[len(msg.Photo)-1]
		if msg.Caption != "" {
			// 带文字的图片按富文本处理，文字段与图片段并存
			payload.MsgType = "richText"
			payload.RichText = []service.RichTextItem{
				{Text: msg.Caption},
				{DownloadCode: largest.FileID},
			}
		} else {
			payload.MsgType = "picture"
			payload.DownloadCode = largest.FileID
		}
	}
	return payload
}

func itoa(n int) string     { return strconv.Itoa(n) }
func itoa64(n int64) string { return strconv.FormatInt(n, 10) }

// send 优先发 HTML 富文本，标签不合法时退回纯文本
func (a *Adapter) send(chatID int64, replyTo int, text string) {
	out := tgbotapi.NewMessage(chatID, MarkdownToHTML(text))
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyToMessageID = replyTo

	if _, err := a.bot.Send(out); err != nil {
		a.logger.Warn("HTML 回复失败，退回纯文本", zap.Error(err))
		plain := tgbotapi.NewMessage(chatID, text)
		plain.ReplyToMessageID = replyTo
		if _, err := a.bot.Send(plain); err != nil {
			a.logger.Error("回复消息失败", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
}
