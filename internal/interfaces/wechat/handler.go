package wechat

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/domain/entity"
	"github.com/ygai/gateway/internal/domain/repository"
	"github.com/ygai/gateway/internal/domain/service"
)

// Handler 企业微信回调处理器。
// 微信渠道只做轻管线：记消息、提链接入知识库，不走任务提取。
type Handler struct {
	crypt        *MsgCrypt
	corpID       string
	linkResolver *service.LinkResolver
	userRepo     repository.ChannelUserRepository
	msgRepo      repository.MessageRepository
	logger       *zap.Logger
}

// NewHandler 创建微信回调处理器
func NewHandler(
	crypt *MsgCrypt,
	corpID string,
	linkResolver *service.LinkResolver,
	userRepo repository.ChannelUserRepository,
	msgRepo repository.MessageRepository,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		crypt:        crypt,
		corpID:       corpID,
		linkResolver: linkResolver,
		userRepo:     userRepo,
		msgRepo:      msgRepo,
		logger:       logger.With(zap.String("component", "wechat")),
	}
}

// inboundXML 回调消息明文（字段子集）
type inboundXML struct {
	MsgType      string `xml:"MsgType"`
	FromUserName string `xml:"FromUserName"`
	Content      string `xml:"Content"`
}

// Verify 回调地址校验（GET）
func (h *Handler) Verify(c *gin.Context) {
	echoStr := c.Query("echostr")
	if echoStr == "" {
		c.String(http.StatusBadRequest, "Missing echostr")
		return
	}

	plain, err := h.crypt.VerifyURL(c.Query("msg_signature"), c.Query("timestamp"), c.Query("nonce"), echoStr)
	if err != nil {
		h.logger.Error("回调地址校验失败", zap.Error(err))
		c.String(http.StatusBadRequest, "Verification failed")
		return
	}
	c.String(http.StatusOK, plain)
}

// Receive 接收回调消息（POST）
func (h *Handler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "read body failed")
		return
	}

	timestamp := c.Query("timestamp")
	nonce := c.Query("nonce")

	plainXML, err := h.crypt.DecryptMsg(body, c.Query("msg_signature"), timestamp, nonce)
	if err != nil {
		h.logger.Error("回调消息解密失败", zap.Error(err))
		c.String(http.StatusBadRequest, "Decryption failed")
		return
	}

	var msg inboundXML
	if err := xml.Unmarshal([]byte(plainXML), &msg); err != nil {
		h.logger.Error("回调消息解析失败", zap.Error(err))
		c.String(http.StatusOK, "success")
		return
	}

	reply := h.handleMessage(c, &msg)

	replyXML := fmt.Sprintf(
		"<xml><ToUserName><![CDATA[%s]]></ToUserName><FromUserName><![CDATA[%s]]></FromUserName><CreateTime>%s</CreateTime><MsgType><![CDATA[text]]></MsgType><Content><![CDATA[%s]]></Content></xml>",
		msg.FromUserName, h.corpID, timestamp, reply)
	encrypted, err := h.crypt.EncryptMsg(replyXML, timestamp, nonce)
	if err != nil {
		h.logger.Error("应答加密失败", zap.Error(err))
		c.String(http.StatusOK, "success")
		return
	}
	c.String(http.StatusOK, encrypted)
}

func (h *Handler) handleMessage(c *gin.Context, msg *inboundXML) string {
	ctx := c.Request.Context()

	user, err := h.userRepo.GetOrCreate(ctx, entity.PlatformWeChat, msg.FromUserName, msg.FromUserName)
	if err != nil {
		h.logger.Error("渠道用户识别失败", zap.Error(err))
		return "处理消息时出现错误，请稍后重试。"
	}

	content := msg.Content
	if msg.MsgType != "text" {
		content = "Non-text message"
	}
	record := &entity.Message{
		ChannelUserID: user.ID,
		Platform:      entity.PlatformWeChat,
		Content:       content,
		MessageType:   entity.MessageType(msg.MsgType),
		Direction:     entity.DirectionInbound,
	}
	if err := h.msgRepo.Create(ctx, record); err != nil {
		h.logger.Error("消息落库失败", zap.Error(err))
	}

	if msg.MsgType != "text" {
		return "收到不支持的消息类型。"
	}

	urls := service.ExtractURLs(msg.Content)
	if len(urls) == 0 {
		return "未发现任何链接，仅记录消息。"
	}

	h.linkResolver.Resolve(ctx, msg.Content, msg.FromUserName)
	if record.ID != 0 {
		if err := h.msgRepo.MarkProcessed(ctx, record.ID, entity.ClassNormal); err != nil {
			h.logger.Warn("写入处理标记失败", zap.Uint("message_id", record.ID), zap.Error(err))
		}
	}
	return fmt.Sprintf("成功提取并保存了 %d 个链接到 Notion 知识库！", len(urls))
}
