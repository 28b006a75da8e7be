package service

import (
	"encoding/json"
	"strings"

	"github.com/ygai/gateway/internal/domain/entity"
)

// IncomingPayload 钉钉机器人回调的原始载荷（已反序列化的字段子集）。
// 接口层负责 JSON 绑定，本服务只做形状归一。
type IncomingPayload struct {
	MsgType          string
	Text             string           // msgtype=text 时的正文
	RichText         []RichTextItem   // msgtype=richText 时的分段内容
	ChatRecord       string           // msgtype=chatRecord 时的嵌套 JSON 串
	Summary          string           // chatRecord 解析失败时的降级摘要
	DownloadCode     string           // msgtype=picture 时的图片凭据
	SenderID         string
	SenderNick       string
	MessageID        string
	ConversationType string // 钉钉取值：1=单聊 2=群聊
	AtUserIDs        []string
	ReplyTarget      string
}

// RichTextItem 富文本消息的一个分段：文本段或图片段
type RichTextItem struct {
	Text         string `json:"text"`
	DownloadCode string `json:"downloadCode"`
}

// 转发聊天记录的嵌套结构
type chatRecordItem struct {
	MsgType  string               `json:"msgType"`
	Content  string               `json:"content"`
	RichText []chatRecordRichItem `json:"richText"`
}

type chatRecordRichItem struct {
	MsgType      string `json:"msgType"`
	Content      string `json:"content"`
	DownloadCode string `json:"downloadCode"`
}

// Normalizer 把平台原生载荷归一成平台无关消息。
// 形状规则：richText 拼接文本段、收集图片段；chatRecord 解析嵌套记录，
// 坏 JSON 降级为 summary；picture 用固定替代文本；其余按纯文本处理。
type Normalizer struct{}

// NewNormalizer 创建消息归一器
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize 归一化一条入站消息
func (n *Normalizer) Normalize(p *IncomingPayload) *entity.NormalizedMessage {
	var (
		text    string
		images  []string
		msgType = entity.MessageTypeText
	)

	switch p.MsgType {
	case "richText":
		var parts []string
		for _, item := range p.RichText {
			if item.Text != "" {
				parts = append(parts, item.Text)
			} else if item.DownloadCode != "" {
				images = append(images, item.DownloadCode)
			}
		}
		text = strings.Join(parts, "")

	case "chatRecord":
		var records []chatRecordItem
		if err := json.Unmarshal([]byte(p.ChatRecord), &records); err != nil {
			text = p.Summary
			break
		}
		var lines []string
		for _, record := range records {
			switch record.MsgType {
			case "text":
				lines = append(lines, record.Content)
			case "richText":
				for _, item := range record.RichText {
					switch item.MsgType {
					case "text":
						lines = append(lines, item.Content)
					case "picture":
						if item.DownloadCode != "" {
							images = append(images, item.DownloadCode)
						}
					}
				}
			}
		}
		text = strings.Join(lines, "\n")

	case "picture":
		if p.DownloadCode != "" {
			images = append(images, p.DownloadCode)
		}
		// 给下游提取补一个默认语义提示
		text = entity.ImagePromptText
		msgType = entity.MessageTypeImage

	default:
		text = p.Text
	}

	rawText := strings.TrimSpace(text)

	conversation := entity.ConversationDirect
	if p.ConversationType == "2" {
		conversation = entity.ConversationGroup
	}

	// 群聊中 @机器人 的标记会混在正文里，逐个剥掉
	clean := rawText
	if conversation == entity.ConversationGroup {
		for _, atID := range p.AtUserIDs {
			clean = strings.TrimSpace(strings.ReplaceAll(clean, "@"+atID, ""))
		}
	}

	return &entity.NormalizedMessage{
		Text:         clean,
		RawText:      rawText,
		Images:       images,
		SenderID:     p.SenderID,
		SenderName:   p.SenderNick,
		Conversation: conversation,
		RawKind:      p.MsgType,
		MessageID:    p.MessageID,
		MessageType:  msgType,
		ReplyTarget:  p.ReplyTarget,
	}
}
