package service

import (
	"fmt"
	"strings"

	"github.com/ygai/gateway/internal/domain/entity"
)

// ReplyComposer 按分类结果拼装回复文本。
// 格式与各分支的取舍：
//   - urgent/important：任务清单（或「未识别到任务」提示），链接结果追加在后；
//   - normal/ignore：有链接结果时只报告链接；无链接时仅单聊 normal 走自由回复；
//   - 其余情况不回复（返回空串）。
type ReplyComposer struct{}

// NewReplyComposer 创建回复拼装器
func NewReplyComposer() *ReplyComposer {
	return &ReplyComposer{}
}

// TaskReply 拼装任务处理结果段落
func (c *ReplyComposer) TaskReply(tasks []*entity.Task, senderName string) string {
	if len(tasks) == 0 {
		return "✅ 已收到消息，但未识别到需要您处理的具体任务。"
	}

	lines := []string{fmt.Sprintf("✅ 已为您记录 %d 个任务:", len(tasks))}
	for i, task := range tasks {
		line := fmt.Sprintf("%d. %s (执行人: %s)", i+1, task.Title, senderName)
		if task.DueDate != nil {
			line += fmt.Sprintf(" [截止: %s]", task.DueDate.Format("2006-01-02 15:04"))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// AppendLinkSummary 在任务回复后追加链接处理结果
func (c *ReplyComposer) AppendLinkSummary(reply string, infos []entity.LinkInfo) string {
	if len(infos) == 0 {
		return reply
	}

	newCount, existCount := countLinks(infos)
	switch {
	case newCount > 0 && existCount > 0:
		reply += fmt.Sprintf("\n\n🔗 链接处理完毕（%d 个新保存，%d 个已存在）：", newCount, existCount)
	case newCount > 0:
		reply += fmt.Sprintf("\n\n🔗 同时已将 %d 个链接保存到知识库：", newCount)
	default:
		reply += "\n\n🔗 知识库中已存在该链接："
	}

	for _, info := range infos {
		reply += fmt.Sprintf("\n\n- [%s] %s (%s)\n\n   评分：%s\n\n   概要：\n\n%s",
			info.Category, info.Title, statusMark(info), info.Rating, info.Summary)
	}
	return reply
}

// LinkOnlyReply 拼装纯链接回复（normal/ignore 分支）
func (c *ReplyComposer) LinkOnlyReply(infos []entity.LinkInfo) string {
	if len(infos) == 0 {
		return ""
	}

	newCount, existCount := countLinks(infos)
	var reply string
	switch {
	case newCount > 0 && existCount > 0:
		reply = fmt.Sprintf("✅ 链接处理完毕（%d 个新保存，%d 个已存在）：", newCount, existCount)
	case newCount > 0:
		reply = fmt.Sprintf("✅ 已将 %d 个新链接保存到知识库：", newCount)
	default:
		reply = "💡 知识库中已存在该链接："
	}

	for _, info := range infos {
		reply += fmt.Sprintf("\n\n [%s] %s (%s)\n\n   评分：%s\n\n   概要：\n\n%s",
			info.Category, info.Title, statusMark(info), info.Rating, info.Summary)
	}
	return reply
}

func countLinks(infos []entity.LinkInfo) (newCount, existCount int) {
	for _, info := range infos {
		if info.Existing {
			existCount++
		} else {
			newCount++
		}
	}
	return
}

func statusMark(info entity.LinkInfo) string {
	if info.Existing {
		return "🔄 已收录"
	}
	return "🌟"
}
