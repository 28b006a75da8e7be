package service

import (
	"testing"

	"github.com/ygai/gateway/internal/domain/entity"
)

func TestNormalize_PlainText(t *testing.T) {
	n := NewNormalizer().Normalize(&IncomingPayload{
		MsgType:          "text",
		Text:             "  明天上线前检查数据库索引  ",
		SenderID:         "u1",
		SenderNick:       "张三",
		MessageID:        "m1",
		ConversationType: "1",
	})

	if n.Text != "明天上线前检查数据库索引" {
		t.Fatalf("unexpected text: %q", n.Text)
	}
	if n.MessageType != entity.MessageTypeText {
		t.Fatalf("expected text message type, got %s", n.MessageType)
	}
	if n.IsGroup() {
		t.Fatal("conversationType 1 should be direct")
	}
	if n.Empty() {
		t.Fatal("should not be empty")
	}
}

func TestNormalize_RichTextCollectsTextAndImages(t *testing.T) {
	n := NewNormalizer().Normalize(&IncomingPayload{
		MsgType: "richText",
		RichText: []RichTextItem{
			{Text: "看下这个报错"},
			{DownloadCode: "code-1"},
			{Text: "，尽快修"},
			{DownloadCode: "code-2"},
		},
	})

	if n.Text != "看下这个报错，尽快修" {
		t.Fatalf("unexpected text: %q", n.Text)
	}
	if len(n.Images) != 2 || n.Images[0] != "code-1" || n.Images[1] != "code-2" {
		t.Fatalf("unexpected images: %v", n.Images)
	}
	if n.MessageType != entity.MessageTypeText {
		t.Fatal("richText with text should stay text type")
	}
}

func TestNormalize_ChatRecord(t *testing.T) {
	record := `[
		{"msgType":"text","content":"第一条"},
		{"msgType":"richText","richText":[
			{"msgType":"text","content":"第二条"},
			{"msgType":"picture","downloadCode":"pic-1"}
		]}
	]`
	n := NewNormalizer().Normalize(&IncomingPayload{
		MsgType:    "chatRecord",
		ChatRecord: record,
	})

	if n.Text != "第一条\n第二条" {
		t.Fatalf("unexpected text: %q", n.Text)
	}
	if len(n.Images) != 1 || n.Images[0] != "pic-1" {
		t.Fatalf("unexpected images: %v", n.Images)
	}
}

func TestNormalize_ChatRecordBadJSONFallsBackToSummary(t *testing.T) {
	n := NewNormalizer().Normalize(&IncomingPayload{
		MsgType:    "chatRecord",
		ChatRecord: "{not json",
		Summary:    "[聊天记录]",
	})

	if n.Text != "[聊天记录]" {
		t.Fatalf("expected summary fallback, got %q", n.Text)
	}
	if len(n.Images) != 0 {
		t.Fatalf("bad chatRecord should yield no images, got %v", n.Images)
	}
}

func TestNormalize_PictureUsesPromptText(t *testing.T) {
	n := NewNormalizer().Normalize(&IncomingPayload{
		MsgType:      "picture",
		DownloadCode: "dl-1",
	})

	if n.Text != entity.ImagePromptText {
		t.Fatalf("unexpected text: %q", n.Text)
	}
	if n.MessageType != entity.MessageTypeImage {
		t.Fatal("pure picture should be image type")
	}
	if len(n.Images) != 1 || n.Images[0] != "dl-1" {
		t.Fatalf("unexpected images: %v", n.Images)
	}
}

func TestNormalize_GroupStripsAtMentions(t *testing.T) {
	n := NewNormalizer().Normalize(&IncomingPayload{
		MsgType:          "text",
		Text:             "@robot-id 帮我记个任务",
		ConversationType: "2",
		AtUserIDs:        []string{"robot-id"},
	})

	if n.Text != "帮我记个任务" {
		t.Fatalf("expected mention stripped, got %q", n.Text)
	}
	if n.RawText != "@robot-id 帮我记个任务" {
		t.Fatalf("raw text should keep mention, got %q", n.RawText)
	}
	if !n.IsGroup() {
		t.Fatal("conversationType 2 should be group")
	}
}

func TestNormalize_DirectKeepsAtText(t *testing.T) {
	// 单聊不剥 @：正文里的 @ 可能是用户自己写的
	n := NewNormalizer().Normalize(&IncomingPayload{
		MsgType:          "text",
		Text:             "@robot-id 你好",
		ConversationType: "1",
		AtUserIDs:        []string{"robot-id"},
	})
	if n.Text != "@robot-id 你好" {
		t.Fatalf("direct chat should keep text as-is, got %q", n.Text)
	}
}

func TestNormalize_EmptyMessage(t *testing.T) {
	n := NewNormalizer().Normalize(&IncomingPayload{MsgType: "text", Text: "   "})
	if !n.Empty() {
		t.Fatal("whitespace-only text with no images should be empty")
	}
}
