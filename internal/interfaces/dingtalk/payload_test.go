package dingtalk

import "testing"

func TestParseChatbotMessage_Text(t *testing.T) {
	data := `{
		"msgtype": "text",
		"text": {"content": "@robot 帮我记个任务"},
		"senderStaffId": "staff-1",
		"senderNick": "张三",
		"msgId": "msg-1",
		"conversationType": "2",
		"sessionWebhook": "https://oapi.dingtalk.com/robot/sendBySession?session=x",
		"atUsers": [{"dingtalkId": "robot-id"}]
	}`
	msg, err := parseChatbotMessage(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	p := msg.toPayload()
	if p.MsgType != "text" || p.Text != "@robot 帮我记个任务" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if p.SenderID != "staff-1" || p.SenderNick != "张三" || p.MessageID != "msg-1" {
		t.Fatalf("sender fields lost: %+v", p)
	}
	if p.ConversationType != "2" {
		t.Fatalf("unexpected conversation type: %q", p.ConversationType)
	}
	if len(p.AtUserIDs) != 1 || p.AtUserIDs[0] != "robot-id" {
		t.Fatalf("unexpected at users: %v", p.AtUserIDs)
	}
	if p.ReplyTarget == "" {
		t.Fatal("session webhook should carry over as reply target")
	}
}

func TestParseChatbotMessage_RichText(t *testing.T) {
	data := `{
		"msgtype": "richText",
		"content": {
			"richText": [
				{"text": "看下这个"},
				{"downloadCode": "dl-1"}
			]
		},
		"senderStaffId": "staff-1"
	}`
	msg, err := parseChatbotMessage(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	p := msg.toPayload()
	if len(p.RichText) != 2 {
		t.Fatalf("unexpected rich text: %+v", p.RichText)
	}
	if p.RichText[0].Text != "看下这个" || p.RichText[1].DownloadCode != "dl-1" {
		t.Fatalf("rich text segments lost: %+v", p.RichText)
	}
}

func TestParseChatbotMessage_Picture(t *testing.T) {
	data := `{
		"msgtype": "picture",
		"content": {"downloadCode": "dl-2"},
		"senderStaffId": "staff-1"
	}`
	msg, err := parseChatbotMessage(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p := msg.toPayload(); p.DownloadCode != "dl-2" {
		t.Fatalf("unexpected download code: %q", p.DownloadCode)
	}
}

func TestParseChatbotMessage_Invalid(t *testing.T) {
	if _, err := parseChatbotMessage("{broken"); err == nil {
		t.Fatal("expected error")
	}
}
