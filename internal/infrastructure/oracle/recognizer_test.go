package oracle

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// 从多模态请求里取出第一张图片的 URL
func firstImageURL(req *chatRequest) string {
	parts, ok := req.Messages[0].Content.([]interface{})
	if !ok {
		return ""
	}
	for _, p := range parts {
		m, ok := p.(map[string]interface{})
		if !ok || m["type"] != "image_url" {
			continue
		}
		if iu, ok := m["image_url"].(map[string]interface{}); ok {
			if u, ok := iu["url"].(string); ok {
				return u
			}
		}
	}
	return ""
}

func TestRecognizer_PerImageResults(t *testing.T) {
	client := newFakeOracle(t, func(req *chatRequest) (string, bool) {
		switch firstImageURL(req) {
		case "https://img/1":
			return "会议白板照片", true
		case "https://img/2":
			return "", true // 模型返回空
		case "https://img/3":
			return "", false // 服务端 500
		}
		return "", false
	})
	r := NewRecognizer(client, zap.NewNop())

	got := r.RecognizeImages(context.Background(), []string{"https://img/1", "https://img/2", "https://img/3"})

	if len(got) != 3 {
		t.Fatalf("output must match input length, got %d", len(got))
	}
	if got[0] != "图1: 会议白板照片" {
		t.Fatalf("unexpected first result: %q", got[0])
	}
	if got[1] != "图2: (识别失败)" {
		t.Fatalf("empty model output should yield failure placeholder: %q", got[1])
	}
	if got[2] != "图3: (识别异常)" {
		t.Fatalf("transport error should yield error placeholder: %q", got[2])
	}
}

func TestRecognizer_Unconfigured(t *testing.T) {
	r := NewRecognizer(newUnconfiguredOracle(), zap.NewNop())

	got := r.RecognizeImages(context.Background(), []string{"https://img/1"})
	if len(got) != 1 || !strings.Contains(got[0], "(识别失败)") {
		t.Fatalf("unexpected results: %v", got)
	}
}

func TestRecognizer_NoImages(t *testing.T) {
	r := NewRecognizer(newUnconfiguredOracle(), zap.NewNop())
	if got := r.RecognizeImages(context.Background(), nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestResponder_Fallbacks(t *testing.T) {
	// 未配置 → 固定致谢语
	if got := NewResponder(newUnconfiguredOracle(), zap.NewNop()).GenerateReply(context.Background(), "你好"); got != "收到，我会尽快处理。" {
		t.Fatalf("unexpected reply: %q", got)
	}

	// 模型返回空 → 固定致谢语
	empty := newFakeOracle(t, func(*chatRequest) (string, bool) { return "", true })
	if got := NewResponder(empty, zap.NewNop()).GenerateReply(context.Background(), "你好"); got != "收到，我会尽快处理。" {
		t.Fatalf("unexpected reply: %q", got)
	}

	// 正常输出透传
	ok := newFakeOracle(t, func(*chatRequest) (string, bool) { return "你好，有什么可以帮你？", true })
	if got := NewResponder(ok, zap.NewNop()).GenerateReply(context.Background(), "你好"); got != "你好，有什么可以帮你？" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestSummarizer_EmptyOnFailure(t *testing.T) {
	if got := NewSummarizer(newUnconfiguredOracle(), zap.NewNop()).Summarize(context.Background(), "p"); got != "" {
		t.Fatalf("unconfigured summarizer should return empty, got %q", got)
	}

	failing := newFakeOracle(t, func(*chatRequest) (string, bool) { return "", false })
	if got := NewSummarizer(failing, zap.NewNop()).Summarize(context.Background(), "p"); got != "" {
		t.Fatalf("server error should return empty, got %q", got)
	}

	ok := newFakeOracle(t, func(req *chatRequest) (string, bool) {
		if req.Model != "strong-model" {
			t.Errorf("summaries should use strong model, got %s", req.Model)
		}
		return "本周总结", true
	})
	if got := NewSummarizer(ok, zap.NewNop()).Summarize(context.Background(), "p"); got != "本周总结" {
		t.Fatalf("unexpected summary: %q", got)
	}
}
