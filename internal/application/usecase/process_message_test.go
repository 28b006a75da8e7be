package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ygai/gateway/internal/domain/entity"
	"github.com/ygai/gateway/internal/domain/service"
)

// --- 手写桩实现 ---

type stubUserRepo struct {
	err error
}

func (s *stubUserRepo) GetOrCreate(_ context.Context, platform entity.Platform, platformUserID, name string) (*entity.ChannelUser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &entity.ChannelUser{ID: 7, Platform: platform, PlatformUserID: platformUserID, Name: name}, nil
}

func (s *stubUserRepo) FindByID(context.Context, uint) (*entity.ChannelUser, error) {
	return nil, errors.New("not implemented")
}

type stubMsgRepo struct {
	nextID    uint
	created   []*entity.Message
	processed map[uint]entity.Classification
}

func newStubMsgRepo() *stubMsgRepo {
	return &stubMsgRepo{nextID: 100, processed: map[uint]entity.Classification{}}
}

func (s *stubMsgRepo) Create(_ context.Context, m *entity.Message) error {
	s.nextID++
	m.ID = s.nextID
	s.created = append(s.created, m)
	return nil
}

func (s *stubMsgRepo) FindByID(context.Context, uint) (*entity.Message, error) {
	return nil, errors.New("not implemented")
}

func (s *stubMsgRepo) MarkProcessed(_ context.Context, id uint, c entity.Classification) error {
	s.processed[id] = c
	return nil
}

func (s *stubMsgRepo) ListByUser(context.Context, uint, int, int) ([]*entity.Message, error) {
	return nil, nil
}

// inbound 返回入站消息（出站的回执记录不算）
func (s *stubMsgRepo) inbound() []*entity.Message {
	var out []*entity.Message
	for _, m := range s.created {
		if m.Direction == entity.DirectionInbound {
			out = append(out, m)
		}
	}
	return out
}

func (s *stubMsgRepo) outbound() []*entity.Message {
	var out []*entity.Message
	for _, m := range s.created {
		if m.Direction == entity.DirectionOutbound {
			out = append(out, m)
		}
	}
	return out
}

type stubTaskRepo struct {
	nextID  uint
	created []*entity.Task
}

func (s *stubTaskRepo) Create(_ context.Context, task *entity.Task) error {
	s.nextID++
	task.ID = s.nextID
	s.created = append(s.created, task)
	return nil
}

func (s *stubTaskRepo) FindByID(context.Context, uint) (*entity.Task, error) {
	return nil, errors.New("not implemented")
}
func (s *stubTaskRepo) Update(context.Context, *entity.Task) error          { return nil }
func (s *stubTaskRepo) SetNotionPageID(context.Context, uint, string) error { return nil }
func (s *stubTaskRepo) ListPending(context.Context, int) ([]*entity.Task, error) {
	return nil, nil
}

type stubClassifier struct {
	result entity.Classification
	inputs []string
}

func (s *stubClassifier) ClassifyMessage(_ context.Context, content string) entity.Classification {
	s.inputs = append(s.inputs, content)
	return s.result
}

type stubExtractor struct {
	drafts []entity.TaskDraft
	inputs []string
}

func (s *stubExtractor) ExtractTasks(_ context.Context, content string, _ []string, _ string) []entity.TaskDraft {
	s.inputs = append(s.inputs, content)
	return s.drafts
}

type stubRecognizer struct {
	results []string
}

func (s *stubRecognizer) RecognizeImages(_ context.Context, imageURLs []string) []string {
	if len(imageURLs) == 0 {
		return nil
	}
	return s.results
}

type stubResponder struct {
	reply string
	calls int
}

func (s *stubResponder) GenerateReply(_ context.Context, _ string) string {
	s.calls++
	return s.reply
}

type stubImageResolver struct{}

func (stubImageResolver) ResolveImageURL(_ context.Context, token string) (string, error) {
	return "https://img.example.com/" + token, nil
}

// 无链接场景下的空知识库/抓取器/文章 Oracle
type noopKnowledge struct{}

func (noopKnowledge) FindLink(context.Context, string) (*entity.LinkRecord, error) { return nil, nil }
func (noopKnowledge) SaveLink(context.Context, *entity.LinkRecord) error           { return nil }

type noopFetcher struct{}

func (noopFetcher) Fetch(_ context.Context, url string) (*service.PageMeta, error) {
	return &service.PageMeta{Title: url}, nil
}

type noopArticleOracle struct{}

func (noopArticleOracle) ClassifyArticle(context.Context, string, string) string { return "其他" }
func (noopArticleOracle) AnalyzeArticle(context.Context, string, string, string) service.ArticleAnalysis {
	return service.ArticleAnalysis{Source: "未知来源", Rating: "⭐⭐⭐", Summary: "未能成功获取文章摘要。"}
}

type testPipeline struct {
	uc         *ProcessMessageUseCase
	msgRepo    *stubMsgRepo
	taskRepo   *stubTaskRepo
	classifier *stubClassifier
	extractor  *stubExtractor
	recognizer *stubRecognizer
	responder  *stubResponder
}

func newTestPipeline(classification entity.Classification) *testPipeline {
	p := &testPipeline{
		msgRepo:    newStubMsgRepo(),
		taskRepo:   &stubTaskRepo{},
		classifier: &stubClassifier{result: classification},
		extractor:  &stubExtractor{},
		recognizer: &stubRecognizer{},
		responder:  &stubResponder{reply: "收到，我会尽快处理。"},
	}
	resolver := service.NewLinkResolver(noopKnowledge{}, noopFetcher{}, noopArticleOracle{}, zap.NewNop())
	p.uc = NewProcessMessageUseCase(
		resolver,
		&stubUserRepo{},
		p.msgRepo,
		p.taskRepo,
		p.classifier,
		p.extractor,
		p.recognizer,
		p.responder,
		stubImageResolver{},
		zap.NewNop(),
	)
	return p
}

func textPayload(text string) *service.IncomingPayload {
	return &service.IncomingPayload{
		MsgType:          "text",
		Text:             text,
		SenderID:         "u1",
		SenderNick:       "张三",
		MessageID:        "m1",
		ConversationType: "1",
	}
}

func TestProcessMessage_ImportantCreatesTasks(t *testing.T) {
	p := newTestPipeline(entity.ClassImportant)
	p.extractor.drafts = []entity.TaskDraft{
		{Title: "检查索引", Priority: entity.PriorityImportant, TaskType: "工作"},
	}

	reply := p.uc.Execute(context.Background(), entity.PlatformDingTalk, textPayload("明天上线前检查数据库索引"))

	if !strings.Contains(reply, "✅ 已为您记录 1 个任务:") {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if len(p.taskRepo.created) != 1 {
		t.Fatalf("expected 1 task, got %d", len(p.taskRepo.created))
	}
	task := p.taskRepo.created[0]
	if task.Priority != entity.PriorityImportant {
		t.Fatalf("important must keep extracted priority, got %d", task.Priority)
	}
	if task.Status != entity.StatusPending {
		t.Fatalf("new task must be pending, got %s", task.Status)
	}
	if task.Source != entity.PlatformDingTalk {
		t.Fatalf("unexpected source: %s", task.Source)
	}
	inbound := p.msgRepo.inbound()
	if len(inbound) != 1 {
		t.Fatalf("expected 1 inbound message, got %d", len(inbound))
	}
	if task.SourceMessageID != "101" {
		t.Fatalf("source message id should reference stored message, got %q", task.SourceMessageID)
	}
	if p.msgRepo.processed[inbound[0].ID] != entity.ClassImportant {
		t.Fatal("classification should be persisted on the message")
	}
	if len(p.msgRepo.outbound()) != 1 {
		t.Fatal("reply should be recorded as outbound message")
	}
}

func TestProcessMessage_UrgentOverridesPriority(t *testing.T) {
	p := newTestPipeline(entity.ClassUrgent)
	p.extractor.drafts = []entity.TaskDraft{
		{Title: "处理故障", Priority: entity.PriorityLow},
	}

	p.uc.Execute(context.Background(), entity.PlatformDingTalk, textPayload("线上挂了，马上处理"))

	if len(p.taskRepo.created) != 1 {
		t.Fatalf("expected 1 task, got %d", len(p.taskRepo.created))
	}
	if p.taskRepo.created[0].Priority != entity.PriorityUrgent {
		t.Fatalf("urgent message must force top priority, got %d", p.taskRepo.created[0].Priority)
	}
}

func TestProcessMessage_EmptyMessage(t *testing.T) {
	p := newTestPipeline(entity.ClassNormal)

	reply := p.uc.Execute(context.Background(), entity.PlatformDingTalk, textPayload("   "))

	if reply != emptyReply {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if len(p.msgRepo.created) != 0 {
		t.Fatal("empty message must not be persisted")
	}
}

func TestProcessMessage_ImageMessage(t *testing.T) {
	p := newTestPipeline(entity.ClassImportant)
	p.recognizer.results = []string{"图1: 白板上的架构图，待办：补压测"}
	p.extractor.drafts = []entity.TaskDraft{{Title: "补压测", Priority: entity.PriorityImportant}}

	payload := &service.IncomingPayload{
		MsgType:          "picture",
		DownloadCode:     "dl-1",
		SenderID:         "u1",
		SenderNick:       "张三",
		ConversationType: "1",
	}
	p.uc.Execute(context.Background(), entity.PlatformDingTalk, payload)

	inbound := p.msgRepo.inbound()
	if len(inbound) != 1 {
		t.Fatalf("expected 1 inbound message, got %d", len(inbound))
	}
	if inbound[0].MessageType != entity.MessageTypeImage {
		t.Fatalf("unexpected message type: %s", inbound[0].MessageType)
	}
	if inbound[0].Content != "https://img.example.com/dl-1" {
		t.Fatalf("image message content should be resolved URL, got %q", inbound[0].Content)
	}
	// 识别文本要拼进分类输入
	if len(p.classifier.inputs) != 1 || !strings.Contains(p.classifier.inputs[0], "图1: 白板上的架构图") {
		t.Fatalf("recognized text missing from classification input: %v", p.classifier.inputs)
	}
	if len(p.extractor.inputs) != 1 || !strings.Contains(p.extractor.inputs[0], "补压测") {
		t.Fatalf("recognized text missing from extraction input: %v", p.extractor.inputs)
	}
}

func TestProcessMessage_GroupNormalNoLinksSilent(t *testing.T) {
	p := newTestPipeline(entity.ClassNormal)

	payload := textPayload("哈哈哈")
	payload.ConversationType = "2"
	reply := p.uc.Execute(context.Background(), entity.PlatformDingTalk, payload)

	if reply != "" {
		t.Fatalf("group normal chatter should get no reply, got %q", reply)
	}
	if p.responder.calls != 0 {
		t.Fatal("conversational reply must not run for group messages")
	}
	if len(p.msgRepo.outbound()) != 0 {
		t.Fatal("no outbound record expected when reply is empty")
	}
}

func TestProcessMessage_DirectNormalGeneratesReply(t *testing.T) {
	p := newTestPipeline(entity.ClassNormal)

	reply := p.uc.Execute(context.Background(), entity.PlatformDingTalk, textPayload("今天天气不错"))

	if reply != "收到，我会尽快处理。" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if p.responder.calls != 1 {
		t.Fatalf("expected 1 responder call, got %d", p.responder.calls)
	}
}

func TestProcessMessage_IgnoreSilentButPersisted(t *testing.T) {
	p := newTestPipeline(entity.ClassIgnore)

	reply := p.uc.Execute(context.Background(), entity.PlatformDingTalk, textPayload("收到"))

	if reply != "" {
		t.Fatalf("ignore classification should get no reply, got %q", reply)
	}
	if p.responder.calls != 0 {
		t.Fatal("conversational reply must not run for ignored messages")
	}
	inbound := p.msgRepo.inbound()
	if len(inbound) != 1 {
		t.Fatalf("ignored message must still be persisted, got %d inbound", len(inbound))
	}
	if p.msgRepo.processed[inbound[0].ID] != entity.ClassIgnore {
		t.Fatal("classification should be persisted even when silent")
	}
	if len(p.msgRepo.outbound()) != 0 {
		t.Fatal("no outbound record expected when reply is empty")
	}
}

func TestProcessMessage_ReceiptLogKeepsRawText(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := newTestPipeline(entity.ClassNormal)
	resolver := service.NewLinkResolver(noopKnowledge{}, noopFetcher{}, noopArticleOracle{}, zap.NewNop())
	uc := NewProcessMessageUseCase(
		resolver,
		&stubUserRepo{},
		p.msgRepo, p.taskRepo, p.classifier, p.extractor, p.recognizer, p.responder,
		stubImageResolver{}, zap.New(core),
	)

	payload := textPayload("@bot-1 看一下这个")
	payload.ConversationType = "2"
	payload.AtUserIDs = []string{"bot-1"}
	uc.Execute(context.Background(), entity.PlatformDingTalk, payload)

	entries := logs.FilterMessage("收到消息").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 receipt log, got %d", len(entries))
	}
	// 日志存剥离 @ 之前的原文
	if got := entries[0].ContextMap()["text"]; got != "@bot-1 看一下这个" {
		t.Fatalf("receipt log should keep raw text, got %q", got)
	}
}

func TestProcessMessage_NoTasksExtracted(t *testing.T) {
	p := newTestPipeline(entity.ClassImportant)

	reply := p.uc.Execute(context.Background(), entity.PlatformDingTalk, textPayload("这个很重要，记一下"))

	if reply != "✅ 已收到消息，但未识别到需要您处理的具体任务。" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestProcessMessage_UserRepoFailure(t *testing.T) {
	p := newTestPipeline(entity.ClassNormal)
	resolver := service.NewLinkResolver(noopKnowledge{}, noopFetcher{}, noopArticleOracle{}, zap.NewNop())
	uc := NewProcessMessageUseCase(
		resolver,
		&stubUserRepo{err: errors.New("db down")},
		p.msgRepo, p.taskRepo, p.classifier, p.extractor, p.recognizer, p.responder,
		stubImageResolver{}, zap.NewNop(),
	)

	reply := uc.Execute(context.Background(), entity.PlatformDingTalk, textPayload("你好"))

	if reply != errorReply {
		t.Fatalf("unexpected reply: %q", reply)
	}
}
