package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/domain/entity"
)

type fakeKnowledge struct {
	records map[string]*entity.LinkRecord
	findErr error
	saveErr error
	saved   []*entity.LinkRecord
	finds   int
}

func (f *fakeKnowledge) FindLink(_ context.Context, url string) (*entity.LinkRecord, error) {
	f.finds++
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.records[url], nil
}

func (f *fakeKnowledge) SaveLink(_ context.Context, record *entity.LinkRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, record)
	return nil
}

type fakeFetcher struct {
	meta    map[string]*PageMeta
	err     error
	fetches []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*PageMeta, error) {
	f.fetches = append(f.fetches, url)
	if f.err != nil {
		return nil, f.err
	}
	if m, ok := f.meta[url]; ok {
		return m, nil
	}
	return &PageMeta{Title: url}, nil
}

type fakeArticleOracle struct {
	category string
	analysis ArticleAnalysis
}

func (f *fakeArticleOracle) ClassifyArticle(_ context.Context, _, _ string) string {
	return f.category
}

func (f *fakeArticleOracle) AnalyzeArticle(_ context.Context, _, _, _ string) ArticleAnalysis {
	return f.analysis
}

func TestExtractURLs(t *testing.T) {
	cases := []struct {
		text string
		want []string
	}{
		{"看下这篇 https://mp.weixin.qq.com/s/abc123 写得不错", []string{"https://mp.weixin.qq.com/s/abc123"}},
		{"两个链接 http://a.com/x 和 https://b.com/y", []string{"http://a.com/x", "https://b.com/y"}},
		{"引号边界\"https://a.com/p\"之后", []string{"https://a.com/p"}},
		{"没有链接", nil},
		{"ftp://a.com 不算", nil},
	}
	for _, c := range cases {
		got := ExtractURLs(c.text)
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("ExtractURLs(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestLinkResolver_NewLinkSaved(t *testing.T) {
	knowledge := &fakeKnowledge{records: map[string]*entity.LinkRecord{}}
	fetcher := &fakeFetcher{meta: map[string]*PageMeta{
		"https://a.com/post": {Title: "深入 Go 调度器", PublishDate: "2026-08-01", BodyText: "正文"},
	}}
	oracle := &fakeArticleOracle{
		category: "技术",
		analysis: ArticleAnalysis{Source: "某博客", Rating: "⭐⭐⭐⭐", Summary: "讲调度器的文章"},
	}
	r := NewLinkResolver(knowledge, fetcher, oracle, zap.NewNop())

	infos := r.Resolve(context.Background(), "推荐 https://a.com/post", "李四")

	if len(infos) != 1 {
		t.Fatalf("expected 1 info, got %d", len(infos))
	}
	if infos[0].Existing {
		t.Fatal("new link should not be marked existing")
	}
	if infos[0].Title != "深入 Go 调度器" || infos[0].Category != "技术" {
		t.Fatalf("unexpected info: %+v", infos[0])
	}
	if len(knowledge.saved) != 1 {
		t.Fatalf("expected 1 save, got %d", len(knowledge.saved))
	}
	if knowledge.saved[0].Source != "某博客" {
		t.Fatalf("unexpected source: %q", knowledge.saved[0].Source)
	}
	if knowledge.saved[0].PublishDate != "2026-08-01" {
		t.Fatalf("unexpected publish date: %q", knowledge.saved[0].PublishDate)
	}
}

func TestLinkResolver_ExistingSkipsFetchAndSave(t *testing.T) {
	knowledge := &fakeKnowledge{records: map[string]*entity.LinkRecord{
		"https://a.com/old": {URL: "https://a.com/old", Title: "旧文章", Category: "产品", Rating: "⭐⭐⭐", Summary: "存量概要"},
	}}
	fetcher := &fakeFetcher{}
	r := NewLinkResolver(knowledge, fetcher, &fakeArticleOracle{}, zap.NewNop())

	infos := r.Resolve(context.Background(), "又发了一遍 https://a.com/old", "李四")

	if len(infos) != 1 || !infos[0].Existing {
		t.Fatalf("expected existing hit, got %+v", infos)
	}
	if infos[0].Title != "旧文章" || infos[0].Summary != "存量概要" {
		t.Fatalf("existing fields should be reused as-is: %+v", infos[0])
	}
	if len(fetcher.fetches) != 0 {
		t.Fatal("dedupe hit must not fetch")
	}
	if len(knowledge.saved) != 0 {
		t.Fatal("dedupe hit must not save")
	}
}

func TestLinkResolver_FetchFailureDegradesToBareURL(t *testing.T) {
	knowledge := &fakeKnowledge{records: map[string]*entity.LinkRecord{}}
	fetcher := &fakeFetcher{err: errors.New("timeout")}
	oracle := &fakeArticleOracle{
		category: "其他",
		analysis: ArticleAnalysis{Source: "未知来源", Rating: "⭐⭐⭐", Summary: "未能成功获取文章摘要。"},
	}
	r := NewLinkResolver(knowledge, fetcher, oracle, zap.NewNop())

	infos := r.Resolve(context.Background(), "https://down.example.com/p", "王五")

	if len(infos) != 1 {
		t.Fatalf("fetch failure should still yield a result, got %d", len(infos))
	}
	if infos[0].Title != "https://down.example.com/p" {
		t.Fatalf("degraded title should be the URL itself, got %q", infos[0].Title)
	}
	// 来源未知时用发送人兜底
	if knowledge.saved[0].Source != "王五" {
		t.Fatalf("unknown source should fall back to sender, got %q", knowledge.saved[0].Source)
	}
}

func TestLinkResolver_UnknownSourceUsesDomainName(t *testing.T) {
	knowledge := &fakeKnowledge{records: map[string]*entity.LinkRecord{}}
	fetcher := &fakeFetcher{meta: map[string]*PageMeta{
		"https://mp.weixin.qq.com/s/abc": {Title: "某篇推文", SourceName: "公众号"},
	}}
	oracle := &fakeArticleOracle{
		category: "其他",
		analysis: ArticleAnalysis{Source: "未知来源", Rating: "⭐⭐⭐", Summary: "未能成功获取文章摘要。"},
	}
	r := NewLinkResolver(knowledge, fetcher, oracle, zap.NewNop())

	infos := r.Resolve(context.Background(), "https://mp.weixin.qq.com/s/abc", "王五")

	if len(infos) != 1 {
		t.Fatalf("expected 1 info, got %d", len(infos))
	}
	// 分析来源未知时优先按域名推断，而不是直接落到发送人
	if knowledge.saved[0].Source != "公众号" {
		t.Fatalf("expected domain-derived source, got %q", knowledge.saved[0].Source)
	}
}

func TestLinkResolver_SaveFailureDropsURL(t *testing.T) {
	knowledge := &fakeKnowledge{records: map[string]*entity.LinkRecord{}, saveErr: errors.New("notion down")}
	r := NewLinkResolver(knowledge, &fakeFetcher{}, &fakeArticleOracle{category: "其他"}, zap.NewNop())

	infos := r.Resolve(context.Background(), "https://a.com/p https://b.com/q", "李四")

	if len(infos) != 0 {
		t.Fatalf("save failures should drop URLs, got %+v", infos)
	}
}

func TestLinkResolver_NoURLs(t *testing.T) {
	knowledge := &fakeKnowledge{}
	r := NewLinkResolver(knowledge, &fakeFetcher{}, &fakeArticleOracle{}, zap.NewNop())

	if infos := r.Resolve(context.Background(), "纯文本消息", "李四"); infos != nil {
		t.Fatalf("expected nil, got %+v", infos)
	}
	if knowledge.finds != 0 {
		t.Fatal("no URLs should mean no knowledge lookups")
	}
}
