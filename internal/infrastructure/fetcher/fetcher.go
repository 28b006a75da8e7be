package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/ygai/gateway/internal/domain/service"
)

const (
	browserUA    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	fetchTimeout = 10 * time.Second
	// 正文与原始 HTML 读取上限，防止异常大页面撑爆内存
	maxBodyBytes = 4 << 20
)

// 微信文章页面把发布时间埋在 js 变量里
var (
	wechatCreateTimeRe = regexp.MustCompile(`create_time\s*=\s*"([^"]+)"`)
	wechatCTRe         = regexp.MustCompile(`ct\s*=\s*"(\d{10})"`)
	// 兜底：正文中类似 2024-02-27 / 2024年2月27日 的日期
	genericDateRe = regexp.MustCompile(`\b(20[12]\d[-/年](0?[1-9]|1[012])[-/月](0?[1-9]|[12][0-9]|3[01])[日]?)\b`)
)

// 北京时间，微信时间戳与兜底日期都按此时区落盘
var beijing = time.FixedZone("CST", 8*3600)

// Fetcher 网页抓取器：抓取 HTML 并提取标题、发布时间、来源名与去标签正文。
// 抓取失败返回错误由调用方决定降级；字段级提取失败只留空，不报错。
type Fetcher struct {
	client *http.Client
	logger *zap.Logger
}

// NewFetcher 创建网页抓取器
func NewFetcher(logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger.With(zap.String("component", "fetcher")),
	}
}

var _ service.ContentFetcher = (*Fetcher)(nil)

// Fetch 抓取并解析页面
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*service.PageMeta, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUA)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	meta := &service.PageMeta{
		Title:      rawURL,
		SourceName: SourceNameFor(rawURL),
	}

	doc, err := html.Parse(strings.NewReader(string(raw)))
	if err != nil {
		// HTML 解析失败仍可用正则提取时间
		f.logger.Warn("HTML 解析失败", zap.String("url", rawURL), zap.Error(err))
		meta.PublishDate = extractDateFromRaw(string(raw))
		return meta, nil
	}

	p := newPageParser(doc)

	// 微信文章真实标题在 og:title，普通页面用 <title>
	if t := p.metaProperty("og:title"); t != "" {
		meta.Title = t
	} else if p.title != "" {
		meta.Title = p.title
	}

	meta.PublishDate = f.extractDate(p, string(raw))
	meta.BodyText = p.bodyText
	return meta, nil
}

// extractDate 按优先级提取发布时间：
// Open Graph meta → 常见 meta name → 微信 js 变量 → 正文日期正则 → 空
func (f *Fetcher) extractDate(p *pageParser, raw string) string {
	if v := p.metaProperty("article:published_time"); v != "" {
		return v
	}
	if v := p.metaProperty("og:article:published_time"); v != "" {
		return v
	}
	if v := p.metaName("publishdate"); v != "" {
		return v
	}
	if v := p.metaName("pubdate"); v != "" {
		return v
	}
	return extractDateFromRaw(raw)
}

func extractDateFromRaw(raw string) string {
	if m := wechatCreateTimeRe.FindStringSubmatch(raw); m != nil {
		return normalizeWeChatTime(m[1])
	}
	if m := wechatCTRe.FindStringSubmatch(raw); m != nil {
		return normalizeWeChatTime(m[1])
	}
	if m := genericDateRe.FindStringSubmatch(raw); m != nil {
		return normalizeCJKDate(m[1])
	}
	return ""
}

// normalizeWeChatTime 微信的 10 位 Unix 时间戳是 UTC，转成北京时间 ISO 格式
func normalizeWeChatTime(val string) string {
	if len(val) == 10 {
		if sec, err := strconv.ParseInt(val, 10, 64); err == nil {
			return time.Unix(sec, 0).In(beijing).Format(time.RFC3339)
		}
	}
	return val
}

// normalizeCJKDate 把 2024年2月27日 / 2024/2/27 统一成带时区 ISO 日期
func normalizeCJKDate(val string) string {
	cleaned := strings.NewReplacer("年", "-", "月", "-", "日", "", "/", "-").Replace(val)
	t, err := time.ParseInLocation("2006-1-2", cleaned, beijing)
	if err != nil {
		return cleaned
	}
	return t.Format(time.RFC3339)
}

// SourceNameFor 按域名推断来源名，未知站点返回域名本身
func SourceNameFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	domain := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(domain, "mp.weixin.qq.com"):
		return "公众号"
	case strings.Contains(domain, "xiaohongshu.com"):
		return "小红书"
	case strings.Contains(domain, "douyin.com"):
		return "抖音"
	case strings.Contains(domain, "juejin.cn"):
		return "掘金"
	case strings.Contains(domain, "csdn.net"):
		return "CSDN"
	default:
		return domain
	}
}

// pageParser 一次遍历 DOM，收集 <title>、meta 标签与去标签正文
type pageParser struct {
	title    string
	metas    []metaTag
	bodyText string
}

type metaTag struct {
	name     string
	property string
	content  string
}

func newPageParser(doc *html.Node) *pageParser {
	p := &pageParser{}
	var texts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "title":
				if p.title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					p.title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			case "meta":
				p.metas = append(p.metas, parseMeta(n))
				return
			case "script", "style", "noscript":
				return
			}
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				texts = append(texts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	p.bodyText = strings.Join(texts, "\n")
	return p
}

func parseMeta(n *html.Node) metaTag {
	var m metaTag
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "name":
			m.name = strings.ToLower(a.Val)
		case "property":
			m.property = strings.ToLower(a.Val)
		case "content":
			m.content = strings.TrimSpace(a.Val)
		}
	}
	return m
}

func (p *pageParser) metaProperty(prop string) string {
	for _, m := range p.metas {
		if m.property == prop && m.content != "" {
			return m.content
		}
	}
	return ""
}

func (p *pageParser) metaName(name string) string {
	for _, m := range p.metas {
		if m.name == name && m.content != "" {
			return m.content
		}
	}
	return ""
}
