package telegram

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownToHTML 把 Markdown 转成 Telegram 允许的 HTML 子集。
// Telegram 只认 <b>、<i>、<s>、<code>、<pre>、<a href="">，
// 而且标签必须配对闭合，所以走 AST 渲染而不是正则替换。
func MarkdownToHTML(markdown string) string {
	if markdown == "" {
		return ""
	}

	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	r := &htmlRenderer{src: src}
	r.renderChildren(&buf, doc)
	return strings.TrimRight(buf.String(), "\n")
}

type htmlRenderer struct {
	src []byte
}

func (r *htmlRenderer) renderChildren(w *bytes.Buffer, node ast.Node) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		r.renderNode(w, child)
	}
}

func (r *htmlRenderer) renderNode(w *bytes.Buffer, node ast.Node) {
	switch n := node.(type) {
	case *ast.Paragraph:
		r.renderChildren(w, n)
		w.WriteString("\n\n")

	case *ast.Heading:
		// Telegram 没有标题标签，用加粗代替
		w.WriteString("<b>")
		r.renderChildren(w, n)
		w.WriteString("</b>\n\n")

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		w.WriteString("<pre><code>")
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			w.WriteString(html.EscapeString(string(seg.Value(r.src))))
		}
		w.WriteString("</code></pre>\n\n")

	case *ast.List:
		idx := n.Start
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			if n.IsOrdered() {
				fmt.Fprintf(w, "%d. ", idx)
				idx++
			} else {
				w.WriteString("• ")
			}
			var item bytes.Buffer
			r.renderChildren(&item, child)
			w.WriteString(strings.TrimRight(item.String(), "\n"))
			w.WriteString("\n")
		}
		w.WriteString("\n")

	case *ast.Text:
		w.WriteString(html.EscapeString(string(n.Segment.Value(r.src))))
		if n.SoftLineBreak() || n.HardLineBreak() {
			w.WriteString("\n")
		}

	case *ast.String:
		w.WriteString(html.EscapeString(string(n.Value)))

	case *ast.CodeSpan:
		w.WriteString("<code>")
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			if t, ok := child.(*ast.Text); ok {
				w.WriteString(html.EscapeString(string(t.Segment.Value(r.src))))
			}
		}
		w.WriteString("</code>")

	case *ast.Emphasis:
		tag := "i"
		if n.Level == 2 {
			tag = "b"
		}
		w.WriteString("<" + tag + ">")
		r.renderChildren(w, n)
		w.WriteString("</" + tag + ">")

	case *ast.Link:
		w.WriteString(`<a href="`)
		w.WriteString(html.EscapeString(string(n.Destination)))
		w.WriteString(`">`)
		r.renderChildren(w, n)
		w.WriteString("</a>")

	case *ast.AutoLink:
		url := html.EscapeString(string(n.URL(r.src)))
		w.WriteString(`<a href="` + url + `">` + url + "</a>")

	default:
		r.renderChildren(w, node)
	}
}
