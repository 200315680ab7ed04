package caption

import (
	"html"
	"strings"
)

// Markup 对应 Telegram 的 parse_mode
type Markup string

const (
	Markdown Markup = "Markdown"
	HTML     Markup = "HTML"
)

func ParseMarkup(name string) Markup {
	if strings.EqualFold(name, string(HTML)) {
		return HTML
	}
	return Markdown
}

// legacy Markdown 只需要转义这四个字符
var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func (m Markup) Escape(s string) string {
	if m == HTML {
		return html.EscapeString(s)
	}
	return markdownEscaper.Replace(s)
}

// Bold 接收未转义的文本。legacy Markdown 的实体内部不支持反斜杠转义，
// 遇到 * 时先闭合实体，在外面写 \*，再重新打开。
func (m Markup) Bold(s string) string {
	if m == HTML {
		return "<b>" + html.EscapeString(s) + "</b>"
	}
	var b strings.Builder
	for i, part := range strings.Split(s, "*") {
		if i > 0 {
			b.WriteString(`\*`)
		}
		if part != "" {
			b.WriteString("*" + part + "*")
		}
	}
	return b.String()
}

func (m Markup) Link(text, url string) string {
	if m == HTML {
		return `<a href="` + html.EscapeString(url) + `">` + text + "</a>"
	}
	return "[" + text + "](" + url + ")"
}
