package caption

import (
	"fmt"
	"strings"
)

// fields 是模板可用的已转义字段，缺失值已替换为占位文案。
// RawTitle 未转义，交给 Markup.Bold 处理。
type fields struct {
	Title       string
	RawTitle    string
	Year        string
	ReleaseDate string
	Overview    string
	Rating      string
	Genres      string
}

// Template 固定的文案模板
type Template struct {
	Name   string
	render func(f fields, mk Markup) string
}

func (t Template) Render(f fields, mk Markup) string {
	return t.render(f, mk)
}

var (
	Classic = Template{
		Name: "classic",
		render: func(f fields, mk Markup) string {
			return fmt.Sprintf("🎬 %s (%s)\n\n%s\n\n⭐️ Рейтинг: %s/10", mk.Bold(f.RawTitle), f.Year, f.Overview, f.Rating)
		},
	}

	NewRelease = Template{
		Name: "new_release",
		render: func(f fields, mk Markup) string {
			return fmt.Sprintf("🔥 Новинка! %s уже вышел.\n\n%s\n\n📅 Год: %s | ⭐️ %s", mk.Bold(f.RawTitle), f.Overview, f.Year, f.Rating)
		},
	}

	Premiere = Template{
		Name: "premiere",
		render: func(f fields, mk Markup) string {
			return fmt.Sprintf("🌟 Фильм: %s\n📆 Премьера: %s\n\n%s", mk.Bold(f.RawTitle), f.ReleaseDate, f.Overview)
		},
	}

	// SEO 带关键词的长描述，类型来自详情接口
	SEO = Template{
		Name: "seo",
		render: func(f fields, mk Markup) string {
			adj := "захватывающий"
			if f.Genres != "" {
				adj += " " + strings.ToLower(f.Genres)
			}
			return fmt.Sprintf("%s (%s) — %s фильм. %s Смотреть трейлер и узнать больше новинок кино можно в нашем Telegram-канале.",
				f.Title, f.Year, adj, f.Overview)
		},
	}
)

// DefaultTemplates 轮换使用的三种发布文案
var DefaultTemplates = []Template{Classic, NewRelease, Premiere}

// TemplatesForStyle 返回 style 对应的模板集合，未知 style 使用默认集合
func TemplatesForStyle(style string) []Template {
	if style == "seo" {
		return []Template{SEO}
	}
	return DefaultTemplates
}
