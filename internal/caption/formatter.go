package caption

import (
	"fmt"
	"strings"

	"github.com/LJTian/MovieCast/internal/collector"
)

const (
	YearPlaceholder     = "Новый"
	TitlePlaceholder    = "Фильм"
	OverviewPlaceholder = "Описание отсутствует."
	RatingPlaceholder   = "—"
	DatePlaceholder     = "скоро"

	// Telegram 限制图片说明最多 1024 个字符
	MaxCaptionRunes         = 1024
	defaultOverviewMaxRunes = 600
)

type Options struct {
	Style            string
	Templates        []Template
	Strategy         Strategy
	Markup           Markup
	OverviewMaxRunes int
}

// Formatter 把单个条目渲染为发布文案
type Formatter struct {
	templates     []Template
	strategy      Strategy
	markup        Markup
	overviewLimit int
}

func NewFormatter(opts Options) *Formatter {
	templates := opts.Templates
	if len(templates) == 0 {
		templates = TemplatesForStyle(opts.Style)
	}
	strategy := opts.Strategy
	if strategy == nil {
		strategy = &RoundRobinStrategy{}
	}
	limit := opts.OverviewMaxRunes
	if limit <= 0 {
		limit = defaultOverviewMaxRunes
	}
	markup := opts.Markup
	if markup == "" {
		markup = Markdown
	}
	return &Formatter{
		templates:     templates,
		strategy:      strategy,
		markup:        markup,
		overviewLimit: limit,
	}
}

func (f *Formatter) Markup() Markup {
	return f.markup
}

// NeedsDetails 表示模板是否用到详情接口才有的字段（类型）
func (f *Formatter) NeedsDetails() bool {
	for _, t := range f.templates {
		if t.Name == SEO.Name {
			return true
		}
	}
	return false
}

// Format 选择一个模板并渲染正文
func (f *Formatter) Format(m collector.Movie) string {
	return f.render(f.pick(), m, f.overviewLimit, 0)
}

// Caption 在正文后附加预告片链接，结果不超过 MaxCaptionRunes。
// 超长时先缩短简介，再缩短标题，不截断已渲染的标记。
func (f *Formatter) Caption(m collector.Movie, trailerURL string) string {
	tpl := f.pick()
	trailer := f.trailerLine(trailerURL)

	overviewLimit := f.overviewLimit
	if n := runeLen(strings.TrimSpace(m.Overview)); n > 0 && n < overviewLimit {
		overviewLimit = n
	}
	titleLimit := runeLen(strings.TrimSpace(m.Title))

	for {
		text := f.render(tpl, m, overviewLimit, titleLimit) + trailer
		over := runeLen(text) - MaxCaptionRunes
		if over <= 0 {
			return text
		}
		// 截断会追加一个省略号，所以多减 1
		switch {
		case overviewLimit > over+1:
			overviewLimit -= over + 1
		case overviewLimit > 1:
			overviewLimit = 1
		case titleLimit > over+1:
			titleLimit -= over + 1
		case titleLimit > 1:
			titleLimit = 1
		case trailer != "":
			trailer = ""
		default:
			return truncateRunes(text, MaxCaptionRunes-1)
		}
	}
}

func (f *Formatter) pick() Template {
	idx := f.strategy.Pick(len(f.templates))
	if idx < 0 || idx >= len(f.templates) {
		idx = 0
	}
	return f.templates[idx]
}

func (f *Formatter) trailerLine(trailerURL string) string {
	if trailerURL == "" {
		return ""
	}
	return "\n\n▶️ " + f.markup.Link("Смотреть трейлер", trailerURL)
}

// titleLimit <= 0 表示不限制标题长度
func (f *Formatter) render(tpl Template, m collector.Movie, overviewLimit, titleLimit int) string {
	mk := f.markup
	title := strings.TrimSpace(m.Title)
	if title == "" {
		title = TitlePlaceholder
	} else if titleLimit > 0 {
		title = truncateRunes(title, titleLimit)
	}
	year := m.Year()
	if year == "" {
		year = YearPlaceholder
	}
	date := strings.TrimSpace(m.ReleaseDate)
	if date == "" {
		date = DatePlaceholder
	}
	overview := strings.TrimSpace(m.Overview)
	if overview == "" {
		overview = OverviewPlaceholder
	}
	rating := RatingPlaceholder
	if m.Rating != nil {
		rating = fmt.Sprintf("%.1f", *m.Rating)
	}

	return tpl.Render(fields{
		Title:       mk.Escape(title),
		RawTitle:    title,
		Year:        mk.Escape(year),
		ReleaseDate: mk.Escape(date),
		Overview:    mk.Escape(truncateRunes(overview, overviewLimit)),
		Rating:      rating,
		Genres:      mk.Escape(strings.Join(m.Genres, ", ")),
	}, mk)
}

// truncateRunes 按 rune 截断并追加省略号
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return strings.TrimRight(string(rs[:limit]), " \n") + "…"
}

func runeLen(s string) int {
	return len([]rune(s))
}
