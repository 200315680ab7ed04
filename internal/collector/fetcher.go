package collector

import (
	"context"
	"strings"
)

const (
	MediaMovie = "movie"
	MediaTV    = "tv"
)

// Movie 统一采集后的候选条目，字段缺失时保持零值，由格式化阶段兜底
type Movie struct {
	ID          int
	Title       string
	ReleaseDate string
	Overview    string
	Rating      *float64
	PosterPath  string
	MediaType   string
	Genres      []string
}

// Year 返回发布日期的前 4 位，日期缺失或过短时返回空串
func (m Movie) Year() string {
	d := strings.TrimSpace(m.ReleaseDate)
	if len(d) < 4 {
		return ""
	}
	return d[:4]
}

// Fetcher 抽象每一个数据源
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]Movie, error)
}

// TrailerFinder 查找条目的预告片链接，没有时返回空串
type TrailerFinder interface {
	Trailer(ctx context.Context, m Movie) (string, error)
}

// DetailsFetcher 补全列表接口不返回的字段（例如类型名称）
type DetailsFetcher interface {
	Enrich(ctx context.Context, m *Movie) error
}
