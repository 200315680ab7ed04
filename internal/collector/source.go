package collector

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

const (
	SourceDiscover = "discover"
	SourceTrending = "trending"
	SourcePopular  = "popular"

	defaultCandidateLimit = 10
)

// TMDbFetcher 按配置的列表接口翻页拉取候选条目，每页最多保留 Limit 条。
// MediaType 为 all 时电影与剧集交替排列后再截断。
// 不同页之间可能出现重复 ID，去重交给 processor.Selector。
type TMDbFetcher struct {
	Client    *Client
	Source    string
	MediaType string
	Pages     int
	Limit     int
	Logger    zerolog.Logger
}

func (f *TMDbFetcher) Name() string {
	return "tmdb_" + f.Source
}

func (f *TMDbFetcher) Fetch(ctx context.Context) ([]Movie, error) {
	if f.Client == nil {
		return nil, fmt.Errorf("tmdb fetcher: nil client")
	}
	pages := f.Pages
	if pages <= 0 {
		pages = 1
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultCandidateLimit
	}

	results := make([]Movie, 0, limit*pages)
	for page := 1; page <= pages; page++ {
		items, err := f.fetchPage(ctx, page)
		if err != nil {
			// 首页失败直接返回；后续页失败则使用已拿到的数据
			if page == 1 {
				return nil, err
			}
			f.Logger.Warn().Err(err).Int("page", page).Msg("tmdb page failed, using partial results")
			break
		}
		if len(items) == 0 {
			break
		}
		if len(items) > limit {
			items = items[:limit]
		}
		results = append(results, items...)
	}
	return results, nil
}

func (f *TMDbFetcher) fetchPage(ctx context.Context, page int) ([]Movie, error) {
	switch f.Source {
	case SourceTrending:
		mediaType := f.MediaType
		if mediaType == "" {
			mediaType = "all"
		}
		return f.Client.Trending(ctx, mediaType, "day", page)
	case SourcePopular, SourceDiscover, "":
		var lists [][]Movie
		for _, mt := range f.mediaTypes() {
			var (
				items []Movie
				err   error
			)
			if f.Source == SourcePopular {
				items, err = f.Client.Popular(ctx, mt, page)
			} else {
				items, err = f.Client.Discover(ctx, mt, page)
			}
			if err != nil {
				return nil, err
			}
			lists = append(lists, items)
		}
		return interleave(lists...), nil
	default:
		return nil, fmt.Errorf("tmdb fetcher: unknown source %q", f.Source)
	}
}

func (f *TMDbFetcher) mediaTypes() []string {
	switch f.MediaType {
	case "all":
		return []string{MediaMovie, MediaTV}
	case MediaTV:
		return []string{MediaTV}
	default:
		return []string{MediaMovie}
	}
}

// interleave 轮流从每个列表取一个元素
func interleave(lists ...[]Movie) []Movie {
	if len(lists) == 1 {
		return lists[0]
	}
	var out []Movie
	for i := 0; ; i++ {
		added := false
		for _, l := range lists {
			if i < len(l) {
				out = append(out, l[i])
				added = true
			}
		}
		if !added {
			return out
		}
	}
}
