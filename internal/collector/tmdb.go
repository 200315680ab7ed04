package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
)

const (
	tmdbDefaultBaseURL  = "https://api.themoviedb.org/3"
	tmdbDefaultImageURL = "https://image.tmdb.org/t/p/w780"
	tmdbClientTimeout   = 10 * time.Second
	tmdbMaxResponseSize = 2 << 20 // 2MB
	youtubeWatchURL     = "https://www.youtube.com/watch?v="
)

type ClientOptions struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Language     string
	Region       string
	Timeout      time.Duration
}

// Client 通过 TMDb REST API 获取影视条目，请求统一走 colly
type Client struct {
	apiKey       string
	baseURL      string
	imageBaseURL string
	language     string
	region       string

	base   *colly.Collector
	logger zerolog.Logger
	now    func() time.Time
}

func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = tmdbClientTimeout
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = tmdbDefaultBaseURL
	}
	imageURL := strings.TrimRight(opts.ImageBaseURL, "/")
	if imageURL == "" {
		imageURL = tmdbDefaultImageURL
	}

	c := colly.NewCollector(
		colly.UserAgent("MovieCastBot/1.0"),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(tmdbMaxResponseSize),
	)
	c.SetRequestTimeout(timeout)

	return &Client{
		apiKey:       opts.APIKey,
		baseURL:      baseURL,
		imageBaseURL: imageURL,
		language:     opts.Language,
		region:       opts.Region,
		base:         c,
		logger:       logger,
		now:          time.Now,
	}
}

type tmdbPage struct {
	Page    int          `json:"page"`
	Results []tmdbResult `json:"results"`
}

type tmdbResult struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	Name         string   `json:"name"`
	ReleaseDate  string   `json:"release_date"`
	FirstAirDate string   `json:"first_air_date"`
	Overview     string   `json:"overview"`
	VoteAverage  *float64 `json:"vote_average"`
	VoteCount    int      `json:"vote_count"`
	PosterPath   string   `json:"poster_path"`
	MediaType    string   `json:"media_type"`
	Genres       []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

type tmdbVideos struct {
	Results []struct {
		Key  string `json:"key"`
		Site string `json:"site"`
		Type string `json:"type"`
	} `json:"results"`
}

// toMovie 把 TMDb 的 movie/tv 两种结构统一成 Movie；mediaType 为列表接口的默认类型
func (r tmdbResult) toMovie(mediaType string) Movie {
	m := Movie{
		ID:          r.ID,
		Title:       strings.TrimSpace(r.Title),
		ReleaseDate: r.ReleaseDate,
		Overview:    strings.TrimSpace(r.Overview),
		PosterPath:  r.PosterPath,
		MediaType:   r.MediaType,
	}
	if m.Title == "" {
		m.Title = strings.TrimSpace(r.Name)
	}
	if m.ReleaseDate == "" {
		m.ReleaseDate = r.FirstAirDate
	}
	if m.MediaType == "" {
		m.MediaType = mediaType
	}
	// 没有投票时 TMDb 返回 0 分，视为无评分
	if r.VoteAverage != nil && !(*r.VoteAverage == 0 && r.VoteCount == 0) {
		v := *r.VoteAverage
		m.Rating = &v
	}
	for _, g := range r.Genres {
		if g.Name != "" {
			m.Genres = append(m.Genres, g.Name)
		}
	}
	return m
}

// Discover 按上映日期倒序获取截至今天的新片
func (c *Client) Discover(ctx context.Context, mediaType string, page int) ([]Movie, error) {
	today := c.now().Format("2006-01-02")
	params := url.Values{}
	params.Set("include_adult", "false")
	params.Set("page", fmt.Sprint(page))
	if mediaType == MediaTV {
		params.Set("sort_by", "first_air_date.desc")
		params.Set("first_air_date.lte", today)
	} else {
		params.Set("sort_by", "release_date.desc")
		params.Set("release_date.lte", today)
	}
	return c.list(ctx, "/discover/"+mediaType, params, mediaType)
}

// Trending 获取热门趋势，mediaType 可为 all/movie/tv，window 为 day/week
func (c *Client) Trending(ctx context.Context, mediaType, window string, page int) ([]Movie, error) {
	if window != "week" {
		window = "day"
	}
	params := url.Values{}
	params.Set("page", fmt.Sprint(page))
	items, err := c.list(ctx, fmt.Sprintf("/trending/%s/%s", mediaType, window), params, mediaType)
	if err != nil {
		return nil, err
	}
	// trending/all 会混入人物条目
	out := items[:0]
	for _, it := range items {
		if it.MediaType == MediaMovie || it.MediaType == MediaTV {
			out = append(out, it)
		}
	}
	return out, nil
}

func (c *Client) Popular(ctx context.Context, mediaType string, page int) ([]Movie, error) {
	params := url.Values{}
	params.Set("page", fmt.Sprint(page))
	return c.list(ctx, "/"+mediaType+"/popular", params, mediaType)
}

// Trailer 返回第一个 YouTube 预告片链接，没有时返回空串
func (c *Client) Trailer(ctx context.Context, m Movie) (string, error) {
	params := url.Values{}
	if c.language != "" {
		params.Set("include_video_language", c.language+",en")
	}
	var videos tmdbVideos
	if err := c.getJSON(ctx, fmt.Sprintf("/%s/%d/videos", mediaOrMovie(m.MediaType), m.ID), params, &videos); err != nil {
		return "", fmt.Errorf("tmdb: videos %d: %w", m.ID, err)
	}
	for _, v := range videos.Results {
		if v.Site == "YouTube" && v.Type == "Trailer" && v.Key != "" {
			return youtubeWatchURL + v.Key, nil
		}
	}
	return "", nil
}

// Enrich 通过详情接口补全类型，并填充列表中缺失的简介和日期
func (c *Client) Enrich(ctx context.Context, m *Movie) error {
	mediaType := mediaOrMovie(m.MediaType)
	var r tmdbResult
	if err := c.getJSON(ctx, fmt.Sprintf("/%s/%d", mediaType, m.ID), url.Values{}, &r); err != nil {
		return fmt.Errorf("tmdb: details %d: %w", m.ID, err)
	}
	d := r.toMovie(mediaType)
	m.Genres = d.Genres
	if m.Overview == "" {
		m.Overview = d.Overview
	}
	if m.ReleaseDate == "" {
		m.ReleaseDate = d.ReleaseDate
	}
	if m.Title == "" {
		m.Title = d.Title
	}
	return nil
}

func (c *Client) PosterURL(posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return c.imageBaseURL + posterPath
}

func (c *Client) list(ctx context.Context, path string, params url.Values, mediaType string) ([]Movie, error) {
	var page tmdbPage
	if err := c.getJSON(ctx, path, params, &page); err != nil {
		return nil, fmt.Errorf("tmdb: %s: %w", path, err)
	}
	out := make([]Movie, 0, len(page.Results))
	for _, r := range page.Results {
		out = append(out, r.toMovie(mediaType))
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	if c.region != "" {
		params.Set("region", c.region)
	}
	u := c.baseURL + path + "?" + params.Encode()

	col := c.base.Clone()
	var decodeErr error
	col.OnResponse(func(r *colly.Response) {
		decodeErr = json.Unmarshal(r.Body, out)
	})

	c.logger.Debug().Str("path", path).Msg("tmdb request")
	if err := col.Visit(u); err != nil {
		return err
	}
	if decodeErr != nil {
		return fmt.Errorf("decode: %w", decodeErr)
	}
	return nil
}

func mediaOrMovie(mediaType string) string {
	if mediaType == MediaTV {
		return MediaTV
	}
	return MediaMovie
}
