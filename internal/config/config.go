package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort  string
	LogLevel string
	// 为空时不启用 Basic Auth
	BasicAuthUser string
	BasicAuthPass string

	TelegramToken string
	// 频道：@username 或数字 chat id
	ChannelID string
	ParseMode string

	TMDBAPIKey       string
	TMDBBaseURL      string
	TMDBImageBaseURL string
	Language         string
	Region           string
	Source           string // discover / trending / popular
	MediaType        string // movie / tv / all
	Pages            int
	CandidateLimit   int

	PublishCount     int
	PublishHours     []string
	PublishTZ        string
	PublishUTCOffset string

	CronSpec     string
	RunOnStart   bool
	CycleTimeout time.Duration

	StoreDriver string // file / postgres / sqlite / redis
	PostedFile  string
	PostgresDSN string
	SQLitePath  string
	RedisAddr   string

	CaptionStyle     string // templates / seo
	TemplateStrategy string // random / round_robin
	OverviewMaxRunes int
	IncludeTrailer   bool

	DryRun bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := &Config{
		AppPort:  getEnv("APP_PORT", "9000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BasicAuthUser: getEnv("APP_BASIC_USER", ""),
		BasicAuthPass: getEnv("APP_BASIC_PASS", ""),

		TelegramToken: getEnv("TELEGRAM_TOKEN", ""),
		ChannelID:     getEnv("CHANNEL_USERNAME", ""),
		ParseMode:     getEnv("PARSE_MODE", "Markdown"),

		TMDBAPIKey:       getEnv("TMDB_API_KEY", ""),
		TMDBBaseURL:      getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBImageBaseURL: getEnv("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p/w780"),
		Language:         getEnv("LANGUAGE", "ru"),
		Region:           getEnv("REGION", ""),
		Source:           getEnv("TMDB_SOURCE", "discover"),
		MediaType:        getEnv("MEDIA_TYPE", "movie"),
		Pages:            getEnvInt("TMDB_PAGES", 1),
		CandidateLimit:   getEnvInt("CANDIDATE_LIMIT", 10),

		PublishCount:     getEnvInt("PUBLISH_COUNT", 3),
		PublishHours:     getEnvList("PUBLISH_HOURS", []string{"15", "18"}),
		PublishTZ:        getEnv("PUBLISH_TZ", ""),
		PublishUTCOffset: getEnv("PUBLISH_UTC_OFFSET", ""),

		CronSpec:     getEnv("CRON_SPEC", "0 * * * *"),
		RunOnStart:   getEnvBool("RUN_ON_START", true),
		CycleTimeout: getEnvDuration("CYCLE_TIMEOUT", 10*time.Minute),

		StoreDriver: getEnv("STORE_DRIVER", "file"),
		PostedFile:  getEnv("POSTED_FILE", "posted.json"),
		PostgresDSN: getEnv("POSTGRES_DSN", "host=localhost user=moviecast password=moviecast dbname=moviecast port=5432 sslmode=disable TimeZone=UTC"),
		SQLitePath:  getEnv("SQLITE_PATH", "moviecast.db"),
		RedisAddr:   getEnv("REDIS_ADDR", ""),

		CaptionStyle:     getEnv("CAPTION_STYLE", "templates"),
		TemplateStrategy: getEnv("TEMPLATE_STRATEGY", "random"),
		OverviewMaxRunes: getEnvInt("OVERVIEW_MAX_RUNES", 600),
		IncludeTrailer:   getEnvBool("INCLUDE_TRAILER", true),

		DryRun: getEnvBool("DRY_RUN", false),
	}

	log.Printf("config loaded: port=%s cron=%s hours=%s store=%s", cfg.AppPort, cfg.CronSpec, strings.Join(cfg.PublishHours, ","), cfg.StoreDriver)
	return cfg
}

// Validate 检查运行所需的凭据；dry-run 模式下不需要 Telegram 凭据
func (c *Config) Validate() error {
	var errs []error
	if c.TMDBAPIKey == "" {
		errs = append(errs, errors.New("TMDB_API_KEY is required"))
	}
	if !c.DryRun {
		if c.TelegramToken == "" {
			errs = append(errs, errors.New("TELEGRAM_TOKEN is required"))
		}
		if c.ChannelID == "" {
			errs = append(errs, errors.New("CHANNEL_USERNAME is required"))
		}
	}
	if c.PublishCount < 0 {
		errs = append(errs, fmt.Errorf("PUBLISH_COUNT must be >= 0, got %d", c.PublishCount))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location 解析发布窗口使用的时区：固定偏移优先，其次 IANA 名称，最后使用本地时区
func (c *Config) Location() (*time.Location, error) {
	if c.PublishUTCOffset != "" {
		hours, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(c.PublishUTCOffset), "+"))
		if err != nil || hours < -12 || hours > 14 {
			return nil, fmt.Errorf("invalid PUBLISH_UTC_OFFSET %q", c.PublishUTCOffset)
		}
		return time.FixedZone(fmt.Sprintf("UTC%+d", hours), hours*3600), nil
	}
	if c.PublishTZ != "" {
		loc, err := time.LoadLocation(c.PublishTZ)
		if err != nil {
			return nil, fmt.Errorf("invalid PUBLISH_TZ %q: %w", c.PublishTZ, err)
		}
		return loc, nil
	}
	return time.Local, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("warn: %s=%q is not an integer, using %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Printf("warn: %s=%q is not a boolean, using %t", key, v, def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		log.Printf("warn: %s=%q is not a duration, using %s", key, v, def)
		return def
	}
	return d
}

// getEnvList 解析逗号分隔的列表，忽略空项
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Now returns current time, 方便后续做可测试封装
func Now() time.Time {
	return time.Now()
}
