package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/LJTian/MovieCast/internal/processor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
)

// PostedRecord 对外展示的已发布记录；文件存储只有 ID
type PostedRecord struct {
	ID         int       `json:"id"`
	Title      string    `json:"title,omitempty"`
	MediaType  string    `json:"mediaType,omitempty"`
	TrailerURL string    `json:"trailerUrl,omitempty"`
	PostedAt   time.Time `json:"postedAt,omitempty"`
}

// PostedStore 持久化已发布 ID 集合。每个批次开始时 Load，结束时 Save。
type PostedStore interface {
	Load(ctx context.Context) (*processor.PostedSet, error)
	Save(ctx context.Context, set *processor.PostedSet) error
	List(ctx context.Context, limit int) ([]PostedRecord, error)
	Close() error
}

type Options struct {
	Driver      string
	File        string
	PostgresDSN string
	SQLitePath  string
	RedisAddr   string
}

// Open 按 driver 创建存储
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (PostedStore, error) {
	switch opts.Driver {
	case DriverFile, "":
		return NewFileStore(opts.File)
	case DriverPostgres:
		db, err := gorm.Open(postgres.Open(opts.PostgresDSN), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return NewDBStore(db)
	case DriverSQLite:
		db, err := gorm.Open(sqlite.Open(opts.SQLitePath), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return NewDBStore(db)
	case DriverRedis:
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("redis store requires REDIS_ADDR")
		}
		return NewRedisStore(NewRedisClient(ctx, opts.RedisAddr, logger)), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

// NewRedisClient 创建客户端并探测连通性，失败只告警
func NewRedisClient(ctx context.Context, addr string, logger zerolog.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", addr).Msg("redis ping failed")
	}
	return rdb
}

// PostedMovie 已发布条目表
type PostedMovie struct {
	ID          int               `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Title       string            `gorm:"size:512" json:"title"`
	MediaType   string            `gorm:"size:16;index" json:"mediaType"`
	ReleaseDate string            `gorm:"size:10" json:"releaseDate"`
	TrailerURL  string            `gorm:"size:256" json:"trailerUrl"`
	PostedAt    time.Time         `gorm:"index" json:"postedAt"`
	ExtraData   datatypes.JSONMap `json:"extraData"`

	CreatedAt time.Time `json:"createdAt"`
}

// DBStore 基于 gorm 的存储，支持 PostgreSQL 与 SQLite
type DBStore struct {
	DB *gorm.DB
}

func NewDBStore(db *gorm.DB) (*DBStore, error) {
	if err := db.AutoMigrate(&PostedMovie{}); err != nil {
		return nil, fmt.Errorf("migrate posted_movies: %w", err)
	}
	return &DBStore{DB: db}, nil
}

func (s *DBStore) Load(ctx context.Context) (*processor.PostedSet, error) {
	var ids []int
	err := s.DB.WithContext(ctx).Model(&PostedMovie{}).
		Order("posted_at ASC").Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load posted ids: %w", err)
	}
	return processor.NewPostedSet(ids...), nil
}

// Save 追加本批次成功发送的记录，已存在的 ID 忽略
func (s *DBStore) Save(ctx context.Context, set *processor.PostedSet) error {
	pending := set.Pending()
	if len(pending) == 0 {
		return nil
	}

	rows := make([]PostedMovie, 0, len(pending))
	for _, e := range pending {
		extra := datatypes.JSONMap{}
		if e.Rating != nil {
			extra["rating"] = *e.Rating
		}
		rows = append(rows, PostedMovie{
			ID:          e.ID,
			Title:       e.Title,
			MediaType:   e.MediaType,
			ReleaseDate: e.ReleaseDate,
			TrailerURL:  e.TrailerURL,
			PostedAt:    e.PostedAt,
			ExtraData:   extra,
		})
	}

	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("save posted movies: %w", err)
	}
	set.MarkFlushed()
	return nil
}

func (s *DBStore) List(ctx context.Context, limit int) ([]PostedRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}
	var rows []PostedMovie
	if err := s.DB.WithContext(ctx).Order("posted_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]PostedRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, PostedRecord{
			ID:         r.ID,
			Title:      r.Title,
			MediaType:  r.MediaType,
			TrailerURL: r.TrailerURL,
			PostedAt:   r.PostedAt,
		})
	}
	return out, nil
}

func (s *DBStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
