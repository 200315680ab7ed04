package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/LJTian/MovieCast/internal/processor"
	"github.com/redis/go-redis/v9"
)

const (
	redisPostedKey    = "moviecast:posted"
	redisPostedLogKey = "moviecast:posted:log"
	DefaultLockKey    = "moviecast:cycle:lock"
)

// RedisStore 用 Set 保存 ID，用 List 保存发布记录（最新在前）
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Load(ctx context.Context) (*processor.PostedSet, error) {
	members, err := s.rdb.SMembers(ctx, redisPostedKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load posted ids: %w", err)
	}
	ids := make([]int, 0, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return processor.NewPostedSet(ids...), nil
}

func (s *RedisStore) Save(ctx context.Context, set *processor.PostedSet) error {
	pending := set.Pending()
	if len(pending) == 0 {
		return nil
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range pending {
			pipe.SAdd(ctx, redisPostedKey, e.ID)
			bs, err := json.Marshal(PostedRecord{
				ID:         e.ID,
				Title:      e.Title,
				MediaType:  e.MediaType,
				TrailerURL: e.TrailerURL,
				PostedAt:   e.PostedAt,
			})
			if err != nil {
				return err
			}
			pipe.LPush(ctx, redisPostedLogKey, bs)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save posted ids: %w", err)
	}
	set.MarkFlushed()
	return nil
}

func (s *RedisStore) List(ctx context.Context, limit int) ([]PostedRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}
	raw, err := s.rdb.LRange(ctx, redisPostedLogKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]PostedRecord, 0, len(raw))
	for _, r := range raw {
		var rec PostedRecord
		if err := json.Unmarshal([]byte(r), &rec); err == nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock 跨进程的发布周期互斥锁（SET NX PX），TTL 兜底防止进程崩溃后死锁
type RedisLock struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewRedisLock(rdb *redis.Client, key string, ttl time.Duration) *RedisLock {
	if key == "" {
		key = DefaultLockKey
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisLock{rdb: rdb, key: key, ttl: ttl}
}

// TryLock 立即返回；ok 为 false 表示锁被其他进程持有
func (l *RedisLock) TryLock(ctx context.Context) (unlock func(), ok bool, err error) {
	token, err := randomToken()
	if err != nil {
		return nil, false, err
	}
	ok, err = l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire cycle lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		// 用独立 context，避免周期超时后无法释放
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = unlockScript.Run(releaseCtx, l.rdb, []string{l.key}, token).Err()
	}, true, nil
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
