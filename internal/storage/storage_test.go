package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LJTian/MovieCast/internal/processor"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func sameIDs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// exerciseStore 走一遍 Load -> Confirm -> Save -> Load 的完整生命周期
func exerciseStore(t *testing.T, s PostedStore) {
	t.Helper()
	ctx := context.Background()

	set, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if set.Len() != 0 {
		t.Fatalf("new store should be empty, got %v", set.IDs())
	}

	r := 7.5
	now := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
	set.Confirm(processor.PostedEntry{ID: 303, Title: "Третий", MediaType: "movie", Rating: &r, PostedAt: now})
	set.Confirm(processor.PostedEntry{ID: 404, Title: "Четвёртый", MediaType: "tv", PostedAt: now.Add(time.Minute)})
	if err := s.Save(ctx, set); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if len(set.Pending()) != 0 {
		t.Fatalf("Save should flush pending entries")
	}

	reloaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if !sameIDs(reloaded.SortedIDs(), []int{303, 404}) {
		t.Fatalf("reloaded ids = %v, want [303 404]", reloaded.SortedIDs())
	}

	// 重复保存同一 ID 不应报错
	reloaded.Confirm(processor.PostedEntry{ID: 404, Title: "dup", PostedAt: now})
	if err := s.Save(ctx, reloaded); err != nil {
		t.Fatalf("re-save error: %v", err)
	}

	list, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) == 0 || list[0].ID != 404 {
		t.Fatalf("List should return most recent first, got %+v", list)
	}
}

func TestFileStoreLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("new file should contain [], got %q (%v)", data, err)
	}

	exerciseStore(t, s)

	data, _ = os.ReadFile(path)
	if strings.TrimSpace(string(data)) != "[303,404]" {
		t.Fatalf("file content = %q, want flat id list", data)
	}
}

func TestFileStoreKeepsExistingList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.json")
	if err := os.WriteFile(path, []byte("[101,202]"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	set, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !set.Has(101) || !set.Has(202) {
		t.Fatalf("existing ids not loaded: %v", set.IDs())
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDBStoreLifecycleSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := NewDBStore(db)
	if err != nil {
		t.Fatalf("NewDBStore error: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)

	var row PostedMovie
	if err := db.First(&row, 303).Error; err != nil {
		t.Fatalf("row 303 not found: %v", err)
	}
	if row.Title != "Третий" || row.ExtraData["rating"] != 7.5 {
		t.Fatalf("unexpected row: %+v", row)
	}
	var dup PostedMovie
	if err := db.First(&dup, 404).Error; err != nil || dup.Title != "Четвёртый" {
		t.Fatalf("duplicate save must not overwrite: %+v (%v)", dup, err)
	}
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisStoreLifecycle(t *testing.T) {
	_, rdb := newMiniredis(t)
	exerciseStore(t, NewRedisStore(rdb))
}

func TestRedisLockExcludesSecondHolder(t *testing.T) {
	mr, rdb := newMiniredis(t)
	ctx := context.Background()
	a := NewRedisLock(rdb, "", time.Minute)
	b := NewRedisLock(rdb, "", time.Minute)

	unlock, ok, err := a.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("first TryLock = %v, %v", ok, err)
	}
	if _, ok, err := b.TryLock(ctx); err != nil || ok {
		t.Fatalf("second TryLock should fail while held: ok=%v err=%v", ok, err)
	}

	unlock()
	unlockB, ok, err := b.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("TryLock after release = %v, %v", ok, err)
	}

	// 过期后旧持有者的 unlock 不能删除新持有者的锁
	mr.FastForward(2 * time.Minute)
	unlockA, ok, _ := a.TryLock(ctx)
	if !ok {
		t.Fatalf("lock should be free after ttl")
	}
	unlockB()
	if !mr.Exists(DefaultLockKey) {
		t.Fatalf("stale unlock removed someone else's lock")
	}
	unlockA()
	if mr.Exists(DefaultLockKey) {
		t.Fatalf("lock should be released")
	}
}

func TestOpenFileAndUnknownDriver(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Options{Driver: DriverFile, File: filepath.Join(t.TempDir(), "p.json")}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open file: %v", err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Fatalf("expected *FileStore, got %T", s)
	}
	if _, err := Open(ctx, Options{Driver: "mongo"}, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := Open(ctx, Options{Driver: DriverRedis}, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for redis without address")
	}
}
