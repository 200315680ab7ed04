package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/LJTian/MovieCast/internal/processor"
)

// FileStore 把已发布 ID 以扁平 JSON 数组写入文件，每次保存整体覆盖
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore 文件不存在时写入空数组
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = "posted.json"
	}
	s := &FileStore{path: path}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := s.write(nil); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStore) Load(_ context.Context) (*processor.PostedSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.read()
	if err != nil {
		return nil, err
	}
	return processor.NewPostedSet(ids...), nil
}

func (s *FileStore) Save(_ context.Context, set *processor.PostedSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(set.IDs()); err != nil {
		return err
	}
	set.MarkFlushed()
	return nil
}

// List 文件中只有 ID，按最近发布在前返回
func (s *FileStore) List(_ context.Context, limit int) ([]PostedRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}
	s.mu.Lock()
	ids, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]PostedRecord, 0, min(limit, len(ids)))
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, PostedRecord{ID: ids[i]})
	}
	return out, nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) read() ([]int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return ids, nil
}

// write 先写临时文件再 rename，避免中途崩溃留下半个文件
func (s *FileStore) write(ids []int) error {
	if ids == nil {
		ids = []int{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".posted-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
