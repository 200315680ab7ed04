package processor

import (
	"iter"
	"sort"
	"time"

	"github.com/LJTian/MovieCast/internal/collector"
)

// PostedEntry 是一次成功发布的记录，写入存储层前的统一结构
type PostedEntry struct {
	ID          int
	Title       string
	MediaType   string
	ReleaseDate string
	Rating      *float64
	TrailerURL  string
	PostedAt    time.Time
}

// PostedSet 已发布 ID 集合，保留插入顺序以便原样写回扁平列表。
// 集合没有上限也不会过期。
type PostedSet struct {
	order   []int
	ids     map[int]struct{}
	pending []PostedEntry
}

func NewPostedSet(ids ...int) *PostedSet {
	s := &PostedSet{ids: make(map[int]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s *PostedSet) Has(id int) bool {
	_, ok := s.ids[id]
	return ok
}

// Add 返回 id 是否为新加入
func (s *PostedSet) Add(id int) bool {
	if s.Has(id) {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

func (s *PostedSet) Remove(id int) bool {
	if !s.Has(id) {
		return false
	}
	delete(s.ids, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *PostedSet) Len() int {
	return len(s.order)
}

// IDs 按加入顺序返回副本
func (s *PostedSet) IDs() []int {
	out := make([]int, len(s.order))
	copy(out, s.order)
	return out
}

// Confirm 记录一次成功发送；id 同时进入集合
func (s *PostedSet) Confirm(e PostedEntry) {
	s.Add(e.ID)
	s.pending = append(s.pending, e)
}

// Pending 返回自加载以来成功发送、尚未落盘的记录
func (s *PostedSet) Pending() []PostedEntry {
	out := make([]PostedEntry, len(s.pending))
	copy(out, s.pending)
	return out
}

// MarkFlushed 在存储层保存成功后清空待写记录
func (s *PostedSet) MarkFlushed() {
	s.pending = nil
}

// SortedIDs 返回升序副本，便于比较
func (s *PostedSet) SortedIDs() []int {
	out := s.IDs()
	sort.Ints(out)
	return out
}

// Selector 对候选列表做惰性去重选择。
// 每个被产出的 ID 在产出前即写入 posted，同一批次内不会重复选中。
type Selector struct {
	posted   *PostedSet
	limit    int
	taken    int
	picked   map[int]struct{}
	rejected map[int]struct{}
}

func NewSelector(posted *PostedSet, limit int) *Selector {
	if posted == nil {
		posted = NewPostedSet()
	}
	return &Selector{
		posted:   posted,
		limit:    limit,
		picked:   make(map[int]struct{}),
		rejected: make(map[int]struct{}),
	}
}

// Select 产出不在 posted 中的条目，最多 limit 条；limit <= 0 时不产出任何条目
func (s *Selector) Select(items []collector.Movie) iter.Seq[collector.Movie] {
	return func(yield func(collector.Movie) bool) {
		for _, it := range items {
			if s.taken >= s.limit {
				return
			}
			if _, ok := s.rejected[it.ID]; ok {
				continue
			}
			if !s.posted.Add(it.ID) {
				continue
			}
			s.picked[it.ID] = struct{}{}
			s.taken++
			if !yield(it) {
				return
			}
		}
	}
}

// Reject 撤销一次选择（例如发送失败）：ID 移出 posted 以便下个周期重试，
// 释放名额，本批次内不再产出。
func (s *Selector) Reject(id int) {
	if _, ok := s.picked[id]; !ok {
		return
	}
	delete(s.picked, id)
	s.rejected[id] = struct{}{}
	s.posted.Remove(id)
	s.taken--
}

// Taken 返回当前占用的名额数
func (s *Selector) Taken() int {
	return s.taken
}
