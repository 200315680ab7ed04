package scheduler

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// PublishWindow 允许发布的小时集合（0-23），按 loc 时区计算当前小时
type PublishWindow struct {
	hours map[int]struct{}
	loc   *time.Location
}

// ParseWindow 解析小时列表；无法解析或越界的项被忽略并通过第二个返回值报告，不会导致整体失败
func ParseWindow(entries []string, loc *time.Location) (PublishWindow, []string) {
	if loc == nil {
		loc = time.Local
	}
	w := PublishWindow{hours: make(map[int]struct{}, len(entries)), loc: loc}
	var invalid []string
	for _, e := range entries {
		h, err := strconv.Atoi(strings.TrimSpace(e))
		if err != nil || h < 0 || h > 23 {
			invalid = append(invalid, e)
			continue
		}
		w.hours[h] = struct{}{}
	}
	return w, invalid
}

func NewWindow(loc *time.Location, hours ...int) PublishWindow {
	entries := make([]string, 0, len(hours))
	for _, h := range hours {
		entries = append(entries, strconv.Itoa(h))
	}
	w, _ := ParseWindow(entries, loc)
	return w
}

func (w PublishWindow) Allows(hour int) bool {
	_, ok := w.hours[hour]
	return ok
}

func (w PublishWindow) AllowsAt(t time.Time) bool {
	return w.Allows(w.HourAt(t))
}

func (w PublishWindow) HourAt(t time.Time) int {
	loc := w.loc
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Hour()
}

func (w PublishWindow) Location() *time.Location {
	if w.loc == nil {
		return time.Local
	}
	return w.loc
}

// Hours 升序返回
func (w PublishWindow) Hours() []int {
	out := make([]int, 0, len(w.hours))
	for h := range w.hours {
		out = append(out, h)
	}
	sort.Ints(out)
	return out
}
