package caption

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Strategy 从 n 个模板中选出一个下标
type Strategy interface {
	Pick(n int) int
}

// RandomStrategy 均匀随机选择
type RandomStrategy struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomStrategy(seed int64) *RandomStrategy {
	return &RandomStrategy{rnd: rand.New(rand.NewSource(seed))}
}

func (s *RandomStrategy) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

// RoundRobinStrategy 依次轮换
type RoundRobinStrategy struct {
	next atomic.Uint64
}

func (s *RoundRobinStrategy) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	return int((s.next.Add(1) - 1) % uint64(n))
}

func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "random":
		return NewRandomStrategy(time.Now().UnixNano()), nil
	case "round_robin", "roundrobin":
		return &RoundRobinStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown template strategy %q", name)
	}
}
