package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LJTian/MovieCast/internal/caption"
	"github.com/LJTian/MovieCast/internal/collector"
	"github.com/LJTian/MovieCast/internal/processor"
	"github.com/LJTian/MovieCast/internal/publisher"
	"github.com/LJTian/MovieCast/internal/storage"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// ErrCycleRunning 上一个发布周期尚未结束
var ErrCycleRunning = errors.New("publish cycle already running")

const (
	ReasonOutsideWindow = "outside_window"
	ReasonBusy          = "busy"
	ReasonLocked        = "locked"
	ReasonNoCandidates  = "no_candidates"

	defaultCycleTimeout = 10 * time.Minute
	saveTimeout         = 30 * time.Second
)

// CycleLock 跨进程互斥，例如 storage.RedisLock
type CycleLock interface {
	TryLock(ctx context.Context) (unlock func(), ok bool, err error)
}

type Deps struct {
	Window    PublishWindow
	Fetcher   collector.Fetcher
	Trailers  collector.TrailerFinder
	Details   collector.DetailsFetcher
	Formatter *caption.Formatter
	Sender    publisher.Sender
	Store     storage.PostedStore
	PosterURL func(path string) string
	Lock      CycleLock

	Count   int
	Timeout time.Duration
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Report 单个发布周期的结果
type Report struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Hour       int       `json:"hour"`
	Forced     bool      `json:"forced"`
	Skipped    bool      `json:"skipped"`
	Reason     string    `json:"reason,omitempty"`
	Source     string    `json:"source,omitempty"`
	Fetched    int       `json:"fetched"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	PostedIDs  []int     `json:"postedIds,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type Scheduler struct {
	cron   *cron.Cron
	deps   Deps
	logger zerolog.Logger

	// 同一时间只允许一个发布周期
	sem *semaphore.Weighted

	mu sync.Mutex
	// lastRun 最近一次真正执行的周期；lastCheck 含窗口外等跳过的检查
	lastRun   *Report
	lastCheck *Report
}

func New(spec string, deps Deps) (*Scheduler, error) {
	if deps.Fetcher == nil || deps.Sender == nil || deps.Store == nil || deps.Formatter == nil {
		return nil, errors.New("scheduler: fetcher, sender, store and formatter are required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Timeout <= 0 {
		deps.Timeout = defaultCycleTimeout
	}

	c := cron.New(cron.WithLocation(deps.Window.Location()))
	s := &Scheduler{
		cron:   c,
		deps:   deps,
		logger: deps.Logger,
		sem:    semaphore.NewWeighted(1),
	}

	if spec != "" {
		if _, err := c.AddFunc(spec, s.tick); err != nil {
			return nil, fmt.Errorf("scheduler: invalid cron spec %q: %w", spec, err)
		}
	}
	return s, nil
}

// Start 启动定时任务；runNow 为 true 时立即在后台执行一轮
func (s *Scheduler) Start(runNow bool) {
	s.cron.Start()
	if runNow {
		go s.tick()
	}
}

// Stop 停止调度并等待正在执行的周期结束（或 ctx 到期）
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	// cron 不跟踪 runNow 启动的 goroutine，这里再等一次信号量
	if err := s.sem.Acquire(ctx, 1); err == nil {
		s.sem.Release(1)
	}
}

func (s *Scheduler) Window() PublishWindow {
	return s.deps.Window
}

// LastReport 返回最近一次未被跳过的周期
func (s *Scheduler) LastReport() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return Report{}, false
	}
	return *s.lastRun, true
}

// LastCheck 返回最近一次触发的结果，包括被跳过的
func (s *Scheduler) LastCheck() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCheck == nil {
		return Report{}, false
	}
	return *s.lastCheck, true
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Timeout)
	defer cancel()
	if _, err := s.RunOnce(ctx, false); err != nil && !errors.Is(err, ErrCycleRunning) {
		s.logger.Error().Err(err).Msg("publish cycle failed")
	}
}

// RunOnce 执行一个完整的发布周期；force 为 true 时忽略发布时间窗口
func (s *Scheduler) RunOnce(ctx context.Context, force bool) (Report, error) {
	now := s.deps.Now()
	rep := Report{
		StartedAt: now,
		Hour:      s.deps.Window.HourAt(now),
		Forced:    force,
		Source:    s.deps.Fetcher.Name(),
	}

	if !force && !s.deps.Window.Allows(rep.Hour) {
		s.logger.Info().Int("hour", rep.Hour).Ints("publish_hours", s.deps.Window.Hours()).Msg("not publish time, skip")
		rep.Skipped, rep.Reason = true, ReasonOutsideWindow
		return s.finish(rep, nil)
	}

	if !s.sem.TryAcquire(1) {
		s.logger.Warn().Int("hour", rep.Hour).Msg("previous publish cycle still running, skip")
		rep.Skipped, rep.Reason = true, ReasonBusy
		rep.FinishedAt = s.deps.Now()
		return rep, ErrCycleRunning
	}
	defer s.sem.Release(1)

	if s.deps.Lock != nil {
		unlock, ok, err := s.deps.Lock.TryLock(ctx)
		if err != nil {
			return s.finish(rep, err)
		}
		if !ok {
			s.logger.Warn().Msg("cycle lock held by another process, skip")
			rep.Skipped, rep.Reason = true, ReasonLocked
			return s.finish(rep, nil)
		}
		defer unlock()
	}

	s.logger.Info().Int("hour", rep.Hour).Bool("forced", force).Msg("publish cycle started")
	err := s.publish(ctx, &rep)
	return s.finish(rep, err)
}

func (s *Scheduler) finish(rep Report, err error) (Report, error) {
	rep.FinishedAt = s.deps.Now()
	if err != nil {
		rep.Error = err.Error()
	}
	s.mu.Lock()
	s.lastCheck = &rep
	if !rep.Skipped {
		s.lastRun = &rep
	}
	s.mu.Unlock()
	if !rep.Skipped {
		s.logger.Info().
			Int("fetched", rep.Fetched).
			Int("sent", rep.Sent).
			Int("failed", rep.Failed).
			Ints("posted_ids", rep.PostedIDs).
			Msg("publish cycle done")
	}
	return rep, err
}

func (s *Scheduler) publish(ctx context.Context, rep *Report) error {
	posted, err := s.deps.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load posted ids: %w", err)
	}

	name := s.deps.Fetcher.Name()
	items, err := s.deps.Fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", name, err)
	}
	rep.Fetched = len(items)
	if len(items) == 0 {
		s.logger.Info().Str("source", name).Msg("no candidates fetched")
		rep.Reason = ReasonNoCandidates
		return nil
	}

	sel := processor.NewSelector(posted, s.deps.Count)
	for m := range sel.Select(items) {
		if ctx.Err() != nil {
			sel.Reject(m.ID)
			break
		}
		log := s.logger.With().Int("id", m.ID).Str("title", m.Title).Logger()

		trailer := s.trailer(ctx, m, log)
		if s.deps.Details != nil && s.deps.Formatter.NeedsDetails() {
			if err := s.deps.Details.Enrich(ctx, &m); err != nil {
				log.Warn().Err(err).Msg("details lookup failed, posting without them")
			}
		}

		post := publisher.Post{
			Caption:   s.deps.Formatter.Caption(m, trailer),
			ParseMode: string(s.deps.Formatter.Markup()),
		}
		if s.deps.PosterURL != nil {
			post.PhotoURL = s.deps.PosterURL(m.PosterPath)
		}

		if err := s.deps.Sender.Send(ctx, post); err != nil {
			log.Error().Err(err).Msg("send failed, skip item")
			sel.Reject(m.ID)
			rep.Failed++
			continue
		}

		posted.Confirm(processor.PostedEntry{
			ID:          m.ID,
			Title:       m.Title,
			MediaType:   m.MediaType,
			ReleaseDate: m.ReleaseDate,
			Rating:      m.Rating,
			TrailerURL:  trailer,
			PostedAt:    s.deps.Now(),
		})
		rep.Sent++
		rep.PostedIDs = append(rep.PostedIDs, m.ID)
		log.Info().Msg("posted")
	}

	// 周期超时后仍需把已发送的记录落盘
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := s.deps.Store.Save(saveCtx, posted); err != nil {
		return fmt.Errorf("save posted ids: %w", err)
	}
	return nil
}

func (s *Scheduler) trailer(ctx context.Context, m collector.Movie, log zerolog.Logger) string {
	if s.deps.Trailers == nil {
		return ""
	}
	url, err := s.deps.Trailers.Trailer(ctx, m)
	if err != nil {
		log.Warn().Err(err).Msg("trailer lookup failed, posting without it")
		return ""
	}
	return url
}
