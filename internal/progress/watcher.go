package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// DefaultPollInterval is how often a watch re-reads progress.
const DefaultPollInterval = 5 * time.Second

// Watcher polls progress on a schedule. Each Watch registers one job.
type Watcher struct {
	view   *View
	sched  gocron.Scheduler
	logger *slog.Logger
}

func NewWatcher(view *View, logger *slog.Logger, opts ...gocron.SchedulerOption) (*Watcher, error) {
	sched, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("create progress scheduler: %w", err)
	}
	return &Watcher{view: view, sched: sched, logger: logger}, nil
}

func (w *Watcher) Start() {
	w.sched.Start()
	w.logger.Info("progress watcher started")
}

// Stop removes every watch and waits for running polls to finish.
func (w *Watcher) Stop() error {
	if err := w.sched.Shutdown(); err != nil {
		return fmt.Errorf("stop progress watcher: %w", err)
	}
	w.logger.Info("progress watcher stopped")
	return nil
}

// Subscription is the handle returned by Watch.
type Subscription struct {
	w    *Watcher
	id   uuid.UUID
	once sync.Once
	done chan struct{}
}

// Stop ends the watch. It is safe to call more than once.
func (s *Subscription) Stop() {
	s.once.Do(func() {
		if err := s.w.sched.RemoveJob(s.id); err != nil {
			s.w.logger.Debug("remove progress job", "error", err)
		}
		close(s.done)
	})
}

// Watch calls fn with a freshly read card every interval, starting
// immediately. The watch ends when ctx is cancelled or Stop is called.
// Polls bypass the View cache: a watcher usually runs in a process other
// than the one recording completions, so Invalidate never reaches it.
func (w *Watcher) Watch(ctx context.Context, staffID, lastName string, interval time.Duration, fn func(*Progress, error)) (*Subscription, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	job, err := w.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) {
			fn(w.view.Get(ctx, staffID, lastName, true))
		}),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule progress watch: %w", err)
	}

	sub := &Subscription{w: w, id: job.ID(), done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			sub.Stop()
		case <-sub.done:
		}
	}()
	return sub, nil
}
