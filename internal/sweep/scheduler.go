package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/taskflow-api/internal/redact"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Kind names a sweep.
type Kind string

// Sweep kinds
const (
	KindDueDate      Kind = "due-date"
	KindDailySummary Kind = "daily-summary"
	KindRetention    Kind = "retention"
)

var (
	// ErrUnknownSweep is returned by Trigger for an unregistered kind.
	ErrUnknownSweep = errors.New("unknown sweep")

	// ErrSweepRunning is returned by Trigger while the same sweep is active.
	ErrSweepRunning = errors.New("sweep already running")

	// ErrSchedulerStopped is returned by Trigger after Stop.
	ErrSchedulerStopped = errors.New("scheduler stopped")
)

// Schedule returns the first fire time strictly after now.
type Schedule func(now time.Time) time.Time

// Hourly fires at minute 0 of every hour.
func Hourly() Schedule {
	return func(now time.Time) time.Time {
		return now.UTC().Truncate(time.Hour).Add(time.Hour)
	}
}

// DailyAt fires once a day at hour:00 UTC.
func DailyAt(hour int) Schedule {
	return func(now time.Time) time.Time {
		now = now.UTC()
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}

// Runner executes one sweep.
type Runner func(ctx context.Context) error

type entry struct {
	kind     Kind
	schedule Schedule
	run      Runner
	running  atomic.Bool
}

// Scheduler fires registered sweeps on their schedules. A sweep never runs
// concurrently with itself: a tick that arrives while the previous run is
// still active is skipped.
type Scheduler struct {
	mu      sync.Mutex
	entries map[Kind]*entry

	now       func() time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        conc.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	logger    *slog.Logger
}

// NewScheduler creates an idle scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		entries: make(map[Kind]*entry),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With(slog.String("component", "scheduler")),
	}
}

// Register adds a sweep. A nil schedule registers a sweep that only runs
// through Trigger. Register must be called before Start.
func (s *Scheduler) Register(kind Kind, schedule Schedule, run Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[kind] = &entry{kind: kind, schedule: schedule, run: run}
}

// Kinds lists the registered sweeps in name order.
func (s *Scheduler) Kinds() []Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]Kind, 0, len(s.entries))
	for k := range s.entries {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Start launches one timer loop per scheduled sweep.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, e := range s.entries {
			if e.schedule == nil {
				continue
			}
			e := e
			s.wg.Go(func() { s.loop(e) })
			s.logger.Info("sweep scheduled",
				slog.String("sweep", string(e.kind)),
				slog.Time("next_run", e.schedule(s.now())))
		}
	})
}

// Stop cancels running sweeps and waits for them to return, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.cancel()
		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			s.logger.Info("scheduler stopped")
		case <-ctx.Done():
			err = ctx.Err()
			s.logger.Warn("scheduler stop timed out")
		}
	})
	return err
}

// Trigger runs a sweep now, outside its schedule, in the background.
// It returns ErrSweepRunning if that sweep is already active.
func (s *Scheduler) Trigger(ctx context.Context, kind Kind) error {
	s.mu.Lock()
	e, ok := s.entries[kind]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSweep, kind)
	}
	if err := s.fire(e, "manual"); err != nil {
		return fmt.Errorf("%w: %s", err, kind)
	}
	s.logger.InfoContext(ctx, "sweep triggered", slog.String("sweep", string(kind)))
	return nil
}

// Running reports whether the sweep is active.
func (s *Scheduler) Running(kind Kind) bool {
	s.mu.Lock()
	e, ok := s.entries[kind]
	s.mu.Unlock()
	return ok && e.running.Load()
}

func (s *Scheduler) loop(e *entry) {
	for {
		next := e.schedule(s.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			_ = s.fire(e, "schedule")
		}
	}
}

// fire starts e unless it is already running.
func (s *Scheduler) fire(e *entry, trigger string) error {
	log := s.logger.With(slog.String("sweep", string(e.kind)), slog.String("trigger", trigger))
	if s.ctx.Err() != nil {
		log.Debug("scheduler stopped, sweep not started")
		return ErrSchedulerStopped
	}
	if !e.running.CompareAndSwap(false, true) {
		log.Warn("previous run still active, skipping")
		return ErrSweepRunning
	}

	s.wg.Go(func() {
		defer e.running.Store(false)
		start := s.now()

		var err error
		var pc panics.Catcher
		pc.Try(func() { err = e.run(s.ctx) })
		if r := pc.Recovered(); r != nil {
			err = r.AsError()
		}

		if err != nil {
			log.Error("sweep failed",
				slog.Duration("duration", s.now().Sub(start)),
				slog.String("error", redact.Error(err)))
			return
		}
		log.Info("sweep completed", slog.Duration("duration", s.now().Sub(start)))
	})
	return nil
}
