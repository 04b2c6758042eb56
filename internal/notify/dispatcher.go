package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/phrazzld/taskflow-api/internal/platform/chat"
	"github.com/phrazzld/taskflow-api/internal/redact"
	"github.com/sethvargo/go-retry"
	"github.com/sourcegraph/conc/pool"
)

// Notifier is what producers depend on to emit notifications.
type Notifier interface {
	Submit(ctx context.Context, job Job)
	SubmitBatch(ctx context.Context, jobs []Job) BatchResult
}

// Outcome is the terminal state of one job.
type Outcome string

// Possible outcomes
const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
	OutcomeDropped   Outcome = "dropped"
)

// BatchResult counts the outcomes of a SubmitBatch call.
type BatchResult struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Dropped   int `json:"dropped"`
}

// DispatcherConfig sizes the dispatcher.
type DispatcherConfig struct {
	// Workers is the number of goroutines draining the queue. Defaults to 1.
	Workers int

	// QueueSize bounds how many jobs may wait for a worker.
	QueueSize int

	// BatchConcurrency caps concurrent deliveries inside SubmitBatch.
	BatchConcurrency int

	Policies Policies
}

// DefaultDispatcherConfig returns a DispatcherConfig with reasonable defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:          4,
		QueueSize:        256,
		BatchConcurrency: 8,
		Policies:         DefaultPolicies(),
	}
}

// Dispatcher delivers jobs on a worker pool. Each job is rendered once and
// sent with the retry policy of its kind; only transient delivery errors are
// retried.
type Dispatcher struct {
	sender   chat.Sender
	renderer *Renderer
	queue    *Queue
	config   DispatcherConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	logger *slog.Logger
	onDone func(Job, Outcome, error)
}

var _ Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher. Call Start before submitting jobs.
func NewDispatcher(sender chat.Sender, renderer *Renderer, cfg DispatcherConfig, logger *slog.Logger) (*Dispatcher, error) {
	if sender == nil {
		return nil, errors.New("sender cannot be nil")
	}
	if renderer == nil {
		return nil, errors.New("renderer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "notify_dispatcher"))

	if cfg.Workers <= 0 {
		logger.Warn("invalid worker count specified, using default",
			slog.Int("specified_count", cfg.Workers),
			slog.Int("default_count", 1))
		cfg.Workers = 1
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		sender:   sender,
		renderer: renderer,
		queue:    NewQueue(cfg.QueueSize, logger),
		config:   cfg,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}, nil
}

// OnDone registers a callback invoked after every job reaches an outcome.
// Must be called before Start.
func (d *Dispatcher) OnDone(fn func(Job, Outcome, error)) {
	d.onDone = fn
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.logger.Info("starting notification dispatcher",
			slog.Int("workers", d.config.Workers),
			slog.Int("queue_size", d.config.QueueSize))
		for i := 0; i < d.config.Workers; i++ {
			d.wg.Add(1)
			go d.worker(i)
		}
	})
}

// Stop closes the queue and waits for workers to drain it. When ctx expires
// first, pending retries are abandoned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	var err error
	d.stopOnce.Do(func() {
		d.queue.Close()

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			d.logger.Warn("dispatcher drain timed out, cancelling pending deliveries",
				slog.Int("pending", d.queue.Len()))
			d.cancel()
			<-done
			err = ctx.Err()
		}
		d.cancel()
		d.logger.Info("notification dispatcher stopped")
	})
	return err
}

// Submit queues job for asynchronous delivery. It never blocks and never
// reports delivery problems to the caller.
func (d *Dispatcher) Submit(ctx context.Context, job Job) {
	if err := d.queue.Enqueue(job); err != nil {
		d.logger.WarnContext(ctx, "notification not queued",
			slog.String("job_id", job.ID.String()),
			slog.String("kind", string(job.Kind)),
			slog.String("error", err.Error()))
		d.finish(job, OutcomeDropped, err)
	}
}

// SubmitBatch delivers jobs concurrently and waits for all of them. One job's
// failure does not affect the others.
func (d *Dispatcher) SubmitBatch(ctx context.Context, jobs []Job) BatchResult {
	var succeeded, failed, dropped atomic.Int64

	p := pool.New().WithMaxGoroutines(d.config.BatchConcurrency)
	for _, job := range jobs {
		p.Go(func() {
			switch d.process(ctx, job, -1) {
			case OutcomeDelivered:
				succeeded.Add(1)
			case OutcomeDropped:
				dropped.Add(1)
			default:
				failed.Add(1)
			}
		})
	}
	p.Wait()

	res := BatchResult{
		Total:     len(jobs),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Dropped:   int(dropped.Load()),
	}
	d.logger.InfoContext(ctx, "notification batch finished",
		slog.Int("total", res.Total),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed),
		slog.Int("dropped", res.Dropped))
	return res
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	d.logger.Debug("starting worker", slog.Int("worker_id", id))

	for job := range d.queue.Jobs() {
		d.process(d.ctx, job, id)
	}

	d.logger.Debug("queue closed, stopping worker", slog.Int("worker_id", id))
}

// process renders and delivers a single job and reports its outcome.
func (d *Dispatcher) process(ctx context.Context, job Job, workerID int) Outcome {
	log := d.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("kind", string(job.Kind)),
		slog.Int("worker_id", workerID),
	)

	msg, err := d.renderer.Render(job)
	if err != nil {
		log.Error("failed to render notification", slog.String("error", err.Error()))
		d.finish(job, OutcomeFailed, err)
		return OutcomeFailed
	}

	attempts, err := d.deliver(ctx, job, msg, log)
	switch {
	case err == nil:
		log.Debug("notification delivered", slog.Int("attempts", attempts))
		d.finish(job, OutcomeDelivered, nil)
		return OutcomeDelivered
	case errors.Is(err, chat.ErrNotConfigured):
		log.Warn("chat delivery not configured, notification dropped")
		d.finish(job, OutcomeDropped, err)
		return OutcomeDropped
	default:
		log.Error("notification delivery failed",
			slog.Int("attempts", attempts),
			slog.String("error", redact.Error(err)))
		d.finish(job, OutcomeFailed, err)
		return OutcomeFailed
	}
}

// deliver sends msg under the job's retry policy and returns the number of
// attempts made.
func (d *Dispatcher) deliver(ctx context.Context, job Job, msg chat.Message, log *slog.Logger) (int, error) {
	policy := d.config.Policies.For(job.Kind)
	attempts := 0

	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attempts++
		err := d.sender.Send(ctx, msg)
		if err == nil {
			return nil
		}
		if chat.IsTransient(err) && attempts < policy.Attempts {
			log.Warn("notification attempt failed, will retry",
				slog.Int("attempt", attempts),
				slog.Int("max_attempts", policy.Attempts),
				slog.String("error", redact.Error(err)))
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return attempts, fmt.Errorf("deliver %s: %w", job.Kind, err)
	}
	return attempts, nil
}

func (d *Dispatcher) finish(job Job, outcome Outcome, err error) {
	if d.onDone != nil {
		d.onDone(job, outcome, err)
	}
}
