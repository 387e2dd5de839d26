package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Handler executes one job. Returning nil completes the job; errors are
// retried with backoff unless wrapped with [Permanent].
type Handler func(ctx context.Context, payload []byte) error

type Options struct {
	Workers      int
	PollInterval time.Duration
	MaxAttempts  int
	// Backoff returns the delay before retry n (1-based). Defaults to
	// exponential seconds capped at ten minutes.
	Backoff func(attempt int) time.Duration
	// StaleAfter is how long a job may stay running before it is reclaimed.
	StaleAfter time.Duration
}

type Runner struct {
	db       *gorm.DB
	log      *log.Logger
	opts     Options
	handlers map[string]Handler
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

func NewRunner(db *gorm.DB, l *log.Logger, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Backoff == nil {
		opts.Backoff = ExponentialBackoff
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 15 * time.Minute
	}
	return &Runner{
		db:       db,
		log:      l.WithPrefix("jobs"),
		opts:     opts,
		handlers: make(map[string]Handler),
		limiters: make(map[string]*rate.Limiter),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func ExponentialBackoff(attempt int) time.Duration {
	if attempt > 10 {
		attempt = 10
	}
	d := time.Duration(1<<attempt) * time.Second
	if d > 10*time.Minute {
		d = 10 * time.Minute
	}
	return d
}

func (r *Runner) Register(kind string, h Handler) {
	r.handlers[kind] = h
}

// Limit caps how often jobs of kind start, across all workers.
func (r *Runner) Limit(kind string, perSecond float64) {
	if perSecond <= 0 {
		delete(r.limiters, kind)
		return
	}
	r.limiters[kind] = rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Run polls for due jobs until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if n, err := r.ReclaimStale(ctx); err != nil {
		r.log.Warn("reclaim stale jobs failed", "err", err)
	} else if n > 0 {
		r.log.Info("reclaimed stale jobs", "count", n)
	}

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	r.log.Info("job runner started", "workers", r.opts.Workers)
	for {
		if _, err := r.RunPending(ctx); err != nil && ctx.Err() == nil {
			r.log.Error("job poll failed", "err", err)
		}
		select {
		case <-ctx.Done():
			r.log.Info("job runner stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunPending processes the jobs due now and returns how many were claimed.
func (r *Runner) RunPending(ctx context.Context) (int, error) {
	var due []Job
	err := r.db.WithContext(ctx).
		Where("status = ? AND run_after <= ?", StatusPending, r.now()).
		Order("run_after, id").
		Limit(r.opts.Workers * 4).
		Find(&due).Error
	if err != nil {
		return 0, fmt.Errorf("list due jobs: %w", err)
	}

	claimed := make(chan struct{}, len(due))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, job := range due {
		g.Go(func() error {
			if r.process(gctx, job) {
				claimed <- struct{}{}
			}
			return nil
		})
	}
	_ = g.Wait()
	close(claimed)
	return len(claimed), nil
}

func (r *Runner) process(ctx context.Context, job Job) bool {
	if lim := r.limiters[job.Kind]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return false
		}
	}

	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", job.ID, StatusPending).
		Updates(map[string]any{"status": StatusRunning, "attempts": gorm.Expr("attempts + 1")})
	if res.Error != nil {
		r.log.Error("claim job failed", "id", job.ID, "err", res.Error)
		return false
	}
	if res.RowsAffected == 0 {
		return false
	}
	job.Attempts++

	logger := r.log.With("job", job.ID, "kind", job.Kind, "attempt", job.Attempts)
	err := r.execute(ctx, job)
	if err == nil {
		r.finish(ctx, job.ID, map[string]any{"status": StatusDone, "last_error": ""})
		logger.Debug("job done")
		return true
	}

	if IsPermanent(err) || job.Attempts >= r.opts.MaxAttempts {
		logger.Error("job failed", "err", err)
		r.finish(ctx, job.ID, map[string]any{"status": StatusFailed, "last_error": err.Error()})
		return true
	}

	delay := r.opts.Backoff(job.Attempts)
	logger.Warn("job will be retried", "err", err, "in", delay)
	r.finish(ctx, job.ID, map[string]any{
		"status":     StatusPending,
		"last_error": err.Error(),
		"run_after":  r.now().Add(delay),
	})
	return true
}

func (r *Runner) execute(ctx context.Context, job Job) (err error) {
	h, ok := r.handlers[job.Kind]
	if !ok {
		return Permanent(fmt.Errorf("no handler registered for %q", job.Kind))
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h(ctx, []byte(job.Payload))
}

func (r *Runner) finish(ctx context.Context, id uint, updates map[string]any) {
	// the outcome must be recorded even when the poll context is winding down
	ctx = context.WithoutCancel(ctx)
	if err := r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		r.log.Error("record job outcome failed", "id", id, "err", err)
	}
}

// ReclaimStale returns jobs stuck in running (a worker died mid-job) to
// pending.
func (r *Runner) ReclaimStale(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.opts.StaleAfter)
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("status = ? AND updated < ?", StatusRunning, cutoff).
		Updates(map[string]any{"status": StatusPending, "run_after": r.now()})
	if res.Error != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
