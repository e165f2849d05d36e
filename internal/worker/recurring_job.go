package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"finledger/internal/services"
)

// RecurringJob runs the recurring scheduler on a cron schedule. Passes never
// overlap: a tick that fires while the previous pass is still running is
// skipped.
type RecurringJob struct {
	scheduler *services.RecurringScheduler
	schedule  string
	timeout   time.Duration
	now       func() time.Time

	pass    sync.Mutex
	passes  sync.WaitGroup
	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// cronLogger routes cron's own messages to slog: panics recovered from a
// pass at error level, skipped ticks at debug.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// NewRecurringJob validates schedule, which accepts five-field cron
// expressions and descriptors such as "@every 1m" or "@daily".
func NewRecurringJob(scheduler *services.RecurringScheduler, schedule string, timeout time.Duration) (*RecurringJob, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid recurring schedule %q: %w", schedule, err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &RecurringJob{scheduler: scheduler, schedule: schedule, timeout: timeout, now: time.Now}, nil
}

// Start runs one pass immediately to catch up after downtime, then follows
// the schedule until Stop is called or ctx ends.
func (j *RecurringJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return fmt.Errorf("recurring job is already running")
	}

	logger := cronLogger{l: slog.Default().With("job", "recurring")}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(j.schedule, func() { j.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule recurring job: %w", err)
	}
	j.cron = c
	j.running = true

	j.passes.Add(1)
	go func() {
		defer j.passes.Done()
		defer func() {
			if p := recover(); p != nil {
				slog.ErrorContext(ctx, "Recurring catch-up pass panicked", "panic", p)
			}
		}()
		j.RunOnce(ctx)
	}()
	c.Start()
	slog.InfoContext(ctx, "Recurring job started", "schedule", j.schedule)
	return nil
}

// RunOnce performs a single pass bounded by the job timeout. It returns
// immediately when another pass of this job is in progress.
func (j *RecurringJob) RunOnce(ctx context.Context) (services.PassResult, error) {
	if !j.pass.TryLock() {
		slog.DebugContext(ctx, "Recurring pass already in progress, skipping")
		return services.PassResult{}, nil
	}
	defer j.pass.Unlock()

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	res, err := j.scheduler.ProcessDue(ctx, j.now().UTC())
	if err != nil {
		slog.ErrorContext(ctx, "Recurring pass failed", "error", err, "duration", time.Since(start))
		return res, err
	}
	slog.DebugContext(ctx, "Recurring pass finished",
		"rules_checked", res.RulesChecked,
		"materialized", res.Materialized,
		"failed", len(res.Failures),
		"duration", time.Since(start))
	return res, nil
}

// Stop waits for running passes, the catch-up pass of Start included, to
// finish or for ctx to end.
func (j *RecurringJob) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return nil
	}
	cronDone := j.cron.Stop()
	j.running = false
	j.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		j.passes.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.InfoContext(ctx, "Recurring job stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Recurring job stop timed out")
		return ctx.Err()
	}
}

func (j *RecurringJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}
