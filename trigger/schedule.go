package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/weftlabs/weft/definition"
	"github.com/weftlabs/weft/id"
)

// Emitter emits schedule lifecycle events. ext.Registry satisfies this
// interface via EmitScheduleFired.
type Emitter interface {
	EmitScheduleFired(ctx context.Context, workflow string, execID id.ExecutionID)
}

// RunnerOption configures a schedule Runner.
type RunnerOption func(*Runner)

// WithTickInterval sets how often the runner checks for due schedules.
func WithTickInterval(d time.Duration) RunnerOption {
	return func(r *Runner) { r.tickInterval = d }
}

// Runner fires schedule-bound workflows on a tick loop. Workflows
// registered after Start are picked up on the next tick.
type Runner struct {
	workflows *definition.Registry
	dispatch  DispatchFunc
	emitter   Emitter
	logger    *slog.Logger

	tickInterval time.Duration

	// parsed caches compiled cron expressions per workflow.
	parsedMu sync.RWMutex
	parsed   map[string]cronlib.Schedule

	mu   sync.Mutex
	next map[string]time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRunner creates a schedule Runner.
func NewRunner(workflows *definition.Registry, dispatch DispatchFunc, emitter Emitter, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		workflows:    workflows,
		dispatch:     dispatch,
		emitter:      emitter,
		logger:       logger,
		tickInterval: 1 * time.Second,
		parsed:       make(map[string]cronlib.Schedule),
		next:         make(map[string]time.Time),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the schedule tick goroutine.
func (r *Runner) Start(_ context.Context) error {
	r.wg.Add(1)
	go r.tickLoop()
	r.logger.Info("schedule runner started",
		slog.Duration("tick_interval", r.tickInterval),
	)
	return nil
}

// Stop signals the runner to stop and waits for it to finish.
func (r *Runner) Stop(_ context.Context) error {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("schedule runner stopped")
	return nil
}

func (r *Runner) tickLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Runner) tick() {
	ctx := context.Background()
	now := time.Now().UTC()

	for _, name := range r.workflows.Names() {
		wf, ok := r.workflows.Get(name)
		if !ok {
			continue
		}
		binding, ok := wf.Binding(definition.TriggerSchedule)
		if !ok {
			continue
		}

		sched, err := r.schedule(name, binding.Schedule)
		if err != nil {
			r.logger.Error("invalid schedule expression",
				slog.String("workflow", name),
				slog.String("schedule", binding.Schedule),
				slog.String("error", err.Error()),
			)
			continue
		}

		r.mu.Lock()
		due, seen := r.next[name]
		if !seen {
			// First sighting: arm without firing.
			r.next[name] = sched.Next(now)
			r.mu.Unlock()
			continue
		}
		if due.After(now) {
			r.mu.Unlock()
			continue
		}
		r.next[name] = sched.Next(now)
		r.mu.Unlock()

		r.fire(ctx, name)
	}
}

func (r *Runner) fire(ctx context.Context, workflow string) {
	resp, err := r.dispatch(ctx, definition.TriggerSchedule, workflow, nil)
	if err != nil {
		r.logger.Error("schedule dispatch failed",
			slog.String("workflow", workflow),
			slog.String("error", err.Error()),
		)
		return
	}

	r.logger.Info("schedule fired",
		slog.String("workflow", workflow),
		slog.String("execution_id", resp.ExecutionID.String()),
		slog.String("status", string(resp.Status)),
	)
	if r.emitter != nil {
		r.emitter.EmitScheduleFired(ctx, workflow, resp.ExecutionID)
	}
}

// schedule returns the compiled cron schedule for a workflow, caching
// the parse.
func (r *Runner) schedule(workflow, expr string) (cronlib.Schedule, error) {
	r.parsedMu.RLock()
	sched, ok := r.parsed[workflow]
	r.parsedMu.RUnlock()
	if ok {
		return sched, nil
	}

	sched, err := definition.ParseSchedule(expr)
	if err != nil {
		return nil, err
	}

	r.parsedMu.Lock()
	r.parsed[workflow] = sched
	r.parsedMu.Unlock()
	return sched, nil
}
