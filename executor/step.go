package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/backoff"
	"github.com/weftlabs/weft/cache"
	"github.com/weftlabs/weft/definition"
	"github.com/weftlabs/weft/middleware"
	"github.com/weftlabs/weft/operation"
	"github.com/weftlabs/weft/state"
)

// runStep executes one step to its final outcome: resolve inputs against
// a frozen snapshot, consult the cache, then invoke the operation under
// the retry policy. The returned result is committed (or judged) by the
// caller; nothing here touches live state.
func (e *Executor) runStep(ctx context.Context, wf *definition.Workflow, exec *state.Execution, mgr *state.Manager, step *definition.Step) stepResult {
	res := stepResult{step: step}
	start := time.Now()
	defer func() { res.duration = time.Since(start) }()

	view := mgr.Snapshot(step.Use)

	input := make(map[string]any, len(step.Input))
	for name, ex := range step.Input {
		v, err := ex.Resolve(view)
		if err != nil {
			res.err = &operation.Error{Kind: step.Op, Step: step.Name, Permanent: true, Err: err}
			return res
		}
		input[name] = v
	}

	if step.Cache.Enabled && e.cache != nil {
		used := make(map[string]any, len(step.Use))
		for _, f := range step.Use {
			if v, ok := view.Field(f); ok {
				used[f] = v
			}
		}
		key, keyErr := cache.Key(wf.Name, wf.Version, step.Name, input, used)
		if keyErr != nil {
			e.logger.Warn("cache key derivation error",
				slog.String("step", step.Name),
				slog.String("error", keyErr.Error()),
			)
		} else {
			res.cacheKey = key
		}
	}

	handler, ok := e.ops.Get(step.Op)
	if !ok {
		res.err = &operation.Error{
			Kind: step.Op, Step: step.Name, Permanent: true,
			Err: fmt.Errorf("%w: %s", weft.ErrOperationNotFound, step.Op),
		}
		return res
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	policy := step.Retry
	strategy := backoff.FromPolicy(policy)
	if !policy.Declared {
		policy.MaxRetries = e.defaultRetries
		strategy = backoff.Default()
	}
	attempts := policy.MaxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		// The cache is consulted before every attempt, so an entry a
		// sibling execution stored between retries is honored.
		if res.cacheKey != "" {
			entry, hit, lookupErr := e.cache.Lookup(ctx, res.cacheKey)
			if lookupErr != nil {
				e.logger.Warn("cache lookup error",
					slog.String("step", step.Name),
					slog.String("error", lookupErr.Error()),
				)
			} else if hit {
				res.output = entry.Output
				res.cacheHit = true
				res.err = nil
				return res
			}
		}

		res.attempt = attempt

		output, err := e.invoke(ctx, wf, exec, step, handler, input, attempt, timeout)
		if err == nil {
			if verr := operation.ValidateOutput(step.Name, step.Set, wf.State, output); verr != nil {
				res.err = verr
				return res
			}
			res.output = output
			res.err = nil
			return res
		}
		res.err = err

		if !operation.Retryable(err) || attempt == attempts {
			return res
		}
		if sleepErr := e.sleep(ctx, strategy.Delay(attempt)); sleepErr != nil {
			return res
		}
	}
	return res
}

// invoke runs a single attempt through the middleware chain under the
// step's timeout. Deadline overruns come back as TimeoutError so the
// retry policy treats them as transient.
func (e *Executor) invoke(
	ctx context.Context,
	wf *definition.Workflow,
	exec *state.Execution,
	step *definition.Step,
	handler operation.Handler,
	input map[string]any,
	attempt int,
	timeout time.Duration,
) (map[string]any, error) {
	inv := &middleware.Invocation{
		Execution: exec.ID.String(),
		Workflow:  wf.Name,
		Step:      step.Name,
		Kind:      step.Op,
		Attempt:   attempt,
		Timeout:   timeout,
	}
	req := &operation.Request{
		Execution: exec.ID.String(),
		Workflow:  wf.Name,
		Version:   wf.Version,
		Step:      step.Name,
		Attempt:   attempt,
		Config:    step.Config,
		Input:     input,
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result *operation.Result
	err := e.chain(stepCtx, inv, func(ctx context.Context) error {
		r, execErr := handler.Execute(ctx, req)
		if execErr != nil {
			return execErr
		}
		result = r
		return nil
	})
	if err != nil {
		// Only a per-step deadline counts as the step timing out; an
		// expired caller context propagates as-is.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &operation.TimeoutError{Step: step.Name, Timeout: timeout}
		}
		return nil, err
	}

	if result == nil || result.Output == nil {
		return map[string]any{}, nil
	}
	return result.Output, nil
}
