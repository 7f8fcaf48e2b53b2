package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/weftlabs/weft/codec"
	"github.com/weftlabs/weft/definition"
)

// Source provides queue messages to the Consumer. A nil payload with a
// nil error means no message arrived within the poll timeout.
type Source interface {
	Dequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
}

// RedisSource implements Source over Redis lists. It also satisfies the
// queue.publish operation's Publisher interface, so the same queues can
// be produced to from inside workflows.
type RedisSource struct {
	client goredis.Cmdable
}

// NewRedisSource creates a RedisSource.
func NewRedisSource(client goredis.Cmdable) *RedisSource {
	return &RedisSource{client: client}
}

// sourceQueueKey returns the Redis list key for a queue: weft:queue:{name}
func sourceQueueKey(name string) string { return "weft:queue:" + name }

// Enqueue pushes a payload onto a queue.
func (s *RedisSource) Enqueue(ctx context.Context, queue string, payload []byte) error {
	if err := s.client.LPush(ctx, sourceQueueKey(queue), payload).Err(); err != nil {
		return fmt.Errorf("trigger: enqueue to %q: %w", queue, err)
	}
	return nil
}

// Dequeue blocks for up to timeout waiting for a message.
func (s *RedisSource) Dequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	res, err := s.client.BRPop(ctx, timeout, sourceQueueKey(queue)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("trigger: dequeue from %q: %w", queue, err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// ConsumerOption configures a queue Consumer.
type ConsumerOption func(*Consumer)

// WithRateLimit caps how fast each queue is polled.
func WithRateLimit(limit rate.Limit, burst int) ConsumerOption {
	return func(c *Consumer) { c.limiter = rate.NewLimiter(limit, burst) }
}

// WithConcurrency caps how many messages are processed at once across
// all queues.
func WithConcurrency(n int) ConsumerOption {
	return func(c *Consumer) { c.concurrency = n }
}

// WithPollTimeout sets how long each dequeue blocks waiting for a
// message.
func WithPollTimeout(d time.Duration) ConsumerOption {
	return func(c *Consumer) { c.pollTimeout = d }
}

// Consumer drains queue-bound workflows' queues and dispatches each
// message as a queue trigger firing. Message payloads are JSON objects
// mapped directly to trigger input.
type Consumer struct {
	workflows *definition.Registry
	dispatch  DispatchFunc
	source    Source
	logger    *slog.Logger

	limiter     *rate.Limiter
	concurrency int
	pollTimeout time.Duration

	cancel context.CancelFunc
	grp    *errgroup.Group
	wg     sync.WaitGroup
}

// NewConsumer creates a queue Consumer.
func NewConsumer(workflows *definition.Registry, dispatch DispatchFunc, source Source, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Consumer{
		workflows:   workflows,
		dispatch:    dispatch,
		source:      source,
		logger:      logger,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		concurrency: 10,
		pollTimeout: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches one polling goroutine per bound queue. Queues are
// discovered from workflow queue bindings at start time.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	bound := c.queueBindings()
	if len(bound) == 0 {
		c.logger.Debug("no queue-bound workflows; consumer idle")
		return nil
	}

	c.grp = &errgroup.Group{}
	c.grp.SetLimit(c.concurrency)

	for queue, wfNames := range bound {
		c.wg.Add(1)
		go c.poll(ctx, c.grp, queue, wfNames)
	}

	c.logger.Info("queue consumer started",
		slog.Int("queues", len(bound)),
		slog.Int("concurrency", c.concurrency),
	)
	return nil
}

// Stop cancels polling and waits for in-flight messages to finish.
func (c *Consumer) Stop(_ context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if c.grp != nil {
		_ = c.grp.Wait()
	}
	c.logger.Info("queue consumer stopped")
	return nil
}

// queueBindings maps each bound queue name to the workflows it triggers.
func (c *Consumer) queueBindings() map[string][]string {
	bound := make(map[string][]string)
	for _, name := range c.workflows.Names() {
		wf, ok := c.workflows.Get(name)
		if !ok {
			continue
		}
		if binding, ok := wf.Binding(definition.TriggerQueue); ok {
			bound[binding.Queue] = append(bound[binding.Queue], name)
		}
	}
	return bound
}

func (c *Consumer) poll(ctx context.Context, grp *errgroup.Group, queue string, wfNames []string) {
	defer c.wg.Done()

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}

		payload, err := c.source.Dequeue(ctx, queue, c.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("queue dequeue error",
				slog.String("queue", queue),
				slog.String("error", err.Error()),
			)
			continue
		}
		if payload == nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		grp.Go(func() error {
			c.handle(ctx, queue, wfNames, payload)
			return nil
		})
	}
}

func (c *Consumer) handle(ctx context.Context, queue string, wfNames []string, payload []byte) {
	var input map[string]any
	if err := (codec.JSON{}).Unmarshal(payload, &input); err != nil {
		c.logger.Error("queue message is not a JSON object",
			slog.String("queue", queue),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, name := range wfNames {
		resp, err := c.dispatch(ctx, definition.TriggerQueue, name, input)
		if err != nil {
			c.logger.Error("queue dispatch failed",
				slog.String("queue", queue),
				slog.String("workflow", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		c.logger.Info("queue message dispatched",
			slog.String("queue", queue),
			slog.String("workflow", name),
			slog.String("execution_id", resp.ExecutionID.String()),
			slog.String("status", string(resp.Status)),
		)
	}
}
