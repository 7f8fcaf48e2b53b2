// Package engine wires all weft subsystems together. It creates the
// registries, middleware chain, executor, trigger surfaces, and cache
// sweeper, and provides workflow/operation/component registration.
//
// This package exists to break the import cycle: the root weft package
// defines Entity and Config (imported by state, definition, etc.) and
// so cannot import those packages back. The engine package sits above
// all subsystem packages and below the application layer.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/weftlabs/weft"
	"github.com/weftlabs/weft/cache"
	"github.com/weftlabs/weft/definition"
	"github.com/weftlabs/weft/event"
	"github.com/weftlabs/weft/executor"
	"github.com/weftlabs/weft/ext"
	mw "github.com/weftlabs/weft/middleware"
	"github.com/weftlabs/weft/observability"
	"github.com/weftlabs/weft/operation"
	"github.com/weftlabs/weft/operation/builtin"
	"github.com/weftlabs/weft/store"
	"github.com/weftlabs/weft/trigger"
)

// components is a concurrency-safe name → Component map satisfying
// builtin.Source. Components may be registered after Build, including
// while executions are running.
type components struct {
	mu sync.RWMutex
	m  map[string]builtin.Component
}

func (c *components) Component(name string) (builtin.Component, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.m[name]
	return comp, ok
}

func (c *components) register(name string, comp builtin.Component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[name] = comp
}

// Engine composes the full workflow system over a composite store.
// Use Build() to create one.
type Engine struct {
	cfg    weft.Config
	st     store.Store
	logger *slog.Logger

	workflows  *definition.Registry
	ops        *operation.Registry
	extensions *ext.Registry
	components *components

	exec       *executor.Executor
	dispatcher *trigger.Dispatcher
	bus        *event.Bus
	scheduler  *trigger.Runner
	consumer   *trigger.Consumer
	sweeper    *cache.Sweeper

	mws         []mw.Middleware
	pendingExts []ext.Extension
	queueSource trigger.Source
	publisher   builtin.Publisher

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine configuration. Unset fields keep their
// DefaultConfig values only if the caller started from DefaultConfig().
func WithConfig(cfg weft.Config) Option {
	return func(eng *Engine) { eng.cfg = cfg }
}

// WithLogger sets the logger for the engine and every subsystem it builds.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.pendingExts = append(eng.pendingExts, e) }
}

// WithMiddleware appends middleware to the step invocation chain, after
// the default recover/tracing/metrics/logging stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithQueueSource sets the message source for queue-bound workflows.
// Without one, queue triggers never fire (webhook, schedule, and manual
// triggers are unaffected). If the source also implements
// builtin.Publisher, the queue.publish operation uses it unless
// WithQueuePublisher overrides.
func WithQueueSource(src trigger.Source) Option {
	return func(eng *Engine) { eng.queueSource = src }
}

// WithQueuePublisher sets the sink for the queue.publish operation.
func WithQueuePublisher(p builtin.Publisher) Option {
	return func(eng *Engine) { eng.publisher = p }
}

// WithTracerProvider sets a custom OTel TracerProvider. When set, the
// tracing middleware uses this provider instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider. When set, both
// the metrics middleware and the observability extension use this
// provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// Build creates an Engine over the given store.
func Build(st store.Store, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, weft.ErrNoStore
	}

	eng := &Engine{
		cfg:        weft.DefaultConfig(),
		st:         st,
		logger:     slog.Default(),
		workflows:  definition.NewRegistry(),
		ops:        operation.NewRegistry(),
		components: &components{m: make(map[string]builtin.Component)},
	}

	for _, opt := range opts {
		opt(eng)
	}

	eng.extensions = ext.NewRegistry(eng.logger)
	for _, e := range eng.pendingExts {
		eng.extensions.Register(e)
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/weftlabs/weft"))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/weftlabs/weft"))
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter("github.com/weftlabs/weft/observability"))
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Default middleware stack: recover → tracing → metrics → logging.
	allMws := make([]mw.Middleware, 0, 4+len(eng.mws))
	allMws = append(allMws,
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
	)
	allMws = append(allMws, eng.mws...)

	eng.exec = executor.New(
		eng.workflows,
		eng.ops,
		st,
		st,
		eng.extensions,
		eng.logger,
		executor.WithMiddleware(allMws...),
		executor.WithDefaultTimeout(eng.cfg.DefaultStepTimeout),
		executor.WithDefaultMaxRetries(eng.cfg.DefaultMaxRetries),
	)

	eng.bus = event.NewBus(st)
	eng.dispatcher = trigger.NewDispatcher(eng.workflows, eng.exec, eng.logger)

	eng.scheduler = trigger.NewRunner(
		eng.workflows,
		eng.dispatcher.Dispatch,
		eng.extensions,
		eng.logger,
		trigger.WithTickInterval(eng.cfg.ScheduleTick),
	)

	if eng.queueSource != nil {
		eng.consumer = trigger.NewConsumer(
			eng.workflows,
			eng.dispatcher.Dispatch,
			eng.queueSource,
			eng.logger,
			trigger.WithConcurrency(eng.cfg.QueueConcurrency),
		)
		if eng.publisher == nil {
			if p, ok := eng.queueSource.(builtin.Publisher); ok {
				eng.publisher = p
			}
		}
	}

	if eng.cfg.CacheSweepInterval > 0 {
		eng.sweeper = cache.NewSweeper(st, eng.logger,
			cache.WithSweepInterval(eng.cfg.CacheSweepInterval),
		)
	}

	eng.registerBuiltins()
	return eng, nil
}

// registerBuiltins registers the built-in operation handlers. The
// queue.publish handler is only available when a publisher is wired.
func (eng *Engine) registerBuiltins() {
	eng.ops.Register(builtin.NewHTTPRequest(nil))
	eng.ops.Register(builtin.NewRenderTemplate())
	eng.ops.Register(builtin.NewTransformMap())
	eng.ops.Register(builtin.NewNotifyLog(eng.logger))
	eng.ops.Register(builtin.NewApprovalGate(eng.bus))
	eng.ops.Register(builtin.NewComponentExec(eng.components))
	if eng.publisher != nil {
		eng.ops.Register(builtin.NewQueuePublish(eng.publisher))
	}
}

// RegisterWorkflow parses, validates, and registers a workflow
// definition from YAML source.
func (eng *Engine) RegisterWorkflow(src []byte) (*definition.Workflow, error) {
	wf, err := definition.Load(src)
	if err != nil {
		return nil, err
	}
	eng.workflows.Register(wf)
	eng.logger.Info("workflow registered",
		slog.String("workflow", wf.Name),
		slog.String("version", wf.Version),
	)
	return wf, nil
}

// RegisterOperation registers a custom operation handler. Handlers
// registered under an existing kind replace it.
func (eng *Engine) RegisterOperation(h operation.Handler) {
	eng.ops.Register(h)
}

// RegisterComponent makes a component available to component.exec steps.
func (eng *Engine) RegisterComponent(name string, c builtin.Component) {
	eng.components.register(name, c)
}

// Start migrates the store, resumes interrupted executions, and starts
// the background trigger loops.
func (eng *Engine) Start(ctx context.Context) error {
	if err := eng.st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	// Resume interrupted executions (best-effort, non-fatal).
	if resumeErr := eng.exec.ResumeAll(ctx); resumeErr != nil {
		eng.logger.Warn("failed to resume interrupted executions",
			slog.String("error", resumeErr.Error()),
		)
	}

	if eng.sweeper != nil {
		if err := eng.sweeper.Start(ctx); err != nil {
			return fmt.Errorf("start cache sweeper: %w", err)
		}
	}
	if err := eng.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start schedule runner: %w", err)
	}
	if eng.consumer != nil {
		if err := eng.consumer.Start(ctx); err != nil {
			return fmt.Errorf("start queue consumer: %w", err)
		}
	}

	eng.logger.Info("engine started",
		slog.Int("workflows", len(eng.workflows.Names())),
		slog.Int("operations", len(eng.ops.Kinds())),
	)
	return nil
}

// Stop gracefully shuts down the engine. Trigger loops stop first so no
// new executions start while in-flight ones drain.
func (eng *Engine) Stop(ctx context.Context) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && eng.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.cfg.ShutdownTimeout)
		defer cancel()
	}

	var firstErr error
	if eng.consumer != nil {
		if err := eng.consumer.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := eng.scheduler.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if eng.sweeper != nil {
		if err := eng.sweeper.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	eng.extensions.EmitShutdown(ctx)
	eng.logger.Info("engine stopped")
	return firstErr
}

// Executor returns the graph executor.
func (eng *Engine) Executor() *executor.Executor { return eng.exec }

// Dispatcher returns the trigger dispatcher.
func (eng *Engine) Dispatcher() *trigger.Dispatcher { return eng.dispatcher }

// Workflows returns the workflow definition registry.
func (eng *Engine) Workflows() *definition.Registry { return eng.workflows }

// Operations returns the operation handler registry.
func (eng *Engine) Operations() *operation.Registry { return eng.ops }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Bus returns the event bus used by approval gates.
func (eng *Engine) Bus() *event.Bus { return eng.bus }

// Store returns the composite store.
func (eng *Engine) Store() store.Store { return eng.st }

// Config returns the engine configuration.
func (eng *Engine) Config() weft.Config { return eng.cfg }

// Logger returns the engine logger.
func (eng *Engine) Logger() *slog.Logger { return eng.logger }
