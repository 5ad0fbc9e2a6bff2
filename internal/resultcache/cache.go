package resultcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/roach88/qcache/internal/docstore"
	"github.com/roach88/qcache/internal/field"
	"github.com/roach88/qcache/internal/fingerprint"
	"github.com/roach88/qcache/internal/registry"
)

// Row is one cached record keyed by field name. Fields whose stored value
// is NULL are absent.
type Row map[string]any

// Cache is the result cache facade. It records query results under their
// fingerprint and serves them back while they are fresh and consistent.
//
// Thread-safety: Cache is safe for concurrent use. Fetches and stores are
// serialized according to the LockPolicy.
type Cache struct {
	store    docstore.Store
	registry *registry.Registry

	clock   Clock
	stamps  stamper
	logger  *slog.Logger
	meters  metric.MeterProvider
	tracers trace.TracerProvider
	policy  LockPolicy

	metrics *metrics
	tracer  trace.Tracer
	locks   locker
	known   *knownSet

	// life is held for reading by every operation and for writing by Close.
	life   sync.RWMutex
	closed bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the wall clock used for batch stamps and freshness.
func WithClock(clock Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithMeterProvider sets the OpenTelemetry meter provider.
// Defaults to a no-op provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Cache) { c.meters = mp }
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
// Defaults to a no-op provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Cache) { c.tracers = tp }
}

// WithLockPolicy sets the locking granularity. Defaults to LockGlobal.
func WithLockPolicy(p LockPolicy) Option {
	return func(c *Cache) { c.policy = p }
}

// New creates a cache over store. reg must be initialized and bound to the
// same store.
func New(store docstore.Store, reg *registry.Registry, opts ...Option) (*Cache, error) {
	c := &Cache{
		store:    store,
		registry: reg,
		clock:    SystemClock{},
		logger:   slog.Default(),
		meters:   metricnoop.NewMeterProvider(),
		tracers:  tracenoop.NewTracerProvider(),
		policy:   LockGlobal,
		known:    newKnownSet(),
	}
	for _, opt := range opts {
		opt(c)
	}

	m, err := newMetrics(c.meters.Meter(instrumentationName))
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	c.metrics = m
	c.tracer = c.tracers.Tracer(instrumentationName)
	c.locks = newLocker(c.policy)
	return c, nil
}

// Open opens a store from cfg, installs the category superclasses and
// returns a cache over them. Closing the cache closes the store.
func Open(ctx context.Context, cfg docstore.Config, categories []registry.Category, opts ...Option) (*Cache, error) {
	store, err := docstore.Open(ctx, cfg)
	if err != nil {
		return nil, &Error{Code: CodeConnectivity, Op: "open", Err: err}
	}
	reg := registry.New(store, categories)
	if err := reg.Init(ctx); err != nil {
		store.Close()
		return nil, classify("open", "", err)
	}
	c, err := New(store, reg, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

// enter takes the lifetime read lock. The returned func releases it.
func (c *Cache) enter() (func(), error) {
	c.life.RLock()
	if c.closed {
		c.life.RUnlock()
		return nil, ErrClosed
	}
	return c.life.RUnlock, nil
}

// Fetch returns the cached rows of fp if a consistent batch exists that is
// no older than maxAge. ok is false on a miss, a stale or inconsistent
// batch, or a purged result. A non-positive maxAge returns ErrBypass.
func (c *Cache) Fetch(ctx context.Context, fp fingerprint.Fingerprint, maxAge time.Duration) (rows []Row, ok bool, err error) {
	res, err := c.Lookup(ctx, fp, maxAge)
	if err != nil {
		return nil, false, err
	}
	if res.Outcome != OutcomeHit {
		return nil, false, nil
	}
	return res.Rows, true, nil
}

// Lookup is like Fetch but reports why a lookup missed.
func (c *Cache) Lookup(ctx context.Context, fp fingerprint.Fingerprint, maxAge time.Duration) (res Result, err error) {
	if maxAge <= 0 {
		return Result{}, ErrBypass
	}
	if fp.IsZero() {
		return Result{}, fmt.Errorf("lookup: %w", errZeroFingerprint)
	}
	leave, err := c.enter()
	if err != nil {
		return Result{}, err
	}
	defer leave()

	resource := fp.Resource().Name
	ctx, span := startSpan(ctx, c.tracer, "fetch", resource)
	defer func() {
		if err == nil {
			span.SetAttributes(outcomeAttr(res.Outcome))
		}
		endSpan(span, err)
	}()

	unlock := c.locks.lock(resource)
	defer unlock()

	res, err = c.lookup(ctx, fp, maxAge)
	if err != nil {
		c.logger.Debug("cache lookup failed", "fingerprint", fp.String(), "error", err)
		return Result{}, err
	}
	c.metrics.recordFetch(ctx, resource, res.Outcome)
	c.logger.Debug("cache lookup",
		"fingerprint", fp.String(),
		"outcome", res.Outcome.String(),
		"rows", len(res.Rows))
	return res, nil
}

// Store replaces the cached rows of fp with rows as one batch. On error
// nothing is committed.
func (c *Cache) Store(ctx context.Context, rows []Row, fp fingerprint.Fingerprint) (err error) {
	if fp.IsZero() {
		return fmt.Errorf("store: %w", errZeroFingerprint)
	}
	leave, err := c.enter()
	if err != nil {
		return err
	}
	defer leave()

	resource := fp.Resource().Name
	ctx, span := startSpan(ctx, c.tracer, "store", resource)
	defer func() { endSpan(span, err) }()

	unlock := c.locks.lock(resource)
	defer unlock()

	if err := c.storeBatch(ctx, rows, fp); err != nil {
		c.metrics.recordStoreError(ctx, resource, err)
		return err
	}
	c.metrics.recordStore(ctx, resource, len(rows))
	return nil
}

// DeclaredFields returns the data fields declared for a resource. The set
// is empty when nothing was stored for it yet.
func (c *Cache) DeclaredFields(ctx context.Context, resource string) (field.Set, error) {
	leave, err := c.enter()
	if err != nil {
		return field.Set{}, err
	}
	defer leave()

	fields, err := c.registry.DeclaredFields(ctx, resource)
	if err != nil {
		return field.Set{}, classify("declared fields", resource, err)
	}
	return fields, nil
}

// HasCachedResult reports whether fp was stored successfully at some point
// during the lifetime of the cache. It says nothing about freshness.
func (c *Cache) HasCachedResult(fp fingerprint.Fingerprint) bool {
	return c.known.has(fp)
}

// Close drops every cached record and releases the store. Further calls
// return ErrClosed. Close is idempotent.
func (c *Cache) Close() error {
	c.life.Lock()
	defer c.life.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if err := c.store.Drop(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("drop store: %w", err))
	}
	if err := c.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		c.logger.Warn("cache close", "error", err)
		return err
	}
	c.logger.Debug("cache closed", "known", c.known.len())
	return nil
}
