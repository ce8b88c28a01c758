// Package coordinator runs scans on behalf of a shell: it validates roots,
// serves unchanged roots from the scan cache, preempts previous scans and
// turns engine callbacks into ordered notifications.
package coordinator

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sadopc/diskly/internal/cache"
	"github.com/sadopc/diskly/internal/metrics"
	"github.com/sadopc/diskly/internal/scanner"
	"go.uber.org/zap"
)

// DefaultQueueSize bounds the notifications buffered per scan attempt.
const DefaultQueueSize = 256

// workerFraction of hardware parallelism is given to each scan.
const workerFraction = 0.8

// PoolFactory creates the worker pool for one scan.
type PoolFactory func(workers int) (*scanner.Pool, error)

// Coordinator owns at most one active scan at a time.
type Coordinator struct {
	fsys        scanner.FileSystem
	engineOpts  scanner.Options
	engine      *scanner.Engine
	parallelism func() int
	fraction    float64
	newPool     PoolFactory
	cache       *cache.Cache
	listener    Listener
	log         *zap.Logger
	metrics     *metrics.Metrics
	queueSize   int

	mu     sync.Mutex
	active *session

	tasks sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithFileSystem sets the filesystem provider. Defaults to the local OS.
func WithFileSystem(fsys scanner.FileSystem) Option {
	return func(c *Coordinator) { c.fsys = fsys }
}

// WithParallelism sets the hardware parallelism query. Defaults to
// runtime.NumCPU.
func WithParallelism(fn func() int) Option {
	return func(c *Coordinator) { c.parallelism = fn }
}

// WithWorkerFraction sets the share of parallelism given to a scan.
func WithWorkerFraction(f float64) Option {
	return func(c *Coordinator) { c.fraction = f }
}

// WithPoolFactory replaces scanner.NewPool.
func WithPoolFactory(fn PoolFactory) Option {
	return func(c *Coordinator) { c.newPool = fn }
}

// WithCache sets the scan cache. A nil cache disables caching.
func WithCache(sc *cache.Cache) Option {
	return func(c *Coordinator) { c.cache = sc }
}

// WithListener sets the notification sink.
func WithListener(l Listener) Option {
	return func(c *Coordinator) { c.listener = l }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithEngineOptions sets accounting, dedup and progress sampling.
func WithEngineOptions(opts scanner.Options) Option {
	return func(c *Coordinator) { c.engineOpts = opts }
}

// WithQueueSize sets the per-attempt notification buffer.
func WithQueueSize(n int) Option {
	return func(c *Coordinator) { c.queueSize = n }
}

// New creates a Coordinator. Without WithCache it keeps its own cache of
// cache.DefaultCapacity entries.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		fsys:        scanner.OSFileSystem{},
		engineOpts:  scanner.DefaultOptions(),
		parallelism: runtime.NumCPU,
		fraction:    workerFraction,
		newPool:     scanner.NewPool,
		log:         zap.NewNop(),
		queueSize:   DefaultQueueSize,
	}
	c.cache, _ = cache.New(cache.DefaultCapacity)
	for _, opt := range opts {
		opt(c)
	}
	if c.listener == nil {
		c.listener = ListenerFunc(func(Event) {})
	}
	if c.queueSize < 1 {
		c.queueSize = 1
	}
	if c.engineOpts.Logger == nil {
		c.engineOpts.Logger = c.log
	}
	c.engine = scanner.NewEngine(c.fsys, c.engineOpts)
	return c
}

// PoolSize returns the worker count for a scan: the given fraction of
// parallelism rounded up, and at least one.
func PoolSize(parallelism int, fraction float64) int {
	if fraction <= 0 || fraction > 1 {
		fraction = workerFraction
	}
	n := int(math.Ceil(fraction * float64(parallelism)))
	if n < 1 {
		return 1
	}
	return n
}

// StartScan begins scanning root and returns the id carried by all of its
// notifications. Any scan already running is cancelled first. An invalid
// root is reported synchronously; every other outcome arrives as exactly
// one terminal notification.
func (c *Coordinator) StartScan(root string) (string, error) {
	c.preempt(nil)

	info, err := c.fsys.Stat(root)
	if err != nil {
		c.metrics.ScanSkipped(metrics.OutcomeFailed)
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
	}
	if !info.IsDir() {
		c.metrics.ScanSkipped(metrics.OutcomeFailed)
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, root)
	}
	canonical, err := c.fsys.Canonical(root)
	if err != nil {
		c.metrics.ScanSkipped(metrics.OutcomeFailed)
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
	}

	id := uuid.NewString()
	key := cache.Key(canonical, info.ModTime())
	log := c.log.With(zap.String("scan_id", id), zap.String("root", canonical))

	if c.cache != nil {
		entry, ok := c.cache.Get(key)
		c.metrics.CacheLookup(ok)
		if ok {
			log.Info("scan served from cache", zap.Uint64("items", entry.TotalScanned))
			c.metrics.ScanSkipped(metrics.OutcomeCached)
			c.deliver(
				Event{Kind: EventDirectoryProgress, ScanID: id, Root: canonical, Path: canonical, Node: entry.Root, TotalScanned: entry.TotalScanned},
				Event{Kind: EventScanComplete, ScanID: id, Root: canonical, Node: entry.Root, TotalScanned: entry.TotalScanned, Cached: true},
			)
			return id, nil
		}
	}

	workers := PoolSize(c.parallelism(), c.fraction)
	pool, err := c.newPool(workers)
	if err != nil {
		log.Warn("worker pool provisioning failed", zap.Int("workers", workers), zap.Error(err))
		c.metrics.ScanSkipped(metrics.OutcomeFailed)
		c.deliver(Event{
			Kind:   EventScanError,
			ScanID: id,
			Root:   canonical,
			Err:    fmt.Errorf("%w: %v", ErrPoolProvisioning, err),
		})
		return id, nil
	}

	s := newSession(id, canonical, key, c.queueSize, c.metrics)
	c.preempt(s)

	log.Info("scan started", zap.Int("workers", workers))
	c.metrics.ScanStarted()

	c.tasks.Add(2)
	go func() {
		defer c.tasks.Done()
		s.dispatch(c.listener)
	}()
	go func() {
		defer c.tasks.Done()
		c.run(s, pool, log)
	}()
	return id, nil
}

// CancelScan cancels the active scan, if any. It returns immediately; the
// scan ends with an ErrScanCancelled notification.
func (c *Coordinator) CancelScan() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		c.active.token.Cancel()
	}
}

// Active reports whether an engine scan is running.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Wait blocks until every started scan has delivered its terminal
// notification.
func (c *Coordinator) Wait() {
	c.tasks.Wait()
}

// preempt cancels the active scan and, when next is non-nil, makes next
// the active one.
func (c *Coordinator) preempt(next *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && c.active != next {
		c.active.token.Cancel()
	}
	if next != nil {
		c.active = next
	}
}

func (c *Coordinator) run(s *session, pool *scanner.Pool, log *zap.Logger) {
	root := c.engine.Scan(s.root, pool, s.token, s.registry, &s.counter, s)
	total := s.counter.Load()
	elapsed := time.Since(s.startedAt)

	c.mu.Lock()
	if c.active == s {
		c.active = nil
	}
	c.mu.Unlock()

	if s.token.Cancelled() {
		log.Info("scan cancelled", zap.Uint64("items", total), zap.Duration("elapsed", elapsed))
		c.metrics.ScanFinished(metrics.OutcomeCancelled, elapsed, total)
		s.finish(Event{Kind: EventScanError, ScanID: s.id, Root: s.root, TotalScanned: total, Err: ErrScanCancelled})
		return
	}

	if c.cache != nil {
		c.cache.Put(s.key, cache.Entry{Root: root, TotalScanned: total})
	}
	log.Info("scan complete",
		zap.Uint64("items", total),
		zap.Uint64("bytes", root.Size),
		zap.Duration("elapsed", elapsed),
		zap.Uint64("dropped_notifications", s.dropped.Load()),
	)
	c.metrics.ScanFinished(metrics.OutcomeComplete, elapsed, total)
	s.finish(Event{Kind: EventScanComplete, ScanID: s.id, Root: s.root, Node: root, TotalScanned: total})
}

// deliver sends events in order from a background task.
func (c *Coordinator) deliver(events ...Event) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		for _, ev := range events {
			c.listener.OnEvent(ev)
		}
	}()
}
