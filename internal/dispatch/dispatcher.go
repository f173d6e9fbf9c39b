// Package dispatch accumulates score results into batches and flushes them
// to the remote store from a single background worker. Submission is
// fire-and-forget: a caller is never blocked beyond enqueue time and never
// sees a remote failure, because score logging is secondary to the scoring
// path it instruments.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/AnthusAI/plexus-dashboard/internal/model"
	"github.com/AnthusAI/plexus-dashboard/internal/spool"
	"github.com/AnthusAI/plexus-dashboard/internal/store"
)

const (
	// DefaultPollInterval bounds how long the worker waits for a new item
	// before flushing everything it holds.
	DefaultPollInterval = 1 * time.Second

	// DefaultQueueCapacity bounds the producer queue. Submit drops (and
	// logs) when the queue is full rather than blocking the caller.
	DefaultQueueCapacity = 10000

	// DefaultJoinTimeout bounds how long Flush waits for the worker and
	// any outstanding immediate sends.
	DefaultJoinTimeout = 30 * time.Second
)

// batchKey groups items that share dispatch configuration. Items with
// different keys accumulate and flush independently.
type batchKey struct {
	size    int
	timeout time.Duration
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithPollInterval overrides the worker's bounded wait for new items.
func WithPollInterval(d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.poll = d
		}
	}
}

// WithQueueCapacity overrides the producer queue capacity.
func WithQueueCapacity(n int) Option {
	return func(dp *Dispatcher) {
		if n > 0 {
			dp.queueCap = n
		}
	}
}

// WithJoinTimeout overrides how long Flush waits for shutdown to complete.
func WithJoinTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.joinTimeout = d
		}
	}
}

// WithSpool records failed flushes in the given spool so dropped batches
// can be inspected and resubmitted later.
func WithSpool(sp *spool.Spool) Option {
	return func(dp *Dispatcher) {
		dp.spool = sp
	}
}

// SubmitOption configures one submission.
type SubmitOption func(*submitOpts)

type submitOpts struct {
	immediate    bool
	batchSize    int
	batchTimeout time.Duration
}

// Immediate bypasses the batch queue: the item is sent on its own goroutine
// as a single-item create, decoupled from the batch worker entirely.
func Immediate() SubmitOption {
	return func(o *submitOpts) {
		o.immediate = true
	}
}

// WithBatchSize overrides the item's batch size cap for this submission.
func WithBatchSize(n int) SubmitOption {
	return func(o *submitOpts) {
		o.batchSize = n
	}
}

// WithBatchTimeout overrides the item's flush deadline for this submission.
func WithBatchTimeout(d time.Duration) SubmitOption {
	return func(o *submitOpts) {
		o.batchTimeout = d
	}
}

// Dispatcher owns one background worker per instance. Producers communicate
// with it only through the bounded queue; the batch accumulator map is
// touched by the worker alone.
type Dispatcher struct {
	results store.ScoreResults
	spool   *spool.Spool

	poll        time.Duration
	queueCap    int
	joinTimeout time.Duration

	queue      chan model.ScoreResult
	stop       chan struct{}
	done       chan struct{}
	stopped    atomic.Bool
	immediates sync.WaitGroup

	// Worker-owned state. Never touched outside the worker goroutine.
	batches   map[batchKey][]model.ScoreResult
	lastFlush time.Time
}

// New creates a dispatcher over the given score-result store and starts its
// background worker.
func New(results store.ScoreResults, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		results:     results,
		poll:        DefaultPollInterval,
		queueCap:    DefaultQueueCapacity,
		joinTimeout: DefaultJoinTimeout,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		batches:     make(map[batchKey][]model.ScoreResult),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan model.ScoreResult, d.queueCap)
	go d.run()
	return d
}

// Submit enqueues a score result for batched persistence. Zero BatchSize or
// BatchTimeout on the item are replaced with the defaults. Submit never
// blocks beyond the enqueue itself and never surfaces a remote failure.
func (d *Dispatcher) Submit(item model.ScoreResult, opts ...SubmitOption) {
	var so submitOpts
	for _, opt := range opts {
		opt(&so)
	}

	if so.batchSize > 0 {
		item.BatchSize = so.batchSize
	}
	if so.batchTimeout > 0 {
		item.BatchTimeout = so.batchTimeout
	}
	if item.BatchSize <= 0 {
		item.BatchSize = model.DefaultBatchSize
	}
	if item.BatchTimeout <= 0 {
		item.BatchTimeout = model.DefaultBatchTimeout
	}

	if so.immediate {
		d.submitImmediate(item)
		return
	}

	if d.stopped.Load() {
		zap.L().Warn("dispatcher stopped, dropping score result",
			zap.String("itemId", item.ItemID))
		return
	}

	select {
	case d.queue <- item:
	default:
		zap.L().Warn("dispatch queue full, dropping score result",
			zap.String("itemId", item.ItemID))
	}
}

// submitImmediate issues a single-item create on a dedicated goroutine so
// its outcome is independent of the batch worker's health.
func (d *Dispatcher) submitImmediate(item model.ScoreResult) {
	d.immediates.Add(1)
	go func() {
		defer d.immediates.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.joinTimeout)
		defer cancel()
		if _, err := d.results.Create(ctx, item); err != nil {
			zap.L().Warn("immediate score result failed",
				zap.String("itemId", item.ItemID),
				zap.Error(err))
			d.record([]model.ScoreResult{item}, err)
		}
	}()
}

// Flush stops the worker, drains and flushes all pending work, and joins
// with a bounded timeout. It is idempotent: every call after the first
// returns immediately.
func (d *Dispatcher) Flush() {
	if !d.stopped.CompareAndSwap(false, true) {
		return
	}
	close(d.stop)

	select {
	case <-d.done:
	case <-time.After(d.joinTimeout):
		zap.L().Warn("dispatch worker join timed out")
	}

	finished := make(chan struct{})
	go func() {
		d.immediates.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(d.joinTimeout):
		zap.L().Warn("immediate sends still outstanding at shutdown")
	}
}

// Close flushes and is safe to defer alongside an explicit Flush call.
func (d *Dispatcher) Close() error {
	d.Flush()
	return nil
}

// run is the background worker: the only goroutine that reads the queue
// into the accumulator map or flushes batches out of it.
func (d *Dispatcher) run() {
	defer close(d.done)
	d.lastFlush = time.Now()

	for {
		select {
		case <-d.stop:
			d.drain()
			d.flushAll("shutdown")
			return
		case item := <-d.queue:
			d.accumulate(item)
			d.flushDue()
		case <-time.After(d.poll):
			// Nothing arrived for a whole poll interval: flush every
			// non-empty batch regardless of its size or timeout so an
			// idle producer never strands items.
			d.flushAll("idle")
		}
	}
}

// drain empties the queue without waiting, so items enqueued before the
// stop signal still make the final flush.
func (d *Dispatcher) drain() {
	for {
		select {
		case item := <-d.queue:
			d.accumulate(item)
		default:
			return
		}
	}
}

func (d *Dispatcher) accumulate(item model.ScoreResult) {
	key := batchKey{size: item.BatchSize, timeout: item.BatchTimeout}
	d.batches[key] = append(d.batches[key], item)
}

// flushDue flushes every batch that reached its size cap or whose timeout
// has elapsed since the last flush of any batch.
func (d *Dispatcher) flushDue() {
	now := time.Now()
	for key, items := range d.batches {
		if len(items) >= key.size || now.Sub(d.lastFlush) > key.timeout {
			d.flushBatch(key, "due")
		}
	}
}

func (d *Dispatcher) flushAll(reason string) {
	for key := range d.batches {
		d.flushBatch(key, reason)
	}
}

// flushBatch persists one batch as a single multi-item create. On failure
// the batch is logged, recorded to the spool, and discarded; it is never
// re-queued, so a persistent remote failure cannot wedge the worker.
func (d *Dispatcher) flushBatch(key batchKey, reason string) {
	items := d.batches[key]
	delete(d.batches, key)
	if len(items) == 0 {
		return
	}
	d.lastFlush = time.Now()

	if _, err := d.results.BatchCreate(context.Background(), items); err != nil {
		zap.L().Warn("score result flush failed, discarding batch",
			zap.Int("items", len(items)),
			zap.Int("batchSize", key.size),
			zap.Duration("batchTimeout", key.timeout),
			zap.String("reason", reason),
			zap.Error(err))
		d.record(items, err)
		return
	}

	zap.L().Debug("flushed score results",
		zap.Int("items", len(items)),
		zap.String("reason", reason))
}

// record spools dropped items; a spool failure is itself only logged.
func (d *Dispatcher) record(items []model.ScoreResult, cause error) {
	if d.spool == nil {
		return
	}
	if err := d.spool.Append(context.Background(), items, cause.Error()); err != nil {
		zap.L().Warn("failed to spool dropped score results", zap.Error(err))
	}
}
