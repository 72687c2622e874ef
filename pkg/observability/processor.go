package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrProcessorNotStarted is returned by ForceFlush before Start.
var ErrProcessorNotStarted = errors.New("batch processor not started")

// BatchProcessor buffers closed spans and exports them to every sink.
//
// Spans are flushed when the buffer holds MaxExportBatchSize spans or when
// ScheduledDelay elapses, whichever comes first. Each sink is served by its
// own worker with a bounded set of pending slots; a batch offered to a sink
// whose slots are taken is dropped for that sink only. OnEnd never blocks.
//
// Dropped counts spans that reached no sink. SinkDrops counts per-sink
// misses, so one batch skipped by two busy sinks adds its size twice.
type BatchProcessor struct {
	cfg     BatchConfig
	sinks   []*sinkWorker
	logger  *zap.Logger
	metrics *Metrics

	mu       sync.Mutex
	queue    []trace.ReadOnlySpan
	stopped  bool
	dropped  atomic.Int64
	missed   atomic.Int64
	flushes  atomic.Int64
	kick     chan struct{}
	stop     chan struct{}
	loopDone chan struct{}
	quit     chan struct{}
	workers  sync.WaitGroup

	startOnce    sync.Once
	shutdownOnce sync.Once
	started      atomic.Bool
}

var _ trace.SpanProcessor = (*BatchProcessor)(nil)

// NewBatchProcessor creates a processor for the given sinks. Call Start to
// launch the flush loop and the sink workers.
func NewBatchProcessor(cfg BatchConfig, sinks []Sink, logger *zap.Logger, metrics *Metrics) *BatchProcessor {
	defaults := DefaultBatchConfig()
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = defaults.MaxQueueSize
	}
	if cfg.MaxExportBatchSize <= 0 || cfg.MaxExportBatchSize > cfg.MaxQueueSize {
		cfg.MaxExportBatchSize = min(defaults.MaxExportBatchSize, cfg.MaxQueueSize)
	}
	if cfg.ScheduledDelay <= 0 {
		cfg.ScheduledDelay = defaults.ScheduledDelay
	}
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = defaults.ExportTimeout
	}
	if cfg.DropPolicy == "" {
		cfg.DropPolicy = defaults.DropPolicy
	}

	p := &BatchProcessor{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		queue:    make([]trace.ReadOnlySpan, 0, cfg.MaxQueueSize),
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
		quit:     make(chan struct{}),
	}
	// Each sink may hold as many pending batches as the buffer can fill
	slots := max(1, cfg.MaxQueueSize/cfg.MaxExportBatchSize)
	for _, sink := range sinks {
		p.sinks = append(p.sinks, &sinkWorker{
			sink:    sink,
			jobs:    make(chan exportJob, slots),
			timeout: cfg.ExportTimeout,
		})
	}
	return p
}

// Start launches the flush loop and one worker per sink.
func (p *BatchProcessor) Start() {
	p.startOnce.Do(func() {
		for _, w := range p.sinks {
			p.workers.Add(1)
			go p.runWorker(w)
		}
		go p.loop()
		p.started.Store(true)
	})
}

// OnStart implements trace.SpanProcessor.
func (p *BatchProcessor) OnStart(context.Context, trace.ReadWriteSpan) {}

// OnEnd enqueues a closed span without blocking.
func (p *BatchProcessor) OnEnd(s trace.ReadOnlySpan) {
	if !s.SpanContext().IsSampled() {
		return
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.drop(dropShutdown, 1)
		return
	}
	if len(p.queue) >= p.cfg.MaxQueueSize {
		if p.cfg.DropPolicy == DropNewest {
			p.mu.Unlock()
			p.drop(dropQueueFull, 1)
			return
		}
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.drop(dropQueueFull, 1)
	}
	p.queue = append(p.queue, s)
	ready := len(p.queue) >= p.cfg.MaxExportBatchSize
	p.mu.Unlock()

	p.metrics.enqueued()
	if ready {
		select {
		case p.kick <- struct{}{}:
		default:
		}
	}
}

// loop flushes on the size signal or on the ticker.
func (p *BatchProcessor) loop() {
	defer close(p.loopDone)

	ticker := time.NewTicker(p.cfg.ScheduledDelay)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-p.kick:
			p.flushFull()
			ticker.Reset(p.cfg.ScheduledDelay)
		case <-ticker.C:
			p.flushAll()
		}
	}
}

// flushFull exports every complete batch and leaves the remainder queued.
func (p *BatchProcessor) flushFull() {
	for {
		batch := p.take(true)
		if batch == nil {
			return
		}
		p.dispatch(batch)
	}
}

// flushAll exports everything queued. Empty ticks export nothing.
func (p *BatchProcessor) flushAll() {
	for {
		batch := p.take(false)
		if batch == nil {
			return
		}
		p.dispatch(batch)
	}
}

// take removes up to one batch from the queue. With fullOnly it returns nil
// unless a complete batch is available.
func (p *BatchProcessor) take(fullOnly bool) []trace.ReadOnlySpan {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := min(len(p.queue), p.cfg.MaxExportBatchSize)
	if n == 0 || (fullOnly && n < p.cfg.MaxExportBatchSize) {
		return nil
	}

	batch := make([]trace.ReadOnlySpan, n)
	copy(batch, p.queue[:n])
	remaining := copy(p.queue, p.queue[n:])
	clear(p.queue[remaining:])
	p.queue = p.queue[:remaining]
	return batch
}

// dispatch offers a batch to every sink without waiting.
func (p *BatchProcessor) dispatch(batch []trace.ReadOnlySpan) {
	p.flushes.Add(1)
	busy := 0
	for _, w := range p.sinks {
		select {
		case w.jobs <- exportJob{spans: batch}:
		default:
			busy++
			p.missed.Add(int64(len(batch)))
			p.metrics.dropped(dropSinkBusy, len(batch))
			p.logger.Warn("Telemetry sink busy, dropping batch",
				zap.String("sink", w.sink.Name),
				zap.Int("spans", len(batch)))
		}
	}
	if busy > 0 && busy == len(p.sinks) {
		p.dropped.Add(int64(len(batch)))
	}
}

// ForceFlush exports everything queued and waits for every sink to finish.
func (p *BatchProcessor) ForceFlush(ctx context.Context) error {
	if !p.started.Load() {
		return ErrProcessorNotStarted
	}
	return p.flushAndWait(ctx)
}

func (p *BatchProcessor) flushAndWait(ctx context.Context) error {
	var errs error
	for {
		batch := p.take(false)
		if batch == nil {
			return errs
		}
		p.flushes.Add(1)

		acks := make([]chan error, 0, len(p.sinks))
		for _, w := range p.sinks {
			ack := make(chan error, 1)
			select {
			case w.jobs <- exportJob{spans: batch, ack: ack}:
				acks = append(acks, ack)
			case <-ctx.Done():
				lost := p.discard()
				if len(acks) == 0 {
					lost += len(batch)
				}
				p.drop(dropShutdown, lost)
				return multierr.Append(errs, ctx.Err())
			}
		}

		for _, ack := range acks {
			select {
			case err := <-ack:
				errs = multierr.Append(errs, err)
			case <-ctx.Done():
				p.drop(dropShutdown, p.discard())
				return multierr.Append(errs, ctx.Err())
			}
		}
	}
}

// discard empties the queue and returns how many spans it held.
func (p *BatchProcessor) discard() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.queue)
	clear(p.queue)
	p.queue = p.queue[:0]
	return n
}

// Shutdown stops the loop, flushes what is queued within ctx, joins the
// workers and shuts every sink down. Spans still queued when ctx expires are
// dropped and counted.
func (p *BatchProcessor) Shutdown(ctx context.Context) error {
	var errs error
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		if !p.started.Load() {
			p.drop(dropShutdown, p.discard())
		} else {
			close(p.stop)
			<-p.loopDone

			if err := p.flushAndWait(ctx); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("final flush: %w", err))
			}

			close(p.quit)
			joined := make(chan struct{})
			go func() {
				p.workers.Wait()
				close(joined)
			}()
			select {
			case <-joined:
			case <-ctx.Done():
				errs = multierr.Append(errs, fmt.Errorf("joining sink workers: %w", ctx.Err()))
			}
		}

		for _, w := range p.sinks {
			if err := w.sink.Exporter.Shutdown(ctx); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("shutting down sink %s: %w", w.sink.Name, err))
			}
		}

		if n := p.dropped.Load(); n > 0 {
			p.logger.Info("Telemetry pipeline stopped", zap.Int64("dropped_spans", n))
		}
	})
	return errs
}

func (p *BatchProcessor) drop(reason string, n int) {
	if n <= 0 {
		return
	}
	p.dropped.Add(int64(n))
	p.metrics.dropped(reason, n)
}

// Dropped returns how many spans were lost before reaching any sink.
func (p *BatchProcessor) Dropped() int64 {
	return p.dropped.Load()
}

// SinkDrops returns the spans skipped by busy sinks, counted once per sink.
func (p *BatchProcessor) SinkDrops() int64 {
	return p.missed.Load()
}

// Flushes returns how many batches were handed to the sinks.
func (p *BatchProcessor) Flushes() int64 {
	return p.flushes.Load()
}

// QueueLen returns the number of buffered spans.
func (p *BatchProcessor) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

type exportJob struct {
	spans []trace.ReadOnlySpan
	ack   chan error
}

type sinkWorker struct {
	sink    Sink
	jobs    chan exportJob
	timeout time.Duration
}

// runWorker exports jobs for one sink until quit is closed, then exports
// whatever is still pending in its slot.
func (p *BatchProcessor) runWorker(w *sinkWorker) {
	defer p.workers.Done()
	for {
		select {
		case job := <-w.jobs:
			p.export(w, job)
		case <-p.quit:
			for {
				select {
				case job := <-w.jobs:
					p.export(w, job)
				default:
					return
				}
			}
		}
	}
}

func (p *BatchProcessor) export(w *sinkWorker, job exportJob) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	err := w.sink.Exporter.ExportSpans(ctx, job.spans)
	p.metrics.exported(w.sink.Name, err)
	if err != nil {
		p.logger.Warn("Telemetry export failed, dropping batch",
			zap.String("sink", w.sink.Name),
			zap.Int("spans", len(job.spans)),
			zap.Error(err))
		err = fmt.Errorf("sink %s: %w", w.sink.Name, err)
	}
	if job.ack != nil {
		job.ack <- err
	}
}
