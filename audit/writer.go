package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/logging"
)

// Outcome is reported to WriterOptions.Observer once per record.
type Outcome string

const (
	OutcomeWritten Outcome = "written"
	OutcomeDropped Outcome = "dropped"
	OutcomeFailed  Outcome = "failed"
)

// WriterOptions configures a Writer.
type WriterOptions struct {
	// QueueSize bounds the number of records waiting to be stored.
	QueueSize int
	// MaxAttempts is the number of Append calls per record before it is
	// given up.
	MaxAttempts int
	// RetryRate paces retries across all records.
	RetryRate  rate.Limit
	RetryBurst int
	// AppendTimeout bounds a single Append call.
	AppendTimeout time.Duration
	// Observer, if set, is called with the final outcome of every record.
	Observer func(kind core.AuditKind, outcome Outcome)
	Logger   logging.Logger
}

// WriterStats counts record outcomes.
type WriterStats struct {
	Written int64
	Dropped int64
	Failed  int64
}

// Writer stores audit records in the background. Write never blocks: when
// the queue is full the record is dropped and counted. Close drains what
// is queued.
type Writer struct {
	store   core.AuditStore
	opts    WriterOptions
	limiter *rate.Limiter

	mu     sync.RWMutex
	closed bool
	queue  chan core.AuditRecord
	done   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewWriter starts a Writer over store.
func NewWriter(store core.AuditStore, optFns ...func(o *WriterOptions)) *Writer {
	opts := WriterOptions{
		QueueSize:     256,
		MaxAttempts:   3,
		RetryRate:     rate.Every(100 * time.Millisecond),
		RetryBurst:    1,
		AppendTimeout: 2 * time.Second,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Writer{
		store:   store,
		opts:    opts,
		limiter: rate.NewLimiter(opts.RetryRate, opts.RetryBurst),
		queue:   make(chan core.AuditRecord, opts.QueueSize),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go w.loop()
	return w
}

// Write enqueues rec. It returns ErrQueueFull or ErrWriterClosed when the
// record was not accepted.
func (w *Writer) Write(rec core.AuditRecord) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}
	select {
	case w.queue <- rec:
		return nil
	default:
		w.dropped.Add(1)
		w.observe(rec.Kind, OutcomeDropped)
		w.opts.Logger.Warn("Audit record dropped", "session_id", rec.SessionID, "kind", rec.Kind, "reason", "queue full")
		return ErrQueueFull
	}
}

// Close stops accepting records and waits until the queue is drained or ctx
// ends. Records still queued when ctx ends are counted as failed.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.cancel()
		<-w.done
		return ctx.Err()
	}
}

// Stats returns the outcome counters.
func (w *Writer) Stats() WriterStats {
	return WriterStats{
		Written: w.written.Load(),
		Dropped: w.dropped.Load(),
		Failed:  w.failed.Load(),
	}
}

func (w *Writer) loop() {
	defer close(w.done)
	defer w.cancel()
	for rec := range w.queue {
		if err := w.appendWithRetry(rec); err != nil {
			w.failed.Add(1)
			w.observe(rec.Kind, OutcomeFailed)
			w.opts.Logger.Error("Audit record lost", "session_id", rec.SessionID, "kind", rec.Kind, "error", err)
			continue
		}
		w.written.Add(1)
		w.observe(rec.Kind, OutcomeWritten)
	}
}

func (w *Writer) appendWithRetry(rec core.AuditRecord) error {
	var err error
	for attempt := 1; attempt <= w.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if werr := w.limiter.Wait(w.ctx); werr != nil {
				return werr
			}
		}
		if err = w.ctx.Err(); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(w.ctx, w.opts.AppendTimeout)
		err = w.store.Append(ctx, rec)
		cancel()
		if err == nil {
			return nil
		}
		w.opts.Logger.Debug("Audit append failed", "session_id", rec.SessionID, "attempt", attempt, "error", err)
	}
	return err
}

func (w *Writer) observe(kind core.AuditKind, o Outcome) {
	if w.opts.Observer != nil {
		w.opts.Observer(kind, o)
	}
}
