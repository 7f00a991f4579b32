// ABOUTME: Fire-and-forget record submission with a bounded retry backlog
// ABOUTME: Writes run on a dispatcher goroutine in order; the oldest entry is dropped when full

package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mauromedda/posoverlay/internal/log"
)

// Writer defaults.
const (
	DefaultBacklog      = 64
	DefaultAttempts     = 3
	DefaultWriteTimeout = 5 * time.Second
)

// Dispatcher runs funcs in submission order on one goroutine.
type Dispatcher interface {
	Go(fn func()) error
}

// WriterOptions tunes the retry backlog. Zero values take the defaults.
type WriterOptions struct {
	Backlog      int
	Attempts     int
	WriteTimeout time.Duration
}

// WriterStats counts what happened to submitted records.
type WriterStats struct {
	Written int64
	Failed  int64 // individual failed attempts
	Dropped int64 // records given up on
	Pending int
}

type job struct {
	rec      *Record
	term     *TerminalRecord
	attempts int
}

// Writer submits records to a Store without blocking the caller. Failed writes
// stay in a bounded backlog and are retried, in order, before newer records.
type Writer struct {
	store Store
	d     Dispatcher
	opts  WriterOptions

	mu      sync.Mutex
	backlog []job

	written atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewWriter returns a writer that performs its store calls through d.
func NewWriter(s Store, d Dispatcher, opts WriterOptions) *Writer {
	if opts.Backlog <= 0 {
		opts.Backlog = DefaultBacklog
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return &Writer{store: s, d: d, opts: opts}
}

// Submit queues rec for writing.
func (w *Writer) Submit(rec Record) {
	w.submit(job{rec: &rec})
}

// SubmitTerminal queues a terminal record for writing.
func (w *Writer) SubmitTerminal(rec TerminalRecord) {
	w.submit(job{term: &rec})
}

func (w *Writer) submit(j job) {
	err := w.d.Go(func() {
		w.enqueue(j)
		w.flush()
	})
	if err != nil {
		w.dropped.Add(1)
		log.Warn("store: record for pos %d not submitted: %v", j.posID(), err)
	}
}

// Retry schedules another attempt at the backlog.
func (w *Writer) Retry() {
	if err := w.d.Go(w.flush); err != nil {
		log.Debug("store: retry not scheduled: %v", err)
	}
}

// Run calls Retry every interval until ctx is cancelled.
func (w *Writer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if w.Stats().Pending > 0 {
				w.Retry()
			}
		}
	}
}

// Stats returns a snapshot of the counters.
func (w *Writer) Stats() WriterStats {
	w.mu.Lock()
	pending := len(w.backlog)
	w.mu.Unlock()
	return WriterStats{
		Written: w.written.Load(),
		Failed:  w.failed.Load(),
		Dropped: w.dropped.Load(),
		Pending: pending,
	}
}

func (w *Writer) enqueue(j job) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.backlog) >= w.opts.Backlog {
		old := w.backlog[0]
		w.backlog = w.backlog[1:]
		w.dropped.Add(1)
		log.Warn("store: backlog full, dropping record for pos %d after %d attempts", old.posID(), old.attempts)
	}
	w.backlog = append(w.backlog, j)
}

// flush writes the backlog front to back and stops at the first failure so
// records reach the store in submission order.
func (w *Writer) flush() {
	for {
		w.mu.Lock()
		if len(w.backlog) == 0 {
			w.mu.Unlock()
			return
		}
		j := w.backlog[0]
		w.mu.Unlock()

		err := w.write(j)

		w.mu.Lock()
		if err == nil {
			w.backlog = w.backlog[1:]
			w.mu.Unlock()
			w.written.Add(1)
			continue
		}
		w.failed.Add(1)
		w.backlog[0].attempts++
		if w.backlog[0].attempts >= w.opts.Attempts {
			w.backlog = w.backlog[1:]
			w.mu.Unlock()
			w.dropped.Add(1)
			log.Error("store: giving up on record for pos %d: %v", j.posID(), err)
			continue
		}
		w.mu.Unlock()
		log.Warn("store: write for pos %d failed (attempt %d of %d): %v", j.posID(), j.attempts+1, w.opts.Attempts, err)
		return
	}
}

func (w *Writer) write(j job) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.opts.WriteTimeout)
	defer cancel()
	var err error
	if j.rec != nil {
		_, err = w.store.Write(ctx, *j.rec)
	} else {
		_, err = w.store.WriteTerminal(ctx, *j.term)
	}
	return err
}

func (j job) posID() int {
	if j.rec != nil {
		return j.rec.PosID
	}
	return j.term.PosID
}
