package journal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/foothold/extension/internal/queue"
	"github.com/foothold/extension/pkg/core"
)

// Recorder journals scan reports for one session. Record never blocks: when
// the writer falls behind, the pending queue evicts its oldest entries.
type Recorder struct {
	backend Backend
	session string
	pending *queue.Queue[Entry]
	log     *slog.Logger

	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started atomic.Bool

	writeMu sync.Mutex
	written atomic.Int64

	retryInitial time.Duration
	retryMax     time.Duration
}

// NewRecorder creates a recorder; call Start to run the background writer.
func NewRecorder(b Backend, session string, limit int, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		backend: b,
		session: session,
		pending: queue.NewBounded[Entry](limit),
		log:     log,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),

		retryInitial: 500 * time.Millisecond,
		retryMax:     30 * time.Second,
	}
}

// Start launches the writer goroutine.
func (r *Recorder) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.writeLoop()
}

// writeLoop writes on every wake-up. After a failed write it retries on its
// own with exponential backoff until a write succeeds.
func (r *Recorder) writeLoop() {
	defer close(r.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.retryInitial
	bo.MaxInterval = r.retryMax
	bo.Reset()

	var retry <-chan time.Time
	for {
		select {
		case <-r.stop:
			return
		case <-r.wake:
		case <-retry:
		}
		retry = nil

		if err := r.writePending(); err != nil {
			wait := bo.NextBackOff()
			r.log.Error("Error writing scan journal", "error", err, "pending", r.pending.Len(), "retryIn", wait)
			retry = time.After(wait)
			continue
		}
		bo.Reset()
	}
}

// Record queues a report. It runs on the tick goroutine.
func (r *Recorder) Record(rep core.ScanReport) {
	e, err := NewEntry(r.session, rep)
	if err != nil {
		r.log.Error("Error converting scan report", "error", err, "scan", rep.ID)
		return
	}
	r.pending.Push(e)
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// writePending writes everything queued. On failure the batch goes back to
// the head of the queue so journal order is kept.
func (r *Recorder) writePending() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	batch := r.pending.Drain()
	if len(batch) == 0 {
		return nil
	}
	if err := r.backend.Write(batch); err != nil {
		r.pending.PushFront(batch...)
		return err
	}
	r.written.Add(int64(len(batch)))
	return nil
}

// Flush writes pending entries synchronously.
func (r *Recorder) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.writePending()
}

// Close stops the writer, flushes what is left and closes the backend.
func (r *Recorder) Close() error {
	r.once.Do(func() { close(r.stop) })
	if r.started.Load() {
		<-r.done
	}
	flushErr := r.writePending()
	if err := r.backend.Close(); err != nil {
		return err
	}
	return flushErr
}

// Session returns the session identifier entries are tagged with.
func (r *Recorder) Session() string { return r.session }

// Written returns the number of entries stored so far.
func (r *Recorder) Written() int { return int(r.written.Load()) }

// Pending returns the number of entries waiting to be written.
func (r *Recorder) Pending() int { return r.pending.Len() }

// Dropped returns the number of entries evicted from a full queue.
func (r *Recorder) Dropped() int { return r.pending.Dropped() }
