package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/partydeck/game-server/internal/domain"
)

// OutcomeStore is the durable side of the adapter, implemented by the
// postgres repository.
type OutcomeStore interface {
	InsertOutcome(ctx context.Context, o domain.Outcome) error
}

// Writer persists outcomes off the in-memory critical path. Enqueue
// never blocks the caller; a single worker drains the queue and retries
// each write with exponential backoff. A write that still fails after
// the retry budget is logged and dropped: durability is secondary to
// live-session correctness.
type Writer struct {
	store OutcomeStore
	log   *slog.Logger

	queue      chan domain.Outcome
	maxElapsed time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
}

type WriterConfig struct {
	QueueSize  int
	MaxElapsed time.Duration // total retry budget per outcome
}

func NewWriter(store OutcomeStore, cfg WriterConfig, log *slog.Logger) *Writer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 30 * time.Second
	}
	w := &Writer{
		store:      store,
		log:        log,
		queue:      make(chan domain.Outcome, cfg.QueueSize),
		maxElapsed: cfg.MaxElapsed,
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Enqueue hands an outcome to the worker. If the queue is full the
// outcome is dropped with a warning rather than blocking a room
// transition.
func (w *Writer) Enqueue(o domain.Outcome) {
	select {
	case w.queue <- o:
	default:
		w.log.Warn("outcome queue full, dropping outcome", "room_id", o.RoomID)
	}
}

// Close stops accepting outcomes and waits for the backlog to flush,
// bounded by the context deadline.
func (w *Writer) Close(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.queue) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) loop() {
	defer w.wg.Done()
	for o := range w.queue {
		w.save(o)
	}
}

func (w *Writer) save(o domain.Outcome) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = w.maxElapsed

	attempt := 0
	op := func() error {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.store.InsertOutcome(ctx, o)
	}
	notify := func(err error, next time.Duration) {
		w.log.Warn("persist outcome failed, will retry",
			"room_id", o.RoomID, "attempt", attempt, "retry_in", next.String(), "err", err)
	}

	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		w.log.Error("persist outcome failed permanently",
			"room_id", o.RoomID, "attempts", attempt, "err", err)
		return
	}
	w.log.Debug("outcome persisted", "room_id", o.RoomID, "attempts", attempt)
}
