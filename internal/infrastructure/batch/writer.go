package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultThreshold is the number of pending items that triggers a flush.
const DefaultThreshold = 100

// ErrDiscarded is returned by Enqueue after Discard.
var ErrDiscarded = errors.New("batch writer discarded")

// FlushFunc persists one batch. Each call is one commit.
type FlushFunc[T any] func(ctx context.Context, batch []T) error

// Writer buffers items and hands them to FlushFunc once Threshold items are
// pending. It is safe for concurrent use.
type Writer[T any] struct {
	threshold int
	flushFn   FlushFunc[T]
	logger    *logrus.Entry

	mu        sync.Mutex
	items     []T
	discarded bool

	commits atomic.Int64
	flushed atomic.Int64
}

func NewWriter[T any](threshold int, flushFn FlushFunc[T], logger *logrus.Entry) *Writer[T] {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Writer[T]{
		threshold: threshold,
		flushFn:   flushFn,
		logger:    logger,
		items:     make([]T, 0, threshold),
	}
}

// Enqueue appends item and flushes synchronously when the threshold is hit.
func (w *Writer[T]) Enqueue(ctx context.Context, item T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	if w.discarded {
		w.mu.Unlock()
		return ErrDiscarded
	}
	w.items = append(w.items, item)
	var batch []T
	if len(w.items) >= w.threshold {
		batch = w.takeBatchLocked()
	}
	w.mu.Unlock()

	return w.flush(ctx, batch)
}

// Flush persists every pending item.
func (w *Writer[T]) Flush(ctx context.Context) error {
	w.mu.Lock()
	if w.discarded {
		w.mu.Unlock()
		return ErrDiscarded
	}
	batch := w.takeBatchLocked()
	w.mu.Unlock()

	return w.flush(ctx, batch)
}

// Discard drops pending items and rejects further ones. It returns the
// number of dropped items.
func (w *Writer[T]) Discard() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	dropped := len(w.items)
	w.items = nil
	w.discarded = true
	return dropped
}

// Commits is the number of successful flushes.
func (w *Writer[T]) Commits() int64 {
	return w.commits.Load()
}

// Flushed is the number of items persisted so far.
func (w *Writer[T]) Flushed() int64 {
	return w.flushed.Load()
}

func (w *Writer[T]) pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

func (w *Writer[T]) takeBatchLocked() []T {
	if len(w.items) == 0 {
		return nil
	}
	batch := make([]T, len(w.items))
	copy(batch, w.items)
	w.items = w.items[:0]
	return batch
}

func (w *Writer[T]) flush(ctx context.Context, batch []T) error {
	if len(batch) == 0 {
		return nil
	}
	start := time.Now()
	if err := w.flushFn(ctx, batch); err != nil {
		return err
	}
	commit := w.commits.Add(1)
	w.flushed.Add(int64(len(batch)))
	if w.logger != nil {
		w.logger.WithFields(logrus.Fields{
			"size":    len(batch),
			"commit":  commit,
			"took_ms": time.Since(start).Milliseconds(),
		}).Debug("flushed batch")
	}
	return nil
}
