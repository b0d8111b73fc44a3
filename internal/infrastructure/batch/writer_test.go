package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]int
	err     error
}

func (r *recorder) flush(_ context.Context, batch []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, batch)
	return nil
}

func TestWriterFlushesAtThreshold(t *testing.T) {
	rec := &recorder{}
	w := NewWriter[int](3, rec.flush, nil)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if err := w.Enqueue(ctx, i); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if len(rec.batches) != 2 {
		t.Fatalf("flushed %d batches, want 2", len(rec.batches))
	}
	if w.pending() != 1 {
		t.Errorf("pending = %d, want 1", w.pending())
	}
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if w.Commits() != 3 || w.Flushed() != 7 {
		t.Errorf("commits/flushed = %d/%d, want 3/7", w.Commits(), w.Flushed())
	}
	if got := rec.batches[2]; len(got) != 1 || got[0] != 6 {
		t.Errorf("last batch = %v, want [6]", got)
	}
}

func TestWriterFlushEmptyIsNoop(t *testing.T) {
	rec := &recorder{}
	w := NewWriter[int](10, rec.flush, nil)
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if w.Commits() != 0 || len(rec.batches) != 0 {
		t.Errorf("empty flush committed")
	}
}

func TestWriterDefaultThreshold(t *testing.T) {
	w := NewWriter[int](0, (&recorder{}).flush, nil)
	if w.threshold != DefaultThreshold {
		t.Errorf("threshold = %d, want %d", w.threshold, DefaultThreshold)
	}
}

func TestWriterFlushErrorIsNotCounted(t *testing.T) {
	boom := errors.New("tx aborted")
	rec := &recorder{err: boom}
	w := NewWriter[int](1, rec.flush, nil)
	if err := w.Enqueue(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if w.Commits() != 0 {
		t.Errorf("commits = %d, want 0", w.Commits())
	}
}

func TestWriterDiscard(t *testing.T) {
	rec := &recorder{}
	w := NewWriter[int](10, rec.flush, nil)
	ctx := context.Background()
	_ = w.Enqueue(ctx, 1)
	_ = w.Enqueue(ctx, 2)

	if dropped := w.Discard(); dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if err := w.Enqueue(ctx, 3); !errors.Is(err, ErrDiscarded) {
		t.Errorf("enqueue after discard err = %v", err)
	}
	if err := w.Flush(ctx); !errors.Is(err, ErrDiscarded) {
		t.Errorf("flush after discard err = %v", err)
	}
	if len(rec.batches) != 0 {
		t.Errorf("discarded items were flushed: %v", rec.batches)
	}
}

func TestWriterConcurrentEnqueue(t *testing.T) {
	rec := &recorder{}
	w := NewWriter[int](5, rec.flush, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = w.Enqueue(ctx, i)
			}
		}()
	}
	wg.Wait()
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if w.Flushed() != 100 {
		t.Errorf("flushed = %d, want 100", w.Flushed())
	}
}

func TestWriterRejectsCanceledContext(t *testing.T) {
	w := NewWriter[int](5, (&recorder{}).flush, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Enqueue(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
