package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBatchRecognizerIsolatesFailures(t *testing.T) {
	b := NewBatchRecognizer[int](2, 0)
	results := b.Run(context.Background(), []string{"ok", "fails", "panics", "ok"}, func(ctx context.Context, id string) ([]int, error) {
		switch id {
		case "fails":
			return nil, errors.New("boom")
		case "panics":
			panic("unexpected")
		}
		return []int{1, 2}, nil
	})

	if len(results) != 3 {
		t.Fatalf("Run() returned %d entries, want 3", len(results))
	}
	if len(results["ok"]) != 2 {
		t.Errorf("results[ok] = %v, want 2 values", results["ok"])
	}
	for _, id := range []string{"fails", "panics"} {
		got, ok := results[id]
		if !ok || got == nil || len(got) != 0 {
			t.Errorf("results[%s] = %#v (present %v), want empty non-nil", id, got, ok)
		}
	}
	if n := b.InFlight(); n != 0 {
		t.Errorf("InFlight() = %d after Run, want 0", n)
	}
}

func TestBatchRecognizerBoundsConcurrency(t *testing.T) {
	const workers = 3
	b := NewBatchRecognizer[struct{}](workers, 0)

	var running, peak int32
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	b.Run(context.Background(), ids, func(ctx context.Context, id string) ([]struct{}, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil, nil
	})

	if peak > workers {
		t.Errorf("peak concurrency = %d, want at most %d", peak, workers)
	}
}

func TestBatchRecognizerSerializesPhotoAcrossBatches(t *testing.T) {
	b := NewBatchRecognizer[int](1, 0)
	var mu sync.Mutex
	active := 0
	overlap := false

	fn := func(ctx context.Context, id string) ([]int, error) {
		mu.Lock()
		active++
		if active > 1 {
			overlap = true
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return []int{1}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Run(context.Background(), []string{"same"}, fn)
		}()
	}
	wg.Wait()

	if overlap {
		t.Error("the same photo was processed by two batches at once")
	}
}

func TestBatchRecognizerCancelledBatch(t *testing.T) {
	b := NewBatchRecognizer[int](1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	var calls int32
	results := b.Run(ctx, []string{"1", "2", "3"}, func(ctx context.Context, id string) ([]int, error) {
		atomic.AddInt32(&calls, 1)
		cancel()
		return []int{7}, nil
	})

	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
	if len(results) != 3 {
		t.Fatalf("Run() returned %d entries, want 3", len(results))
	}
	if len(results["1"]) != 1 || len(results["2"]) != 0 || len(results["3"]) != 0 {
		t.Errorf("results = %v, want only photo 1 processed", results)
	}
}
