package workers

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"
)

// PhotoFunc processes one photo of a batch.
type PhotoFunc[T any] func(ctx context.Context, photoID string) ([]T, error)

// BatchRecognizer runs per-photo work over a bounded pool. A worker waits
// for the configured pause after every photo so sustained batches keep the
// store's write rate bounded. A photo is owned by at most one job at a
// time, across every batch sharing the recognizer.
type BatchRecognizer[T any] struct {
	numWorkers int
	pause      time.Duration

	Mutex   sync.Mutex
	Pending map[string]chan struct{}
}

// NewBatchRecognizer creates a BatchRecognizer with numWorkers workers per
// batch.
func NewBatchRecognizer[T any](numWorkers int, pause time.Duration) *BatchRecognizer[T] {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if pause < 0 {
		pause = 0
	}
	return &BatchRecognizer[T]{
		numWorkers: numWorkers,
		pause:      pause,
		Pending:    make(map[string]chan struct{}),
	}
}

// Run applies fn to every photo and returns one entry per distinct ID. A
// photo whose fn fails or panics, or which was not reached before ctx was
// cancelled, maps to an empty result. Run never fails as a whole.
func (b *BatchRecognizer[T]) Run(ctx context.Context, photoIDs []string, fn PhotoFunc[T]) map[string][]T {
	results := make(map[string][]T, len(photoIDs))
	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	unique := make([]string, 0, len(photoIDs))
	for _, id := range photoIDs {
		if _, seen := results[id]; seen {
			continue
		}
		results[id] = []T{}
		unique = append(unique, id)
	}

	workers := b.numWorkers
	if workers > len(unique) {
		workers = len(unique)
	}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(worker int) {
			defer wg.Done()
			for id := range jobs {
				out := b.process(ctx, worker, id, fn)
				mu.Lock()
				results[id] = out
				mu.Unlock()
				b.wait(ctx)
			}
		}(i)
	}

	log.Printf("recognition: starting batch of %d photo(s) on %d worker(s)", len(unique), workers)
feed:
	for _, id := range unique {
		select {
		case jobs <- id:
		case <-ctx.Done():
			log.Printf("recognition: batch cancelled: %v", ctx.Err())
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	log.Printf("recognition: completed batch of %d photo(s)", len(unique))

	return results
}

func (b *BatchRecognizer[T]) process(ctx context.Context, worker int, photoID string, fn PhotoFunc[T]) (out []T) {
	out = []T{}
	if err := ctx.Err(); err != nil {
		log.Printf("recognition worker %d: skipping photo %s: %v", worker, photoID, err)
		return out
	}
	release, err := b.claim(ctx, photoID)
	if err != nil {
		log.Printf("recognition worker %d: gave up waiting for photo %s: %v", worker, photoID, err)
		return out
	}
	defer release()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("recognition worker %d: panic on photo %s: %v\n%s", worker, photoID, r, debug.Stack())
			out = []T{}
		}
	}()

	res, err := fn(ctx, photoID)
	if err != nil {
		log.Printf("recognition worker %d: photo %s failed: %v", worker, photoID, err)
		return out
	}
	if res != nil {
		out = res
	}
	return out
}

// claim makes the caller the single owner of photoID, waiting while
// another job holds it.
func (b *BatchRecognizer[T]) claim(ctx context.Context, photoID string) (func(), error) {
	for {
		b.Mutex.Lock()
		busy, held := b.Pending[photoID]
		if !held {
			done := make(chan struct{})
			b.Pending[photoID] = done
			b.Mutex.Unlock()
			return func() {
				b.Mutex.Lock()
				delete(b.Pending, photoID)
				b.Mutex.Unlock()
				close(done)
			}, nil
		}
		b.Mutex.Unlock()

		select {
		case <-busy:
		case <-ctx.Done():
			return nil, fmt.Errorf("photo %s busy: %w", photoID, ctx.Err())
		}
	}
}

func (b *BatchRecognizer[T]) wait(ctx context.Context) {
	if b.pause == 0 {
		return
	}
	t := time.NewTimer(b.pause)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// InFlight reports how many photos are currently owned by a job.
func (b *BatchRecognizer[T]) InFlight() int {
	b.Mutex.Lock()
	defer b.Mutex.Unlock()
	return len(b.Pending)
}
