package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/camden-git/mediaidentity/services"
)

func TestAddJob(t *testing.T) {
	s := New()
	noop := func(context.Context) {}

	if err := s.AddJob("nightly", "0 3 * * *", noop); err != nil {
		t.Fatalf("AddJob() error: %v", err)
	}
	if err := s.AddJob("nightly", "0 4 * * *", noop); err == nil {
		t.Error("AddJob() with a duplicate ID succeeded, want error")
	}
	if err := s.AddJob("broken", "not a cron", noop); err == nil {
		t.Error("AddJob() with an invalid expression succeeded, want error")
	}

	s.Start()
	defer s.Stop()
	next, ok := s.NextRun("nightly")
	if !ok {
		t.Fatal("NextRun() found no job")
	}
	if next.Before(time.Now()) {
		t.Errorf("NextRun() = %v, want a future time", next)
	}
	if _, ok := s.NextRun("broken"); ok {
		t.Error("NextRun() reported a job that failed to register")
	}
}

func TestBusyJobDropsTicks(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on real cron ticks")
	}
	s := New()
	var (
		mu     sync.Mutex
		starts []time.Time
	)
	err := s.AddJob("slow", "* * * * * *", func(context.Context) {
		mu.Lock()
		starts = append(starts, time.Now())
		first := len(starts) == 1
		mu.Unlock()
		if first {
			// outlast a couple of ticks
			time.Sleep(2200 * time.Millisecond)
		}
	})
	if err != nil {
		t.Fatalf("AddJob() error: %v", err)
	}
	s.Start()
	time.Sleep(4500 * time.Millisecond)
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(starts) < 2 {
		t.Fatalf("job ran %d time(s), want at least 2", len(starts))
	}
	// queued ticks would start back to back once the slow run returned
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < 700*time.Millisecond {
			t.Errorf("run %d started %s after run %d, want a fresh tick", i+1, gap, i)
		}
	}
}

type stubProcessor struct {
	calls int32
	limit int
	min   services.Confidence
	err   error
}

func (p *stubProcessor) AutoProcess(ctx context.Context, limit int, min services.Confidence) (map[string][]services.Match, error) {
	atomic.AddInt32(&p.calls, 1)
	p.limit, p.min = limit, min
	if p.err != nil {
		return nil, p.err
	}
	return map[string][]services.Match{"p1": {{FaceIndex: 0}}}, nil
}

func TestAutoProcessTask(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"success", nil},
		{"failure is logged only", errors.New("database is locked")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubProcessor{err: tt.err}
			AutoProcessTask(p, 25, services.ConfidenceHigh)(context.Background())
			if p.calls != 1 || p.limit != 25 || p.min != services.ConfidenceHigh {
				t.Errorf("AutoProcess called %d times with limit %d min %s", p.calls, p.limit, p.min)
			}
		})
	}
}
