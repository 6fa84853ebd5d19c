package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Task is a unit of scheduled work.
type Task func(ctx context.Context)

// Scheduler runs named cron jobs one at a time. A tick that fires while a
// run is still busy is dropped, not queued.
type Scheduler struct {
	scheduler *gocron.Scheduler
	jobs      map[string]*gocron.Job
	mu        sync.Mutex
	running   bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped Scheduler evaluating cron expressions in UTC.
func New() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SetMaxConcurrentJobs(1, gocron.RescheduleMode)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		jobs:      make(map[string]*gocron.Job),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// AddJob registers task under id with a standard five-field cron
// expression, or six fields when the first one gives seconds.
func (s *Scheduler) AddJob(id, cronExpr string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return fmt.Errorf("job with ID %s already exists", id)
	}
	var sched *gocron.Scheduler
	if len(strings.Fields(cronExpr)) == 6 {
		sched = s.scheduler.CronWithSeconds(cronExpr)
	} else {
		sched = s.scheduler.Cron(cronExpr)
	}
	job, err := sched.Do(func() {
		log.Printf("scheduler: running job %s", id)
		started := time.Now()
		task(s.ctx)
		log.Printf("scheduler: job %s finished in %s", id, time.Since(started).Round(time.Millisecond))
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression '%s' for job %s: %w", cronExpr, id, err)
	}
	s.jobs[id] = job
	log.Printf("scheduler: job %s added (%s), next run %s", id, cronExpr, job.NextRun().Format(time.RFC3339))
	return nil
}

// NextRun reports when job id fires next.
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return time.Time{}, false
	}
	return job.NextRun(), true
}

// Start begins executing jobs in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.scheduler.StartAsync()
	s.running = true
	log.Printf("scheduler: started with %d job(s)", len(s.jobs))
}

// Stop halts the scheduler and cancels the context handed to running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.scheduler.Stop()
	s.running = false
	log.Println("scheduler: stopped")
}
