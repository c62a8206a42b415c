package scheduler

import (
	"context"
	"sync"
	"time"
)

// Job is one recurring phase. RunImmediately fires the job once at start
// before the first tick.
type Job struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool
	Run            func(ctx context.Context, trigger time.Time)
}

// Ticker runs each registered job on its own interval. Phases with
// different cadences (discovery, download sweep, calendar refresh) stay
// independent; a slow phase never delays the others' ticks.
type Ticker struct {
	mu   sync.Mutex
	jobs []Job
	stop chan struct{}
	wg   sync.WaitGroup
}

func NewTicker() *Ticker {
	return &Ticker{}
}

// Add registers a job. Jobs added after Start are ignored.
func (t *Ticker) Add(job Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job.Run == nil || job.Interval <= 0 {
		return
	}
	t.jobs = append(t.jobs, job)
}

// Start launches one goroutine per job. Calling Start twice is a no-op.
func (t *Ticker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return nil
	}
	t.stop = make(chan struct{})

	for _, job := range t.jobs {
		t.wg.Add(1)
		go t.loop(ctx, job)
	}
	return nil
}

func (t *Ticker) loop(ctx context.Context, job Job) {
	defer t.wg.Done()

	if job.RunImmediately {
		job.Run(ctx, time.Now())
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case trigger := <-ticker.C:
			job.Run(ctx, trigger)
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		}
	}
}

// Stop halts all job goroutines and waits for in-flight runs to return.
func (t *Ticker) Stop(ctx context.Context) error {
	t.mu.Lock()
	stop := t.stop
	t.stop = nil
	t.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
