// Package scheduler runs the service's periodic jobs on fixed-interval
// tickers, one goroutine per task, with a per-run timeout context. Fixed
// tickers instead of reschedule-on-completion timers keep the cadence
// drift-free and make cancellation a plain context cancel.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

type task struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context) error
	next    func(now time.Time) time.Time // nil for interval tasks
	every   time.Duration
}

type Scheduler struct {
	mu    sync.Mutex
	tasks []task
	wg    sync.WaitGroup
}

func New() *Scheduler {
	return &Scheduler{}
}

// Every registers a task that fires on a fixed interval, starting one
// interval after Start.
func (s *Scheduler) Every(name string, interval, timeout time.Duration, run func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task{name: name, every: interval, timeout: timeout, run: run})
}

// Monthly registers a task that fires at the first instant (UTC) of every
// month.
func (s *Scheduler) Monthly(name string, timeout time.Duration, run func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task{
		name:    name,
		timeout: timeout,
		run:     run,
		next: func(now time.Time) time.Time {
			now = now.UTC()
			return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		},
	})
}

// Start launches every registered task and returns. Tasks stop when ctx is
// cancelled; Wait blocks until they are done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		s.wg.Add(1)
		go func(t task) {
			defer s.wg.Done()
			if t.next != nil {
				s.runCalendar(ctx, t)
			} else {
				s.runInterval(ctx, t)
			}
		}(t)
	}
}

func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runInterval(ctx context.Context, t task) {
	ticker := time.NewTicker(t.every)
	defer ticker.Stop()
	log.Printf("scheduler: task %q every %s", t.name, t.every)

	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler: task %q stopped", t.name)
			return
		case <-ticker.C:
			s.fire(ctx, t)
		}
	}
}

func (s *Scheduler) runCalendar(ctx context.Context, t task) {
	for {
		wait := time.Until(t.next(time.Now()))
		timer := time.NewTimer(wait)
		log.Printf("scheduler: task %q next fire in %s", t.name, wait.Round(time.Second))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Printf("scheduler: task %q stopped", t.name)
			return
		case <-timer.C:
			s.fire(ctx, t)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, t task) {
	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	if err := t.run(runCtx); err != nil {
		log.Printf("scheduler: task %q failed: %v", t.name, err)
	}
}
