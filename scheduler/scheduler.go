// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/danielhkuo/card-auction/metrics"
)

// Func is a scheduled callback. ctx is cancelled when the scheduler stops.
type Func func(ctx context.Context, key string)

type job struct {
	timer *time.Timer
	seq   uint64
	at    time.Time
}

// Scheduler runs one-shot callbacks at a point in time, at most one per key.
// All methods are safe for concurrent use, including from callbacks.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*job
	seq     uint64
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Schedule arranges for fn to run at at. An existing job under key is
// replaced. Times in the past fire immediately. Returns false once the
// scheduler has stopped.
func (s *Scheduler) Schedule(key string, at time.Time, fn Func) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}

	if old, ok := s.jobs[key]; ok {
		old.timer.Stop()
		delete(s.jobs, key)
	}

	s.seq++
	j := &job{seq: s.seq, at: at}
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	j.timer = time.AfterFunc(delay, func() { s.fire(key, j, fn) })
	s.jobs[key] = j

	metrics.SchedulerPending.Set(float64(len(s.jobs)))
	return true
}

// Cancel removes the job under key. Returns whether one was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[key]
	if !ok {
		return false
	}
	j.timer.Stop()
	delete(s.jobs, key)
	metrics.SchedulerPending.Set(float64(len(s.jobs)))
	return true
}

// When reports the time the job under key is due
func (s *Scheduler) When(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[key]
	if !ok {
		return time.Time{}, false
	}
	return j.at, true
}

// Pending returns the number of jobs waiting to fire
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Stop cancels every pending job and waits for running callbacks
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.stopped = true
	for key, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, key)
	}
	metrics.SchedulerPending.Set(0)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) fire(key string, j *job, fn Func) {
	s.mu.Lock()
	cur, ok := s.jobs[key]
	// A replaced or cancelled job can still fire if its timer had already
	// expired when Stop was called on it.
	if s.stopped || !ok || cur.seq != j.seq {
		s.mu.Unlock()
		return
	}
	delete(s.jobs, key)
	metrics.SchedulerPending.Set(float64(len(s.jobs)))
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduled job panicked", "key", key, "panic", r)
		}
	}()

	metrics.SchedulerFired.Inc()
	timer := metrics.NewTimer()
	fn(s.ctx, key)
	timer.ObserveDuration(metrics.SchedulerLatency)
}
