// Package scheduler runs periodic background jobs such as license
// revalidation.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a scheduled task.
type Job func(ctx context.Context) error

// JobTimeout bounds a single job run.
const JobTimeout = 2 * time.Minute

// Scheduler manages periodic tasks.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// New creates a scheduler that evaluates schedules in loc.
func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		// A job still running when its next tick arrives is skipped.
		cron:   cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
	}
}

// AddJob schedules job under name. schedule is a standard five-field cron
// spec or a descriptor such as "@every 30m".
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		s.run(name, job)
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old)
	}
	s.jobs[name] = entryID
	s.mu.Unlock()

	s.logger.Info("scheduled job", "job", name, "schedule", schedule)
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), JobTimeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Warn("scheduled job failed", "job", name, "error", err)
		return
	}
	s.logger.Debug("scheduled job completed", "job", name, "duration", time.Since(start))
}

// RemoveJob removes a scheduled job.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
	}
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// JobInfo describes a scheduled job.
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

// ListJobs returns the scheduled jobs.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, entryID := range s.jobs {
		entry := s.cron.Entry(entryID)
		if !entry.Valid() {
			continue
		}
		infos = append(infos, JobInfo{Name: name, NextRun: entry.Next, LastRun: entry.Prev})
	}
	return infos
}
