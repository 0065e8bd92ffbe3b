package usecase

import (
	"context"
	"time"

	"NewsAgent/internal/config"
	"NewsAgent/internal/ports"
)

// Job names as they appear in logs, metrics and lock keys.
const (
	JobFetchRSS  = "fetch-rss"
	JobFetchHN   = "fetch-hn"
	JobSummarize = "summarize"
)

// Scheduler wires the interval driver with the pipeline jobs.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	cfg      config.SchedulerConfig
	hn       bool
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, cfg config.SchedulerConfig, hnEnabled bool) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, cfg: cfg, hn: hnEnabled}
}

// Jobs lists the periodic jobs for the current configuration.
func (s *Scheduler) Jobs() []ports.Job {
	jobs := []ports.Job{
		{
			Name:     JobFetchRSS,
			Interval: orDefault(s.cfg.FetchInterval, 30*time.Minute),
			Run: func(ctx context.Context) error {
				_, err := s.pipeline.FetchScanners(ctx, config.ScannerRSS, config.ScannerArxiv)
				return err
			},
		},
	}
	if s.hn {
		jobs = append(jobs, ports.Job{
			Name:     JobFetchHN,
			Interval: orDefault(s.cfg.HNInterval, 30*time.Minute),
			Run: func(ctx context.Context) error {
				_, err := s.pipeline.FetchScanners(ctx, config.ScannerHN)
				return err
			},
		})
	}
	limit := s.cfg.SummarizeLimit
	if limit <= 0 {
		limit = DefaultSummarizeLimit
	}
	jobs = append(jobs, ports.Job{
		Name:     JobSummarize,
		Interval: orDefault(s.cfg.SummarizeInterval, 10*time.Minute),
		Run: func(ctx context.Context) error {
			_, err := s.pipeline.SummarizeAll(ctx, limit)
			return err
		},
	})
	return jobs
}

// Start registers the jobs with the driver and starts it.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil || s.cfg.Disabled {
		return nil
	}

	for _, job := range s.Jobs() {
		s.driver.Add(job)
	}
	return s.driver.Start(ctx)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func orDefault(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
