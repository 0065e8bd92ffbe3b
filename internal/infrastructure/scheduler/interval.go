package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"NewsAgent/internal/metrics"
	"NewsAgent/internal/ports"
)

// IntervalScheduler runs each job on its own ticker. A job whose previous run
// is still active is skipped, locally and, with a RunLock, across replicas.
type IntervalScheduler struct {
	jobs       []ports.Job
	lock       ports.RunLock
	runOnStart bool
	logger     *slog.Logger

	mu      sync.Mutex
	running map[string]*atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a scheduler; lock may be nil.
func NewIntervalScheduler(lock ports.RunLock, runOnStart bool, logger *slog.Logger) *IntervalScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntervalScheduler{
		lock:       lock,
		runOnStart: runOnStart,
		logger:     logger.With("component", "scheduler"),
		running:    map[string]*atomic.Bool{},
	}
}

// Add registers a job. Jobs added after Start are ignored until the next Start.
func (s *IntervalScheduler) Add(job ports.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	if _, ok := s.running[job.Name]; !ok {
		s.running[job.Name] = &atomic.Bool{}
	}
}

// Start launches one ticker goroutine per job. Calling Start twice is a no-op.
func (s *IntervalScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, job := range s.jobs {
		if job.Run == nil || job.Interval <= 0 {
			s.logger.Warn("job ignored", "job", job.Name, "interval", job.Interval)
			continue
		}
		s.wg.Add(1)
		go s.loop(runCtx, job)
		s.logger.Info("job scheduled", "job", job.Name, "interval", job.Interval)
	}
	return nil
}

// Stop cancels running jobs and waits for them or for ctx.
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *IntervalScheduler) loop(ctx context.Context, job ports.Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	if s.runOnStart {
		s.trigger(ctx, job)
	}
	for {
		select {
		case <-ticker.C:
			s.trigger(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

// trigger starts the job in the background unless its previous run is active,
// so a slow run never delays the ticker.
func (s *IntervalScheduler) trigger(ctx context.Context, job ports.Job) {
	s.mu.Lock()
	flag := s.running[job.Name]
	s.mu.Unlock()

	if !flag.CompareAndSwap(false, true) {
		s.logger.Info("job still running, skipping", "job", job.Name)
		metrics.RecordJob(job.Name, "skipped", 0)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer flag.Store(false)
		s.RunOnce(ctx, job)
	}()
}

// RunOnce executes job synchronously, honoring the distributed lock when set.
func (s *IntervalScheduler) RunOnce(ctx context.Context, job ports.Job) {
	if s.lock != nil {
		release, ok, err := s.lock.TryAcquire(ctx, "newsagent:job:"+job.Name, lockTTL(job.Interval))
		if err != nil {
			s.logger.Warn("job lock unavailable, running unlocked", "job", job.Name, "error", err)
		} else if !ok {
			s.logger.Info("job held by another replica, skipping", "job", job.Name)
			metrics.RecordJob(job.Name, "skipped", 0)
			return
		} else {
			defer release()
		}
	}

	started := time.Now()
	err := s.safeRun(ctx, job)
	elapsed := time.Since(started)

	if err != nil {
		s.logger.Error("job failed", "job", job.Name, "duration", elapsed, "error", err)
		metrics.RecordJob(job.Name, "error", elapsed.Seconds())
		return
	}
	s.logger.Info("job finished", "job", job.Name, "duration", elapsed)
	metrics.RecordJob(job.Name, "ok", elapsed.Seconds())
}

func (s *IntervalScheduler) safeRun(ctx context.Context, job ports.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	return job.Run(ctx)
}

// lockTTL outlives a normal run but frees the key if a replica dies mid-run.
func lockTTL(interval time.Duration) time.Duration {
	ttl := 2 * interval
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}
