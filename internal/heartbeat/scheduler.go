package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultInterval   = time.Hour
	defaultRunTimeout = 10 * time.Minute
)

// Job is one unit of scheduled background work. The outcome tracker's
// jobs ride the same ticker as the sweep.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// SweepJob wraps an all-users sweep as a scheduler job.
func SweepJob(s *Scanner) Job {
	return Job{
		Name: "heartbeat-sweep",
		Run: func(ctx context.Context) error {
			summary, err := s.RunSweep(ctx, "")
			if err != nil {
				return err
			}
			s.logger.Info("scheduled sweep complete",
				zap.Int("users", summary.Users),
				zap.Int("findings", summary.Findings),
				zap.Int("tasks_created", summary.TasksCreated),
				zap.Int("executed", summary.Executed))
			return nil
		},
	}
}

// Scheduler runs its jobs on a fixed interval. Start and Stop are
// idempotent; a panicking job is caught and the ticker keeps going.
type Scheduler struct {
	interval   time.Duration
	runTimeout time.Duration
	jobs       []Job
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler builds a stopped scheduler over one or more jobs.
func NewScheduler(interval time.Duration, logger *zap.Logger, jobs ...Job) (*Scheduler, error) {
	if len(jobs) == 0 {
		return nil, errors.New("heartbeat: at least one job is required")
	}
	for _, j := range jobs {
		if j.Run == nil {
			return nil, fmt.Errorf("heartbeat: job %q has no run function", j.Name)
		}
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		interval:   interval,
		runTimeout: defaultRunTimeout,
		jobs:       jobs,
		logger:     logger,
	}, nil
}

// Start begins ticking. Calling Start on a running scheduler errors.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("heartbeat scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.loop(s.stopCh)
	s.logger.Info("heartbeat scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the ticker and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("heartbeat scheduler stopped")
}

func (s *Scheduler) loop(stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	for _, job := range s.jobs {
		s.runJob(ctx, job)
	}
}

// runJob isolates panics so one bad job cannot kill the schedule.
func (s *Scheduler) runJob(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled job panicked",
				zap.String("job", job.Name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	if err := job.Run(ctx); err != nil {
		s.logger.Error("scheduled job failed",
			zap.String("job", job.Name), zap.Error(err))
	}
}
