package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/notifier/pkg/logger"
	"github.com/jwalitptl/notifier/pkg/messaging"
	"github.com/jwalitptl/notifier/pkg/metrics"
)

const (
	JobEvaluate = "evaluate"
	JobDispatch = "dispatch"
)

// Func is one run of a job. The returned value is a summary of the run.
type Func func(ctx context.Context, progress Progress) (interface{}, error)

type Job struct {
	Name     string
	Schedule string
	Run      Func
}

type RunnerConfig struct {
	Location *time.Location
	LockTTL  time.Duration
}

// Runner schedules jobs with cron and makes sure each job has at most one run
// in flight. Stop cancels the context handed to running jobs; the jobs decide
// where they may stop.
type Runner struct {
	cron    *cron.Cron
	locker  Locker
	broker  messaging.Broker
	metrics *metrics.Metrics
	logger  *logger.Logger
	lockTTL time.Duration

	mu   sync.RWMutex
	jobs map[string]Job

	ctx    context.Context
	cancel context.CancelFunc
}

func NewRunner(cfg RunnerConfig, locker Locker, broker messaging.Broker, m *metrics.Metrics, log *logger.Logger) *Runner {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if locker == nil {
		locker = NewLocalLocker()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(log),
			cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
		),
		locker:  locker,
		broker:  broker,
		metrics: m,
		logger:  log,
		lockTTL: cfg.LockTTL,
		jobs:    make(map[string]Job),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds a job. An empty schedule registers it for manual runs only.
func (r *Runner) Register(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.Name]; ok {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	if job.Schedule != "" {
		name := job.Name
		_, err := r.cron.AddFunc(job.Schedule, func() {
			if _, err := r.RunNow(r.ctx, name); err != nil && !errors.Is(err, ErrLocked) {
				r.logger.Error(err, "scheduled job failed", "job", name)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule, job.Name, err)
		}
	}
	r.jobs[job.Name] = job
	return nil
}

// RunNow runs a registered job immediately, unless a run is already in flight.
func (r *Runner) RunNow(ctx context.Context, name string) (interface{}, error) {
	r.mu.RLock()
	job, ok := r.jobs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown job %s", name)
	}

	lease, err := r.locker.Acquire(ctx, name, r.lockTTL)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			r.metrics.JobRunsSkipped.WithLabelValues(name).Inc()
			r.logger.Info("job run skipped, previous run still active", "job", name)
		}
		return nil, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("failed to release job lock", "job", name, "error", err.Error())
		}
	}()

	runID := uuid.NewString()
	progress := NopProgress
	if r.broker != nil {
		progress = NewBrokerProgress(ctx, r.broker, r.logger, name, runID)
	}

	timer := prometheus.NewTimer(r.metrics.JobRunDuration.WithLabelValues(name))
	defer timer.ObserveDuration()

	r.logger.Info("job run started", "job", name, "run_id", runID)
	result, err := job.Run(ctx, progress)
	if err != nil {
		return result, fmt.Errorf("job %s run %s: %w", name, runID, err)
	}
	r.logger.Info("job run finished", "job", name, "run_id", runID, "result", result)
	return result, nil
}

func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info("job runner started", "jobs", len(r.jobs))
}

// Stop interrupts running jobs and waits for them to return or for ctx to end.
func (r *Runner) Stop(ctx context.Context) error {
	r.cancel()
	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
