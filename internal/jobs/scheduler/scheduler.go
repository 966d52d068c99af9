package scheduler

import (
	"context"
	"fmt"
	"time"

	"lead-engine/internal/observability"

	"github.com/robfig/cron/v3"
)

// Job is a unit of recurring background work
type Job interface {
	// Name returns the job name for logging
	Name() string
	// Spec returns the cron expression the job runs on
	Spec() string
	// Run executes the job
	Run(ctx context.Context) error
}

// Scheduler runs registered jobs on their cron schedules
type Scheduler struct {
	cron   *cron.Cron
	jobs   []Job
	logger *observability.Logger
}

func New(logger *observability.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
}

// Register adds a job to the scheduler. Must be called before Start.
func (s *Scheduler) Register(job Job) error {
	jobCtx := observability.WithFields(context.Background(),
		observability.Field{Key: "scheduled_job", Value: job.Name()})

	_, err := s.cron.AddFunc(job.Spec(), func() {
		s.execute(jobCtx, job)
	})
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
	}

	s.jobs = append(s.jobs, job)
	s.logger.Info(jobCtx, fmt.Sprintf("registered scheduled job %s (%s)", job.Name(), job.Spec()))
	return nil
}

// Start runs all registered jobs until the context is canceled. Each job
// also runs once at startup so a fresh deployment has current data.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info(ctx, fmt.Sprintf("starting scheduler with %d jobs", len(s.jobs)))

	for _, job := range s.jobs {
		jobCtx := observability.WithFields(ctx,
			observability.Field{Key: "scheduled_job", Value: job.Name()})
		go s.execute(jobCtx, job)
	}

	s.cron.Start()
	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info(context.Background(), "scheduler stopped")
}

func (s *Scheduler) execute(ctx context.Context, job Job) {
	start := time.Now()
	s.logger.Info(ctx, fmt.Sprintf("executing scheduled job %s", job.Name()))

	if err := job.Run(ctx); err != nil {
		s.logger.Error(ctx, fmt.Sprintf("job %s failed after %v", job.Name(), time.Since(start)), err)
		return
	}
	s.logger.Info(ctx, fmt.Sprintf("job %s completed in %v", job.Name(), time.Since(start)))
}
