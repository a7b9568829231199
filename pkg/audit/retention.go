package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/glossa-dev/glossa/pkg/observability"
)

// Cleaner deletes events older than a retention policy allows
type Cleaner interface {
	Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error)
}

// CleanupRecorder observes the outcome of each cleanup pass
type CleanupRecorder interface {
	RecordAuditCleanup(purged int64, err error)
}

// RetentionJob runs audit cleanup on a cron schedule
type RetentionJob struct {
	cleaner   Cleaner
	policy    RetentionPolicy
	logger    *observability.Logger
	cron      *cron.Cron
	timeout   time.Duration
	recorders []CleanupRecorder
}

// NewRetentionJob schedules cleanup according to policy.Schedule. The job
// does not run until Start is called.
func NewRetentionJob(cleaner Cleaner, policy RetentionPolicy, logger *observability.Logger) (*RetentionJob, error) {
	if cleaner == nil {
		return nil, fmt.Errorf("cleaner is required")
	}
	if policy.RetentionDays <= 0 {
		return nil, fmt.Errorf("retention days must be positive")
	}

	job := &RetentionJob{
		cleaner: cleaner,
		policy:  policy,
		logger:  logger,
		cron:    cron.New(),
		timeout: 5 * time.Minute,
	}

	if _, err := job.cron.AddFunc(policy.Schedule, job.Run); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", policy.Schedule, err)
	}
	return job, nil
}

// AddRecorder registers a sink for cleanup outcomes. Call before Start.
func (j *RetentionJob) AddRecorder(r CleanupRecorder) {
	if r != nil {
		j.recorders = append(j.recorders, r)
	}
}

// Run performs one cleanup pass
func (j *RetentionJob) Run() {
	defer observability.RecoverPanic(j.logger, "audit retention")

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	deleted, err := j.cleaner.Cleanup(ctx, j.policy)
	for _, r := range j.recorders {
		r.RecordAuditCleanup(deleted, err)
	}
	if err != nil {
		j.logger.WithError(err).Error("audit retention cleanup failed")
		return
	}
	j.logger.WithField("deleted", deleted).
		WithField("retention_days", j.policy.RetentionDays).
		Info("audit retention cleanup completed")
}

// Start begins running the schedule in the background
func (j *RetentionJob) Start() {
	j.cron.Start()
}

// Stop stops the scheduler and waits for a running cleanup to finish or
// ctx to expire
func (j *RetentionJob) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
