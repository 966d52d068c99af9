package jobs

import (
	"context"
	"fmt"
	"time"

	"lead-engine/internal/observability"

	"github.com/google/uuid"
)

// SnapshotWriter persists a daily analytics rollup for one user
type SnapshotWriter interface {
	WriteDailySnapshot(ctx context.Context, userID uuid.UUID, day time.Time) error
}

// DailySnapshotJob rolls up each user's analytics into a dated snapshot
// row shortly after midnight UTC.
type DailySnapshotJob struct {
	users  UserLister
	writer SnapshotWriter
	logger *observability.Logger
}

func NewDailySnapshotJob(users UserLister, writer SnapshotWriter, logger *observability.Logger) *DailySnapshotJob {
	return &DailySnapshotJob{users: users, writer: writer, logger: logger}
}

func (j *DailySnapshotJob) Name() string {
	return "daily_analytics_snapshot"
}

func (j *DailySnapshotJob) Spec() string {
	return "15 0 * * *"
}

func (j *DailySnapshotJob) Run(ctx context.Context) error {
	userIDs, err := j.users.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users for analytics snapshot: %w", err)
	}

	// Snapshot the day that just ended.
	day := time.Now().UTC().AddDate(0, 0, -1)

	var failed int
	for _, userID := range userIDs {
		userCtx := observability.WithFields(ctx, observability.Field{Key: "user_id", Value: userID.String()})
		if err := j.writer.WriteDailySnapshot(userCtx, userID, day); err != nil {
			j.logger.Error(userCtx, "failed to write analytics snapshot", err)
			failed++
		}
	}

	j.logger.Info(ctx, fmt.Sprintf("analytics snapshots written for %d users, %d failed", len(userIDs)-failed, failed))
	return nil
}
