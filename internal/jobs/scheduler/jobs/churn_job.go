package jobs

import (
	"context"
	"fmt"

	membersprocessor "lead-engine/internal/members/processor"
	"lead-engine/internal/observability"

	"github.com/google/uuid"
)

// UserLister enumerates the users a fleet-wide job runs over
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ChurnPredictor recomputes churn risk across a user's members
type ChurnPredictor interface {
	PredictChurn(ctx context.Context, userID uuid.UUID) (membersprocessor.ChurnSummary, error)
}

// ChurnRecomputeJob refreshes churn risk scores for every user's member
// base so retention views stay current between syncs.
type ChurnRecomputeJob struct {
	users     UserLister
	predictor ChurnPredictor
	logger    *observability.Logger
}

func NewChurnRecomputeJob(users UserLister, predictor ChurnPredictor, logger *observability.Logger) *ChurnRecomputeJob {
	return &ChurnRecomputeJob{users: users, predictor: predictor, logger: logger}
}

func (j *ChurnRecomputeJob) Name() string {
	return "churn_recompute"
}

func (j *ChurnRecomputeJob) Spec() string {
	return "0 */6 * * *"
}

func (j *ChurnRecomputeJob) Run(ctx context.Context) error {
	userIDs, err := j.users.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users for churn recompute: %w", err)
	}

	var failed int
	for _, userID := range userIDs {
		userCtx := observability.WithFields(ctx, observability.Field{Key: "user_id", Value: userID.String()})
		if _, err := j.predictor.PredictChurn(userCtx, userID); err != nil {
			j.logger.Error(userCtx, "failed to recompute churn", err)
			failed++
		}
	}

	j.logger.Info(ctx, fmt.Sprintf("churn recompute covered %d users, %d failed", len(userIDs), failed))
	return nil
}
