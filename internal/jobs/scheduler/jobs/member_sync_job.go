package jobs

import (
	"context"
	"errors"
	"fmt"

	membersprocessor "lead-engine/internal/members/processor"
	"lead-engine/internal/observability"

	"github.com/google/uuid"
)

// MemberSyncer pulls a user's community members from Whop
type MemberSyncer interface {
	SyncMembers(ctx context.Context, userID uuid.UUID) (membersprocessor.SyncResult, error)
}

// MemberSyncJob refreshes member rosters from Whop for every user with a
// configured community. Users without Whop credentials are skipped.
type MemberSyncJob struct {
	users  UserLister
	syncer MemberSyncer
	logger *observability.Logger
}

func NewMemberSyncJob(users UserLister, syncer MemberSyncer, logger *observability.Logger) *MemberSyncJob {
	return &MemberSyncJob{users: users, syncer: syncer, logger: logger}
}

func (j *MemberSyncJob) Name() string {
	return "member_sync"
}

func (j *MemberSyncJob) Spec() string {
	return "30 */4 * * *"
}

func (j *MemberSyncJob) Run(ctx context.Context) error {
	userIDs, err := j.users.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users for member sync: %w", err)
	}

	var synced, failed int
	for _, userID := range userIDs {
		userCtx := observability.WithFields(ctx, observability.Field{Key: "user_id", Value: userID.String()})
		if _, err := j.syncer.SyncMembers(userCtx, userID); err != nil {
			if errors.Is(err, membersprocessor.ErrWhopNotConfigured) {
				continue
			}
			j.logger.Error(userCtx, "failed to sync members", err)
			failed++
			continue
		}
		synced++
	}

	j.logger.Info(ctx, fmt.Sprintf("member sync covered %d users, %d failed", synced, failed))
	return nil
}
