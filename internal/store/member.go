package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const memberColumns = `
    id, user_id, whop_member_id, email, username, full_name,
    status, tier, subscription_id, monthly_revenue,
    last_login, last_message, total_messages, activity_score,
    churn_risk, churn_score, days_inactive,
    retention_messages_sent, last_retention_contact, retention_successful,
    joined_at, churned_at, created_at, updated_at`

// UpsertMemberParams represents a member record synced from Whop
type UpsertMemberParams struct {
	UserID         uuid.UUID
	WhopMemberID   string
	Email          *string
	Username       *string
	FullName       *string
	Status         string
	Tier           *string
	SubscriptionID *string
	MonthlyRevenue *float64
	LastLogin      *time.Time
	LastMessage    *time.Time
	TotalMessages  int
	JoinedAt       time.Time
}

const sqlUpsertMember = `
INSERT INTO members (
    user_id, whop_member_id, email, username, full_name, status, tier,
    subscription_id, monthly_revenue, last_login, last_message, total_messages, joined_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (whop_member_id) DO UPDATE SET
    email = EXCLUDED.email,
    username = EXCLUDED.username,
    full_name = EXCLUDED.full_name,
    status = EXCLUDED.status,
    tier = EXCLUDED.tier,
    subscription_id = EXCLUDED.subscription_id,
    monthly_revenue = EXCLUDED.monthly_revenue,
    last_login = EXCLUDED.last_login,
    last_message = EXCLUDED.last_message,
    total_messages = EXCLUDED.total_messages,
    updated_at = NOW()
RETURNING` + memberColumns

func (s *Store) UpsertMember(ctx context.Context, params UpsertMemberParams) (Member, error) {
	var member Member
	err := s.db.GetContext(ctx, &member, sqlUpsertMember,
		params.UserID, params.WhopMemberID, params.Email, params.Username, params.FullName,
		params.Status, params.Tier, params.SubscriptionID, params.MonthlyRevenue,
		params.LastLogin, params.LastMessage, params.TotalMessages, params.JoinedAt)
	if err != nil {
		s.logger.Error(ctx, "failed to upsert member", err)
		return Member{}, fmt.Errorf("failed to upsert member: %w", err)
	}
	return member, nil
}

// MemberFilter narrows ListMembers results. Nil fields are ignored.
type MemberFilter struct {
	Status    *string
	ChurnRisk *string
	Limit     int
	Offset    int
}

const sqlListMembers = `
SELECT` + memberColumns + `
FROM members
WHERE user_id = $1
  AND ($2::text IS NULL OR status = $2)
  AND ($3::text IS NULL OR churn_risk = $3)
ORDER BY churn_score DESC, joined_at DESC
LIMIT $4 OFFSET $5`

func (s *Store) ListMembers(ctx context.Context, userID uuid.UUID, filter MemberFilter) ([]Member, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	members := []Member{}
	err := s.db.SelectContext(ctx, &members, sqlListMembers,
		userID, filter.Status, filter.ChurnRisk, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

const sqlGetMember = `
SELECT` + memberColumns + `
FROM members
WHERE id = $1 AND user_id = $2`

func (s *Store) GetMember(ctx context.Context, id, userID uuid.UUID) (Member, error) {
	var member Member
	err := s.db.GetContext(ctx, &member, sqlGetMember, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Member{}, ErrNotFound
		}
		return Member{}, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

const sqlGetMemberBySubscriptionID = `
SELECT` + memberColumns + `
FROM members
WHERE subscription_id = $1`

func (s *Store) GetMemberBySubscriptionID(ctx context.Context, subscriptionID string) (Member, error) {
	var member Member
	err := s.db.GetContext(ctx, &member, sqlGetMemberBySubscriptionID, subscriptionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Member{}, ErrNotFound
		}
		return Member{}, fmt.Errorf("failed to get member by subscription: %w", err)
	}
	return member, nil
}

// ChurnUpdateParams holds the recomputed churn fields for a member
type ChurnUpdateParams struct {
	DaysInactive  int
	ChurnRisk     string
	ChurnScore    float64
	ActivityScore float64
}

const sqlUpdateMemberChurn = `
UPDATE members
SET days_inactive = $2,
    churn_risk = $3,
    churn_score = $4,
    activity_score = $5,
    updated_at = NOW()
WHERE id = $1`

// UpdateMemberChurn persists recomputed churn fields. These columns are
// written only through this method.
func (s *Store) UpdateMemberChurn(ctx context.Context, id uuid.UUID, params ChurnUpdateParams) error {
	_, err := s.db.ExecContext(ctx, sqlUpdateMemberChurn, id,
		params.DaysInactive, params.ChurnRisk, params.ChurnScore, params.ActivityScore)
	if err != nil {
		return fmt.Errorf("failed to update member churn: %w", err)
	}
	return nil
}

const sqlUpdateMemberSubscription = `
UPDATE members
SET tier = COALESCE($2, tier),
    monthly_revenue = COALESCE($3, monthly_revenue),
    status = COALESCE($4, status),
    churned_at = CASE WHEN $4 = 'churned' THEN NOW() ELSE churned_at END,
    updated_at = NOW()
WHERE id = $1`

func (s *Store) UpdateMemberSubscription(ctx context.Context, id uuid.UUID, tier *string, monthlyRevenue *float64, status *string) error {
	_, err := s.db.ExecContext(ctx, sqlUpdateMemberSubscription, id, tier, monthlyRevenue, status)
	if err != nil {
		return fmt.Errorf("failed to update member subscription: %w", err)
	}
	return nil
}

const sqlRecordRetentionContact = `
UPDATE members
SET retention_messages_sent = retention_messages_sent + 1,
    last_retention_contact = NOW(),
    updated_at = NOW()
WHERE id = $1`

func (s *Store) RecordRetentionContact(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, sqlRecordRetentionContact, id)
	if err != nil {
		return fmt.Errorf("failed to record retention contact: %w", err)
	}
	return nil
}

const sqlMarkMemberRetained = `
UPDATE members
SET retention_successful = true, status = 'active', updated_at = NOW()
WHERE id = $1`

// MarkMemberRetained records a successful retention outcome, typically
// triggered by a payment after a retention contact.
func (s *Store) MarkMemberRetained(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, sqlMarkMemberRetained, id)
	if err != nil {
		return fmt.Errorf("failed to mark member retained: %w", err)
	}
	return nil
}

const retentionMessageColumns = `
    id, member_id, message_type, subject, content,
    sent_at, delivered_at, opened_at, clicked_at,
    member_returned, return_date, external_message_id, created_at`

// CreateRetentionMessageParams represents parameters for logging a
// retention email
type CreateRetentionMessageParams struct {
	MemberID          uuid.UUID
	MessageType       string
	Subject           *string
	Content           string
	ExternalMessageID *string
}

const sqlCreateRetentionMessage = `
INSERT INTO retention_messages (member_id, message_type, subject, content, sent_at, external_message_id)
VALUES ($1, $2, $3, $4, NOW(), $5)
RETURNING` + retentionMessageColumns

func (s *Store) CreateRetentionMessage(ctx context.Context, params CreateRetentionMessageParams) (RetentionMessage, error) {
	var message RetentionMessage
	err := s.db.GetContext(ctx, &message, sqlCreateRetentionMessage,
		params.MemberID, params.MessageType, params.Subject, params.Content, params.ExternalMessageID)
	if err != nil {
		s.logger.Error(ctx, "failed to create retention message", err)
		return RetentionMessage{}, fmt.Errorf("failed to create retention message: %w", err)
	}
	return message, nil
}

const sqlListRetentionMessages = `
SELECT
    rm.id, rm.member_id, rm.message_type, rm.subject, rm.content,
    rm.sent_at, rm.delivered_at, rm.opened_at, rm.clicked_at,
    rm.member_returned, rm.return_date, rm.external_message_id, rm.created_at
FROM retention_messages rm
JOIN members m ON m.id = rm.member_id
WHERE m.user_id = $1
ORDER BY rm.sent_at DESC
LIMIT $2 OFFSET $3`

func (s *Store) ListRetentionMessages(ctx context.Context, userID uuid.UUID, limit, offset int) ([]RetentionMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	messages := []RetentionMessage{}
	err := s.db.SelectContext(ctx, &messages, sqlListRetentionMessages, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list retention messages: %w", err)
	}
	return messages, nil
}
