package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead-engine/internal/clients/whop"
	"lead-engine/internal/observability"
	"lead-engine/internal/store"

	"github.com/google/uuid"
)

var (
	ErrWhopNotConfigured = errors.New("whop community is not configured")
	ErrMemberNoEmail     = errors.New("member has no email address")
)

// MemberStore defines the database operations required by MemberProcessor
type MemberStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error)
	UpsertMember(ctx context.Context, params store.UpsertMemberParams) (store.Member, error)
	ListMembers(ctx context.Context, userID uuid.UUID, filter store.MemberFilter) ([]store.Member, error)
	GetMember(ctx context.Context, id, userID uuid.UUID) (store.Member, error)
	UpdateMemberChurn(ctx context.Context, id uuid.UUID, params store.ChurnUpdateParams) error
	RecordRetentionContact(ctx context.Context, id uuid.UUID) error
	CreateRetentionMessage(ctx context.Context, params store.CreateRetentionMessageParams) (store.RetentionMessage, error)
	ListRetentionMessages(ctx context.Context, userID uuid.UUID, limit, offset int) ([]store.RetentionMessage, error)
}

// WhopClient pulls community membership from the Whop API.
type WhopClient interface {
	ListCommunityMembers(ctx context.Context, apiKey, communityID string) ([]whop.CommunityMember, error)
	GetMemberActivity(ctx context.Context, apiKey, memberID string) (whop.CommunityMember, error)
}

// RetentionWriter generates retention email copy.
type RetentionWriter interface {
	RetentionMessage(ctx context.Context, memberName string, daysInactive int, tier, messageType, communityName string) string
}

// EmailSender delivers a single email and returns the provider message id.
type EmailSender interface {
	SendEmail(ctx context.Context, from, to, subject, htmlContent string) (string, error)
}

type MemberProcessor struct {
	store       MemberStore
	whop        WhopClient
	retention   RetentionWriter
	email       EmailSender
	fromAddress string
	logger      *observability.Logger
}

func New(memberStore MemberStore, whopClient WhopClient, retention RetentionWriter, email EmailSender, fromAddress string, logger *observability.Logger) *MemberProcessor {
	return &MemberProcessor{
		store:       memberStore,
		whop:        whopClient,
		retention:   retention,
		email:       email,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

// SyncResult summarizes one Whop sync run.
type SyncResult struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// SyncMembers pulls the community roster from Whop, upserts every member
// and recomputes their churn fields.
func (p *MemberProcessor) SyncMembers(ctx context.Context, userID uuid.UUID) (SyncResult, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "user_id", Value: userID.String()})

	user, err := p.store.GetUserByID(ctx, userID)
	if err != nil {
		return SyncResult{}, err
	}
	if user.WhopCommunityID == nil || user.WhopAPIKey == nil {
		return SyncResult{}, ErrWhopNotConfigured
	}

	communityMembers, err := p.whop.ListCommunityMembers(ctx, *user.WhopAPIKey, *user.WhopCommunityID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to fetch whop members: %w", err)
	}

	now := time.Now().UTC()
	var result SyncResult
	for _, cm := range communityMembers {
		member, err := p.store.UpsertMember(ctx, upsertParams(userID, cm))
		if err != nil {
			p.logger.InfoWithError(ctx, "failed to upsert member, skipping", err)
			result.Failed++
			continue
		}
		if err := p.store.UpdateMemberChurn(ctx, member.ID, churnUpdateFor(member, now)); err != nil {
			p.logger.InfoWithError(ctx, "failed to update member churn", err)
		}
		result.Synced++
	}
	p.logger.Info(ctx, fmt.Sprintf("member sync finished: %d synced, %d failed", result.Synced, result.Failed))
	return result, nil
}

func upsertParams(userID uuid.UUID, cm whop.CommunityMember) store.UpsertMemberParams {
	status := cm.Status
	if status == "" {
		status = store.MemberStatusActive
	}
	return store.UpsertMemberParams{
		UserID:         userID,
		WhopMemberID:   cm.ID,
		Email:          optional(cm.Email),
		Username:       optional(cm.Username),
		FullName:       optional(cm.FullName),
		Status:         status,
		Tier:           optional(cm.Tier),
		SubscriptionID: optional(cm.SubscriptionID),
		MonthlyRevenue: &cm.MonthlyRevenue,
		LastLogin:      cm.LastLogin,
		LastMessage:    cm.LastMessage,
		TotalMessages:  cm.TotalMessages,
		JoinedAt:       cm.JoinedAt,
	}
}

func (p *MemberProcessor) ListMembers(ctx context.Context, userID uuid.UUID, filter store.MemberFilter) ([]store.Member, error) {
	members, err := p.store.ListMembers(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []store.Member{}
	}
	return members, nil
}

func (p *MemberProcessor) GetMember(ctx context.Context, id, userID uuid.UUID) (store.Member, error) {
	return p.store.GetMember(ctx, id, userID)
}

// ChurnSummary reports at-risk members grouped by risk tier.
type ChurnSummary struct {
	TotalMembers int            `json:"total_members"`
	AtRisk       int            `json:"at_risk"`
	ByRisk       map[string]int `json:"by_risk"`
	TopAtRisk    []store.Member `json:"top_at_risk"`
}

// PredictChurn recomputes churn for every member and returns a summary.
// Members already churned are excluded from the at-risk list.
func (p *MemberProcessor) PredictChurn(ctx context.Context, userID uuid.UUID) (ChurnSummary, error) {
	members, err := p.store.ListMembers(ctx, userID, store.MemberFilter{Limit: 1000})
	if err != nil {
		return ChurnSummary{}, err
	}

	now := time.Now().UTC()
	summary := ChurnSummary{ByRisk: make(map[string]int)}
	var atRisk []store.Member
	for _, member := range members {
		if member.Status == store.MemberStatusChurned {
			continue
		}
		update := churnUpdateFor(member, now)
		if err := p.store.UpdateMemberChurn(ctx, member.ID, update); err != nil {
			p.logger.InfoWithError(ctx, "failed to persist churn update", err)
		}
		member.DaysInactive = update.DaysInactive
		member.ChurnRisk = update.ChurnRisk
		member.ChurnScore = update.ChurnScore
		member.ActivityScore = update.ActivityScore

		summary.TotalMembers++
		summary.ByRisk[update.ChurnRisk]++
		if update.ChurnRisk == store.ChurnRiskHigh || update.ChurnRisk == store.ChurnRiskCritical {
			summary.AtRisk++
			atRisk = append(atRisk, member)
		}
	}

	// ListMembers orders by churn score already, keep the top ten.
	if len(atRisk) > 10 {
		atRisk = atRisk[:10]
	}
	if atRisk == nil {
		atRisk = []store.Member{}
	}
	summary.TopAtRisk = atRisk
	return summary, nil
}

// SendRetentionMessage generates and emails a retention message to one
// member, then records the contact.
func (p *MemberProcessor) SendRetentionMessage(ctx context.Context, userID, memberID uuid.UUID, messageType string) (store.RetentionMessage, error) {
	member, err := p.store.GetMember(ctx, memberID, userID)
	if err != nil {
		return store.RetentionMessage{}, err
	}
	if member.Email == nil || *member.Email == "" {
		return store.RetentionMessage{}, ErrMemberNoEmail
	}

	user, err := p.store.GetUserByID(ctx, userID)
	if err != nil {
		return store.RetentionMessage{}, err
	}
	communityName := ""
	if user.WhopCommunityName != nil {
		communityName = *user.WhopCommunityName
	}

	// Refresh activity from Whop so the copy reflects current inactivity,
	// not the last sync. A fetch failure falls back to stored values.
	if user.WhopAPIKey != nil && *user.WhopAPIKey != "" {
		activity, err := p.whop.GetMemberActivity(ctx, *user.WhopAPIKey, member.WhopMemberID)
		if err != nil {
			p.logger.InfoWithError(ctx, "failed to refresh member activity, using stored values", err)
		} else {
			member.LastLogin = activity.LastLogin
			member.LastMessage = activity.LastMessage
			member.TotalMessages = activity.TotalMessages
			update := churnUpdateFor(member, time.Now().UTC())
			member.DaysInactive = update.DaysInactive
			if err := p.store.UpdateMemberChurn(ctx, member.ID, update); err != nil {
				p.logger.Error(ctx, "failed to persist refreshed churn fields", err)
			}
		}
	}

	name := memberDisplayName(member)
	tier := ""
	if member.Tier != nil {
		tier = *member.Tier
	}
	content := p.retention.RetentionMessage(ctx, name, member.DaysInactive, tier, messageType, communityName)

	subject := retentionSubject(messageType, communityName)
	externalID, err := p.email.SendEmail(ctx, p.fromAddress, *member.Email, subject, content)
	if err != nil {
		return store.RetentionMessage{}, fmt.Errorf("failed to send retention email: %w", err)
	}

	message, err := p.store.CreateRetentionMessage(ctx, store.CreateRetentionMessageParams{
		MemberID:          memberID,
		MessageType:       messageType,
		Subject:           &subject,
		Content:           content,
		ExternalMessageID: &externalID,
	})
	if err != nil {
		return store.RetentionMessage{}, err
	}
	if err := p.store.RecordRetentionContact(ctx, memberID); err != nil {
		p.logger.Error(ctx, "failed to record retention contact", err)
	}
	return message, nil
}

func (p *MemberProcessor) ListRetentionMessages(ctx context.Context, userID uuid.UUID, limit, offset int) ([]store.RetentionMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	messages, err := p.store.ListRetentionMessages(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []store.RetentionMessage{}
	}
	return messages, nil
}

func memberDisplayName(member store.Member) string {
	if member.FullName != nil && *member.FullName != "" {
		return *member.FullName
	}
	if member.Username != nil && *member.Username != "" {
		return *member.Username
	}
	return "there"
}

func retentionSubject(messageType, communityName string) string {
	if communityName == "" {
		communityName = "the community"
	}
	switch messageType {
	case store.RetentionMessageTypeCoupon:
		return "A special offer from " + communityName
	case store.RetentionMessageTypePersonalCheckIn:
		return "Checking in"
	default:
		return "We miss you in " + communityName
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
