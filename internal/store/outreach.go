package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const campaignColumns = `
    id, user_id, name, description, status,
    subject_template, message_template, personalization_enabled,
    total_leads, messages_sent, responses_received, conversions,
    started_at, completed_at, created_at, updated_at`

// CreateCampaignParams represents parameters for creating an outreach campaign
type CreateCampaignParams struct {
	UserID                 uuid.UUID
	Name                   string
	Description            *string
	SubjectTemplate        *string
	MessageTemplate        string
	PersonalizationEnabled bool
}

const sqlCreateCampaign = `
INSERT INTO outreach_campaigns (
    user_id, name, description, subject_template, message_template, personalization_enabled)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING` + campaignColumns

func (s *Store) CreateCampaign(ctx context.Context, params CreateCampaignParams) (OutreachCampaign, error) {
	var campaign OutreachCampaign
	err := s.db.GetContext(ctx, &campaign, sqlCreateCampaign,
		params.UserID, params.Name, params.Description,
		params.SubjectTemplate, params.MessageTemplate, params.PersonalizationEnabled)
	if err != nil {
		s.logger.Error(ctx, "failed to create campaign", err)
		return OutreachCampaign{}, fmt.Errorf("failed to create campaign: %w", err)
	}
	return campaign, nil
}

const sqlListCampaigns = `
SELECT` + campaignColumns + `
FROM outreach_campaigns
WHERE user_id = $1
ORDER BY created_at DESC`

func (s *Store) ListCampaigns(ctx context.Context, userID uuid.UUID) ([]OutreachCampaign, error) {
	campaigns := []OutreachCampaign{}
	err := s.db.SelectContext(ctx, &campaigns, sqlListCampaigns, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

const sqlGetCampaign = `
SELECT` + campaignColumns + `
FROM outreach_campaigns
WHERE id = $1 AND user_id = $2`

func (s *Store) GetCampaign(ctx context.Context, id, userID uuid.UUID) (OutreachCampaign, error) {
	var campaign OutreachCampaign
	err := s.db.GetContext(ctx, &campaign, sqlGetCampaign, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OutreachCampaign{}, ErrNotFound
		}
		return OutreachCampaign{}, fmt.Errorf("failed to get campaign: %w", err)
	}
	return campaign, nil
}

const sqlActivateCampaign = `
UPDATE outreach_campaigns
SET status = 'active',
    started_at = COALESCE(started_at, NOW()),
    updated_at = NOW()
WHERE id = $1 AND status = 'draft'`

// ActivateCampaign moves a draft campaign to active on first send.
func (s *Store) ActivateCampaign(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, sqlActivateCampaign, id)
	if err != nil {
		return fmt.Errorf("failed to activate campaign: %w", err)
	}
	return nil
}

const sqlAddCampaignSendResults = `
UPDATE outreach_campaigns
SET total_leads = total_leads + $2,
    messages_sent = messages_sent + $3,
    updated_at = NOW()
WHERE id = $1`

// AddCampaignSendResults bumps campaign counters after a send batch.
func (s *Store) AddCampaignSendResults(ctx context.Context, id uuid.UUID, leadsTargeted, messagesSent int) error {
	_, err := s.db.ExecContext(ctx, sqlAddCampaignSendResults, id, leadsTargeted, messagesSent)
	if err != nil {
		return fmt.Errorf("failed to update campaign counters: %w", err)
	}
	return nil
}

const sqlIncrementCampaignResponses = `
UPDATE outreach_campaigns
SET responses_received = responses_received + 1, updated_at = NOW()
WHERE id = $1`

func (s *Store) IncrementCampaignResponses(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, sqlIncrementCampaignResponses, id)
	if err != nil {
		return fmt.Errorf("failed to increment campaign responses: %w", err)
	}
	return nil
}

const messageColumns = `
    id, campaign_id, lead_id, subject, content, personalized_content,
    status, sent_at, delivered_at, opened_at, clicked_at, replied_at,
    external_message_id, error_message, retry_count, created_at, updated_at`

// CreateOutreachMessageParams represents parameters for creating a message
type CreateOutreachMessageParams struct {
	CampaignID          uuid.UUID
	LeadID              uuid.UUID
	Subject             *string
	Content             string
	PersonalizedContent *string
	Status              string
}

const sqlCreateOutreachMessage = `
INSERT INTO outreach_messages (campaign_id, lead_id, subject, content, personalized_content, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING` + messageColumns

func (s *Store) CreateOutreachMessage(ctx context.Context, params CreateOutreachMessageParams) (OutreachMessage, error) {
	var message OutreachMessage
	err := s.db.GetContext(ctx, &message, sqlCreateOutreachMessage,
		params.CampaignID, params.LeadID, params.Subject,
		params.Content, params.PersonalizedContent, params.Status)
	if err != nil {
		s.logger.Error(ctx, "failed to create outreach message", err)
		return OutreachMessage{}, fmt.Errorf("failed to create outreach message: %w", err)
	}
	return message, nil
}

const sqlMessageExistsForLead = `
SELECT EXISTS (
    SELECT 1 FROM outreach_messages WHERE campaign_id = $1 AND lead_id = $2
)`

// MessageExistsForLead reports whether the campaign has already targeted
// the lead.
func (s *Store) MessageExistsForLead(ctx context.Context, campaignID, leadID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, sqlMessageExistsForLead, campaignID, leadID)
	if err != nil {
		return false, fmt.Errorf("failed to check message existence: %w", err)
	}
	return exists, nil
}

const sqlListCampaignMessages = `
SELECT` + messageColumns + `
FROM outreach_messages
WHERE campaign_id = $1
ORDER BY created_at DESC`

func (s *Store) ListCampaignMessages(ctx context.Context, campaignID uuid.UUID) ([]OutreachMessage, error) {
	messages := []OutreachMessage{}
	err := s.db.SelectContext(ctx, &messages, sqlListCampaignMessages, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaign messages: %w", err)
	}
	return messages, nil
}

const sqlGetOutreachMessage = `
SELECT` + messageColumns + `
FROM outreach_messages m
WHERE m.id = $1
  AND EXISTS (
    SELECT 1 FROM outreach_campaigns c WHERE c.id = m.campaign_id AND c.user_id = $2
  )`

func (s *Store) GetOutreachMessage(ctx context.Context, id, userID uuid.UUID) (OutreachMessage, error) {
	var message OutreachMessage
	err := s.db.GetContext(ctx, &message, sqlGetOutreachMessage, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OutreachMessage{}, ErrNotFound
		}
		return OutreachMessage{}, fmt.Errorf("failed to get outreach message: %w", err)
	}
	return message, nil
}

const sqlMarkMessageSent = `
UPDATE outreach_messages
SET status = 'sent', sent_at = NOW(), external_message_id = $2, updated_at = NOW()
WHERE id = $1`

func (s *Store) MarkMessageSent(ctx context.Context, id uuid.UUID, externalMessageID string) error {
	_, err := s.db.ExecContext(ctx, sqlMarkMessageSent, id, externalMessageID)
	if err != nil {
		return fmt.Errorf("failed to mark message sent: %w", err)
	}
	return nil
}

const sqlMarkMessageFailed = `
UPDATE outreach_messages
SET status = 'failed', error_message = $2, retry_count = retry_count + 1, updated_at = NOW()
WHERE id = $1`

func (s *Store) MarkMessageFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	_, err := s.db.ExecContext(ctx, sqlMarkMessageFailed, id, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}
	return nil
}

const sqlTrackMessageEvent = `
UPDATE outreach_messages
SET status = CASE
        WHEN array_position(ARRAY['draft','queued','sent','delivered','opened','clicked','replied'], $2::text)
           > COALESCE(array_position(ARRAY['draft','queued','sent','delivered','opened','clicked','replied'], status), 99)
        THEN $2::text ELSE status END,
    delivered_at = CASE WHEN $2 = 'delivered' AND delivered_at IS NULL THEN $3 ELSE delivered_at END,
    opened_at = CASE WHEN $2 = 'opened' AND opened_at IS NULL THEN $3 ELSE opened_at END,
    clicked_at = CASE WHEN $2 = 'clicked' AND clicked_at IS NULL THEN $3 ELSE clicked_at END,
    replied_at = CASE WHEN $2 = 'replied' AND replied_at IS NULL THEN $3 ELSE replied_at END,
    updated_at = NOW()
WHERE id = $1
RETURNING` + messageColumns

// TrackMessageEvent records a delivery lifecycle event. Event timestamps
// are set once and never overwritten, and status only moves forward
// through the lifecycle, so a late "opened" cannot demote a replied
// message.
func (s *Store) TrackMessageEvent(ctx context.Context, id uuid.UUID, event string, at time.Time) (OutreachMessage, error) {
	var message OutreachMessage
	err := s.db.GetContext(ctx, &message, sqlTrackMessageEvent, id, event, at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OutreachMessage{}, ErrNotFound
		}
		return OutreachMessage{}, fmt.Errorf("failed to track message event: %w", err)
	}
	return message, nil
}
