package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	aiprocessor "lead-engine/internal/ai/processor"
	"lead-engine/internal/observability"
	"lead-engine/internal/store"

	"github.com/google/uuid"
)

var (
	ErrCampaignNotSendable = errors.New("campaign is not in a sendable state")
	ErrUnknownMessageEvent = errors.New("unknown message event")
)

// OutreachStore defines the database operations required by OutreachProcessor
type OutreachStore interface {
	CreateCampaign(ctx context.Context, params store.CreateCampaignParams) (store.OutreachCampaign, error)
	ListCampaigns(ctx context.Context, userID uuid.UUID) ([]store.OutreachCampaign, error)
	GetCampaign(ctx context.Context, id, userID uuid.UUID) (store.OutreachCampaign, error)
	ActivateCampaign(ctx context.Context, id uuid.UUID) error
	AddCampaignSendResults(ctx context.Context, id uuid.UUID, leadsTargeted, messagesSent int) error
	IncrementCampaignResponses(ctx context.Context, id uuid.UUID) error

	CreateOutreachMessage(ctx context.Context, params store.CreateOutreachMessageParams) (store.OutreachMessage, error)
	MessageExistsForLead(ctx context.Context, campaignID, leadID uuid.UUID) (bool, error)
	ListCampaignMessages(ctx context.Context, campaignID uuid.UUID) ([]store.OutreachMessage, error)
	GetOutreachMessage(ctx context.Context, id, userID uuid.UUID) (store.OutreachMessage, error)
	MarkMessageSent(ctx context.Context, id uuid.UUID, externalMessageID string) error
	MarkMessageFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
	TrackMessageEvent(ctx context.Context, id uuid.UUID, event string, at time.Time) (store.OutreachMessage, error)

	GetLead(ctx context.Context, id, userID uuid.UUID) (store.Lead, error)
	UpdateLeadContact(ctx context.Context, id uuid.UUID) error
	MarkLeadResponded(ctx context.Context, id uuid.UUID) error
}

// Personalizer rewrites a campaign template for one lead.
type Personalizer interface {
	PersonalizeMessage(ctx context.Context, template string, lead aiprocessor.LeadProfile) string
}

// EmailSender delivers a single email and returns the provider message id.
type EmailSender interface {
	SendEmail(ctx context.Context, from, to, subject, htmlContent string) (string, error)
}

type OutreachProcessor struct {
	store        OutreachStore
	personalizer Personalizer
	email        EmailSender
	fromAddress  string
	logger       *observability.Logger
}

func New(outreachStore OutreachStore, personalizer Personalizer, email EmailSender, fromAddress string, logger *observability.Logger) *OutreachProcessor {
	return &OutreachProcessor{
		store:        outreachStore,
		personalizer: personalizer,
		email:        email,
		fromAddress:  fromAddress,
		logger:       logger,
	}
}

// CreateCampaignInput carries the fields accepted when creating a campaign.
type CreateCampaignInput struct {
	Name                   string
	Description            *string
	SubjectTemplate        *string
	MessageTemplate        string
	PersonalizationEnabled bool
}

func (p *OutreachProcessor) CreateCampaign(ctx context.Context, userID uuid.UUID, input CreateCampaignInput) (store.OutreachCampaign, error) {
	return p.store.CreateCampaign(ctx, store.CreateCampaignParams{
		UserID:                 userID,
		Name:                   input.Name,
		Description:            input.Description,
		SubjectTemplate:        input.SubjectTemplate,
		MessageTemplate:        input.MessageTemplate,
		PersonalizationEnabled: input.PersonalizationEnabled,
	})
}

func (p *OutreachProcessor) ListCampaigns(ctx context.Context, userID uuid.UUID) ([]store.OutreachCampaign, error) {
	campaigns, err := p.store.ListCampaigns(ctx, userID)
	if err != nil {
		return nil, err
	}
	if campaigns == nil {
		campaigns = []store.OutreachCampaign{}
	}
	return campaigns, nil
}

func (p *OutreachProcessor) GetCampaign(ctx context.Context, id, userID uuid.UUID) (store.OutreachCampaign, error) {
	return p.store.GetCampaign(ctx, id, userID)
}

func (p *OutreachProcessor) ListMessages(ctx context.Context, campaignID, userID uuid.UUID) ([]store.OutreachMessage, error) {
	// Ownership check before exposing messages.
	if _, err := p.store.GetCampaign(ctx, campaignID, userID); err != nil {
		return nil, err
	}
	messages, err := p.store.ListCampaignMessages(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []store.OutreachMessage{}
	}
	return messages, nil
}

// SendResult summarizes one send run.
type SendResult struct {
	Targeted int `json:"targeted"`
	Sent     int `json:"sent"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

const defaultSubject = "Quick question"

// SendCampaign sends the campaign message to each selected lead. Leads
// without an email address or already messaged in this campaign are
// skipped. A failed delivery is recorded on the message and does not stop
// the run.
func (p *OutreachProcessor) SendCampaign(ctx context.Context, userID, campaignID uuid.UUID, leadIDs []uuid.UUID) (SendResult, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "campaign_id", Value: campaignID.String()})

	campaign, err := p.store.GetCampaign(ctx, campaignID, userID)
	if err != nil {
		return SendResult{}, err
	}
	if campaign.Status == store.CampaignStatusCompleted {
		return SendResult{}, ErrCampaignNotSendable
	}

	var result SendResult
	for _, leadID := range leadIDs {
		lead, err := p.store.GetLead(ctx, leadID, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				result.Skipped++
				continue
			}
			return result, err
		}
		if lead.Email == nil || *lead.Email == "" {
			result.Skipped++
			continue
		}

		exists, err := p.store.MessageExistsForLead(ctx, campaignID, leadID)
		if err != nil {
			return result, err
		}
		if exists {
			result.Skipped++
			continue
		}
		result.Targeted++

		content := campaign.MessageTemplate
		var personalized *string
		if campaign.PersonalizationEnabled {
			pc := p.personalizer.PersonalizeMessage(ctx, campaign.MessageTemplate, leadProfile(lead))
			personalized = &pc
			content = pc
		}

		subject := defaultSubject
		if campaign.SubjectTemplate != nil && *campaign.SubjectTemplate != "" {
			subject = renderSubject(*campaign.SubjectTemplate, lead)
		}

		message, err := p.store.CreateOutreachMessage(ctx, store.CreateOutreachMessageParams{
			CampaignID:          campaignID,
			LeadID:              leadID,
			Subject:             &subject,
			Content:             campaign.MessageTemplate,
			PersonalizedContent: personalized,
			Status:              store.MessageStatusQueued,
		})
		if err != nil {
			return result, err
		}

		externalID, err := p.email.SendEmail(ctx, p.fromAddress, *lead.Email, subject, content)
		if err != nil {
			p.logger.InfoWithError(ctx, "failed to send outreach email", err)
			if markErr := p.store.MarkMessageFailed(ctx, message.ID, err.Error()); markErr != nil {
				p.logger.Error(ctx, "failed to mark message failed", markErr)
			}
			result.Failed++
			continue
		}

		if err := p.store.MarkMessageSent(ctx, message.ID, externalID); err != nil {
			p.logger.Error(ctx, "failed to mark message sent", err)
		}
		if err := p.store.UpdateLeadContact(ctx, leadID); err != nil {
			p.logger.Error(ctx, "failed to update lead contact", err)
		}
		result.Sent++
	}

	if err := p.store.AddCampaignSendResults(ctx, campaignID, result.Targeted, result.Sent); err != nil {
		p.logger.Error(ctx, "failed to record campaign send results", err)
	}
	if campaign.Status == store.CampaignStatusDraft {
		if err := p.store.ActivateCampaign(ctx, campaignID); err != nil {
			p.logger.Error(ctx, "failed to activate campaign", err)
		}
	}
	p.logger.Info(ctx, fmt.Sprintf("campaign send finished: %d sent, %d skipped, %d failed", result.Sent, result.Skipped, result.Failed))
	return result, nil
}

var trackableEvents = map[string]struct{}{
	"delivered": {},
	"opened":    {},
	"clicked":   {},
	"replied":   {},
}

// TrackEvent records a delivery lifecycle event on a message. A reply also
// bumps the campaign response counter and moves the lead to responded.
func (p *OutreachProcessor) TrackEvent(ctx context.Context, userID, messageID uuid.UUID, event string) (store.OutreachMessage, error) {
	event = strings.ToLower(event)
	if _, ok := trackableEvents[event]; !ok {
		return store.OutreachMessage{}, fmt.Errorf("%w: %s", ErrUnknownMessageEvent, event)
	}

	// Ownership check through the campaign.
	existing, err := p.store.GetOutreachMessage(ctx, messageID, userID)
	if err != nil {
		return store.OutreachMessage{}, err
	}

	message, err := p.store.TrackMessageEvent(ctx, messageID, event, time.Now().UTC())
	if err != nil {
		return store.OutreachMessage{}, err
	}

	// Only the first reply counts toward campaign responses.
	if event == "replied" && existing.RepliedAt == nil {
		if err := p.store.IncrementCampaignResponses(ctx, message.CampaignID); err != nil {
			p.logger.Error(ctx, "failed to increment campaign responses", err)
		}
		if err := p.store.MarkLeadResponded(ctx, message.LeadID); err != nil {
			p.logger.Error(ctx, "failed to mark lead responded", err)
		}
	}
	return message, nil
}

func leadProfile(lead store.Lead) aiprocessor.LeadProfile {
	profile := aiprocessor.LeadProfile{
		Name:       derefOr(lead.Name, ""),
		Username:   derefOr(lead.Username, ""),
		Interests:  lead.Interests,
		PainPoints: lead.PainPoints,
	}
	if approach, ok := lead.PersonalizationData["recommended_approach"].(string); ok {
		profile.RecommendedApproach = approach
	}
	return profile
}

func renderSubject(template string, lead store.Lead) string {
	name := derefOr(lead.Name, derefOr(lead.Username, "there"))
	return strings.ReplaceAll(template, "[NAME]", name)
}

func derefOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
