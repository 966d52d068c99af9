package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	aiprocessor "lead-engine/internal/ai/processor"
	discovery "lead-engine/internal/discovery/processor"
	"lead-engine/internal/observability"
	"lead-engine/internal/store"

	"github.com/google/uuid"
)

var (
	ErrDuplicateLead           = errors.New("lead already exists")
	ErrInvalidStatusTransition = errors.New("invalid lead status transition")
)

// LeadStore defines the database operations required by LeadProcessor
type LeadStore interface {
	CreateLead(ctx context.Context, params store.CreateLeadParams) (store.Lead, error)
	ListLeads(ctx context.Context, userID uuid.UUID, filter store.LeadFilter) ([]store.Lead, error)
	CountLeads(ctx context.Context, userID uuid.UUID, filter store.LeadFilter) (int, error)
	GetLead(ctx context.Context, id, userID uuid.UUID) (store.Lead, error)
	UpdateLead(ctx context.Context, id, userID uuid.UUID, params store.UpdateLeadParams) (store.Lead, error)
	DeleteLead(ctx context.Context, id, userID uuid.UUID) error
	LeadExistsByIdentity(ctx context.Context, userID uuid.UUID, email, username *string, source string) (bool, error)
	GetCriteria(ctx context.Context, userID uuid.UUID) (store.DiscoveryCriteria, error)
	UpsertCriteria(ctx context.Context, userID uuid.UUID, params store.UpsertCriteriaParams) (store.DiscoveryCriteria, error)
}

// Analyzer enriches manually entered leads with an LLM verdict.
type Analyzer interface {
	AnalyzeLead(ctx context.Context, name, username, source, profileURL string) aiprocessor.QualificationVerdict
}

// Discoverer runs the discovery pipeline against external sources.
type Discoverer interface {
	Discover(ctx context.Context, userID uuid.UUID, criteria discovery.Criteria) ([]discovery.Candidate, error)
}

type LeadProcessor struct {
	store      LeadStore
	analyzer   Analyzer
	discoverer Discoverer
	logger     *observability.Logger
}

func New(leadStore LeadStore, analyzer Analyzer, discoverer Discoverer, logger *observability.Logger) *LeadProcessor {
	return &LeadProcessor{
		store:      leadStore,
		analyzer:   analyzer,
		discoverer: discoverer,
		logger:     logger,
	}
}

// CreateLeadInput carries the fields accepted when creating a lead by hand
// or via import.
type CreateLeadInput struct {
	Name       *string
	Email      *string
	Username   *string
	ProfileURL *string
	Source     string
	Notes      *string
}

// CreateLead persists a manually entered lead, enriched by the LLM. A lead
// with the same email or username on the same source is rejected.
func (p *LeadProcessor) CreateLead(ctx context.Context, userID uuid.UUID, input CreateLeadInput) (store.Lead, error) {
	source := input.Source
	if source == "" {
		source = store.LeadSourceManual
	}

	if input.Email != nil || input.Username != nil {
		exists, err := p.store.LeadExistsByIdentity(ctx, userID, input.Email, input.Username, source)
		if err != nil {
			return store.Lead{}, fmt.Errorf("failed to check existing leads: %w", err)
		}
		if exists {
			return store.Lead{}, ErrDuplicateLead
		}
	}

	verdict := p.analyzer.AnalyzeLead(ctx,
		strVal(input.Name), strVal(input.Username), source, strVal(input.ProfileURL))

	grade := verdict.QualityGrade
	summary := verdict.Summary
	return p.store.CreateLead(ctx, store.CreateLeadParams{
		UserID:       userID,
		Name:         input.Name,
		Email:        input.Email,
		Username:     input.Username,
		ProfileURL:   input.ProfileURL,
		Source:       source,
		Content:      input.Notes,
		IntentScore:  verdict.IntentScore,
		QualityGrade: &grade,
		Interests:    store.StringArray(verdict.Interests),
		PainPoints:   store.StringArray(verdict.PainPoints),
		AISummary:    &summary,
		PersonalizationData: store.JSONB{
			"recommended_approach": verdict.Personalization.RecommendedApproach,
			"key_talking_points":   verdict.Personalization.KeyTalkingPoints,
			"urgency_level":        verdict.Personalization.UrgencyLevel,
		},
	})
}

// ImportResult summarizes a bulk import run.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportLeads bulk-creates leads. Duplicates are skipped rather than
// failing the batch.
func (p *LeadProcessor) ImportLeads(ctx context.Context, userID uuid.UUID, inputs []CreateLeadInput) (ImportResult, error) {
	var result ImportResult
	for _, input := range inputs {
		_, err := p.CreateLead(ctx, userID, input)
		if err != nil {
			if errors.Is(err, ErrDuplicateLead) {
				result.Skipped++
				continue
			}
			return result, err
		}
		result.Imported++
	}
	return result, nil
}

// LeadPage is one page of leads plus the unpaged total.
type LeadPage struct {
	Leads []store.Lead `json:"leads"`
	Total int          `json:"total"`
}

func (p *LeadProcessor) ListLeads(ctx context.Context, userID uuid.UUID, filter store.LeadFilter) (LeadPage, error) {
	leads, err := p.store.ListLeads(ctx, userID, filter)
	if err != nil {
		return LeadPage{}, err
	}
	total, err := p.store.CountLeads(ctx, userID, filter)
	if err != nil {
		return LeadPage{}, err
	}
	if leads == nil {
		leads = []store.Lead{}
	}
	return LeadPage{Leads: leads, Total: total}, nil
}

func (p *LeadProcessor) GetLead(ctx context.Context, id, userID uuid.UUID) (store.Lead, error) {
	return p.store.GetLead(ctx, id, userID)
}

// statusRank orders the lead lifecycle. Status can only move forward,
// except for an explicit reset to "new" or a move to "rejected".
var statusRank = map[string]int{
	store.LeadStatusNew:       0,
	store.LeadStatusContacted: 1,
	store.LeadStatusResponded: 2,
	store.LeadStatusConverted: 3,
}

func validStatusTransition(current, next string) bool {
	if next == store.LeadStatusNew || next == store.LeadStatusRejected {
		return true
	}
	currentRank, ok := statusRank[current]
	if !ok {
		// A rejected lead can re-enter the funnel at any point.
		return current == store.LeadStatusRejected
	}
	nextRank, ok := statusRank[next]
	if !ok {
		return false
	}
	return nextRank >= currentRank
}

// UpdateLeadInput carries the user-editable lead fields. Nil fields are
// left unchanged.
type UpdateLeadInput struct {
	Name            *string
	Email           *string
	Status          *string
	ContactMethod   *string
	ConversionValue *float64
}

func (p *LeadProcessor) UpdateLead(ctx context.Context, id, userID uuid.UUID, input UpdateLeadInput) (store.Lead, error) {
	var convertedAt *time.Time
	if input.Status != nil {
		lead, err := p.store.GetLead(ctx, id, userID)
		if err != nil {
			return store.Lead{}, err
		}
		if !validStatusTransition(lead.Status, *input.Status) {
			return store.Lead{}, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, lead.Status, *input.Status)
		}
		if *input.Status == store.LeadStatusConverted && lead.ConvertedAt == nil {
			now := time.Now().UTC()
			convertedAt = &now
		}
	}
	return p.store.UpdateLead(ctx, id, userID, store.UpdateLeadParams{
		Name:            input.Name,
		Email:           input.Email,
		Status:          input.Status,
		ContactMethod:   input.ContactMethod,
		ConversionValue: input.ConversionValue,
		ConvertedAt:     convertedAt,
	})
}

func (p *LeadProcessor) DeleteLead(ctx context.Context, id, userID uuid.UUID) error {
	return p.store.DeleteLead(ctx, id, userID)
}

// GetCriteria returns the user's saved discovery criteria, or a template
// for their niche when nothing is saved yet.
func (p *LeadProcessor) GetCriteria(ctx context.Context, userID uuid.UUID, niche string) (store.DiscoveryCriteria, error) {
	criteria, err := p.store.GetCriteria(ctx, userID)
	if err == nil {
		return criteria, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.DiscoveryCriteria{}, err
	}
	defaults := discovery.DefaultCriteria(niche)
	return store.DiscoveryCriteria{
		UserID:          userID,
		Niche:           defaults.Niche,
		Keywords:        store.StringArray(defaults.Keywords),
		Subreddits:      store.StringArray(defaults.Subreddits),
		MinIntentScore:  defaults.MinIntentScore,
		MinQualityGrade: store.QualityGradeC,
		MaxLeads:        defaults.MaxLeads,
		IsActive:        true,
	}, nil
}

func (p *LeadProcessor) UpdateCriteria(ctx context.Context, userID uuid.UUID, params store.UpsertCriteriaParams) (store.DiscoveryCriteria, error) {
	return p.store.UpsertCriteria(ctx, userID, params)
}

// DiscoverLeads runs the discovery pipeline and persists every surviving
// candidate. Criteria posted with the call take precedence over the
// user's saved criteria; with neither, the niche template applies.
// Returns the created leads.
func (p *LeadProcessor) DiscoverLeads(ctx context.Context, userID uuid.UUID, posted *discovery.Criteria) ([]store.Lead, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "user_id", Value: userID.String()})

	var criteria discovery.Criteria
	if posted != nil {
		criteria = *posted
	} else {
		saved, err := p.store.GetCriteria(ctx, userID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
			saved = store.DiscoveryCriteria{}
		}
		criteria = discovery.Criteria{
			Niche:          saved.Niche,
			Keywords:       saved.Keywords,
			Subreddits:     saved.Subreddits,
			MinIntentScore: saved.MinIntentScore,
			MaxLeads:       saved.MaxLeads,
		}
		if len(criteria.Keywords) == 0 {
			criteria = discovery.DefaultCriteria(saved.Niche)
		}
	}

	candidates, err := p.discoverer.Discover(ctx, userID, criteria)
	if err != nil {
		return nil, err
	}

	leads := make([]store.Lead, 0, len(candidates))
	for _, c := range candidates {
		lead, err := p.store.CreateLead(ctx, store.CreateLeadParams{
			UserID:              userID,
			Username:            ptr(c.Author),
			ProfileURL:          ptr(c.URL),
			Source:              c.Source,
			ExternalID:          ptr(c.ExternalID),
			Content:             ptr(c.Content),
			IntentScore:         c.IntentScore,
			QualityGrade:        ptr(c.QualityGrade),
			Interests:           store.StringArray(c.Interests),
			PainPoints:          store.StringArray(c.PainPoints),
			AISummary:           ptr(c.Summary),
			PersonalizationData: personalizationJSON(c),
			PlatformData:        store.JSONB(c.PlatformData),
		})
		if err != nil {
			cctx := observability.WithFields(ctx, observability.Field{Key: "external_id", Value: c.ExternalID})
			p.logger.InfoWithError(cctx, "failed to persist discovered lead, skipping", err)
			continue
		}
		leads = append(leads, lead)
	}
	p.logger.Info(ctx, fmt.Sprintf("discovery run persisted %d of %d candidates", len(leads), len(candidates)))
	return leads, nil
}

func personalizationJSON(c discovery.Candidate) store.JSONB {
	return store.JSONB{
		"recommended_approach": c.Personalization.RecommendedApproach,
		"key_talking_points":   c.Personalization.KeyTalkingPoints,
		"urgency_level":        c.Personalization.UrgencyLevel,
		"quality_score":        c.QualityScore,
		"sentiment":            c.Sentiment,
	}
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
