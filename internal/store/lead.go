package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const leadColumns = `
    id, user_id, name, email, username, profile_url,
    source, status, external_id, content,
    intent_score, quality_grade,
    contact_method, last_contacted, contact_count,
    converted_at, conversion_value,
    interests, pain_points, ai_summary, personalization_data, platform_data,
    discovered_at, created_at, updated_at`

// CreateLeadParams represents parameters for creating a lead
type CreateLeadParams struct {
	UserID              uuid.UUID
	Name                *string
	Email               *string
	Username            *string
	ProfileURL          *string
	Source              string
	ExternalID          *string
	Content             *string
	IntentScore         float64
	QualityGrade        *string
	Interests           StringArray
	PainPoints          StringArray
	AISummary           *string
	PersonalizationData JSONB
	PlatformData        JSONB
	DiscoveredAt        time.Time
}

const sqlCreateLead = `
INSERT INTO leads (
    user_id, name, email, username, profile_url, source, external_id, content,
    intent_score, quality_grade, interests, pain_points, ai_summary,
    personalization_data, platform_data, discovered_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING` + leadColumns

func (s *Store) CreateLead(ctx context.Context, params CreateLeadParams) (Lead, error) {
	discoveredAt := params.DiscoveredAt
	if discoveredAt.IsZero() {
		discoveredAt = time.Now().UTC()
	}
	var lead Lead
	err := s.db.GetContext(ctx, &lead, sqlCreateLead,
		params.UserID, params.Name, params.Email, params.Username, params.ProfileURL,
		params.Source, params.ExternalID, params.Content,
		params.IntentScore, params.QualityGrade, params.Interests, params.PainPoints,
		params.AISummary, params.PersonalizationData, params.PlatformData, discoveredAt)
	if err != nil {
		s.logger.Error(ctx, "failed to create lead", err)
		return Lead{}, fmt.Errorf("failed to create lead: %w", err)
	}
	return lead, nil
}

// LeadFilter narrows ListLeads results. Nil fields are ignored.
type LeadFilter struct {
	Status       *string
	Source       *string
	QualityGrade *string
	Limit        int
	Offset       int
}

const sqlListLeads = `
SELECT` + leadColumns + `
FROM leads
WHERE user_id = $1
  AND ($2::text IS NULL OR status = $2)
  AND ($3::text IS NULL OR source = $3)
  AND ($4::text IS NULL OR quality_grade = $4)
ORDER BY intent_score DESC, discovered_at DESC
LIMIT $5 OFFSET $6`

func (s *Store) ListLeads(ctx context.Context, userID uuid.UUID, filter LeadFilter) ([]Lead, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	leads := []Lead{}
	err := s.db.SelectContext(ctx, &leads, sqlListLeads,
		userID, filter.Status, filter.Source, filter.QualityGrade, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, nil
}

const sqlCountLeads = `
SELECT COUNT(*)
FROM leads
WHERE user_id = $1
  AND ($2::text IS NULL OR status = $2)
  AND ($3::text IS NULL OR source = $3)
  AND ($4::text IS NULL OR quality_grade = $4)`

func (s *Store) CountLeads(ctx context.Context, userID uuid.UUID, filter LeadFilter) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, sqlCountLeads,
		userID, filter.Status, filter.Source, filter.QualityGrade)
	if err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return count, nil
}

const sqlGetLead = `
SELECT` + leadColumns + `
FROM leads
WHERE id = $1 AND user_id = $2`

func (s *Store) GetLead(ctx context.Context, id, userID uuid.UUID) (Lead, error) {
	var lead Lead
	err := s.db.GetContext(ctx, &lead, sqlGetLead, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

// UpdateLeadParams represents the mutable lead fields. Nil fields keep
// their current value.
type UpdateLeadParams struct {
	Name            *string
	Email           *string
	Status          *string
	ContactMethod   *string
	ConversionValue *float64
	ConvertedAt     *time.Time
}

const sqlUpdateLead = `
UPDATE leads
SET name = COALESCE($3, name),
    email = COALESCE($4, email),
    status = COALESCE($5, status),
    contact_method = COALESCE($6, contact_method),
    conversion_value = COALESCE($7, conversion_value),
    converted_at = COALESCE($8, converted_at),
    updated_at = NOW()
WHERE id = $1 AND user_id = $2
RETURNING` + leadColumns

func (s *Store) UpdateLead(ctx context.Context, id, userID uuid.UUID, params UpdateLeadParams) (Lead, error) {
	var lead Lead
	err := s.db.GetContext(ctx, &lead, sqlUpdateLead, id, userID,
		params.Name, params.Email, params.Status, params.ContactMethod,
		params.ConversionValue, params.ConvertedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to update lead", err)
		return Lead{}, fmt.Errorf("failed to update lead: %w", err)
	}
	return lead, nil
}

const sqlDeleteLead = `
DELETE FROM leads
WHERE id = $1 AND user_id = $2`

func (s *Store) DeleteLead(ctx context.Context, id, userID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, sqlDeleteLead, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

const sqlLeadExists = `
SELECT EXISTS (
    SELECT 1 FROM leads WHERE user_id = $1 AND external_id = $2
)`

// LeadExists reports whether a lead with the given external id has already
// been persisted for the user.
func (s *Store) LeadExists(ctx context.Context, userID uuid.UUID, externalID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, sqlLeadExists, userID, externalID)
	if err != nil {
		return false, fmt.Errorf("failed to check lead existence: %w", err)
	}
	return exists, nil
}

const sqlLeadExistsByIdentity = `
SELECT EXISTS (
    SELECT 1 FROM leads
    WHERE user_id = $1
      AND (($2::text IS NOT NULL AND email = $2)
        OR ($3::text IS NOT NULL AND username = $3 AND source = $4))
)`

// LeadExistsByIdentity reports whether a lead with the same email, or the
// same username on the same platform, already exists for the user.
func (s *Store) LeadExistsByIdentity(ctx context.Context, userID uuid.UUID, email, username *string, source string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, sqlLeadExistsByIdentity, userID, email, username, source)
	if err != nil {
		return false, fmt.Errorf("failed to check lead identity: %w", err)
	}
	return exists, nil
}

const sqlUpdateLeadContact = `
UPDATE leads
SET last_contacted = NOW(),
    contact_count = contact_count + 1,
    status = CASE WHEN status = 'new' THEN 'contacted' ELSE status END,
    updated_at = NOW()
WHERE id = $1`

// UpdateLeadContact records an outreach attempt against a lead.
func (s *Store) UpdateLeadContact(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, sqlUpdateLeadContact, id)
	if err != nil {
		return fmt.Errorf("failed to update lead contact tracking: %w", err)
	}
	return nil
}

const sqlMarkLeadResponded = `
UPDATE leads
SET status = CASE WHEN status IN ('new', 'contacted') THEN 'responded' ELSE status END,
    updated_at = NOW()
WHERE id = $1`

// MarkLeadResponded advances a lead to responded when a reply is tracked.
func (s *Store) MarkLeadResponded(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, sqlMarkLeadResponded, id)
	if err != nil {
		return fmt.Errorf("failed to mark lead responded: %w", err)
	}
	return nil
}
