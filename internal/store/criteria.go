package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const criteriaColumns = `
    id, user_id, niche, keywords, subreddits,
    min_intent_score, min_quality_grade, max_leads, is_active,
    created_at, updated_at`

const sqlGetCriteria = `
SELECT` + criteriaColumns + `
FROM discovery_criteria
WHERE user_id = $1`

func (s *Store) GetCriteria(ctx context.Context, userID uuid.UUID) (DiscoveryCriteria, error) {
	var criteria DiscoveryCriteria
	err := s.db.GetContext(ctx, &criteria, sqlGetCriteria, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DiscoveryCriteria{}, ErrNotFound
		}
		return DiscoveryCriteria{}, fmt.Errorf("failed to get discovery criteria: %w", err)
	}
	return criteria, nil
}

// UpsertCriteriaParams represents a full replacement of a user's criteria
type UpsertCriteriaParams struct {
	Niche           string
	Keywords        StringArray
	Subreddits      StringArray
	MinIntentScore  float64
	MinQualityGrade string
	MaxLeads        int
	IsActive        bool
}

const sqlUpsertCriteria = `
INSERT INTO discovery_criteria (
    user_id, niche, keywords, subreddits, min_intent_score, min_quality_grade, max_leads, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (user_id) DO UPDATE SET
    niche = EXCLUDED.niche,
    keywords = EXCLUDED.keywords,
    subreddits = EXCLUDED.subreddits,
    min_intent_score = EXCLUDED.min_intent_score,
    min_quality_grade = EXCLUDED.min_quality_grade,
    max_leads = EXCLUDED.max_leads,
    is_active = EXCLUDED.is_active,
    updated_at = NOW()
RETURNING` + criteriaColumns

func (s *Store) UpsertCriteria(ctx context.Context, userID uuid.UUID, params UpsertCriteriaParams) (DiscoveryCriteria, error) {
	var criteria DiscoveryCriteria
	err := s.db.GetContext(ctx, &criteria, sqlUpsertCriteria,
		userID, params.Niche, params.Keywords, params.Subreddits,
		params.MinIntentScore, params.MinQualityGrade, params.MaxLeads, params.IsActive)
	if err != nil {
		s.logger.Error(ctx, "failed to upsert discovery criteria", err)
		return DiscoveryCriteria{}, fmt.Errorf("failed to upsert discovery criteria: %w", err)
	}
	return criteria, nil
}
