package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LeadFunnel aggregates a user's leads by lifecycle stage
type LeadFunnel struct {
	Total          int     `db:"total" json:"total"`
	New            int     `db:"new" json:"new"`
	Contacted      int     `db:"contacted" json:"contacted"`
	Responded      int     `db:"responded" json:"responded"`
	Converted      int     `db:"converted" json:"converted"`
	AvgIntentScore float64 `db:"avg_intent_score" json:"avg_intent_score"`
	ThisWeek       int     `db:"this_week" json:"this_week"`
}

const sqlLeadFunnel = `
SELECT
    COUNT(*)::int AS total,
    COUNT(*) FILTER (WHERE status = 'new')::int AS new,
    COUNT(*) FILTER (WHERE status = 'contacted')::int AS contacted,
    COUNT(*) FILTER (WHERE status = 'responded')::int AS responded,
    COUNT(*) FILTER (WHERE status = 'converted')::int AS converted,
    COALESCE(AVG(intent_score), 0) AS avg_intent_score,
    COUNT(*) FILTER (WHERE discovered_at >= $2)::int AS this_week
FROM leads
WHERE user_id = $1`

func (s *Store) GetLeadFunnel(ctx context.Context, userID uuid.UUID, weekStart time.Time) (LeadFunnel, error) {
	var funnel LeadFunnel
	err := s.db.GetContext(ctx, &funnel, sqlLeadFunnel, userID, weekStart)
	if err != nil {
		return LeadFunnel{}, fmt.Errorf("failed to aggregate lead funnel: %w", err)
	}
	return funnel, nil
}

// BreakdownRow is a single group-by bucket
type BreakdownRow struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}

const sqlLeadsBySource = `
SELECT source AS key, COUNT(*)::int AS count
FROM leads
WHERE user_id = $1
GROUP BY source
ORDER BY count DESC`

func (s *Store) GetLeadsBySource(ctx context.Context, userID uuid.UUID) ([]BreakdownRow, error) {
	rows := []BreakdownRow{}
	err := s.db.SelectContext(ctx, &rows, sqlLeadsBySource, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate leads by source: %w", err)
	}
	return rows, nil
}

const sqlLeadsByGrade = `
SELECT COALESCE(quality_grade, 'ungraded') AS key, COUNT(*)::int AS count
FROM leads
WHERE user_id = $1
GROUP BY quality_grade
ORDER BY key`

func (s *Store) GetLeadsByGrade(ctx context.Context, userID uuid.UUID) ([]BreakdownRow, error) {
	rows := []BreakdownRow{}
	err := s.db.SelectContext(ctx, &rows, sqlLeadsByGrade, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate leads by grade: %w", err)
	}
	return rows, nil
}

// OutreachTotals aggregates message delivery outcomes across a user's
// campaigns
type OutreachTotals struct {
	MessagesSent int `db:"messages_sent" json:"messages_sent"`
	Delivered    int `db:"delivered" json:"delivered"`
	Opened       int `db:"opened" json:"opened"`
	Clicked      int `db:"clicked" json:"clicked"`
	Replied      int `db:"replied" json:"replied"`
	Failed       int `db:"failed" json:"failed"`
	ThisWeek     int `db:"this_week" json:"this_week"`
}

const sqlOutreachTotals = `
SELECT
    COUNT(*) FILTER (WHERE m.sent_at IS NOT NULL)::int AS messages_sent,
    COUNT(*) FILTER (WHERE m.delivered_at IS NOT NULL)::int AS delivered,
    COUNT(*) FILTER (WHERE m.opened_at IS NOT NULL)::int AS opened,
    COUNT(*) FILTER (WHERE m.clicked_at IS NOT NULL)::int AS clicked,
    COUNT(*) FILTER (WHERE m.replied_at IS NOT NULL)::int AS replied,
    COUNT(*) FILTER (WHERE m.status = 'failed')::int AS failed,
    COUNT(*) FILTER (WHERE m.sent_at >= $2)::int AS this_week
FROM outreach_messages m
JOIN outreach_campaigns c ON c.id = m.campaign_id
WHERE c.user_id = $1`

func (s *Store) GetOutreachTotals(ctx context.Context, userID uuid.UUID, weekStart time.Time) (OutreachTotals, error) {
	var totals OutreachTotals
	err := s.db.GetContext(ctx, &totals, sqlOutreachTotals, userID, weekStart)
	if err != nil {
		return OutreachTotals{}, fmt.Errorf("failed to aggregate outreach totals: %w", err)
	}
	return totals, nil
}

// CampaignPerformanceRow summarizes one campaign for analytics views
type CampaignPerformanceRow struct {
	CampaignID        uuid.UUID `db:"campaign_id" json:"campaign_id"`
	Name              string    `db:"name" json:"name"`
	Status            string    `db:"status" json:"status"`
	MessagesSent      int       `db:"messages_sent" json:"messages_sent"`
	ResponsesReceived int       `db:"responses_received" json:"responses_received"`
	Conversions       int       `db:"conversions" json:"conversions"`
}

const sqlCampaignPerformance = `
SELECT id AS campaign_id, name, status, messages_sent, responses_received, conversions
FROM outreach_campaigns
WHERE user_id = $1
ORDER BY created_at DESC`

func (s *Store) GetCampaignPerformance(ctx context.Context, userID uuid.UUID) ([]CampaignPerformanceRow, error) {
	rows := []CampaignPerformanceRow{}
	err := s.db.SelectContext(ctx, &rows, sqlCampaignPerformance, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate campaign performance: %w", err)
	}
	return rows, nil
}

const sqlMemberRiskDistribution = `
SELECT churn_risk AS key, COUNT(*)::int AS count
FROM members
WHERE user_id = $1
GROUP BY churn_risk`

func (s *Store) GetMemberRiskDistribution(ctx context.Context, userID uuid.UUID) ([]BreakdownRow, error) {
	rows := []BreakdownRow{}
	err := s.db.SelectContext(ctx, &rows, sqlMemberRiskDistribution, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate member risk distribution: %w", err)
	}
	return rows, nil
}

// RetentionOutcomes aggregates retention effort results
type RetentionOutcomes struct {
	MembersAtRisk   int `db:"members_at_risk" json:"members_at_risk"`
	MessagesSent    int `db:"messages_sent" json:"messages_sent"`
	MembersRetained int `db:"members_retained" json:"members_retained"`
}

const sqlRetentionOutcomes = `
SELECT
    COUNT(*) FILTER (WHERE churn_risk IN ('high', 'critical'))::int AS members_at_risk,
    COALESCE(SUM(retention_messages_sent), 0)::int AS messages_sent,
    COUNT(*) FILTER (WHERE retention_successful = true)::int AS members_retained
FROM members
WHERE user_id = $1`

func (s *Store) GetRetentionOutcomes(ctx context.Context, userID uuid.UUID) (RetentionOutcomes, error) {
	var outcomes RetentionOutcomes
	err := s.db.GetContext(ctx, &outcomes, sqlRetentionOutcomes, userID)
	if err != nil {
		return RetentionOutcomes{}, fmt.Errorf("failed to aggregate retention outcomes: %w", err)
	}
	return outcomes, nil
}

// RevenueTotals aggregates a user's revenue transactions
type RevenueTotals struct {
	Transactions int     `db:"transactions" json:"transactions"`
	Gross        float64 `db:"gross" json:"gross"`
	PlatformFee  float64 `db:"platform_fee" json:"platform_fee"`
	ClientAmount float64 `db:"client_amount" json:"client_amount"`
	ThisWeek     float64 `db:"this_week" json:"this_week"`
}

const sqlRevenueTotals = `
SELECT
    COUNT(*)::int AS transactions,
    COALESCE(SUM(gross_amount), 0) AS gross,
    COALESCE(SUM(platform_fee), 0) AS platform_fee,
    COALESCE(SUM(client_amount), 0) AS client_amount,
    COALESCE(SUM(gross_amount) FILTER (WHERE created_at >= $2), 0) AS this_week
FROM revenue_transactions
WHERE user_id = $1 AND status = 'completed'`

func (s *Store) GetRevenueTotals(ctx context.Context, userID uuid.UUID, weekStart time.Time) (RevenueTotals, error) {
	var totals RevenueTotals
	err := s.db.GetContext(ctx, &totals, sqlRevenueTotals, userID, weekStart)
	if err != nil {
		return RevenueTotals{}, fmt.Errorf("failed to aggregate revenue totals: %w", err)
	}
	return totals, nil
}

// RevenueByTypeRow is revenue grouped by transaction type
type RevenueByTypeRow struct {
	TransactionType string  `db:"transaction_type" json:"transaction_type"`
	Gross           float64 `db:"gross" json:"gross"`
	Count           int     `db:"count" json:"count"`
}

const sqlRevenueByType = `
SELECT transaction_type, COALESCE(SUM(gross_amount), 0) AS gross, COUNT(*)::int AS count
FROM revenue_transactions
WHERE user_id = $1 AND status = 'completed'
GROUP BY transaction_type
ORDER BY gross DESC`

func (s *Store) GetRevenueByType(ctx context.Context, userID uuid.UUID) ([]RevenueByTypeRow, error) {
	rows := []RevenueByTypeRow{}
	err := s.db.SelectContext(ctx, &rows, sqlRevenueByType, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate revenue by type: %w", err)
	}
	return rows, nil
}

// CreateSnapshotParams represents a daily analytics rollup row
type CreateSnapshotParams struct {
	UserID uuid.UUID
	Date   time.Time

	LeadsGenerated     int
	LeadsContacted     int
	LeadsConverted     int
	LeadConversionRate float64

	MessagesSent         int
	MessagesOpened       int
	MessagesReplied      int
	OutreachResponseRate float64

	MembersAtRisk         int
	RetentionMessagesSent int
	MembersRetained       int
	RetentionSuccessRate  float64

	NewMemberRevenue      float64
	RetainedMemberRevenue float64
	TotalRevenue          float64
	PlatformFee           float64
	ClientRevenue         float64
}

const sqlUpsertSnapshot = `
INSERT INTO analytics_snapshots (
    user_id, date,
    leads_generated, leads_contacted, leads_converted, lead_conversion_rate,
    messages_sent, messages_opened, messages_replied, outreach_response_rate,
    members_at_risk, retention_messages_sent, members_retained, retention_success_rate,
    new_member_revenue, retained_member_revenue, total_revenue, platform_fee, client_revenue)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (user_id, date) DO UPDATE SET
    leads_generated = EXCLUDED.leads_generated,
    leads_contacted = EXCLUDED.leads_contacted,
    leads_converted = EXCLUDED.leads_converted,
    lead_conversion_rate = EXCLUDED.lead_conversion_rate,
    messages_sent = EXCLUDED.messages_sent,
    messages_opened = EXCLUDED.messages_opened,
    messages_replied = EXCLUDED.messages_replied,
    outreach_response_rate = EXCLUDED.outreach_response_rate,
    members_at_risk = EXCLUDED.members_at_risk,
    retention_messages_sent = EXCLUDED.retention_messages_sent,
    members_retained = EXCLUDED.members_retained,
    retention_success_rate = EXCLUDED.retention_success_rate,
    new_member_revenue = EXCLUDED.new_member_revenue,
    retained_member_revenue = EXCLUDED.retained_member_revenue,
    total_revenue = EXCLUDED.total_revenue,
    platform_fee = EXCLUDED.platform_fee,
    client_revenue = EXCLUDED.client_revenue,
    updated_at = NOW()`

// UpsertSnapshot writes the daily rollup for (user, date), replacing any
// earlier run for the same day.
func (s *Store) UpsertSnapshot(ctx context.Context, params CreateSnapshotParams) error {
	_, err := s.db.ExecContext(ctx, sqlUpsertSnapshot,
		params.UserID, params.Date,
		params.LeadsGenerated, params.LeadsContacted, params.LeadsConverted, params.LeadConversionRate,
		params.MessagesSent, params.MessagesOpened, params.MessagesReplied, params.OutreachResponseRate,
		params.MembersAtRisk, params.RetentionMessagesSent, params.MembersRetained, params.RetentionSuccessRate,
		params.NewMemberRevenue, params.RetainedMemberRevenue, params.TotalRevenue, params.PlatformFee, params.ClientRevenue)
	if err != nil {
		s.logger.Error(ctx, "failed to upsert analytics snapshot", err)
		return fmt.Errorf("failed to upsert analytics snapshot: %w", err)
	}
	return nil
}
