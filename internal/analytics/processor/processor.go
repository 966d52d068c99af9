package processor

import (
	"context"
	"time"

	"lead-engine/internal/observability"
	"lead-engine/internal/store"

	"github.com/google/uuid"
)

// AnalyticsStore defines the database operations required by AnalyticsProcessor
type AnalyticsStore interface {
	GetLeadFunnel(ctx context.Context, userID uuid.UUID, weekStart time.Time) (store.LeadFunnel, error)
	GetLeadsBySource(ctx context.Context, userID uuid.UUID) ([]store.BreakdownRow, error)
	GetLeadsByGrade(ctx context.Context, userID uuid.UUID) ([]store.BreakdownRow, error)
	GetOutreachTotals(ctx context.Context, userID uuid.UUID, weekStart time.Time) (store.OutreachTotals, error)
	GetCampaignPerformance(ctx context.Context, userID uuid.UUID) ([]store.CampaignPerformanceRow, error)
	GetMemberRiskDistribution(ctx context.Context, userID uuid.UUID) ([]store.BreakdownRow, error)
	GetRetentionOutcomes(ctx context.Context, userID uuid.UUID) (store.RetentionOutcomes, error)
	GetRevenueTotals(ctx context.Context, userID uuid.UUID, weekStart time.Time) (store.RevenueTotals, error)
	GetRevenueByType(ctx context.Context, userID uuid.UUID) ([]store.RevenueByTypeRow, error)
	UpsertSnapshot(ctx context.Context, params store.CreateSnapshotParams) error
}

type AnalyticsProcessor struct {
	store  AnalyticsStore
	logger *observability.Logger
}

func New(analyticsStore AnalyticsStore, logger *observability.Logger) *AnalyticsProcessor {
	return &AnalyticsProcessor{
		store:  analyticsStore,
		logger: logger,
	}
}

// LeadAnalytics reports the lead funnel with derived rates and breakdowns
type LeadAnalytics struct {
	Funnel         store.LeadFunnel     `json:"funnel"`
	ConversionRate float64              `json:"conversion_rate"`
	BySource       []store.BreakdownRow `json:"by_source"`
	ByGrade        []store.BreakdownRow `json:"by_grade"`
}

// OutreachAnalytics reports message delivery outcomes and per-campaign
// performance
type OutreachAnalytics struct {
	Totals       store.OutreachTotals          `json:"totals"`
	OpenRate     float64                       `json:"open_rate"`
	ResponseRate float64                       `json:"response_rate"`
	Campaigns    []store.CampaignPerformanceRow `json:"campaigns"`
}

// RetentionAnalytics reports churn risk distribution and retention
// effort results
type RetentionAnalytics struct {
	RiskDistribution []store.BreakdownRow    `json:"risk_distribution"`
	Outcomes         store.RetentionOutcomes `json:"outcomes"`
	SuccessRate      float64                 `json:"success_rate"`
}

// RevenueAnalytics reports revenue totals and the split by transaction
// type
type RevenueAnalytics struct {
	Totals store.RevenueTotals      `json:"totals"`
	ByType []store.RevenueByTypeRow `json:"by_type"`
}

// Dashboard composes all four analytics views for the overview page
type Dashboard struct {
	Leads     LeadAnalytics      `json:"leads"`
	Outreach  OutreachAnalytics  `json:"outreach"`
	Retention RetentionAnalytics `json:"retention"`
	Revenue   RevenueAnalytics   `json:"revenue"`
}

func (p *AnalyticsProcessor) GetLeadAnalytics(ctx context.Context, userID uuid.UUID) (LeadAnalytics, error) {
	now := time.Now()
	funnel, err := p.store.GetLeadFunnel(ctx, userID, weekStart(now))
	if err != nil {
		return LeadAnalytics{}, err
	}
	bySource, err := p.store.GetLeadsBySource(ctx, userID)
	if err != nil {
		return LeadAnalytics{}, err
	}
	byGrade, err := p.store.GetLeadsByGrade(ctx, userID)
	if err != nil {
		return LeadAnalytics{}, err
	}
	return LeadAnalytics{
		Funnel:         funnel,
		ConversionRate: rate(funnel.Converted, funnel.Total),
		BySource:       bySource,
		ByGrade:        byGrade,
	}, nil
}

func (p *AnalyticsProcessor) GetOutreachAnalytics(ctx context.Context, userID uuid.UUID) (OutreachAnalytics, error) {
	now := time.Now()
	totals, err := p.store.GetOutreachTotals(ctx, userID, weekStart(now))
	if err != nil {
		return OutreachAnalytics{}, err
	}
	campaigns, err := p.store.GetCampaignPerformance(ctx, userID)
	if err != nil {
		return OutreachAnalytics{}, err
	}
	return OutreachAnalytics{
		Totals:       totals,
		OpenRate:     rate(totals.Opened, totals.MessagesSent),
		ResponseRate: rate(totals.Replied, totals.MessagesSent),
		Campaigns:    campaigns,
	}, nil
}

func (p *AnalyticsProcessor) GetRetentionAnalytics(ctx context.Context, userID uuid.UUID) (RetentionAnalytics, error) {
	distribution, err := p.store.GetMemberRiskDistribution(ctx, userID)
	if err != nil {
		return RetentionAnalytics{}, err
	}
	outcomes, err := p.store.GetRetentionOutcomes(ctx, userID)
	if err != nil {
		return RetentionAnalytics{}, err
	}
	return RetentionAnalytics{
		RiskDistribution: distribution,
		Outcomes:         outcomes,
		SuccessRate:      rate(outcomes.MembersRetained, outcomes.MembersAtRisk),
	}, nil
}

func (p *AnalyticsProcessor) GetRevenueAnalytics(ctx context.Context, userID uuid.UUID) (RevenueAnalytics, error) {
	now := time.Now()
	totals, err := p.store.GetRevenueTotals(ctx, userID, weekStart(now))
	if err != nil {
		return RevenueAnalytics{}, err
	}
	byType, err := p.store.GetRevenueByType(ctx, userID)
	if err != nil {
		return RevenueAnalytics{}, err
	}
	return RevenueAnalytics{
		Totals: totals,
		ByType: byType,
	}, nil
}

// GetDashboard assembles all analytics views in one call
func (p *AnalyticsProcessor) GetDashboard(ctx context.Context, userID uuid.UUID) (Dashboard, error) {
	leads, err := p.GetLeadAnalytics(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	outreach, err := p.GetOutreachAnalytics(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	retention, err := p.GetRetentionAnalytics(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	revenue, err := p.GetRevenueAnalytics(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Leads:     leads,
		Outreach:  outreach,
		Retention: retention,
		Revenue:   revenue,
	}, nil
}

// WriteDailySnapshot persists the analytics rollup for one user for the
// given day. Rerunning for the same day replaces the earlier snapshot.
func (p *AnalyticsProcessor) WriteDailySnapshot(ctx context.Context, userID uuid.UUID, day time.Time) error {
	ctx = observability.WithFields(ctx, observability.Field{Key: "user_id", Value: userID.String()})

	dashboard, err := p.GetDashboard(ctx, userID)
	if err != nil {
		p.logger.Error(ctx, "failed to assemble dashboard for snapshot", err)
		return err
	}

	var newMemberRevenue, retainedRevenue float64
	for _, row := range dashboard.Revenue.ByType {
		switch row.TransactionType {
		case store.TransactionTypeNewMember:
			newMemberRevenue = row.Gross
		case store.TransactionTypeRetention:
			retainedRevenue = row.Gross
		}
	}

	return p.store.UpsertSnapshot(ctx, store.CreateSnapshotParams{
		UserID: userID,
		Date:   day.UTC().Truncate(24 * time.Hour),

		LeadsGenerated:     dashboard.Leads.Funnel.Total,
		LeadsContacted:     dashboard.Leads.Funnel.Contacted,
		LeadsConverted:     dashboard.Leads.Funnel.Converted,
		LeadConversionRate: dashboard.Leads.ConversionRate,

		MessagesSent:         dashboard.Outreach.Totals.MessagesSent,
		MessagesOpened:       dashboard.Outreach.Totals.Opened,
		MessagesReplied:      dashboard.Outreach.Totals.Replied,
		OutreachResponseRate: dashboard.Outreach.ResponseRate,

		MembersAtRisk:         dashboard.Retention.Outcomes.MembersAtRisk,
		RetentionMessagesSent: dashboard.Retention.Outcomes.MessagesSent,
		MembersRetained:       dashboard.Retention.Outcomes.MembersRetained,
		RetentionSuccessRate:  dashboard.Retention.SuccessRate,

		NewMemberRevenue:      newMemberRevenue,
		RetainedMemberRevenue: retainedRevenue,
		TotalRevenue:          dashboard.Revenue.Totals.Gross,
		PlatformFee:           dashboard.Revenue.Totals.PlatformFee,
		ClientRevenue:         dashboard.Revenue.Totals.ClientAmount,
	})
}

func weekStart(now time.Time) time.Time {
	return now.UTC().AddDate(0, 0, -7)
}

func rate(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}
