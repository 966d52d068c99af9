package bootstrap

import (
	"context"
	"fmt"

	"lead-engine/internal/config"
	"lead-engine/internal/observability"
	"lead-engine/internal/store"

	aiProcessor "lead-engine/internal/ai/processor"
	analyticsHandler "lead-engine/internal/analytics/handler"
	analyticsProcessor "lead-engine/internal/analytics/processor"
	authHandler "lead-engine/internal/auth/handler"
	authProcessor "lead-engine/internal/auth/processor"
	billingHandler "lead-engine/internal/billing/handler"
	billingProcessor "lead-engine/internal/billing/processor"
	"lead-engine/internal/clients/mail"
	"lead-engine/internal/clients/openai"
	"lead-engine/internal/clients/reddit"
	"lead-engine/internal/clients/twitter"
	"lead-engine/internal/clients/whop"
	discoveryProcessor "lead-engine/internal/discovery/processor"
	"lead-engine/internal/jobs/scheduler"
	schedulerJobs "lead-engine/internal/jobs/scheduler/jobs"
	leadsHandler "lead-engine/internal/leads/handler"
	leadsProcessor "lead-engine/internal/leads/processor"
	membersHandler "lead-engine/internal/members/handler"
	membersProcessor "lead-engine/internal/members/processor"
	outreachHandler "lead-engine/internal/outreach/handler"
	outreachProcessor "lead-engine/internal/outreach/processor"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	Store  *store.Store
	Logger *observability.Logger

	AuthHandler      authHandler.Handler
	LeadHandler      leadsHandler.Handler
	OutreachHandler  outreachHandler.Handler
	MemberHandler    membersHandler.Handler
	AnalyticsHandler analyticsHandler.Handler
	BillingHandler   billingHandler.Handler

	Scheduler *scheduler.Scheduler
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	st, err := store.New(cfg.Database.ConnectionString(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	deps.Store = &st

	// External clients
	mailClient, err := mail.NewResendClient(cfg.Services.ResendAPIKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create resend client: %w", err)
	}
	openaiClient, err := openai.NewClient(cfg.Services.OpenAIAPIKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	redditClient := reddit.New(cfg.Discovery.RedditClientID, cfg.Discovery.RedditClientSecret, logger)
	twitterClient := twitter.New(cfg.Discovery.TwitterBearerToken, logger)
	whopClient := whop.New(cfg.Services.WhopAPIURL, logger)

	// Processors
	aiProc := aiProcessor.New(openaiClient, logger)
	discoveryProc := discoveryProcessor.New(redditClient, twitterClient, aiProc, deps.Store, logger)
	leadProc := leadsProcessor.New(deps.Store, aiProc, discoveryProc, logger)
	outreachProc := outreachProcessor.New(deps.Store, aiProc, mailClient, cfg.Services.DefaultEmailSender, logger)
	memberProc := membersProcessor.New(deps.Store, whopClient, aiProc, mailClient, cfg.Services.DefaultEmailSender, logger)
	analyticsProc := analyticsProcessor.New(deps.Store, logger)
	billingProc := billingProcessor.New(
		cfg.Services.StripeSecretKey,
		cfg.Services.StripeWebhookSecret,
		cfg.Services.WebAppURI,
		cfg.Services.PlatformRevenueShare,
		deps.Store,
		logger,
	)
	authProc := authProcessor.New(deps.Store, cfg.Auth.JWTSecret, logger)

	// Handlers
	deps.AuthHandler = authHandler.New(authProc, logger)
	deps.LeadHandler = leadsHandler.New(leadProc, logger)
	deps.OutreachHandler = outreachHandler.New(outreachProc, logger)
	deps.MemberHandler = membersHandler.New(memberProc, logger)
	deps.AnalyticsHandler = analyticsHandler.New(analyticsProc, logger)
	deps.BillingHandler = billingHandler.New(billingProc, logger)

	// Scheduled jobs
	deps.Scheduler = scheduler.New(logger)
	if err := deps.Scheduler.Register(schedulerJobs.NewMemberSyncJob(deps.Store, memberProc, logger)); err != nil {
		return nil, err
	}
	if err := deps.Scheduler.Register(schedulerJobs.NewChurnRecomputeJob(deps.Store, memberProc, logger)); err != nil {
		return nil, err
	}
	if err := deps.Scheduler.Register(schedulerJobs.NewDailySnapshotJob(deps.Store, analyticsProc, logger)); err != nil {
		return nil, err
	}

	return deps, nil
}

// Cleanup releases held connections
func (d *Dependencies) Cleanup() {
	if d.Store != nil {
		if err := d.Store.DB().Close(); err != nil {
			d.Logger.Error(context.Background(), "failed to close database", err)
		}
	}
}
