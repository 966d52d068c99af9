package processor

import (
	"context"
	"math"

	"lead-engine/internal/observability"
	"lead-engine/internal/store"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

// BillingStore defines the database operations required by BillingProcessor
type BillingStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error)
	UpdateUserStripeAccount(ctx context.Context, id uuid.UUID, accountID string, onboardingComplete bool) error
	GetMemberBySubscriptionID(ctx context.Context, subscriptionID string) (store.Member, error)
	UpdateMemberSubscription(ctx context.Context, id uuid.UUID, tier *string, monthlyRevenue *float64, status *string) error
	MarkMemberRetained(ctx context.Context, id uuid.UUID) error
	CreateRevenueTransaction(ctx context.Context, params store.CreateRevenueTransactionParams) (store.RevenueTransaction, error)
	ListRevenueTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]store.RevenueTransaction, error)
}

type BillingProcessor struct {
	stripeKey     string
	WebhookSecret string
	webAppURI     string
	revenueShare  float64
	store         BillingStore
	logger        *observability.Logger
}

func New(stripeKey, webhookSecret, webAppURI string, revenueShare float64, billingStore BillingStore, logger *observability.Logger) *BillingProcessor {
	stripe.Key = stripeKey
	return &BillingProcessor{
		stripeKey:     stripeKey,
		WebhookSecret: webhookSecret,
		webAppURI:     webAppURI,
		revenueShare:  revenueShare,
		store:         billingStore,
		logger:        logger,
	}
}

// RevenueSplit is the platform/client division of one gross payment.
type RevenueSplit struct {
	Gross        float64 `json:"gross"`
	PlatformFee  float64 `json:"platform_fee"`
	ClientAmount float64 `json:"client_amount"`
	SharePercent float64 `json:"share_percent"`
}

// SplitRevenue divides a gross amount by the configured platform share.
// Amounts are rounded to cents; the client side absorbs the rounding
// remainder so the parts always sum to the gross.
func (p *BillingProcessor) SplitRevenue(gross float64) RevenueSplit {
	fee := roundCents(gross * p.revenueShare)
	return RevenueSplit{
		Gross:        gross,
		PlatformFee:  fee,
		ClientAmount: roundCents(gross - fee),
		SharePercent: p.revenueShare,
	}
}

func (p *BillingProcessor) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]store.RevenueTransaction, error) {
	transactions, err := p.store.ListRevenueTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if transactions == nil {
		transactions = []store.RevenueTransaction{}
	}
	return transactions, nil
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
