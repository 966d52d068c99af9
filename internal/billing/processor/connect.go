package processor

import (
	"context"
	"errors"

	"lead-engine/internal/observability"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/account"
	"github.com/stripe/stripe-go/v79/accountlink"
)

var ErrNoStripeAccount = errors.New("no stripe account connected")

// ConnectResult is the onboarding link for a user's Express account.
type ConnectResult struct {
	AccountID     string `json:"account_id"`
	OnboardingURL string `json:"onboarding_url"`
}

// CreateConnectAccount creates (or reuses) the user's Stripe Express
// account and returns a fresh onboarding link.
func (p *BillingProcessor) CreateConnectAccount(ctx context.Context, userID uuid.UUID) (ConnectResult, error) {
	user, err := p.store.GetUserByID(ctx, userID)
	if err != nil {
		return ConnectResult{}, err
	}

	accountID := ""
	if user.StripeAccountID != nil {
		accountID = *user.StripeAccountID
	}
	if accountID == "" {
		acct, err := account.New(&stripe.AccountParams{
			Type:  stripe.String(string(stripe.AccountTypeExpress)),
			Email: stripe.String(user.Email),
			Capabilities: &stripe.AccountCapabilitiesParams{
				Transfers: &stripe.AccountCapabilitiesTransfersParams{
					Requested: stripe.Bool(true),
				},
			},
		})
		if err != nil {
			p.logger.Error(ctx, "failed to create stripe express account", err)
			return ConnectResult{}, err
		}
		accountID = acct.ID
		if err := p.store.UpdateUserStripeAccount(ctx, userID, accountID, false); err != nil {
			return ConnectResult{}, err
		}
	}

	link, err := accountlink.New(&stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(p.webAppURI + "/settings/billing?refresh=true"),
		ReturnURL:  stripe.String(p.webAppURI + "/settings/billing?connected=true"),
		Type:       stripe.String("account_onboarding"),
	})
	if err != nil {
		p.logger.Error(ctx, "failed to create account link", err)
		return ConnectResult{}, err
	}
	return ConnectResult{AccountID: accountID, OnboardingURL: link.URL}, nil
}

// ConnectStatus reports the user's onboarding state.
type ConnectStatus struct {
	Connected          bool   `json:"connected"`
	AccountID          string `json:"account_id,omitempty"`
	ChargesEnabled     bool   `json:"charges_enabled"`
	PayoutsEnabled     bool   `json:"payouts_enabled"`
	OnboardingComplete bool   `json:"onboarding_complete"`
}

// GetConnectStatus checks the Express account state with Stripe and
// records onboarding completion.
func (p *BillingProcessor) GetConnectStatus(ctx context.Context, userID uuid.UUID) (ConnectStatus, error) {
	user, err := p.store.GetUserByID(ctx, userID)
	if err != nil {
		return ConnectStatus{}, err
	}
	if user.StripeAccountID == nil || *user.StripeAccountID == "" {
		return ConnectStatus{Connected: false}, nil
	}

	acct, err := account.GetByID(*user.StripeAccountID, nil)
	if err != nil {
		p.logger.Error(ctx, "failed to fetch stripe account", err)
		return ConnectStatus{}, err
	}

	complete := acct.ChargesEnabled && acct.DetailsSubmitted
	if complete != user.StripeOnboardingComplete {
		if err := p.store.UpdateUserStripeAccount(ctx, userID, acct.ID, complete); err != nil {
			p.logger.Error(ctx, "failed to persist onboarding state", err)
		}
	}

	ctx = observability.WithFields(ctx, observability.Field{Key: "stripe_account_id", Value: acct.ID})
	p.logger.Info(ctx, "fetched stripe connect status")
	return ConnectStatus{
		Connected:          true,
		AccountID:          acct.ID,
		ChargesEnabled:     acct.ChargesEnabled,
		PayoutsEnabled:     acct.PayoutsEnabled,
		OnboardingComplete: complete,
	}, nil
}
