package processor

import (
	"context"
	"encoding/json"
	"errors"

	"lead-engine/internal/observability"
	"lead-engine/internal/store"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

// HandleWebhook dispatches a verified Stripe event. Unrecognized event
// types are acknowledged without action.
func (p *BillingProcessor) HandleWebhook(ctx context.Context, event stripe.Event) error {
	ctx = observability.WithFields(ctx, observability.Field{Key: "stripe_event", Value: string(event.Type)})

	switch event.Type {
	case "payment_intent.succeeded":
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
			p.logger.Error(ctx, "failed to unmarshal payment intent", err)
			return err
		}
		return p.paymentIntentSucceeded(ctx, paymentIntent)
	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			p.logger.Error(ctx, "failed to unmarshal invoice", err)
			return err
		}
		return p.invoicePaymentSucceeded(ctx, invoice)
	case "customer.subscription.created", "customer.subscription.updated":
		var subscription stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
			p.logger.Error(ctx, "failed to unmarshal subscription", err)
			return err
		}
		return p.subscriptionChanged(ctx, subscription)
	case "customer.subscription.deleted":
		var subscription stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
			p.logger.Error(ctx, "failed to unmarshal subscription", err)
			return err
		}
		return p.subscriptionDeleted(ctx, subscription)
	default:
		p.logger.Info(ctx, "ignoring unhandled stripe event")
		return nil
	}
}

// paymentIntentSucceeded records the revenue split for a one-off payment.
// The owning user is carried in the payment intent metadata.
func (p *BillingProcessor) paymentIntentSucceeded(ctx context.Context, paymentIntent stripe.PaymentIntent) error {
	rawUserID, ok := paymentIntent.Metadata["user_id"]
	if !ok {
		p.logger.Info(ctx, "payment intent without user metadata, skipping")
		return nil
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		p.logger.Error(ctx, "invalid user id in payment metadata", err)
		return nil
	}

	var memberID *uuid.UUID
	if raw, ok := paymentIntent.Metadata["member_id"]; ok {
		if id, err := uuid.Parse(raw); err == nil {
			memberID = &id
		}
	}

	transactionType := paymentIntent.Metadata["transaction_type"]
	switch transactionType {
	case store.TransactionTypeNewMember, store.TransactionTypeRetention, store.TransactionTypeUpgrade, store.TransactionTypeSubscription:
	default:
		transactionType = store.TransactionTypeNewMember
	}

	gross := float64(paymentIntent.Amount) / 100
	split := p.SplitRevenue(gross)

	_, err = p.store.CreateRevenueTransaction(ctx, store.CreateRevenueTransactionParams{
		UserID:                userID,
		StripePaymentIntentID: paymentIntent.ID,
		MemberID:              memberID,
		GrossAmount:           split.Gross,
		PlatformFee:           split.PlatformFee,
		ClientAmount:          split.ClientAmount,
		PlatformFeePercentage: split.SharePercent,
		TransactionType:       transactionType,
		Status:                store.TransactionStatusCompleted,
	})
	if err != nil {
		return err
	}

	if transactionType == store.TransactionTypeRetention && memberID != nil {
		if err := p.store.MarkMemberRetained(ctx, *memberID); err != nil {
			p.logger.Error(ctx, "failed to mark member retained", err)
		}
	}
	return nil
}

// invoicePaymentSucceeded records recurring subscription revenue. A
// payment from a member who was contacted by a retention campaign counts
// as a successful retention.
func (p *BillingProcessor) invoicePaymentSucceeded(ctx context.Context, invoice stripe.Invoice) error {
	if invoice.Subscription == nil {
		return nil
	}
	member, err := p.store.GetMemberBySubscriptionID(ctx, invoice.Subscription.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Info(ctx, "invoice for unknown subscription, skipping")
			return nil
		}
		return err
	}

	transactionType := store.TransactionTypeSubscription
	if member.RetentionMessagesSent > 0 && member.RetentionSuccessful == nil {
		transactionType = store.TransactionTypeRetention
		if err := p.store.MarkMemberRetained(ctx, member.ID); err != nil {
			p.logger.Error(ctx, "failed to mark member retained", err)
		}
	}

	gross := float64(invoice.AmountPaid) / 100
	split := p.SplitRevenue(gross)
	subscriptionID := invoice.Subscription.ID

	_, err = p.store.CreateRevenueTransaction(ctx, store.CreateRevenueTransactionParams{
		UserID:                member.UserID,
		StripePaymentIntentID: invoice.ID,
		StripeSubscriptionID:  &subscriptionID,
		MemberID:              &member.ID,
		GrossAmount:           split.Gross,
		PlatformFee:           split.PlatformFee,
		ClientAmount:          split.ClientAmount,
		PlatformFeePercentage: split.SharePercent,
		TransactionType:       transactionType,
		Status:                store.TransactionStatusCompleted,
	})
	return err
}

func (p *BillingProcessor) subscriptionChanged(ctx context.Context, subscription stripe.Subscription) error {
	member, err := p.store.GetMemberBySubscriptionID(ctx, subscription.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	var tier *string
	var monthlyRevenue *float64
	if subscription.Items != nil && len(subscription.Items.Data) > 0 {
		price := subscription.Items.Data[0].Price
		if price != nil {
			if price.Nickname != "" {
				nickname := price.Nickname
				tier = &nickname
			}
			amount := float64(price.UnitAmount) / 100
			monthlyRevenue = &amount
		}
	}

	status := memberStatusForSubscription(subscription.Status)
	return p.store.UpdateMemberSubscription(ctx, member.ID, tier, monthlyRevenue, &status)
}

func (p *BillingProcessor) subscriptionDeleted(ctx context.Context, subscription stripe.Subscription) error {
	member, err := p.store.GetMemberBySubscriptionID(ctx, subscription.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	status := store.MemberStatusChurned
	return p.store.UpdateMemberSubscription(ctx, member.ID, nil, nil, &status)
}

func memberStatusForSubscription(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return store.MemberStatusActive
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
		return store.MemberStatusChurned
	case stripe.SubscriptionStatusPaused:
		return store.MemberStatusPaused
	default:
		return store.MemberStatusInactive
	}
}
