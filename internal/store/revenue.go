package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const revenueTransactionColumns = `
    id, user_id, stripe_payment_intent_id, stripe_subscription_id, member_id,
    gross_amount, platform_fee, client_amount, platform_fee_percentage,
    transaction_type, description, status, processed_at, created_at`

// CreateRevenueTransactionParams represents a recorded Stripe payment split
type CreateRevenueTransactionParams struct {
	UserID                uuid.UUID
	StripePaymentIntentID string
	StripeSubscriptionID  *string
	MemberID              *uuid.UUID
	GrossAmount           float64
	PlatformFee           float64
	ClientAmount          float64
	PlatformFeePercentage float64
	TransactionType       string
	Description           *string
	Status                string
}

const sqlCreateRevenueTransaction = `
INSERT INTO revenue_transactions (
    user_id, stripe_payment_intent_id, stripe_subscription_id, member_id,
    gross_amount, platform_fee, client_amount, platform_fee_percentage,
    transaction_type, description, status, processed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
RETURNING` + revenueTransactionColumns

func (s *Store) CreateRevenueTransaction(ctx context.Context, params CreateRevenueTransactionParams) (RevenueTransaction, error) {
	var txn RevenueTransaction
	err := s.db.GetContext(ctx, &txn, sqlCreateRevenueTransaction,
		params.UserID, params.StripePaymentIntentID, params.StripeSubscriptionID, params.MemberID,
		params.GrossAmount, params.PlatformFee, params.ClientAmount, params.PlatformFeePercentage,
		params.TransactionType, params.Description, params.Status)
	if err != nil {
		s.logger.Error(ctx, "failed to create revenue transaction", err)
		return RevenueTransaction{}, fmt.Errorf("failed to create revenue transaction: %w", err)
	}
	return txn, nil
}

const sqlListRevenueTransactions = `
SELECT` + revenueTransactionColumns + `
FROM revenue_transactions
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

func (s *Store) ListRevenueTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]RevenueTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	txns := []RevenueTransaction{}
	err := s.db.SelectContext(ctx, &txns, sqlListRevenueTransactions, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list revenue transactions: %w", err)
	}
	return txns, nil
}
