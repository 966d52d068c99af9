package processor

import (
	"context"
	"encoding/json"
	"testing"

	"lead-engine/internal/observability"
	"lead-engine/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

type fakeBillingStore struct {
	user              store.User
	memberBySub       map[string]store.Member
	transactions      []store.CreateRevenueTransactionParams
	retainedMembers   []uuid.UUID
	subUpdates        []string
	stripeAccountSets int
}

func newFakeBillingStore() *fakeBillingStore {
	return &fakeBillingStore{memberBySub: make(map[string]store.Member)}
}

func (f *fakeBillingStore) GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error) {
	return f.user, nil
}

func (f *fakeBillingStore) UpdateUserStripeAccount(ctx context.Context, id uuid.UUID, accountID string, onboardingComplete bool) error {
	f.stripeAccountSets++
	return nil
}

func (f *fakeBillingStore) GetMemberBySubscriptionID(ctx context.Context, subscriptionID string) (store.Member, error) {
	member, ok := f.memberBySub[subscriptionID]
	if !ok {
		return store.Member{}, store.ErrNotFound
	}
	return member, nil
}

func (f *fakeBillingStore) UpdateMemberSubscription(ctx context.Context, id uuid.UUID, tier *string, monthlyRevenue *float64, status *string) error {
	if status != nil {
		f.subUpdates = append(f.subUpdates, *status)
	}
	return nil
}

func (f *fakeBillingStore) MarkMemberRetained(ctx context.Context, id uuid.UUID) error {
	f.retainedMembers = append(f.retainedMembers, id)
	return nil
}

func (f *fakeBillingStore) CreateRevenueTransaction(ctx context.Context, params store.CreateRevenueTransactionParams) (store.RevenueTransaction, error) {
	f.transactions = append(f.transactions, params)
	return store.RevenueTransaction{ID: uuid.New(), UserID: params.UserID}, nil
}

func (f *fakeBillingStore) ListRevenueTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]store.RevenueTransaction, error) {
	return nil, nil
}

func newTestBillingProcessor(s BillingStore, share float64) *BillingProcessor {
	return New("sk_test", "whsec_test", "https://app.example.com", share, s, observability.NewLogger())
}

func TestSplitRevenue_DefaultShare(t *testing.T) {
	p := newTestBillingProcessor(newFakeBillingStore(), 0.15)

	split := p.SplitRevenue(100)
	assert.Equal(t, 15.0, split.PlatformFee)
	assert.Equal(t, 85.0, split.ClientAmount)
	assert.Equal(t, 0.15, split.SharePercent)
}

func TestSplitRevenue_RoundingSumsToGross(t *testing.T) {
	p := newTestBillingProcessor(newFakeBillingStore(), 0.15)

	split := p.SplitRevenue(33.33)
	assert.InDelta(t, split.Gross, split.PlatformFee+split.ClientAmount, 1e-9)
	assert.Equal(t, 5.0, split.PlatformFee)
	assert.Equal(t, 28.33, split.ClientAmount)
}

func TestSplitRevenue_ZeroShare(t *testing.T) {
	p := newTestBillingProcessor(newFakeBillingStore(), 0)

	split := p.SplitRevenue(50)
	assert.Equal(t, 0.0, split.PlatformFee)
	assert.Equal(t, 50.0, split.ClientAmount)
}

func paymentIntentEvent(t *testing.T, amount int64, metadata map[string]string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":       "pi_123",
		"amount":   amount,
		"metadata": metadata,
	})
	require.NoError(t, err)
	return stripe.Event{Type: "payment_intent.succeeded", Data: &stripe.EventData{Raw: raw}}
}

func TestHandleWebhook_PaymentIntentRecordsSplit(t *testing.T) {
	billingStore := newFakeBillingStore()
	p := newTestBillingProcessor(billingStore, 0.15)
	userID := uuid.New()

	event := paymentIntentEvent(t, 10000, map[string]string{"user_id": userID.String()})
	require.NoError(t, p.HandleWebhook(context.Background(), event))

	require.Len(t, billingStore.transactions, 1)
	txn := billingStore.transactions[0]
	assert.Equal(t, userID, txn.UserID)
	assert.Equal(t, 100.0, txn.GrossAmount)
	assert.Equal(t, 15.0, txn.PlatformFee)
	assert.Equal(t, 85.0, txn.ClientAmount)
	assert.Equal(t, store.TransactionTypeNewMember, txn.TransactionType)
	assert.Equal(t, store.TransactionStatusCompleted, txn.Status)
}

func TestHandleWebhook_PaymentIntentWithoutUserSkipped(t *testing.T) {
	billingStore := newFakeBillingStore()
	p := newTestBillingProcessor(billingStore, 0.15)

	event := paymentIntentEvent(t, 5000, nil)
	require.NoError(t, p.HandleWebhook(context.Background(), event))
	assert.Empty(t, billingStore.transactions)
}

func TestHandleWebhook_RetentionPaymentMarksMemberRetained(t *testing.T) {
	billingStore := newFakeBillingStore()
	p := newTestBillingProcessor(billingStore, 0.15)
	userID := uuid.New()
	memberID := uuid.New()

	event := paymentIntentEvent(t, 2000, map[string]string{
		"user_id":          userID.String(),
		"member_id":        memberID.String(),
		"transaction_type": store.TransactionTypeRetention,
	})
	require.NoError(t, p.HandleWebhook(context.Background(), event))

	require.Len(t, billingStore.transactions, 1)
	assert.Equal(t, store.TransactionTypeRetention, billingStore.transactions[0].TransactionType)
	assert.Equal(t, []uuid.UUID{memberID}, billingStore.retainedMembers)
}

func invoiceEvent(t *testing.T, amountPaid int64, subscriptionID string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":           "in_123",
		"amount_paid":  amountPaid,
		"subscription": map[string]interface{}{"id": subscriptionID},
	})
	require.NoError(t, err)
	return stripe.Event{Type: "invoice.payment_succeeded", Data: &stripe.EventData{Raw: raw}}
}

func TestHandleWebhook_InvoiceRecordsSubscriptionRevenue(t *testing.T) {
	billingStore := newFakeBillingStore()
	userID := uuid.New()
	member := store.Member{ID: uuid.New(), UserID: userID, WhopMemberID: "wm"}
	billingStore.memberBySub["sub_123"] = member
	p := newTestBillingProcessor(billingStore, 0.15)

	require.NoError(t, p.HandleWebhook(context.Background(), invoiceEvent(t, 4999, "sub_123")))

	require.Len(t, billingStore.transactions, 1)
	txn := billingStore.transactions[0]
	assert.Equal(t, userID, txn.UserID)
	assert.Equal(t, 49.99, txn.GrossAmount)
	assert.Equal(t, store.TransactionTypeSubscription, txn.TransactionType)
	require.NotNil(t, txn.StripeSubscriptionID)
	assert.Equal(t, "sub_123", *txn.StripeSubscriptionID)
	assert.Empty(t, billingStore.retainedMembers)
}

func TestHandleWebhook_InvoiceAfterRetentionContactCountsAsRetention(t *testing.T) {
	billingStore := newFakeBillingStore()
	member := store.Member{ID: uuid.New(), UserID: uuid.New(), WhopMemberID: "wm", RetentionMessagesSent: 2}
	billingStore.memberBySub["sub_456"] = member
	p := newTestBillingProcessor(billingStore, 0.15)

	require.NoError(t, p.HandleWebhook(context.Background(), invoiceEvent(t, 2900, "sub_456")))

	require.Len(t, billingStore.transactions, 1)
	assert.Equal(t, store.TransactionTypeRetention, billingStore.transactions[0].TransactionType)
	assert.Equal(t, []uuid.UUID{member.ID}, billingStore.retainedMembers)
}

func TestHandleWebhook_InvoiceForUnknownSubscriptionIgnored(t *testing.T) {
	billingStore := newFakeBillingStore()
	p := newTestBillingProcessor(billingStore, 0.15)

	require.NoError(t, p.HandleWebhook(context.Background(), invoiceEvent(t, 1000, "sub_unknown")))
	assert.Empty(t, billingStore.transactions)
}

func TestHandleWebhook_SubscriptionDeletedMarksChurned(t *testing.T) {
	billingStore := newFakeBillingStore()
	member := store.Member{ID: uuid.New(), UserID: uuid.New(), WhopMemberID: "wm"}
	billingStore.memberBySub["sub_789"] = member
	p := newTestBillingProcessor(billingStore, 0.15)

	raw, err := json.Marshal(map[string]interface{}{"id": "sub_789"})
	require.NoError(t, err)
	event := stripe.Event{Type: "customer.subscription.deleted", Data: &stripe.EventData{Raw: raw}}

	require.NoError(t, p.HandleWebhook(context.Background(), event))
	assert.Equal(t, []string{store.MemberStatusChurned}, billingStore.subUpdates)
}

func TestHandleWebhook_UnhandledEventAcknowledged(t *testing.T) {
	p := newTestBillingProcessor(newFakeBillingStore(), 0.15)

	event := stripe.Event{Type: "charge.refunded", Data: &stripe.EventData{Raw: []byte(`{}`)}}
	require.NoError(t, p.HandleWebhook(context.Background(), event))
}

func TestMemberStatusForSubscription(t *testing.T) {
	assert.Equal(t, store.MemberStatusActive, memberStatusForSubscription(stripe.SubscriptionStatusActive))
	assert.Equal(t, store.MemberStatusActive, memberStatusForSubscription(stripe.SubscriptionStatusTrialing))
	assert.Equal(t, store.MemberStatusChurned, memberStatusForSubscription(stripe.SubscriptionStatusCanceled))
	assert.Equal(t, store.MemberStatusPaused, memberStatusForSubscription(stripe.SubscriptionStatusPaused))
	assert.Equal(t, store.MemberStatusInactive, memberStatusForSubscription(stripe.SubscriptionStatusPastDue))
}
