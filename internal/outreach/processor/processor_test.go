package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	aiprocessor "lead-engine/internal/ai/processor"
	"lead-engine/internal/observability"
	"lead-engine/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutreachStore struct {
	campaigns map[uuid.UUID]store.OutreachCampaign
	messages  map[uuid.UUID]store.OutreachMessage
	leads     map[uuid.UUID]store.Lead

	contactedLeads  []uuid.UUID
	respondedLeads  []uuid.UUID
	responseBumps   int
	sendResults     [][2]int
	activatedIDs    []uuid.UUID
	failedMessages  map[uuid.UUID]string
	sentExternalIDs map[uuid.UUID]string
}

func newFakeOutreachStore() *fakeOutreachStore {
	return &fakeOutreachStore{
		campaigns:       make(map[uuid.UUID]store.OutreachCampaign),
		messages:        make(map[uuid.UUID]store.OutreachMessage),
		leads:           make(map[uuid.UUID]store.Lead),
		failedMessages:  make(map[uuid.UUID]string),
		sentExternalIDs: make(map[uuid.UUID]string),
	}
}

func (f *fakeOutreachStore) addCampaign(userID uuid.UUID, status string, personalization bool) store.OutreachCampaign {
	campaign := store.OutreachCampaign{
		ID:                     uuid.New(),
		UserID:                 userID,
		Name:                   "test campaign",
		Status:                 status,
		MessageTemplate:        "Hey [NAME], join our community!",
		PersonalizationEnabled: personalization,
	}
	f.campaigns[campaign.ID] = campaign
	return campaign
}

func (f *fakeOutreachStore) addLead(userID uuid.UUID, email string) store.Lead {
	lead := store.Lead{ID: uuid.New(), UserID: userID, Status: store.LeadStatusNew, Source: "manual"}
	if email != "" {
		lead.Email = &email
	}
	f.leads[lead.ID] = lead
	return lead
}

func (f *fakeOutreachStore) CreateCampaign(ctx context.Context, params store.CreateCampaignParams) (store.OutreachCampaign, error) {
	campaign := store.OutreachCampaign{
		ID:                     uuid.New(),
		UserID:                 params.UserID,
		Name:                   params.Name,
		Status:                 store.CampaignStatusDraft,
		MessageTemplate:        params.MessageTemplate,
		PersonalizationEnabled: params.PersonalizationEnabled,
	}
	f.campaigns[campaign.ID] = campaign
	return campaign, nil
}

func (f *fakeOutreachStore) ListCampaigns(ctx context.Context, userID uuid.UUID) ([]store.OutreachCampaign, error) {
	var out []store.OutreachCampaign
	for _, campaign := range f.campaigns {
		if campaign.UserID == userID {
			out = append(out, campaign)
		}
	}
	return out, nil
}

func (f *fakeOutreachStore) GetCampaign(ctx context.Context, id, userID uuid.UUID) (store.OutreachCampaign, error) {
	campaign, ok := f.campaigns[id]
	if !ok || campaign.UserID != userID {
		return store.OutreachCampaign{}, store.ErrNotFound
	}
	return campaign, nil
}

func (f *fakeOutreachStore) ActivateCampaign(ctx context.Context, id uuid.UUID) error {
	f.activatedIDs = append(f.activatedIDs, id)
	campaign := f.campaigns[id]
	campaign.Status = store.CampaignStatusActive
	f.campaigns[id] = campaign
	return nil
}

func (f *fakeOutreachStore) AddCampaignSendResults(ctx context.Context, id uuid.UUID, leadsTargeted, messagesSent int) error {
	f.sendResults = append(f.sendResults, [2]int{leadsTargeted, messagesSent})
	return nil
}

func (f *fakeOutreachStore) IncrementCampaignResponses(ctx context.Context, id uuid.UUID) error {
	f.responseBumps++
	return nil
}

func (f *fakeOutreachStore) CreateOutreachMessage(ctx context.Context, params store.CreateOutreachMessageParams) (store.OutreachMessage, error) {
	message := store.OutreachMessage{
		ID:                  uuid.New(),
		CampaignID:          params.CampaignID,
		LeadID:              params.LeadID,
		Subject:             params.Subject,
		Content:             params.Content,
		PersonalizedContent: params.PersonalizedContent,
		Status:              params.Status,
	}
	f.messages[message.ID] = message
	return message, nil
}

func (f *fakeOutreachStore) MessageExistsForLead(ctx context.Context, campaignID, leadID uuid.UUID) (bool, error) {
	for _, m := range f.messages {
		if m.CampaignID == campaignID && m.LeadID == leadID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeOutreachStore) ListCampaignMessages(ctx context.Context, campaignID uuid.UUID) ([]store.OutreachMessage, error) {
	var out []store.OutreachMessage
	for _, m := range f.messages {
		if m.CampaignID == campaignID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeOutreachStore) GetOutreachMessage(ctx context.Context, id, userID uuid.UUID) (store.OutreachMessage, error) {
	message, ok := f.messages[id]
	if !ok {
		return store.OutreachMessage{}, store.ErrNotFound
	}
	campaign, ok := f.campaigns[message.CampaignID]
	if !ok || campaign.UserID != userID {
		return store.OutreachMessage{}, store.ErrNotFound
	}
	return message, nil
}

func (f *fakeOutreachStore) MarkMessageSent(ctx context.Context, id uuid.UUID, externalMessageID string) error {
	f.sentExternalIDs[id] = externalMessageID
	message := f.messages[id]
	message.Status = store.MessageStatusSent
	f.messages[id] = message
	return nil
}

func (f *fakeOutreachStore) MarkMessageFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	f.failedMessages[id] = errorMessage
	message := f.messages[id]
	message.Status = store.MessageStatusFailed
	f.messages[id] = message
	return nil
}

func (f *fakeOutreachStore) TrackMessageEvent(ctx context.Context, id uuid.UUID, event string, at time.Time) (store.OutreachMessage, error) {
	message, ok := f.messages[id]
	if !ok {
		return store.OutreachMessage{}, store.ErrNotFound
	}
	switch event {
	case "delivered":
		if message.DeliveredAt == nil {
			message.DeliveredAt = &at
		}
	case "opened":
		if message.OpenedAt == nil {
			message.OpenedAt = &at
		}
	case "clicked":
		if message.ClickedAt == nil {
			message.ClickedAt = &at
		}
	case "replied":
		if message.RepliedAt == nil {
			message.RepliedAt = &at
		}
	}
	if messageStatusRank(event) > messageStatusRank(message.Status) {
		message.Status = event
	}
	f.messages[id] = message
	return message, nil
}

func messageStatusRank(status string) int {
	order := []string{
		store.MessageStatusDraft, store.MessageStatusQueued, store.MessageStatusSent,
		store.MessageStatusDelivered, store.MessageStatusOpened, store.MessageStatusClicked,
		store.MessageStatusReplied,
	}
	for i, s := range order {
		if s == status {
			return i
		}
	}
	return len(order)
}

func (f *fakeOutreachStore) GetLead(ctx context.Context, id, userID uuid.UUID) (store.Lead, error) {
	lead, ok := f.leads[id]
	if !ok || lead.UserID != userID {
		return store.Lead{}, store.ErrNotFound
	}
	return lead, nil
}

func (f *fakeOutreachStore) UpdateLeadContact(ctx context.Context, id uuid.UUID) error {
	f.contactedLeads = append(f.contactedLeads, id)
	return nil
}

func (f *fakeOutreachStore) MarkLeadResponded(ctx context.Context, id uuid.UUID) error {
	f.respondedLeads = append(f.respondedLeads, id)
	return nil
}

type fakePersonalizer struct {
	calls int
}

func (f *fakePersonalizer) PersonalizeMessage(ctx context.Context, template string, lead aiprocessor.LeadProfile) string {
	f.calls++
	return "personalized: " + template
}

type fakeEmailSender struct {
	failFor map[string]error
	sent    []string
}

func (f *fakeEmailSender) SendEmail(ctx context.Context, from, to, subject, htmlContent string) (string, error) {
	if err, ok := f.failFor[to]; ok {
		return "", err
	}
	f.sent = append(f.sent, to)
	return "ext_" + to, nil
}

func newTestOutreachProcessor(s OutreachStore, pers Personalizer, email EmailSender) *OutreachProcessor {
	return New(s, pers, email, "hello@leadengine.dev", observability.NewLogger())
}

func TestSendCampaign_SendsAndTracksBookkeeping(t *testing.T) {
	outreachStore := newFakeOutreachStore()
	userID := uuid.New()
	campaign := outreachStore.addCampaign(userID, store.CampaignStatusDraft, false)
	lead1 := outreachStore.addLead(userID, "one@example.com")
	lead2 := outreachStore.addLead(userID, "two@example.com")

	sender := &fakeEmailSender{}
	p := newTestOutreachProcessor(outreachStore, &fakePersonalizer{}, sender)

	result, err := p.SendCampaign(context.Background(), userID, campaign.ID, []uuid.UUID{lead1.ID, lead2.ID})
	require.NoError(t, err)
	assert.Equal(t, SendResult{Targeted: 2, Sent: 2}, result)
	assert.ElementsMatch(t, []string{"one@example.com", "two@example.com"}, sender.sent)
	assert.ElementsMatch(t, []uuid.UUID{lead1.ID, lead2.ID}, outreachStore.contactedLeads)
	require.Len(t, outreachStore.sendResults, 1)
	assert.Equal(t, [2]int{2, 2}, outreachStore.sendResults[0])
	assert.Contains(t, outreachStore.activatedIDs, campaign.ID)
}

func TestSendCampaign_SkipsLeadsWithoutEmail(t *testing.T) {
	outreachStore := newFakeOutreachStore()
	userID := uuid.New()
	campaign := outreachStore.addCampaign(userID, store.CampaignStatusActive, false)
	noEmail := outreachStore.addLead(userID, "")
	withEmail := outreachStore.addLead(userID, "ok@example.com")

	p := newTestOutreachProcessor(outreachStore, &fakePersonalizer{}, &fakeEmailSender{})

	result, err := p.SendCampaign(context.Background(), userID, campaign.ID, []uuid.UUID{noEmail.ID, withEmail.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Skipped)
}

func TestSendCampaign_SkipsAlreadyMessagedLeads(t *testing.T) {
	outreachStore := newFakeOutreachStore()
	userID := uuid.New()
	campaign := outreachStore.addCampaign(userID, store.CampaignStatusActive, false)
	lead := outreachStore.addLead(userID, "repeat@example.com")

	p := newTestOutreachProcessor(outreachStore, &fakePersonalizer{}, &fakeEmailSender{})

	result, err := p.SendCampaign(context.Background(), userID, campaign.ID, []uuid.UUID{lead.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)

	result, err = p.SendCampaign(context.Background(), userID, campaign.ID, []uuid.UUID{lead.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 1, result.Skipped)
}

func TestSendCampaign_FailedDeliveryRecordedWithoutStoppingRun(t *testing.T) {
	outreachStore := newFakeOutreachStore()
	userID := uuid.New()
	campaign := outreachStore.addCampaign(userID, store.CampaignStatusActive, false)
	bad := outreachStore.addLead(userID, "bounce@example.com")
	good := outreachStore.addLead(userID, "good@example.com")

	sender := &fakeEmailSender{failFor: map[string]error{
		"bounce@example.com": errors.New("mailbox unavailable"),
	}}
	p := newTestOutreachProcessor(outreachStore, &fakePersonalizer{}, sender)

	result, err := p.SendCampaign(context.Background(), userID, campaign.ID, []uuid.UUID{bad.ID, good.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Targeted)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, outreachStore.failedMessages, 1)
}

func TestSendCampaign_PersonalizationUsedWhenEnabled(t *testing.T) {
	outreachStore := newFakeOutreachStore()
	userID := uuid.New()
	campaign := outreachStore.addCampaign(userID, store.CampaignStatusActive, true)
	lead := outreachStore.addLead(userID, "pers@example.com")

	personalizer := &fakePersonalizer{}
	p := newTestOutreachProcessor(outreachStore, personalizer, &fakeEmailSender{})

	_, err := p.SendCampaign(context.Background(), userID, campaign.ID, []uuid.UUID{lead.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, personalizer.calls)

	for _, m := range outreachStore.messages {
		require.NotNil(t, m.PersonalizedContent)
		assert.Equal(t, "personalized: "+campaign.MessageTemplate, *m.PersonalizedContent)
	}
}

func TestSendCampaign_CompletedCampaignRejected(t *testing.T) {
	outreachStore := newFakeOutreachStore()
	userID := uuid.New()
	campaign := outreachStore.addCampaign(userID, store.CampaignStatusCompleted, false)

	p := newTestOutreachProcessor(outreachStore, &fakePersonalizer{}, &fakeEmailSender{})

	_, err := p.SendCampaign(context.Background(), userID, campaign.ID, []uuid.UUID{uuid.New()})
	require.ErrorIs(t, err, ErrCampaignNotSendable)
}

func TestTrackEvent_RepliedBumpsResponsesAndLead(t *testing.T) {
	outreachStore := newFakeOutreachStore()
	userID := uuid.New()
	campaign := outreachStore.addCampaign(userID, store.CampaignStatusActive, false)
	lead := outreachStore.addLead(userID, "reply@example.com")

	p := newTestOutreachProcessor(outreachStore, &fakePersonalizer{}, &fakeEmailSender{})
	_, err := p.SendCampaign(context.Background(), userID, campaign.ID, []uuid.UUID{lead.ID})
	require.NoError(t, err)

	var messageID uuid.UUID
	for id := range outreachStore.messages {
		messageID = id
	}

	message, err := p.TrackEvent(context.Background(), userID, messageID, "replied")
	require.NoError(t, err)
	assert.NotNil(t, message.RepliedAt)
	assert.Equal(t, 1, outreachStore.responseBumps)
	assert.Equal(t, []uuid.UUID{lead.ID}, outreachStore.respondedLeads)
}

func TestTrackEvent_DuplicateReplyCountedOnce(t *testing.T) {
	outreachStore := newFakeOutreachStore()
	userID := uuid.New()
	campaign := outreachStore.addCampaign(userID, store.CampaignStatusActive, false)
	lead := outreachStore.addLead(userID, "reply@example.com")

	p := newTestOutreachProcessor(outreachStore, &fakePersonalizer{}, &fakeEmailSender{})
	_, err := p.SendCampaign(context.Background(), userID, campaign.ID, []uuid.UUID{lead.ID})
	require.NoError(t, err)

	var messageID uuid.UUID
	for id := range outreachStore.messages {
		messageID = id
	}

	first, err := p.TrackEvent(context.Background(), userID, messageID, "replied")
	require.NoError(t, err)
	second, err := p.TrackEvent(context.Background(), userID, messageID, "replied")
	require.NoError(t, err)

	assert.Equal(t, first.RepliedAt, second.RepliedAt)
	assert.Equal(t, 1, outreachStore.responseBumps)
	assert.Equal(t, []uuid.UUID{lead.ID}, outreachStore.respondedLeads)
}

func TestTrackEvent_LateOpenKeepsRepliedStatus(t *testing.T) {
	outreachStore := newFakeOutreachStore()
	userID := uuid.New()
	campaign := outreachStore.addCampaign(userID, store.CampaignStatusActive, false)
	lead := outreachStore.addLead(userID, "reply@example.com")

	p := newTestOutreachProcessor(outreachStore, &fakePersonalizer{}, &fakeEmailSender{})
	_, err := p.SendCampaign(context.Background(), userID, campaign.ID, []uuid.UUID{lead.ID})
	require.NoError(t, err)

	var messageID uuid.UUID
	for id := range outreachStore.messages {
		messageID = id
	}

	_, err = p.TrackEvent(context.Background(), userID, messageID, "replied")
	require.NoError(t, err)
	message, err := p.TrackEvent(context.Background(), userID, messageID, "opened")
	require.NoError(t, err)

	assert.Equal(t, store.MessageStatusReplied, message.Status)
	assert.NotNil(t, message.OpenedAt)
}

func TestTrackEvent_UnknownEventRejected(t *testing.T) {
	p := newTestOutreachProcessor(newFakeOutreachStore(), &fakePersonalizer{}, &fakeEmailSender{})

	_, err := p.TrackEvent(context.Background(), uuid.New(), uuid.New(), "bounced")
	require.ErrorIs(t, err, ErrUnknownMessageEvent)
}

func TestTrackEvent_OtherUsersMessageHidden(t *testing.T) {
	outreachStore := newFakeOutreachStore()
	owner := uuid.New()
	campaign := outreachStore.addCampaign(owner, store.CampaignStatusActive, false)
	lead := outreachStore.addLead(owner, "owner@example.com")

	p := newTestOutreachProcessor(outreachStore, &fakePersonalizer{}, &fakeEmailSender{})
	_, err := p.SendCampaign(context.Background(), owner, campaign.ID, []uuid.UUID{lead.ID})
	require.NoError(t, err)

	var messageID uuid.UUID
	for id := range outreachStore.messages {
		messageID = id
	}

	_, err = p.TrackEvent(context.Background(), uuid.New(), messageID, "opened")
	require.ErrorIs(t, err, store.ErrNotFound)
}
