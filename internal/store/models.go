package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JSONB is a custom type for JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("incompatible type for JSONB")
	}

	// Handle empty or null JSON
	if len(bytes) == 0 || string(bytes) == "null" {
		*j = make(JSONB)
		return nil
	}

	result := make(JSONB)
	err := json.Unmarshal(bytes, &result)
	if err != nil {
		return err
	}
	*j = result
	return nil
}

// StringArray is a custom type for PostgreSQL text[] arrays
type StringArray []string

// Value implements the driver.Valuer interface for StringArray. Every
// element is quoted so keywords containing commas, braces or quotes
// survive the round trip through the array literal.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	if len(a) == 0 {
		return "{}", nil
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, elem := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		for _, r := range elem {
			if r == '\\' || r == '"' {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String(), nil
}

// Scan implements the sql.Scanner interface for StringArray
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	var str string
	switch v := value.(type) {
	case []byte:
		str = string(v)
	case string:
		str = v
	default:
		return fmt.Errorf("unsupported type for StringArray: %T", value)
	}

	// Handle empty array
	if str == "" || str == "{}" {
		*a = []string{}
		return nil
	}

	if len(str) < 2 || str[0] != '{' || str[len(str)-1] != '}' {
		return fmt.Errorf("malformed array literal: %q", str)
	}
	str = str[1 : len(str)-1]

	result := []string{}
	var elem strings.Builder
	inQuotes := false
	escaped := false
	for _, r := range str {
		switch {
		case escaped:
			elem.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			result = append(result, elem.String())
			elem.Reset()
		default:
			elem.WriteRune(r)
		}
	}
	result = append(result, elem.String())
	*a = result
	return nil
}

// User represents an account holder running lead discovery and outreach
type User struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	FullName       string    `db:"full_name" json:"full_name"`
	Role           string    `db:"role" json:"role"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	IsVerified     bool      `db:"is_verified" json:"is_verified"`

	// Whop community details
	WhopCommunityID   *string `db:"whop_community_id" json:"whop_community_id,omitempty"`
	WhopCommunityName *string `db:"whop_community_name" json:"whop_community_name,omitempty"`
	WhopAPIKey        *string `db:"whop_api_key" json:"-"`

	// Stripe Connect
	StripeAccountID          *string `db:"stripe_account_id" json:"stripe_account_id,omitempty"`
	StripeOnboardingComplete bool    `db:"stripe_onboarding_complete" json:"stripe_onboarding_complete"`

	LastLogin *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Lead represents a prospective customer discovered on a social platform
// or entered manually
type Lead struct {
	ID     uuid.UUID `db:"id" json:"id"`
	UserID uuid.UUID `db:"user_id" json:"user_id"`

	Name       *string `db:"name" json:"name,omitempty"`
	Email      *string `db:"email" json:"email,omitempty"`
	Username   *string `db:"username" json:"username,omitempty"`
	ProfileURL *string `db:"profile_url" json:"profile_url,omitempty"`

	Source     string  `db:"source" json:"source"`
	Status     string  `db:"status" json:"status"`
	ExternalID *string `db:"external_id" json:"external_id,omitempty"`
	Content    *string `db:"content" json:"content,omitempty"`

	IntentScore  float64 `db:"intent_score" json:"intent_score"`
	QualityGrade *string `db:"quality_grade" json:"quality_grade,omitempty"`

	// Contact tracking
	ContactMethod *string    `db:"contact_method" json:"contact_method,omitempty"`
	LastContacted *time.Time `db:"last_contacted" json:"last_contacted,omitempty"`
	ContactCount  int        `db:"contact_count" json:"contact_count"`

	// Conversion tracking
	ConvertedAt     *time.Time `db:"converted_at" json:"converted_at,omitempty"`
	ConversionValue *float64   `db:"conversion_value" json:"conversion_value,omitempty"`

	// AI analysis
	Interests           StringArray `db:"interests" json:"interests"`
	PainPoints          StringArray `db:"pain_points" json:"pain_points"`
	AISummary           *string     `db:"ai_summary" json:"ai_summary,omitempty"`
	PersonalizationData JSONB       `db:"personalization_data" json:"personalization_data,omitempty"`
	PlatformData        JSONB       `db:"platform_data" json:"platform_data,omitempty"`

	DiscoveredAt time.Time `db:"discovered_at" json:"discovered_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DiscoveryCriteria represents a user's saved lead-discovery configuration
type DiscoveryCriteria struct {
	ID     uuid.UUID `db:"id" json:"id"`
	UserID uuid.UUID `db:"user_id" json:"user_id"`

	Niche           string      `db:"niche" json:"niche"`
	Keywords        StringArray `db:"keywords" json:"keywords"`
	Subreddits      StringArray `db:"subreddits" json:"subreddits"`
	MinIntentScore  float64     `db:"min_intent_score" json:"min_intent_score"`
	MinQualityGrade string      `db:"min_quality_grade" json:"min_quality_grade"`
	MaxLeads        int         `db:"max_leads" json:"max_leads"`
	IsActive        bool        `db:"is_active" json:"is_active"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OutreachCampaign represents an email outreach campaign
type OutreachCampaign struct {
	ID     uuid.UUID `db:"id" json:"id"`
	UserID uuid.UUID `db:"user_id" json:"user_id"`

	Name        string  `db:"name" json:"name"`
	Description *string `db:"description" json:"description,omitempty"`
	Status      string  `db:"status" json:"status"`

	// Template settings
	SubjectTemplate        *string `db:"subject_template" json:"subject_template,omitempty"`
	MessageTemplate        string  `db:"message_template" json:"message_template"`
	PersonalizationEnabled bool    `db:"personalization_enabled" json:"personalization_enabled"`

	// Campaign metrics
	TotalLeads        int `db:"total_leads" json:"total_leads"`
	MessagesSent      int `db:"messages_sent" json:"messages_sent"`
	ResponsesReceived int `db:"responses_received" json:"responses_received"`
	Conversions       int `db:"conversions" json:"conversions"`

	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// OutreachMessage represents a single email sent to a lead within a campaign
type OutreachMessage struct {
	ID         uuid.UUID `db:"id" json:"id"`
	CampaignID uuid.UUID `db:"campaign_id" json:"campaign_id"`
	LeadID     uuid.UUID `db:"lead_id" json:"lead_id"`

	Subject             *string `db:"subject" json:"subject,omitempty"`
	Content             string  `db:"content" json:"content"`
	PersonalizedContent *string `db:"personalized_content" json:"personalized_content,omitempty"`

	Status      string     `db:"status" json:"status"`
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	OpenedAt    *time.Time `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt   *time.Time `db:"clicked_at" json:"clicked_at,omitempty"`
	RepliedAt   *time.Time `db:"replied_at" json:"replied_at,omitempty"`

	ExternalMessageID *string `db:"external_message_id" json:"external_message_id,omitempty"`

	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int     `db:"retry_count" json:"retry_count"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Member represents a community member synced from Whop
type Member struct {
	ID     uuid.UUID `db:"id" json:"id"`
	UserID uuid.UUID `db:"user_id" json:"user_id"`

	WhopMemberID string  `db:"whop_member_id" json:"whop_member_id"`
	Email        *string `db:"email" json:"email,omitempty"`
	Username     *string `db:"username" json:"username,omitempty"`
	FullName     *string `db:"full_name" json:"full_name,omitempty"`

	// Membership details
	Status         string   `db:"status" json:"status"`
	Tier           *string  `db:"tier" json:"tier,omitempty"`
	SubscriptionID *string  `db:"subscription_id" json:"subscription_id,omitempty"`
	MonthlyRevenue *float64 `db:"monthly_revenue" json:"monthly_revenue,omitempty"`

	// Activity tracking
	LastLogin     *time.Time `db:"last_login" json:"last_login,omitempty"`
	LastMessage   *time.Time `db:"last_message" json:"last_message,omitempty"`
	TotalMessages int        `db:"total_messages" json:"total_messages"`
	ActivityScore float64    `db:"activity_score" json:"activity_score"`

	// Churn prediction, recomputed from activity fields
	ChurnRisk    string  `db:"churn_risk" json:"churn_risk"`
	ChurnScore   float64 `db:"churn_score" json:"churn_score"`
	DaysInactive int     `db:"days_inactive" json:"days_inactive"`

	// Retention efforts
	RetentionMessagesSent int        `db:"retention_messages_sent" json:"retention_messages_sent"`
	LastRetentionContact  *time.Time `db:"last_retention_contact" json:"last_retention_contact,omitempty"`
	RetentionSuccessful   *bool      `db:"retention_successful" json:"retention_successful,omitempty"`

	JoinedAt  time.Time  `db:"joined_at" json:"joined_at"`
	ChurnedAt *time.Time `db:"churned_at" json:"churned_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// RetentionMessage represents a retention email sent to an at-risk member
type RetentionMessage struct {
	ID       uuid.UUID `db:"id" json:"id"`
	MemberID uuid.UUID `db:"member_id" json:"member_id"`

	MessageType string  `db:"message_type" json:"message_type"`
	Subject     *string `db:"subject" json:"subject,omitempty"`
	Content     string  `db:"content" json:"content"`

	SentAt      time.Time  `db:"sent_at" json:"sent_at"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	OpenedAt    *time.Time `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt   *time.Time `db:"clicked_at" json:"clicked_at,omitempty"`

	// Outcome tracking
	MemberReturned *bool      `db:"member_returned" json:"member_returned,omitempty"`
	ReturnDate     *time.Time `db:"return_date" json:"return_date,omitempty"`

	ExternalMessageID *string `db:"external_message_id" json:"external_message_id,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AnalyticsSnapshot represents a daily rollup of per-user metrics
type AnalyticsSnapshot struct {
	ID     uuid.UUID `db:"id" json:"id"`
	UserID uuid.UUID `db:"user_id" json:"user_id"`
	Date   time.Time `db:"date" json:"date"`

	// Lead metrics
	LeadsGenerated     int     `db:"leads_generated" json:"leads_generated"`
	LeadsContacted     int     `db:"leads_contacted" json:"leads_contacted"`
	LeadsConverted     int     `db:"leads_converted" json:"leads_converted"`
	LeadConversionRate float64 `db:"lead_conversion_rate" json:"lead_conversion_rate"`

	// Outreach metrics
	MessagesSent         int     `db:"messages_sent" json:"messages_sent"`
	MessagesOpened       int     `db:"messages_opened" json:"messages_opened"`
	MessagesReplied      int     `db:"messages_replied" json:"messages_replied"`
	OutreachResponseRate float64 `db:"outreach_response_rate" json:"outreach_response_rate"`

	// Retention metrics
	MembersAtRisk         int     `db:"members_at_risk" json:"members_at_risk"`
	RetentionMessagesSent int     `db:"retention_messages_sent" json:"retention_messages_sent"`
	MembersRetained       int     `db:"members_retained" json:"members_retained"`
	RetentionSuccessRate  float64 `db:"retention_success_rate" json:"retention_success_rate"`

	// Revenue metrics
	NewMemberRevenue      float64 `db:"new_member_revenue" json:"new_member_revenue"`
	RetainedMemberRevenue float64 `db:"retained_member_revenue" json:"retained_member_revenue"`
	TotalRevenue          float64 `db:"total_revenue" json:"total_revenue"`
	PlatformFee           float64 `db:"platform_fee" json:"platform_fee"`
	ClientRevenue         float64 `db:"client_revenue" json:"client_revenue"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RevenueTransaction represents a Stripe payment split between the platform
// and the client
type RevenueTransaction struct {
	ID     uuid.UUID `db:"id" json:"id"`
	UserID uuid.UUID `db:"user_id" json:"user_id"`

	StripePaymentIntentID string     `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id"`
	StripeSubscriptionID  *string    `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	MemberID              *uuid.UUID `db:"member_id" json:"member_id,omitempty"`

	// Revenue breakdown
	GrossAmount           float64 `db:"gross_amount" json:"gross_amount"`
	PlatformFee           float64 `db:"platform_fee" json:"platform_fee"`
	ClientAmount          float64 `db:"client_amount" json:"client_amount"`
	PlatformFeePercentage float64 `db:"platform_fee_percentage" json:"platform_fee_percentage"`

	TransactionType string  `db:"transaction_type" json:"transaction_type"`
	Description     *string `db:"description" json:"description,omitempty"`

	Status      string     `db:"status" json:"status"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
