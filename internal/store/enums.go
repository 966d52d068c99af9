package store

// User ENUMs
const (
	UserRoleAdmin  = "admin"
	UserRoleClient = "client"
)

// Lead ENUMs
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusResponded = "responded"
	LeadStatusConverted = "converted"
	LeadStatusRejected  = "rejected"
)

const (
	LeadSourceReddit  = "reddit"
	LeadSourceTwitter = "twitter"
	LeadSourceDiscord = "discord"
	LeadSourceManual  = "manual"
	LeadSourceImport  = "import"
)

const (
	QualityGradeA = "A"
	QualityGradeB = "B"
	QualityGradeC = "C"
	QualityGradeD = "D"
)

// Outreach Campaign ENUMs
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
)

// Outreach Message ENUMs
const (
	MessageStatusDraft     = "draft"
	MessageStatusQueued    = "queued"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusOpened    = "opened"
	MessageStatusClicked   = "clicked"
	MessageStatusReplied   = "replied"
	MessageStatusFailed    = "failed"
)

// Member ENUMs
const (
	MemberStatusActive   = "active"
	MemberStatusInactive = "inactive"
	MemberStatusChurned  = "churned"
	MemberStatusPaused   = "paused"
)

const (
	ChurnRiskLow      = "low"
	ChurnRiskMedium   = "medium"
	ChurnRiskHigh     = "high"
	ChurnRiskCritical = "critical"
)

// Retention Message ENUMs
const (
	RetentionMessageTypeReminder        = "reminder"
	RetentionMessageTypeCoupon          = "coupon"
	RetentionMessageTypePersonalCheckIn = "personal_check_in"
)

// Revenue Transaction ENUMs
const (
	TransactionTypeNewMember    = "new_member"
	TransactionTypeRetention    = "retention"
	TransactionTypeUpgrade      = "upgrade"
	TransactionTypeSubscription = "subscription"
)

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusRefunded  = "refunded"
)
