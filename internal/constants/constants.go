package constants

// Order statuses
const (
	OrderStatusPending       = "pending"
	OrderStatusPaid          = "paid"
	OrderStatusInProduction  = "in_production"
	OrderStatusQualityReview = "quality_review"
	OrderStatusDelivered     = "delivered"
	OrderStatusRefunded      = "refunded"
)

// Priority levels
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// Package types
const (
	PackageBasis   = "basis"
	PackagePlus    = "plus"
	PackagePremium = "premium"
)

// Bundles
const (
	BundleNone      = "none"
	BundleHochzeits = "hochzeits-bundle"
	BundlePerfekt   = "perfekt-bundle"
)

// Occasions
const (
	OccasionHochzeit   = "hochzeit"
	OccasionGeburtstag = "geburtstag"
	OccasionJubilaeum  = "jubilaeum"
	OccasionFirma      = "firma"
	OccasionTaufe      = "taufe"
	OccasionAndere     = "andere"
)

// Prices in whole euros
const (
	PriceBasis          = 49
	PricePlus           = 79
	PricePremium        = 129
	PriceKaraoke        = 19
	PriceRush           = 29
	PriceGift           = 15
	PriceHochzeitBundle = 99
	PricePerfektBundle  = 49
	PriceCustomLyrics   = 89
)

// Deliverable types
const (
	DeliverableMP3 = "mp3"
	DeliverableMP4 = "mp4"
	DeliverablePDF = "pdf"
	DeliverablePNG = "png"
	DeliverableWAV = "wav"
)

// Batch actions
const (
	BatchActionDeliverAll      = "deliver_all"
	BatchActionUpdateStatus    = "update_status"
	BatchActionSetInProduction = "set_in_production"
)

// Campaign triggers and enrollment states
const (
	CampaignTriggerPaid      = "paid"
	CampaignTriggerDelivered = "delivered"

	EnrollmentStatusActive    = "active"
	EnrollmentStatusCompleted = "completed"
	EnrollmentStatusCanceled  = "canceled"

	EmailSendStatusScheduled = "scheduled"
	EmailSendStatusSent      = "sent"
	EmailSendStatusFailed    = "failed"
)

// Captcha providers
const (
	CaptchaProviderNone  = "none"
	CaptchaProviderImage = "image"
)

// Storage providers
const (
	StorageProviderSupabase = "supabase"
	StorageProviderLocal    = "local"
)

// Queue names and task types
const (
	QueueDefault  = "default"
	QueueCritical = "critical"

	TaskOrderPaidEmail     = "order:paid_email"
	TaskOrderDeliveryEmail = "order:delivery_email"
	TaskCampaignStep       = "campaign:step"
)

// Triage thresholds in hours
const (
	RushDeadlineHours   = 12
	BoostToHighHours    = 48
	BoostToUrgentHours  = 72
	OrderNumberPrefix   = "MM"
	TestOrderNumberPart = "TEST"
)
