package service

import "errors"

// Validation
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrPackageInvalid     = errors.New("unknown package type")
	ErrBundleInvalid      = errors.New("unknown bundle")
	ErrOccasionInvalid    = errors.New("unknown occasion")
	ErrStatusInvalid      = errors.New("status not in allow-list")
	ErrDeliverableType    = errors.New("deliverable type not allowed")
	ErrFileTooLarge       = errors.New("file too large")
	ErrBatchActionInvalid = errors.New("unknown batch action")
	ErrCaptchaRequired    = errors.New("captcha required")
	ErrCaptchaInvalid     = errors.New("captcha invalid")
)

// Not found
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrDeliverableNotFound = errors.New("deliverable not found")
	ErrCampaignNotFound    = errors.New("campaign not found")
)

// Preconditions
var (
	ErrOrderStatusInvalid    = errors.New("order status does not allow this action")
	ErrOrderAlreadyDelivered = errors.New("order already delivered")
	ErrDeliverableMissing    = errors.New("order has no deliverables")
	ErrMP3Missing            = errors.New("order has no mp3 deliverable")
	ErrCampaignInactive      = errors.New("campaign inactive")
	ErrCampaignHasNoSteps    = errors.New("campaign has no steps")
	ErrAlreadyEnrolled       = errors.New("order already enrolled")
)

// Conflicts
var (
	ErrOrderConcurrentUpdate = errors.New("order was modified concurrently")
)

// Auth
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrAdminNotConfigured = errors.New("admin login not configured")
)

// Integration
var (
	ErrOrderFetchFailed      = errors.New("order fetch failed")
	ErrOrderCreateFailed     = errors.New("order create failed")
	ErrOrderUpdateFailed     = errors.New("order update failed")
	ErrPaymentCreateFailed   = errors.New("checkout session create failed")
	ErrWebhookSignature      = errors.New("webhook signature invalid")
	ErrWebhookPayload        = errors.New("webhook payload invalid")
	ErrStorageUploadFailed   = errors.New("storage upload failed")
	ErrGenerationFailed      = errors.New("generation failed")
	ErrGenerationUnavailable = errors.New("generation not configured")
	ErrNotificationFailed    = errors.New("notification failed")
)

// userMessages German text shown to admins and customers
var userMessages = map[error]string{
	ErrInvalidInput:          "Ungültige Eingabe",
	ErrPackageInvalid:        "Unbekanntes Paket",
	ErrBundleInvalid:         "Unbekanntes Bundle",
	ErrOccasionInvalid:       "Unbekannter Anlass",
	ErrStatusInvalid:         "Ungültiger Status",
	ErrDeliverableType:       "Dateityp nicht erlaubt",
	ErrFileTooLarge:          "Datei ist zu groß",
	ErrBatchActionInvalid:    "Unbekannte Aktion",
	ErrCaptchaRequired:       "Bitte Sicherheitscode eingeben",
	ErrCaptchaInvalid:        "Sicherheitscode ist falsch",
	ErrOrderNotFound:         "Bestellung nicht gefunden",
	ErrDeliverableNotFound:   "Datei nicht gefunden",
	ErrCampaignNotFound:      "Kampagne nicht gefunden",
	ErrOrderStatusInvalid:    "Der Bestellstatus erlaubt diese Aktion nicht",
	ErrOrderAlreadyDelivered: "Bestellung wurde bereits ausgeliefert",
	ErrDeliverableMissing:    "Keine Dateien zur Bestellung vorhanden",
	ErrMP3Missing:            "Keine MP3-Datei vorhanden",
	ErrCampaignInactive:      "Kampagne ist nicht aktiv",
	ErrCampaignHasNoSteps:    "Kampagne hat keine Schritte",
	ErrAlreadyEnrolled:       "Bestellung ist bereits eingeschrieben",
	ErrOrderConcurrentUpdate: "Bestellung wurde zwischenzeitlich geändert, bitte neu laden",
	ErrUnauthorized:          "Nicht autorisiert. Bitte anmelden.",
	ErrInvalidPassword:       "Falsches Passwort",
	ErrAdminNotConfigured:    "Admin-Zugang ist nicht eingerichtet",
	ErrOrderFetchFailed:      "Bestellung konnte nicht geladen werden",
	ErrOrderCreateFailed:     "Bestellung konnte nicht angelegt werden",
	ErrOrderUpdateFailed:     "Bestellung konnte nicht gespeichert werden",
	ErrPaymentCreateFailed:   "Zahlung konnte nicht gestartet werden",
	ErrWebhookSignature:      "Ungültige Signatur",
	ErrWebhookPayload:        "Ungültige Nutzlast",
	ErrStorageUploadFailed:   "Datei konnte nicht gespeichert werden",
	ErrGenerationFailed:      "Generierung fehlgeschlagen",
	ErrGenerationUnavailable: "Generierung ist nicht konfiguriert",
	ErrNotificationFailed:    "Benachrichtigung fehlgeschlagen",
}

// UserMessage returns the German text for the first known sentinel in
// err's tree, outermost first.
func UserMessage(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if msg, ok := userMessages[err]; ok {
		return msg, true
	}
	switch wrapped := err.(type) {
	case interface{ Unwrap() error }:
		return UserMessage(wrapped.Unwrap())
	case interface{ Unwrap() []error }:
		for _, inner := range wrapped.Unwrap() {
			if msg, ok := UserMessage(inner); ok {
				return msg, true
			}
		}
	}
	return "", false
}
