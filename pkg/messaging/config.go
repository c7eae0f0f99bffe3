package messaging

import "time"

// Config holds credentials for a Twilio-compatible messaging API.
// Credentials are optional: a channel without them reports skipped sends.
type Config struct {
	AccountSID   string        `env:"MESSAGING_ACCOUNT_SID"`
	AuthToken    string        `env:"MESSAGING_AUTH_TOKEN"`
	SMSFrom      string        `env:"MESSAGING_SMS_FROM"`
	WhatsAppFrom string        `env:"MESSAGING_WHATSAPP_FROM"`
	BaseURL      string        `env:"MESSAGING_BASE_URL" envDefault:"https://api.twilio.com/2010-04-01"`
	Timeout      time.Duration `env:"MESSAGING_TIMEOUT" envDefault:"10s"`

	// ApprovedTemplates lists the template keys the platform accepts.
	// Anything else is refused rather than sent as free-form text.
	ApprovedTemplates []string `env:"MESSAGING_APPROVED_TEMPLATES" envSeparator:"," envDefault:"TS_NEEDS_APPROVAL_V1,TS_APPROVED_V1,TS_REJECTED_V1,TS_REMINDER_V1,MO_NEW_ORDER_V1,MO_STATUS_UPDATE_V1,ADMIN_DIGEST_V1,CERT_EXPIRY_V1"`
}
