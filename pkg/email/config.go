package email

import "time"

// SMTPConfig holds SMTP delivery settings. Host and From are required for
// sending; without them the sender reports skipped sends.
type SMTPConfig struct {
	Host     string        `env:"SMTP_HOST"`
	Port     int           `env:"SMTP_PORT" envDefault:"587"`
	Secure   bool          `env:"SMTP_SECURE" envDefault:"false"` // implicit TLS, usually port 465
	Username string        `env:"SMTP_USERNAME"`
	Password string        `env:"SMTP_PASSWORD"`
	From     string        `env:"SMTP_FROM"`
	ReplyTo  string        `env:"SMTP_REPLY_TO"`
	Timeout  time.Duration `env:"SMTP_TIMEOUT" envDefault:"10s"`
}

// Configured reports whether the minimum settings for sending are present.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != ""
}

// PostmarkConfig holds Postmark API settings. When ServerToken is set the
// Postmark sender is used instead of SMTP.
type PostmarkConfig struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	From         string `env:"POSTMARK_FROM"`
	ReplyTo      string `env:"POSTMARK_REPLY_TO"`
}

// Configured reports whether the Postmark sender can be used.
func (c PostmarkConfig) Configured() bool {
	return c.ServerToken != "" && c.From != ""
}
