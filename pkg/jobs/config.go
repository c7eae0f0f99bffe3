package jobs

import "time"

// Config holds schedules and thresholds for the periodic jobs.
type Config struct {
	ReminderInterval time.Duration `env:"JOBS_REMINDER_INTERVAL" envDefault:"5m"`
	ReminderAfter    time.Duration `env:"JOBS_REMINDER_AFTER" envDefault:"24h"`

	DigestHour   int `env:"JOBS_DIGEST_HOUR" envDefault:"7"`
	DigestMinute int `env:"JOBS_DIGEST_MINUTE" envDefault:"0"`

	CertificateHour       int   `env:"JOBS_CERT_HOUR" envDefault:"6"`
	CertificateMinute     int   `env:"JOBS_CERT_MINUTE" envDefault:"0"`
	CertificateThresholds []int `env:"JOBS_CERT_THRESHOLDS" envDefault:"30,14,7" envSeparator:","`

	SweepInterval time.Duration `env:"JOBS_SWEEP_INTERVAL" envDefault:"1m"`
	SweepGrace    time.Duration `env:"JOBS_SWEEP_GRACE" envDefault:"2m"`
	SweepBatch    int           `env:"JOBS_SWEEP_BATCH" envDefault:"100"`

	JobTTL time.Duration `env:"JOBS_TTL" envDefault:"5m"`
}

// DefaultConfig returns the values used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		ReminderInterval:      5 * time.Minute,
		ReminderAfter:         24 * time.Hour,
		DigestHour:            7,
		CertificateHour:       6,
		CertificateThresholds: []int{30, 14, 7},
		SweepInterval:         time.Minute,
		SweepGrace:            2 * time.Minute,
		SweepBatch:            100,
		JobTTL:                5 * time.Minute,
	}
}
