package jobs

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/notifications"
	"github.com/dmitrymomot/crewnotify/pkg/scheduler"
	"github.com/dmitrymomot/crewnotify/pkg/workforce"
)

// Job names, also used as lease keys.
const (
	NameReminderScan      = "reminder_scan"
	NameAdminDigest       = "admin_digest"
	NameCertificateExpiry = "certificate_expiry"
	NamePendingSweep      = "pending_sweep"
)

// Template keys.
const (
	TemplateReminder          = "TS_REMINDER_V1"
	TemplateDigest            = "ADMIN_DIGEST_V1"
	TemplateCertificateExpiry = "CERT_EXPIRY_V1"
)

const dateLayout = "2006-01-02"

// Dispatcher turns intents into delivery records.
type Dispatcher interface {
	Dispatch(ctx context.Context, intents ...notifications.Intent) (int, error)
}

// Option configures the shared parts of a job.
type Option func(*base)

// WithSelector overrides the channel selector.
func WithSelector(s *channel.Selector) Option {
	return func(b *base) {
		if s != nil {
			b.selector = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithLocation sets the zone used for calendar dates in payloads and keys.
func WithLocation(loc *time.Location) Option {
	return func(b *base) {
		if loc != nil {
			b.loc = loc
		}
	}
}

type base struct {
	selector *channel.Selector
	logger   *slog.Logger
	loc      *time.Location
}

func newBase(name string, opts []Option) base {
	b := base{
		selector: channel.NewSelector(),
		logger:   slog.Default(),
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.With(logger.Job(name))
	return b
}

func (b base) intent(u workforce.User, template string, cat channel.Category, dedupe string, payload map[string]string) notifications.Intent {
	p := maps.Clone(payload)
	if p == nil {
		p = map[string]string{}
	}
	p["recipientName"] = u.Name
	return notifications.Intent{
		RecipientID: u.ID,
		TemplateKey: template,
		Category:    cat,
		Channels:    b.selector.Select(u.Preference, cat),
		Payload:     p,
		DedupeKey:   dedupe,
	}
}

// user loads a recipient; one missing from the directory has no channels.
func user(ctx context.Context, store workforce.Store, id string) (workforce.User, error) {
	u, err := store.GetUser(ctx, id)
	if errors.Is(err, workforce.ErrNotFound) {
		return workforce.User{ID: id}, nil
	}
	return u, err
}

// Deps are the collaborators the jobs need.
type Deps struct {
	Store    workforce.Store
	Records  notifications.Storage
	Fanout   Dispatcher
	Enqueuer notifications.Enqueuer
}

// Register adds all jobs to s with their configured schedules in loc.
func Register(s *scheduler.Scheduler, d Deps, cfg Config, loc *time.Location, opts ...Option) error {
	opts = append(opts, WithLocation(loc))
	return errors.Join(
		s.Add(NewReminderScan(d.Store, d.Fanout, cfg.ReminderAfter, opts...), scheduler.Every(cfg.ReminderInterval), cfg.JobTTL),
		s.Add(NewAdminDigest(d.Store, d.Fanout, opts...), scheduler.WeekdaysAt(cfg.DigestHour, cfg.DigestMinute, loc), cfg.JobTTL),
		s.Add(NewCertificateExpiry(d.Store, d.Fanout, cfg.CertificateThresholds, opts...), scheduler.DailyAt(cfg.CertificateHour, cfg.CertificateMinute, loc), cfg.JobTTL),
		s.Add(NewPendingSweep(d.Records, d.Enqueuer, cfg.SweepGrace, cfg.SweepBatch, opts...), scheduler.Every(cfg.SweepInterval), cfg.JobTTL),
	)
}
