package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/notifications"
	"github.com/dmitrymomot/crewnotify/pkg/workforce"
)

// CertificateExpiry warns holders as their certificates approach expiry.
type CertificateExpiry struct {
	base
	store      workforce.Store
	fanout     Dispatcher
	thresholds []int
}

// NewCertificateExpiry creates the job. thresholds are days before expiry;
// empty means 30, 14 and 7.
func NewCertificateExpiry(store workforce.Store, fanout Dispatcher, thresholds []int, opts ...Option) *CertificateExpiry {
	t := slices.DeleteFunc(slices.Clone(thresholds), func(d int) bool { return d <= 0 })
	if len(t) == 0 {
		t = []int{30, 14, 7}
	}
	slices.Sort(t)
	t = slices.Compact(t)
	return &CertificateExpiry{base: newBase(NameCertificateExpiry, opts), store: store, fanout: fanout, thresholds: t}
}

func (j *CertificateExpiry) Name() string { return NameCertificateExpiry }

// Run finds certificates inside the widest threshold. For each it sends one
// warning for the tightest threshold crossed since the last run and records
// every crossed threshold as fired, so skipped runs do not cause a burst.
func (j *CertificateExpiry) Run(ctx context.Context, now time.Time) error {
	widest := j.thresholds[len(j.thresholds)-1]
	certs, err := j.store.ListExpiringCertificates(ctx, now, now.AddDate(0, 0, widest))
	if err != nil {
		return fmt.Errorf("list expiring certificates: %w", err)
	}

	var errs []error
	for _, c := range certs {
		if err := j.check(ctx, c, now); err != nil {
			errs = append(errs, fmt.Errorf("certificate %s: %w", c.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (j *CertificateExpiry) check(ctx context.Context, c workforce.Certificate, now time.Time) error {
	daysLeft := DaysLeft(c.Expires, now)
	crossed := j.crossed(c, daysLeft)
	if len(crossed) == 0 {
		return nil
	}
	tightest := crossed[0]

	holder, err := user(ctx, j.store, c.HolderID)
	if err != nil {
		return err
	}
	_, err = j.fanout.Dispatch(ctx, j.intent(holder, TemplateCertificateExpiry, channel.CategoryCertificate,
		notifications.DedupeKey("cert", c.ID, strconv.Itoa(tightest)),
		map[string]string{
			"certificateId": c.ID,
			"certificate":   c.Name,
			"expiresOn":     c.Expires.In(j.loc).Format(dateLayout),
			"daysLeft":      strconv.Itoa(daysLeft),
			"threshold":     strconv.Itoa(tightest),
		},
	))
	if err != nil {
		return err
	}

	if err := j.store.AddNotifiedThresholds(ctx, c.ID, crossed...); err != nil {
		return fmt.Errorf("record thresholds: %w", err)
	}
	j.logger.LogAttrs(ctx, slog.LevelInfo, "certificate expiry announced",
		logger.EntityID(c.ID),
		slog.Int("days_left", daysLeft),
		slog.Int("threshold", tightest),
	)
	return nil
}

// crossed returns thresholds at or above daysLeft not yet fired, tightest first.
func (j *CertificateExpiry) crossed(c workforce.Certificate, daysLeft int) []int {
	var out []int
	for _, t := range j.thresholds {
		if daysLeft <= t && !c.Notified(t) {
			out = append(out, t)
		}
	}
	return out
}

// DaysLeft is the number of started days until expires.
func DaysLeft(expires, now time.Time) int {
	return int(math.Ceil(expires.Sub(now).Hours() / 24))
}
