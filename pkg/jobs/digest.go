package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/notifications"
	"github.com/dmitrymomot/crewnotify/pkg/workforce"
)

// AdminDigest sends admins a morning summary of items awaiting them.
type AdminDigest struct {
	base
	store  workforce.Store
	fanout Dispatcher
}

// NewAdminDigest creates the job.
func NewAdminDigest(store workforce.Store, fanout Dispatcher, opts ...Option) *AdminDigest {
	return &AdminDigest{base: newBase(NameAdminDigest, opts), store: store, fanout: fanout}
}

func (j *AdminDigest) Name() string { return NameAdminDigest }

// Run counts submitted timesheets and pending material orders and, when there
// is anything to report, sends one digest per admin for the day.
func (j *AdminDigest) Run(ctx context.Context, now time.Time) error {
	subs, err := j.store.CountSubmissions(ctx, workforce.StatusSubmitted)
	if err != nil {
		return fmt.Errorf("count submissions: %w", err)
	}
	orders, err := j.store.CountMaterialOrders(ctx, workforce.OrderPending)
	if err != nil {
		return fmt.Errorf("count material orders: %w", err)
	}
	total := subs + orders
	if total == 0 {
		j.logger.LogAttrs(ctx, slog.LevelDebug, "nothing pending, no digest")
		return nil
	}

	admins, err := j.store.ListUsersByRole(ctx, workforce.RoleAdmin)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	day := now.In(j.loc).Format(dateLayout)
	payload := map[string]string{
		"pendingSubmissions": strconv.Itoa(subs),
		"pendingOrders":      strconv.Itoa(orders),
		"total":              strconv.Itoa(total),
		"date":               day,
	}
	intents := make([]notifications.Intent, 0, len(admins))
	for _, a := range admins {
		intents = append(intents, j.intent(a, TemplateDigest, channel.CategoryDigest,
			notifications.DedupeKey("digest", a.ID, day), payload))
	}

	n, err := j.fanout.Dispatch(ctx, intents...)
	j.logger.LogAttrs(ctx, slog.LevelInfo, "admin digest dispatched",
		slog.Int("admins", len(admins)),
		slog.Int("records", n),
		slog.Int("pending", total),
	)
	return err
}
