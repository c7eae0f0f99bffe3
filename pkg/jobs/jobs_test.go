package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/jobs"
	"github.com/dmitrymomot/crewnotify/pkg/notifications"
	"github.com/dmitrymomot/crewnotify/pkg/scheduler"
	"github.com/dmitrymomot/crewnotify/pkg/workforce"
)

// Monday morning.
var now = time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)

type recordingEnqueuer struct {
	mu  sync.Mutex
	ids []string
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, id string, _ time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, id)
	return nil
}

func (e *recordingEnqueuer) enqueued() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ids...)
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, ...notifications.Intent) (int, error) {
	return 0, errors.New("storage down")
}

type fixture struct {
	store    *workforce.MemoryStore
	records  *notifications.MemoryStorage
	enqueuer *recordingEnqueuer
	fanout   *notifications.Fanout
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := func() time.Time { return now }
	e := &fixture{
		store:    workforce.NewMemoryStore(),
		records:  notifications.NewMemoryStorage(notifications.WithMemoryClock(clock)),
		enqueuer: &recordingEnqueuer{},
	}
	e.fanout = notifications.NewFanout(e.records, e.enqueuer, notifications.WithFanoutClock(clock))

	ctx := context.Background()
	for _, u := range []workforce.User{
		{ID: "admin-1", Name: "Ann", Role: workforce.RoleAdmin, Preference: channel.Preference{Email: "ann@example.com"}},
		{ID: "admin-2", Name: "Bob", Role: workforce.RoleAdmin, Preference: channel.Preference{Phone: "+15550001111"}},
		{ID: "foreman-1", Name: "Fred", Role: workforce.RoleForeman, Preference: channel.Preference{Email: "fred@example.com"}},
		{ID: "emp-1", Name: "Eve", Role: workforce.RoleEmployee, Preference: channel.Preference{Email: "eve@example.com"}},
	} {
		require.NoError(t, e.store.SaveUser(ctx, u))
	}
	return e
}

func (e *fixture) recordsFor(t *testing.T, template string) []notifications.Record {
	t.Helper()

	recs, err := e.records.List(context.Background(), notifications.Filter{TemplateKey: template})
	require.NoError(t, err)
	return recs
}

func TestReminderScan(t *testing.T) {
	t.Parallel()

	t.Run("reminds foreman once about an old draft", func(t *testing.T) {
		t.Parallel()

		e := newFixture(t)
		ctx := context.Background()
		require.NoError(t, e.store.SaveSubmission(ctx, workforce.Submission{
			ID: "sub-1", JobID: "job-1", JobName: "Harbor Rd", ForemanID: "foreman-1",
			Date: now.AddDate(0, 0, -2), Status: workforce.StatusDraft, CreatedAt: now.Add(-25 * time.Hour),
		}))
		require.NoError(t, e.store.SaveSubmission(ctx, workforce.Submission{
			ID: "sub-2", JobID: "job-1", ForemanID: "foreman-1",
			Status: workforce.StatusDraft, CreatedAt: now.Add(-time.Hour),
		}))

		job := jobs.NewReminderScan(e.store, e.fanout, 24*time.Hour)
		assert.Equal(t, jobs.NameReminderScan, job.Name())
		require.NoError(t, job.Run(ctx, now))

		recs := e.recordsFor(t, jobs.TemplateReminder)
		require.Len(t, recs, 1)
		assert.Equal(t, "foreman-1", recs[0].UserID)
		assert.Equal(t, channel.Email, recs[0].Channel)
		assert.Equal(t, channel.CategoryReminder, recs[0].Category)
		assert.Equal(t, "Harbor Rd", recs[0].Payload["jobName"])
		assert.Equal(t, "2024-03-02", recs[0].Payload["date"])
		assert.Equal(t, "Fred", recs[0].Payload["recipientName"])

		sub, err := e.store.GetSubmission(ctx, "sub-1")
		require.NoError(t, err)
		require.NotNil(t, sub.RemindedAt)
		assert.True(t, sub.RemindedAt.Equal(now))

		fresh, err := e.store.GetSubmission(ctx, "sub-2")
		require.NoError(t, err)
		assert.Nil(t, fresh.RemindedAt)

		require.NoError(t, job.Run(ctx, now.Add(5*time.Minute)))
		assert.Len(t, e.recordsFor(t, jobs.TemplateReminder), 1)
	})

	t.Run("dispatch failure leaves draft for next run", func(t *testing.T) {
		t.Parallel()

		e := newFixture(t)
		ctx := context.Background()
		require.NoError(t, e.store.SaveSubmission(ctx, workforce.Submission{
			ID: "sub-1", JobID: "job-1", ForemanID: "foreman-1",
			Status: workforce.StatusDraft, CreatedAt: now.Add(-48 * time.Hour),
		}))

		err := jobs.NewReminderScan(e.store, failingDispatcher{}, 24*time.Hour).Run(ctx, now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sub-1")

		sub, err := e.store.GetSubmission(ctx, "sub-1")
		require.NoError(t, err)
		assert.Nil(t, sub.RemindedAt)
	})

	t.Run("draft without foreman is marked without notification", func(t *testing.T) {
		t.Parallel()

		e := newFixture(t)
		ctx := context.Background()
		require.NoError(t, e.store.SaveSubmission(ctx, workforce.Submission{
			ID: "sub-1", JobID: "job-1", Foreman: "Fred",
			Status: workforce.StatusDraft, CreatedAt: now.Add(-48 * time.Hour),
		}))

		require.NoError(t, jobs.NewReminderScan(e.store, e.fanout, 24*time.Hour).Run(ctx, now))
		assert.Empty(t, e.recordsFor(t, jobs.TemplateReminder))

		sub, err := e.store.GetSubmission(ctx, "sub-1")
		require.NoError(t, err)
		assert.NotNil(t, sub.RemindedAt)
	})
}

func TestAdminDigest(t *testing.T) {
	t.Parallel()

	t.Run("one digest per admin per day", func(t *testing.T) {
		t.Parallel()

		e := newFixture(t)
		ctx := context.Background()
		for _, id := range []string{"sub-1", "sub-2"} {
			require.NoError(t, e.store.SaveSubmission(ctx, workforce.Submission{ID: id, JobID: "job-1", ForemanID: "foreman-1", Status: workforce.StatusSubmitted}))
		}
		require.NoError(t, e.store.SaveSubmission(ctx, workforce.Submission{ID: "sub-3", JobID: "job-1", ForemanID: "foreman-1", Status: workforce.StatusApproved}))
		require.NoError(t, e.store.SaveMaterialOrder(ctx, workforce.MaterialOrder{ID: "mo-1", Status: workforce.OrderPending}))

		job := jobs.NewAdminDigest(e.store, e.fanout)
		require.NoError(t, job.Run(ctx, now))

		recs := e.recordsFor(t, jobs.TemplateDigest)
		require.Len(t, recs, 2)
		users := []string{recs[0].UserID, recs[1].UserID}
		assert.ElementsMatch(t, []string{"admin-1", "admin-2"}, users)
		for _, r := range recs {
			assert.Equal(t, "2", r.Payload["pendingSubmissions"])
			assert.Equal(t, "1", r.Payload["pendingOrders"])
			assert.Equal(t, "3", r.Payload["total"])
		}

		require.NoError(t, job.Run(ctx, now.Add(time.Hour)))
		assert.Len(t, e.recordsFor(t, jobs.TemplateDigest), 2)

		require.NoError(t, job.Run(ctx, now.AddDate(0, 0, 1)))
		assert.Len(t, e.recordsFor(t, jobs.TemplateDigest), 4)
	})

	t.Run("nothing pending sends nothing", func(t *testing.T) {
		t.Parallel()

		e := newFixture(t)
		require.NoError(t, jobs.NewAdminDigest(e.store, e.fanout).Run(context.Background(), now))
		assert.Empty(t, e.recordsFor(t, jobs.TemplateDigest))
	})
}

func TestCertificateExpiry(t *testing.T) {
	t.Parallel()

	t.Run("tightest crossed threshold fires once", func(t *testing.T) {
		t.Parallel()

		e := newFixture(t)
		ctx := context.Background()
		require.NoError(t, e.store.SaveCertificate(ctx, workforce.Certificate{
			ID: "cert-1", HolderID: "emp-1", Name: "Forklift", Expires: now.AddDate(0, 0, 10),
		}))

		job := jobs.NewCertificateExpiry(e.store, e.fanout, nil)
		require.NoError(t, job.Run(ctx, now))

		recs := e.recordsFor(t, jobs.TemplateCertificateExpiry)
		require.Len(t, recs, 1)
		assert.Equal(t, "emp-1", recs[0].UserID)
		assert.Equal(t, "Forklift", recs[0].Payload["certificate"])
		assert.Equal(t, "10", recs[0].Payload["daysLeft"])
		assert.Equal(t, "14", recs[0].Payload["threshold"])
		assert.Equal(t, "2024-03-14", recs[0].Payload["expiresOn"])

		certs, err := e.store.ListExpiringCertificates(ctx, now, now.AddDate(0, 0, 30))
		require.NoError(t, err)
		require.Len(t, certs, 1)
		assert.ElementsMatch(t, []int{14, 30}, certs[0].NotifiedThresholds)

		require.NoError(t, job.Run(ctx, now.AddDate(0, 0, 1)))
		assert.Len(t, e.recordsFor(t, jobs.TemplateCertificateExpiry), 1)

		require.NoError(t, job.Run(ctx, now.AddDate(0, 0, 4)))
		recs = e.recordsFor(t, jobs.TemplateCertificateExpiry)
		require.Len(t, recs, 2)
		fired := []string{recs[0].Payload["threshold"], recs[1].Payload["threshold"]}
		assert.ElementsMatch(t, []string{"14", "7"}, fired)
	})

	t.Run("outside the widest threshold", func(t *testing.T) {
		t.Parallel()

		e := newFixture(t)
		ctx := context.Background()
		require.NoError(t, e.store.SaveCertificate(ctx, workforce.Certificate{
			ID: "cert-1", HolderID: "emp-1", Name: "Forklift", Expires: now.AddDate(0, 0, 40),
		}))
		require.NoError(t, jobs.NewCertificateExpiry(e.store, e.fanout, []int{7, 30, 14}).Run(ctx, now))
		assert.Empty(t, e.recordsFor(t, jobs.TemplateCertificateExpiry))
	})

	t.Run("failed dispatch does not record thresholds", func(t *testing.T) {
		t.Parallel()

		e := newFixture(t)
		ctx := context.Background()
		require.NoError(t, e.store.SaveCertificate(ctx, workforce.Certificate{
			ID: "cert-1", HolderID: "emp-1", Name: "Forklift", Expires: now.AddDate(0, 0, 3),
		}))
		require.Error(t, jobs.NewCertificateExpiry(e.store, failingDispatcher{}, nil).Run(ctx, now))

		certs, err := e.store.ListExpiringCertificates(ctx, now, now.AddDate(0, 0, 30))
		require.NoError(t, err)
		require.Len(t, certs, 1)
		assert.Empty(t, certs[0].NotifiedThresholds)
	})
}

func TestDaysLeft(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		expires time.Time
		want    int
	}{
		{"exact days", now.AddDate(0, 0, 7), 7},
		{"partial day rounds up", now.Add(6*24*time.Hour + time.Hour), 7},
		{"less than a day", now.Add(time.Hour), 1},
		{"expired", now.Add(-48 * time.Hour), -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, jobs.DaysLeft(tt.expires, now))
		})
	}
}

func TestPendingSweep(t *testing.T) {
	t.Parallel()

	e := newFixture(t)
	ctx := context.Background()
	for id, next := range map[string]time.Time{
		"overdue": now.Add(-5 * time.Minute),
		"recent":  now.Add(-time.Minute),
		"future":  now.Add(time.Hour),
	} {
		require.NoError(t, e.records.Create(ctx, notifications.Record{
			ID: id, UserID: "emp-1", TemplateKey: "T", Channel: channel.Email,
			State: notifications.StatePending, NextAttemptAt: next, CreatedAt: now,
		}))
	}
	require.NoError(t, e.records.Create(ctx, notifications.Record{
		ID: "done", UserID: "emp-1", TemplateKey: "T", Channel: channel.Email,
		State: notifications.StateSent, NextAttemptAt: now.Add(-time.Hour), CreatedAt: now,
	}))

	job := jobs.NewPendingSweep(e.records, e.enqueuer, 2*time.Minute, 10)
	require.NoError(t, job.Run(ctx, now))
	assert.Equal(t, []string{"overdue"}, e.enqueuer.enqueued())
}

func TestRegister(t *testing.T) {
	t.Parallel()

	e := newFixture(t)
	s, err := scheduler.New(scheduler.NewMemoryLocker(nil))
	require.NoError(t, err)

	deps := jobs.Deps{Store: e.store, Records: e.records, Fanout: e.fanout, Enqueuer: e.enqueuer}
	require.NoError(t, jobs.Register(s, deps, jobs.DefaultConfig(), time.UTC))
	assert.ElementsMatch(t, []string{
		jobs.NameReminderScan,
		jobs.NameAdminDigest,
		jobs.NameCertificateExpiry,
		jobs.NamePendingSweep,
	}, s.Jobs())

	assert.Error(t, jobs.Register(s, deps, jobs.DefaultConfig(), time.UTC))
}

func TestConfig(t *testing.T) {
	t.Parallel()

	cfg, err := env.ParseAs[jobs.Config]()
	require.NoError(t, err)
	assert.Equal(t, jobs.DefaultConfig(), cfg)
}
