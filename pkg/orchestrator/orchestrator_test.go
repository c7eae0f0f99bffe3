package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/crewnotify/pkg/audit"
	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/events"
	"github.com/dmitrymomot/crewnotify/pkg/notifications"
	"github.com/dmitrymomot/crewnotify/pkg/orchestrator"
	"github.com/dmitrymomot/crewnotify/pkg/workforce"
)

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

type nopEnqueuer struct {
	mu  sync.Mutex
	ids []string
}

func (e *nopEnqueuer) Enqueue(_ context.Context, id string, _ time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, id)
	return nil
}

type env struct {
	store    *workforce.MemoryStore
	records  *notifications.MemoryStorage
	auditLog *audit.MemoryStorage
	orch     *orchestrator.Orchestrator
}

func newEnv(t *testing.T) *env {
	t.Helper()

	clock := func() time.Time { return monday.Add(10 * time.Hour) }
	e := &env{
		store:    workforce.NewMemoryStore(),
		records:  notifications.NewMemoryStorage(),
		auditLog: audit.NewMemoryStorage(),
	}
	auditor := audit.NewLogger(e.auditLog, audit.WithClock(clock))
	fanout := notifications.NewFanout(e.records, &nopEnqueuer{},
		notifications.WithAuditor(auditor),
		notifications.WithFanoutClock(clock),
	)
	e.orch = orchestrator.New(e.store, fanout, auditor, orchestrator.WithClock(clock))

	ctx := context.Background()
	for _, u := range []workforce.User{
		{ID: "admin-1", Name: "Ann", Role: workforce.RoleAdmin, Preference: channel.Preference{Email: "ann@example.com"}},
		{ID: "admin-2", Name: "Bob", Role: workforce.RoleAdmin, Preference: channel.Preference{Email: "bob@example.com"}},
		{ID: "wh-1", Name: "Wes", Role: workforce.RoleWarehouse, Preference: channel.Preference{Phone: "+15550002222"}},
		{ID: "foreman-1", Name: "Fay", Role: workforce.RoleForeman, Preference: channel.Preference{Email: "fay@example.com"}},
	} {
		require.NoError(t, e.store.SaveUser(ctx, u))
	}
	return e
}

func (e *env) recordsFor(t *testing.T, template string) []notifications.Record {
	t.Helper()

	recs, err := e.records.List(context.Background(), notifications.Filter{TemplateKey: template})
	require.NoError(t, err)
	return recs
}

func (e *env) audits(t *testing.T, action string) []audit.Entry {
	t.Helper()

	entries, err := e.auditLog.Query(context.Background(), audit.Criteria{Action: action})
	require.NoError(t, err)
	return entries
}

func validSubmission() workforce.Submission {
	return workforce.Submission{
		ID:        "sub-1",
		JobID:     "job-1",
		JobName:   "Harbor Rd",
		Foreman:   "Fay",
		ForemanID: "foreman-1",
		Date:      monday,
		Status:    workforce.StatusSubmitted,
		Employees: []workforce.Employee{
			{Name: "Sam", StartTime: "06:00", EndTime: "14:30"},
			{Name: "Lee", StartTime: "22:00", EndTime: "02:00"},
		},
		CreatedAt: monday.Add(9 * time.Hour),
	}
}

func created(id string, sub workforce.Submission) events.SubmissionEvent {
	return events.SubmissionEvent{ID: id, Op: events.OpCreate, After: sub}
}

func updated(id string, before, after workforce.Submission) events.SubmissionEvent {
	return events.SubmissionEvent{ID: id, Op: events.OpUpdate, Before: &before, After: after}
}

func TestHandleSubmission_Created(t *testing.T) {
	t.Parallel()

	t.Run("notifies every admin", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		require.NoError(t, e.orch.HandleSubmission(context.Background(), created("evt-1", validSubmission())))

		recs := e.recordsFor(t, orchestrator.TemplateNeedsApproval)
		require.Len(t, recs, 2)
		users := []string{recs[0].UserID, recs[1].UserID}
		assert.ElementsMatch(t, []string{"admin-1", "admin-2"}, users)
		for _, r := range recs {
			assert.Equal(t, notifications.StatePending, r.State)
			assert.Equal(t, channel.Email, r.Channel)
			assert.Equal(t, channel.CategoryTimesheet, r.Category)
			assert.Equal(t, "Harbor Rd", r.Payload["jobName"])
			assert.Equal(t, "2024-03-04", r.Payload["date"])
		}

		entries := e.audits(t, orchestrator.ActionSubmissionCreateSuccess)
		require.Len(t, entries, 1)
		assert.EqualValues(t, 2, entries[0].Metadata["notified"])
	})

	t.Run("stores computed hours", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		require.NoError(t, e.orch.HandleSubmission(context.Background(), created("evt-1", validSubmission())))

		sub, err := e.store.GetSubmission(context.Background(), "sub-1")
		require.NoError(t, err)
		require.Len(t, sub.Employees, 2)
		assert.Equal(t, 8.0, sub.Employees[0].TotalHours)
		assert.Equal(t, 8.0, sub.Employees[0].RegularHours)
		assert.Equal(t, 0.0, sub.Employees[0].OvertimeHours)
		assert.Equal(t, 3.5, sub.Employees[1].TotalHours)
		assert.Equal(t, 3.5, sub.Employees[1].OvertimeHours)
		assert.NotNil(t, sub.SubmittedAt)
	})

	t.Run("redelivery creates no duplicates", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ev := created("evt-1", validSubmission())
		require.NoError(t, e.orch.HandleSubmission(context.Background(), ev))
		first, err := e.store.GetSubmission(context.Background(), "sub-1")
		require.NoError(t, err)

		require.NoError(t, e.orch.HandleSubmission(context.Background(), ev))
		second, err := e.store.GetSubmission(context.Background(), "sub-1")
		require.NoError(t, err)

		assert.Len(t, e.recordsFor(t, orchestrator.TemplateNeedsApproval), 2)
		assert.Equal(t, first.Employees, second.Employees)
	})

	t.Run("empty status defaults to submitted", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		sub := validSubmission()
		sub.Status = ""
		require.NoError(t, e.orch.HandleSubmission(context.Background(), created("evt-1", sub)))

		got, err := e.store.GetSubmission(context.Background(), "sub-1")
		require.NoError(t, err)
		assert.Equal(t, workforce.StatusSubmitted, got.Status)
		assert.Len(t, e.recordsFor(t, orchestrator.TemplateNeedsApproval), 2)
	})

	t.Run("draft notifies nobody", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		sub := validSubmission()
		sub.Status = workforce.StatusDraft
		require.NoError(t, e.orch.HandleSubmission(context.Background(), created("evt-1", sub)))

		assert.Empty(t, e.recordsFor(t, orchestrator.TemplateNeedsApproval))
		assert.Empty(t, e.audits(t, orchestrator.ActionSubmissionCreateSuccess))
	})

	tests := []struct {
		name   string
		mutate func(*workforce.Submission)
		reason string
	}{
		{"missing job", func(s *workforce.Submission) { s.JobID = "" }, "job"},
		{"missing foreman", func(s *workforce.Submission) { s.Foreman, s.ForemanID = "", "" }, "foreman"},
		{"bad shift time", func(s *workforce.Submission) { s.Employees[0].EndTime = "25:99" }, "25:99"},
	}
	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEnv(t)
			sub := validSubmission()
			tt.mutate(&sub)
			require.NoError(t, e.orch.HandleSubmission(context.Background(), created("evt-1", sub)))

			got, err := e.store.GetSubmission(context.Background(), "sub-1")
			require.NoError(t, err)
			assert.Equal(t, workforce.StatusRejected, got.Status)
			require.NotEmpty(t, got.Comments)
			last := got.Comments[len(got.Comments)-1]
			assert.True(t, last.System)
			assert.Contains(t, last.Text, "Automatically rejected: ")
			assert.Contains(t, last.Text, tt.reason)

			entries := e.audits(t, orchestrator.ActionSubmissionCreateFail)
			require.Len(t, entries, 1)
			assert.Equal(t, audit.ResultFailure, entries[0].Result)
			assert.Contains(t, entries[0].Metadata["reason"], tt.reason)

			recs, err := e.records.List(context.Background(), notifications.Filter{})
			require.NoError(t, err)
			assert.Empty(t, recs)
		})
	}
}

func TestHandleSubmission_Updated(t *testing.T) {
	t.Parallel()

	t.Run("approval notifies foreman", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		before := validSubmission()
		require.NoError(t, e.orch.HandleSubmission(context.Background(), created("evt-1", before)))

		after := before.Clone()
		after.Status = workforce.StatusApproved
		require.NoError(t, e.orch.HandleSubmission(context.Background(), updated("evt-2", before, after)))

		recs := e.recordsFor(t, orchestrator.TemplateApproved)
		require.Len(t, recs, 1)
		assert.Equal(t, "foreman-1", recs[0].UserID)
		assert.Equal(t, channel.Email, recs[0].Channel)
		assert.Equal(t, notifications.StatePending, recs[0].State)

		entries := e.audits(t, orchestrator.ActionSubmissionStatusChange)
		require.Len(t, entries, 1)
		assert.Equal(t, "Submitted", entries[0].Metadata["from"])
		assert.Equal(t, "Approved", entries[0].Metadata["to"])
	})

	t.Run("rejection carries the last comment", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		before := validSubmission()
		after := before.Clone()
		after.Status = workforce.StatusRejected
		after.Comments = append(after.Comments, workforce.Comment{Author: "Ann", Text: "Wrong job code"})
		require.NoError(t, e.orch.HandleSubmission(context.Background(), updated("evt-2", before, after)))

		recs := e.recordsFor(t, orchestrator.TemplateRejected)
		require.Len(t, recs, 1)
		assert.Equal(t, "Wrong job code", recs[0].Payload["comment"])
	})

	t.Run("validation rejection write-back notifies nobody", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		ctx := context.Background()
		before := validSubmission()
		before.Employees[0].EndTime = "25:99"
		require.NoError(t, e.orch.HandleSubmission(ctx, created("evt-1", before)))

		after, err := e.store.GetSubmission(ctx, "sub-1")
		require.NoError(t, err)
		require.Equal(t, workforce.StatusRejected, after.Status)
		require.NoError(t, e.orch.HandleSubmission(ctx, updated("evt-2", before, after)))

		assert.Empty(t, e.recordsFor(t, orchestrator.TemplateRejected))
		assert.Len(t, e.audits(t, orchestrator.ActionSubmissionStatusChange), 1)
	})

	t.Run("admin rejection after a system comment still notifies", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		before := validSubmission()
		before.Comments = []workforce.Comment{{Author: "system", Text: "Automatically rejected: old", System: true}}
		after := before.Clone()
		after.Status = workforce.StatusRejected
		require.NoError(t, e.orch.HandleSubmission(context.Background(), updated("evt-2", before, after)))

		assert.Len(t, e.recordsFor(t, orchestrator.TemplateRejected), 1)
	})

	t.Run("other status changes are audited only", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		before := validSubmission()
		after := before.Clone()
		after.Status = workforce.StatusFlagged
		require.NoError(t, e.orch.HandleSubmission(context.Background(), updated("evt-2", before, after)))

		assert.Len(t, e.audits(t, orchestrator.ActionSubmissionStatusChange), 1)
		recs, err := e.records.List(context.Background(), notifications.Filter{})
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("missing foreman user skips without error", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		before := validSubmission()
		before.ForemanID = "ghost"
		after := before.Clone()
		after.Status = workforce.StatusApproved
		require.NoError(t, e.orch.HandleSubmission(context.Background(), updated("evt-2", before, after)))

		assert.Empty(t, e.recordsFor(t, orchestrator.TemplateApproved))
		assert.Len(t, e.audits(t, notifications.ActionSkipped), 1)
	})

	t.Run("shift change recalculates", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		before := validSubmission()
		require.NoError(t, e.orch.HandleSubmission(context.Background(), created("evt-1", before)))
		stored, err := e.store.GetSubmission(context.Background(), "sub-1")
		require.NoError(t, err)

		after := stored.Clone()
		after.Employees[0].EndTime = "16:30"
		require.NoError(t, e.orch.HandleSubmission(context.Background(), updated("evt-2", stored, after)))

		got, err := e.store.GetSubmission(context.Background(), "sub-1")
		require.NoError(t, err)
		assert.Equal(t, 10.0, got.Employees[0].TotalHours)
		assert.Equal(t, 8.0, got.Employees[0].RegularHours)
		assert.Equal(t, 2.0, got.Employees[0].OvertimeHours)
		assert.Len(t, e.audits(t, orchestrator.ActionSubmissionRecalculate), 1)
	})

	t.Run("writing back computed hours is not a change", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		before := validSubmission()
		require.NoError(t, e.orch.HandleSubmission(context.Background(), created("evt-1", before)))
		stored, err := e.store.GetSubmission(context.Background(), "sub-1")
		require.NoError(t, err)

		require.NoError(t, e.orch.HandleSubmission(context.Background(), updated("evt-2", before, stored)))
		assert.Empty(t, e.audits(t, orchestrator.ActionSubmissionRecalculate))
		assert.Empty(t, e.audits(t, orchestrator.ActionSubmissionStatusChange))
	})

	t.Run("normalizing empty status is not a status change", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		before := validSubmission()
		before.Status = ""
		after := before.Clone()
		after.Status = workforce.StatusSubmitted
		require.NoError(t, e.orch.HandleSubmission(context.Background(), updated("evt-2", before, after)))
		assert.Empty(t, e.audits(t, orchestrator.ActionSubmissionStatusChange))
	})
}

func TestHandleMaterialOrder(t *testing.T) {
	t.Parallel()

	order := workforce.MaterialOrder{
		ID:          "mo-1",
		ForemanID:   "foreman-1",
		ForemanName: "Fay",
		JobName:     "Harbor Rd",
		Items:       []workforce.OrderItem{{Name: "Cement", Quantity: 10, Unit: "bag"}},
		Status:      workforce.OrderPending,
	}

	t.Run("new order notifies admins and warehouse", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		err := e.orch.HandleMaterialOrder(context.Background(), events.MaterialOrderEvent{ID: "evt-1", Op: events.OpCreate, After: order})
		require.NoError(t, err)

		recs := e.recordsFor(t, orchestrator.TemplateNewOrder)
		require.Len(t, recs, 3)
		for _, r := range recs {
			assert.Equal(t, channel.CategoryMaterialOrder, r.Category)
			assert.Equal(t, "1", r.Payload["itemCount"])
		}
		assert.Len(t, e.audits(t, orchestrator.ActionOrderCreate), 1)
	})

	t.Run("status update notifies foreman", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		after := order.Clone()
		after.Status = workforce.OrderDelivered
		err := e.orch.HandleMaterialOrder(context.Background(), events.MaterialOrderEvent{ID: "evt-2", Op: events.OpUpdate, Before: &order, After: after})
		require.NoError(t, err)

		recs := e.recordsFor(t, orchestrator.TemplateOrderStatus)
		require.Len(t, recs, 1)
		assert.Equal(t, "foreman-1", recs[0].UserID)
		assert.Equal(t, "Delivered", recs[0].Payload["status"])

		entries := e.audits(t, orchestrator.ActionOrderStatusChange)
		require.Len(t, entries, 1)
		assert.Equal(t, "Pending", entries[0].Metadata["from"])
	})

	t.Run("back to pending is audited only", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		before := order.Clone()
		before.Status = workforce.OrderApproved
		err := e.orch.HandleMaterialOrder(context.Background(), events.MaterialOrderEvent{ID: "evt-2", Op: events.OpUpdate, Before: &before, After: order})
		require.NoError(t, err)

		assert.Empty(t, e.recordsFor(t, orchestrator.TemplateOrderStatus))
		assert.Len(t, e.audits(t, orchestrator.ActionOrderStatusChange), 1)
	})

	t.Run("unchanged status does nothing", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		err := e.orch.HandleMaterialOrder(context.Background(), events.MaterialOrderEvent{ID: "evt-2", Op: events.OpUpdate, Before: &order, After: order})
		require.NoError(t, err)
		assert.Empty(t, e.audits(t, orchestrator.ActionOrderStatusChange))
	})
}

type failingUsers struct {
	*workforce.MemoryStore
}

func (failingUsers) ListUsersByRole(context.Context, ...workforce.Role) ([]workforce.User, error) {
	return nil, errors.New("connection reset")
}

func TestHandleSubmission_RecipientFailureIsRetryable(t *testing.T) {
	t.Parallel()

	store := failingUsers{workforce.NewMemoryStore()}
	records := notifications.NewMemoryStorage()
	auditor := audit.NewLogger(audit.NewMemoryStorage())
	orch := orchestrator.New(store, notifications.NewFanout(records, &nopEnqueuer{}), auditor)

	err := orch.HandleSubmission(context.Background(), created("evt-1", validSubmission()))
	assert.ErrorIs(t, err, orchestrator.ErrRecipients)

	sub, getErr := store.GetSubmission(context.Background(), "sub-1")
	require.NoError(t, getErr)
	assert.Equal(t, 8.0, sub.Employees[0].TotalHours, "recalculation stands")
}

func TestRegister(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	cfg := events.DefaultConfig()
	cfg.RedeliveryBackoff = time.Millisecond
	bus := events.NewBus(events.WithConfig(cfg))
	e.orch.Register(bus)
	require.NoError(t, bus.Start(context.Background()))

	require.NoError(t, bus.Publish(context.Background(), created("evt-1", validSubmission())))
	require.NoError(t, bus.Stop())

	assert.Len(t, e.recordsFor(t, orchestrator.TemplateNeedsApproval), 2)
}
