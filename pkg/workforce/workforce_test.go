package workforce_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/crewnotify/pkg/hours"
	"github.com/dmitrymomot/crewnotify/pkg/workforce"
)

func TestSubmission_Validate(t *testing.T) {
	t.Parallel()

	valid := workforce.Submission{
		ID:      "s1",
		JobID:   "job-1",
		Foreman: "Sam",
		Employees: []workforce.Employee{
			{Name: "Ana", StartTime: "06:00", EndTime: "14:30"},
		},
	}

	tests := []struct {
		name    string
		mutate  func(*workforce.Submission)
		wantErr error
	}{
		{name: "valid", mutate: func(*workforce.Submission) {}},
		{name: "foreman id only", mutate: func(s *workforce.Submission) { s.Foreman = ""; s.ForemanID = "u-1" }},
		{name: "missing job", mutate: func(s *workforce.Submission) { s.JobID = "" }, wantErr: workforce.ErrMissingReference},
		{name: "missing foreman", mutate: func(s *workforce.Submission) { s.Foreman = "" }, wantErr: workforce.ErrMissingReference},
		{name: "bad start", mutate: func(s *workforce.Submission) { s.Employees[0].StartTime = "6am" }, wantErr: workforce.ErrInvalidShiftTime},
		{name: "bad end", mutate: func(s *workforce.Submission) { s.Employees[0].EndTime = "25:00" }, wantErr: workforce.ErrInvalidShiftTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sub := valid.Clone()
			tt.mutate(&sub)
			err := sub.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestShiftsChanged(t *testing.T) {
	t.Parallel()

	before := []workforce.Employee{{Name: "Ana", StartTime: "06:00", EndTime: "14:30"}}

	computed := []workforce.Employee{before[0].WithBreakdown(hours.Breakdown{Total: 8, Regular: 8})}
	assert.False(t, workforce.ShiftsChanged(before, computed), "derived fields are ignored")

	moved := []workforce.Employee{{Name: "Ana", StartTime: "07:00", EndTime: "14:30"}}
	assert.True(t, workforce.ShiftsChanged(before, moved))

	assert.True(t, workforce.ShiftsChanged(before, nil))
}

func TestSubmission_ReminderDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sub := workforce.Submission{Status: workforce.StatusDraft, CreatedAt: now.Add(-25 * time.Hour)}

	assert.True(t, sub.ReminderDue(now, 24*time.Hour))
	assert.False(t, sub.ReminderDue(now, 48*time.Hour))

	reminded := sub.Clone()
	reminded.RemindedAt = &now
	assert.False(t, reminded.ReminderDue(now, 24*time.Hour))

	submitted := sub.Clone()
	submitted.Status = workforce.StatusSubmitted
	assert.False(t, submitted.ReminderDue(now, 24*time.Hour))
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("submission round trip is isolated from caller", func(t *testing.T) {
		t.Parallel()

		store := workforce.NewMemoryStore()
		sub := workforce.Submission{ID: "s1", Employees: []workforce.Employee{{Name: "Ana"}}}
		require.NoError(t, store.SaveSubmission(ctx, sub))

		sub.Employees[0].Name = "changed"
		got, err := store.GetSubmission(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "Ana", got.Employees[0].Name)

		_, err = store.GetSubmission(ctx, "missing")
		assert.ErrorIs(t, err, workforce.ErrNotFound)
		assert.ErrorIs(t, store.SaveSubmission(ctx, workforce.Submission{}), workforce.ErrMissingID)
	})

	t.Run("mark reminded is conditional", func(t *testing.T) {
		t.Parallel()

		store := workforce.NewMemoryStore()
		now := time.Now()
		require.NoError(t, store.SaveSubmission(ctx, workforce.Submission{
			ID: "s1", Status: workforce.StatusDraft, CreatedAt: now.Add(-48 * time.Hour),
		}))

		subs, err := store.ListReminderCandidates(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		require.Len(t, subs, 1)

		ok, err := store.MarkReminded(ctx, "s1", now)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.MarkReminded(ctx, "s1", now)
		require.NoError(t, err)
		assert.False(t, ok)

		subs, err = store.ListReminderCandidates(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, subs)
	})

	t.Run("users by role", func(t *testing.T) {
		t.Parallel()

		store := workforce.NewMemoryStore()
		for _, u := range []workforce.User{
			{ID: "u3", Role: workforce.RoleWarehouse},
			{ID: "u1", Role: workforce.RoleAdmin},
			{ID: "u2", Role: workforce.RoleForeman},
		} {
			require.NoError(t, store.SaveUser(ctx, u))
		}

		users, err := store.ListUsersByRole(ctx, workforce.RoleAdmin, workforce.RoleWarehouse)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "u1", users[0].ID)
		assert.Equal(t, "u3", users[1].ID)
	})

	t.Run("counts", func(t *testing.T) {
		t.Parallel()

		store := workforce.NewMemoryStore()
		require.NoError(t, store.SaveSubmission(ctx, workforce.Submission{ID: "s1", Status: workforce.StatusSubmitted}))
		require.NoError(t, store.SaveSubmission(ctx, workforce.Submission{ID: "s2", Status: workforce.StatusApproved}))
		require.NoError(t, store.SaveMaterialOrder(ctx, workforce.MaterialOrder{ID: "o1", Status: workforce.OrderPending}))

		n, err := store.CountSubmissions(ctx, workforce.StatusSubmitted)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = store.CountMaterialOrders(ctx, workforce.OrderPending)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("certificate thresholds", func(t *testing.T) {
		t.Parallel()

		store := workforce.NewMemoryStore()
		now := time.Now()
		require.NoError(t, store.SaveCertificate(ctx, workforce.Certificate{ID: "c1", Expires: now.Add(10 * 24 * time.Hour)}))
		require.NoError(t, store.SaveCertificate(ctx, workforce.Certificate{ID: "c2", Expires: now.Add(90 * 24 * time.Hour)}))

		certs, err := store.ListExpiringCertificates(ctx, now, now.Add(30*24*time.Hour))
		require.NoError(t, err)
		require.Len(t, certs, 1)
		assert.Equal(t, "c1", certs[0].ID)

		require.NoError(t, store.AddNotifiedThresholds(ctx, "c1", 30, 14))
		require.NoError(t, store.AddNotifiedThresholds(ctx, "c1", 14))

		certs, err = store.ListExpiringCertificates(ctx, now, now.Add(30*24*time.Hour))
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{30, 14}, certs[0].NotifiedThresholds)
		assert.True(t, certs[0].Notified(14))
		assert.False(t, certs[0].Notified(7))
	})
}
