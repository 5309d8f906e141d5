package jobs_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	authcontext "github.com/nasermirzaei89/agora/authentication/context"
	"github.com/nasermirzaei89/agora/authorization"
	"github.com/nasermirzaei89/agora/database/sqlite3"
	"github.com/nasermirzaei89/agora/jobs"
	"github.com/nasermirzaei89/agora/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	events []notifications.ApplicationStatusEvent
	err    error
}

func (n *recordingNotifier) NotifyApplicationStatus(_ context.Context, event notifications.ApplicationStatusEvent) error {
	n.events = append(n.events, event)

	return n.err
}

func as(userID string, role authcontext.Role) context.Context {
	return authcontext.WithPrincipal(context.Background(), userID, role)
}

func newService(t *testing.T, notifier jobs.Notifier) *jobs.Service {
	t.Helper()

	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"

	db, err := sqlite3.NewDB(ctx, dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	err = sqlite3.MigrateUp(ctx, db)
	require.NoError(t, err)

	return jobs.NewService(sqlite3.NewJobRepository(db), sqlite3.NewApplicationRepository(db), notifier)
}

func TestService_CreateJob(t *testing.T) {
	svc := newService(t, nil)

	tests := []struct {
		name    string
		ctx     context.Context
		wantErr bool
	}{
		{name: "company", ctx: as("acme", authcontext.RoleCompany)},
		{name: "applicant", ctx: as("ada", authcontext.RoleApplicant), wantErr: true},
		{name: "admin", ctx: as("root", authcontext.RoleAdmin), wantErr: true},
		{name: "anonymous", ctx: context.Background(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := svc.CreateJob(tt.ctx, jobs.CreateJobRequest{Title: "Gopher"})
			if tt.wantErr {
				forbiddenErr := &authorization.ForbiddenError{}
				require.ErrorAs(t, err, &forbiddenErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "Gopher", job.Title)
		})
	}
}

func TestService_Apply(t *testing.T) {
	svc := newService(t, nil)

	job, err := svc.CreateJob(as("acme", authcontext.RoleCompany), jobs.CreateJobRequest{Title: "Gopher"})
	require.NoError(t, err)

	application, err := svc.Apply(as("ada", authcontext.RoleApplicant), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, application.Status)

	_, err = svc.Apply(as("ada", authcontext.RoleApplicant), job.ID)
	alreadyErr := &jobs.AlreadyAppliedError{}
	require.ErrorAs(t, err, &alreadyErr)

	_, err = svc.Apply(as("ada", authcontext.RoleApplicant), "missing")
	notFoundErr := &jobs.JobNotFoundError{}
	require.ErrorAs(t, err, &notFoundErr)

	_, err = svc.ListApplications(as("other", authcontext.RoleCompany), job.ID)
	forbiddenErr := &authorization.ForbiddenError{}
	require.ErrorAs(t, err, &forbiddenErr)

	applications, err := svc.ListApplications(as("root", authcontext.RoleAdmin), job.ID)
	require.NoError(t, err)
	assert.Len(t, applications, 1)
}

func TestService_SetApplicationStatus(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := newService(t, notifier)

	job, err := svc.CreateJob(as("acme", authcontext.RoleCompany), jobs.CreateJobRequest{Title: "Gopher"})
	require.NoError(t, err)

	application, err := svc.Apply(as("ada", authcontext.RoleApplicant), job.ID)
	require.NoError(t, err)

	_, err = svc.SetApplicationStatus(as("ada", authcontext.RoleApplicant), application.ID, jobs.StatusAccepted)
	forbiddenErr := &authorization.ForbiddenError{}
	require.ErrorAs(t, err, &forbiddenErr)

	_, err = svc.SetApplicationStatus(as("acme", authcontext.RoleCompany), application.ID, "hired")
	invalidErr := &jobs.InvalidStatusError{}
	require.ErrorAs(t, err, &invalidErr)

	_, err = svc.SetApplicationStatus(as("acme", authcontext.RoleCompany), application.ID, jobs.StatusPending)
	unchangedErr := &jobs.StatusUnchangedError{}
	require.ErrorAs(t, err, &unchangedErr)

	updated, err := svc.SetApplicationStatus(as("acme", authcontext.RoleCompany), application.ID, jobs.StatusReviewing)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusReviewing, updated.Status)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, notifications.ApplicationStatusEvent{
		ApplicantID: "ada",
		JobID:       job.ID,
		JobTitle:    "Gopher",
		Status:      "reviewing",
	}, notifier.events[0])

	t.Run("notify failure does not fail the update", func(t *testing.T) {
		notifier.err = errors.New("boom")

		updated, err := svc.SetApplicationStatus(as("acme", authcontext.RoleCompany), application.ID, jobs.StatusAccepted)
		require.NoError(t, err)
		assert.Equal(t, jobs.StatusAccepted, updated.Status)
	})
}
