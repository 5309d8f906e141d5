package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	authcontext "github.com/nasermirzaei89/agora/authentication/context"
	"github.com/nasermirzaei89/agora/authorization"
	"github.com/nasermirzaei89/agora/notifications"
	"github.com/nasermirzaei89/agora/sanitize"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Notifier interface {
	NotifyApplicationStatus(ctx context.Context, event notifications.ApplicationStatusEvent) error
}

type Service struct {
	jobRepo         JobRepository
	applicationRepo ApplicationRepository
	notifier        Notifier
}

func NewService(jobRepo JobRepository, applicationRepo ApplicationRepository, notifier Notifier) *Service {
	return &Service{
		jobRepo:         jobRepo,
		applicationRepo: applicationRepo,
		notifier:        notifier,
	}
}

type CreateJobRequest struct {
	Title       string
	Description string
}

func (svc *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckRole(principal, authcontext.RoleCompany)
	if err != nil {
		return nil, fmt.Errorf("failed to check role: %w", err)
	}

	title, err := sanitize.Required("title", req.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to sanitize title: %w", err)
	}

	job := &Job{
		ID:          uuid.NewString(),
		CompanyID:   principal.ID,
		Title:       title,
		Description: sanitize.PlainText(req.Description),
		CreatedAt:   time.Now().UTC(),
	}

	err = svc.jobRepo.Insert(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	return job, nil
}

func (svc *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	job, err := svc.jobRepo.Find(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}

	return job, nil
}

func (svc *Service) ListJobs(ctx context.Context, cursor string, limit int) ([]*Job, string, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	jobs, nextCursor, err := svc.jobRepo.List(ctx, &ListJobsParams{Cursor: cursor, Limit: min(limit, maxPageSize)})
	if err != nil {
		return nil, "", fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nextCursor, nil
}

// Apply files the caller's application. Each applicant applies once per job.
func (svc *Service) Apply(ctx context.Context, jobID string) (*Application, error) {
	principal := authorization.CurrentPrincipal(ctx)

	err := authorization.CheckRole(principal, authcontext.RoleApplicant)
	if err != nil {
		return nil, fmt.Errorf("failed to check role: %w", err)
	}

	job, err := svc.jobRepo.Find(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}

	_, err = svc.applicationRepo.FindByJobApplicant(ctx, job.ID, principal.ID)
	if err == nil {
		return nil, &AlreadyAppliedError{JobID: job.ID, ApplicantID: principal.ID}
	}

	var notFoundErr *ApplicationByJobApplicantNotFoundError
	if !errors.As(err, &notFoundErr) {
		return nil, fmt.Errorf("failed to find application: %w", err)
	}

	application := &Application{
		ID:          uuid.NewString(),
		JobID:       job.ID,
		ApplicantID: principal.ID,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	err = svc.applicationRepo.Insert(ctx, application)
	if err != nil {
		return nil, fmt.Errorf("failed to insert application: %w", err)
	}

	return application, nil
}

func (svc *Service) ListApplications(ctx context.Context, jobID string) ([]*Application, error) {
	principal := authorization.CurrentPrincipal(ctx)

	job, err := svc.jobRepo.Find(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}

	err = authorization.CheckOwnerOrAdmin(job.CompanyID, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to check ownership: %w", err)
	}

	applications, err := svc.applicationRepo.ListByJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}

	return applications, nil
}

// SetApplicationStatus moves an application to status and notifies the
// applicant. Only the company that posted the job may do so.
func (svc *Service) SetApplicationStatus(
	ctx context.Context,
	applicationID string,
	status ApplicationStatus,
) (*Application, error) {
	principal := authorization.CurrentPrincipal(ctx)

	if !status.IsValid() {
		return nil, &InvalidStatusError{Status: status}
	}

	application, err := svc.applicationRepo.Find(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find application: %w", err)
	}

	job, err := svc.jobRepo.Find(ctx, application.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}

	err = authorization.CheckOwnership(job.CompanyID, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check ownership: %w", err)
	}

	if application.Status == status {
		return nil, &StatusUnchangedError{ApplicationID: application.ID, Status: status}
	}

	timeNow := time.Now().UTC()

	application.Status = status
	application.UpdatedAt = &timeNow

	err = svc.applicationRepo.UpdateStatus(ctx, application)
	if err != nil {
		return nil, fmt.Errorf("failed to update application status: %w", err)
	}

	if svc.notifier != nil {
		err = svc.notifier.NotifyApplicationStatus(ctx, notifications.ApplicationStatusEvent{
			ApplicantID: application.ApplicantID,
			JobID:       job.ID,
			JobTitle:    job.Title,
			Status:      string(status),
		})
		if err != nil {
			slog.WarnContext(ctx, "application status updated but applicant not notified",
				"applicationId", application.ID, "error", err)
		}
	}

	return application, nil
}
