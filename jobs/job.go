package jobs

import (
	"context"
	"fmt"
	"time"
)

type Job struct {
	ID          string
	CompanyID   string
	Title       string
	Description string
	CreatedAt   time.Time
}

type ApplicationStatus string

const (
	StatusPending   ApplicationStatus = "pending"
	StatusReviewing ApplicationStatus = "reviewing"
	StatusAccepted  ApplicationStatus = "accepted"
	StatusRejected  ApplicationStatus = "rejected"
)

func (status ApplicationStatus) IsValid() bool {
	switch status {
	case StatusPending, StatusReviewing, StatusAccepted, StatusRejected:
		return true
	default:
		return false
	}
}

type Application struct {
	ID          string
	JobID       string
	ApplicantID string
	Status      ApplicationStatus
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

type JobRepository interface {
	Insert(ctx context.Context, job *Job) (err error)
	Find(ctx context.Context, jobID string) (job *Job, err error)
	List(ctx context.Context, params *ListJobsParams) (jobs []*Job, nextCursor string, err error)
}

type ListJobsParams struct {
	Cursor string
	Limit  int
}

type ApplicationRepository interface {
	Insert(ctx context.Context, application *Application) (err error)
	Find(ctx context.Context, applicationID string) (application *Application, err error)
	FindByJobApplicant(ctx context.Context, jobID, applicantID string) (application *Application, err error)
	UpdateStatus(ctx context.Context, application *Application) (err error)
	ListByJob(ctx context.Context, jobID string) (applications []*Application, err error)
}

type JobNotFoundError struct {
	ID string
}

func (err JobNotFoundError) Error() string {
	return fmt.Sprintf("job with id %q not found", err.ID)
}

func (err JobNotFoundError) NotFound() bool { return true }

type ApplicationNotFoundError struct {
	ID string
}

func (err ApplicationNotFoundError) Error() string {
	return fmt.Sprintf("application with id %q not found", err.ID)
}

func (err ApplicationNotFoundError) NotFound() bool { return true }

type ApplicationByJobApplicantNotFoundError struct {
	JobID       string
	ApplicantID string
}

func (err ApplicationByJobApplicantNotFoundError) Error() string {
	return fmt.Sprintf("application of %q for job %q not found", err.ApplicantID, err.JobID)
}

func (err ApplicationByJobApplicantNotFoundError) NotFound() bool { return true }

type AlreadyAppliedError struct {
	JobID       string
	ApplicantID string
}

func (err AlreadyAppliedError) Error() string {
	return fmt.Sprintf("user %q already applied for job %q", err.ApplicantID, err.JobID)
}

func (err AlreadyAppliedError) InvalidState() bool { return true }

type InvalidStatusError struct {
	Status ApplicationStatus
}

func (err InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid application status: %q", err.Status)
}

func (err InvalidStatusError) InvalidInput() bool { return true }

type StatusUnchangedError struct {
	ApplicationID string
	Status        ApplicationStatus
}

func (err StatusUnchangedError) Error() string {
	return fmt.Sprintf("application %q is already %s", err.ApplicationID, err.Status)
}

func (err StatusUnchangedError) InvalidState() bool { return true }
