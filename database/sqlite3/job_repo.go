package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/agora/jobs"
)

const (
	tableJobs         = "jobs"
	tableApplications = "applications"
)

type JobRepository struct {
	db *sql.DB
}

var _ jobs.JobRepository = (*JobRepository)(nil)

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const (
	jobFieldID          = "id"
	jobFieldCompanyID   = "company_id"
	jobFieldTitle       = "title"
	jobFieldDescription = "description"
	jobFieldCreatedAt   = "created_at"
)

func jobColumns() []string {
	return []string{
		jobFieldID,
		jobFieldCompanyID,
		jobFieldTitle,
		jobFieldDescription,
		jobFieldCreatedAt,
	}
}

func scanJob(row sq.RowScanner, extra ...any) (*jobs.Job, error) {
	var job jobs.Job

	dest := append(extra,
		&job.ID,
		&job.CompanyID,
		&job.Title,
		&job.Description,
		&job.CreatedAt,
	)

	err := row.Scan(dest...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &job, nil
}

func (repo *JobRepository) Insert(ctx context.Context, job *jobs.Job) error {
	q := sq.Insert(tableJobs).
		Columns(jobColumns()...).
		Values(job.ID, job.CompanyID, job.Title, job.Description, job.CreatedAt)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	return nil
}

func (repo *JobRepository) Find(ctx context.Context, jobID string) (*jobs.Job, error) {
	q := sq.Select(jobColumns()...).
		From(tableJobs).
		Where(sq.Eq{jobFieldID: jobID})

	q = q.RunWith(repo.db)

	job, err := scanJob(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &jobs.JobNotFoundError{ID: jobID}
		}

		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	return job, nil
}

func (repo *JobRepository) List(ctx context.Context, params *jobs.ListJobsParams) ([]*jobs.Job, string, error) {
	q, err := paginate(sq.Select(append([]string{fieldRowID}, jobColumns()...)...).From(tableJobs), params.Cursor, params.Limit)
	if err != nil {
		return nil, "", err
	}

	rows, err := q.RunWith(repo.db).QueryContext(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("query failed: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	res := make([]*jobs.Job, 0)
	rowIDs := make([]int64, 0)

	for rows.Next() {
		var rowID int64

		job, err := scanJob(rows, &rowID)
		if err != nil {
			return nil, "", fmt.Errorf("scan job failed: %w", err)
		}

		res = append(res, job)
		rowIDs = append(rowIDs, rowID)
	}

	err = rows.Err()
	if err != nil {
		return nil, "", fmt.Errorf("rows iteration failed: %w", err)
	}

	res, nextCursor := trimPage(res, rowIDs, params.Limit)

	return res, nextCursor, nil
}

type ApplicationRepository struct {
	db *sql.DB
}

var _ jobs.ApplicationRepository = (*ApplicationRepository)(nil)

func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const (
	applicationFieldID          = "id"
	applicationFieldJobID       = "job_id"
	applicationFieldApplicantID = "applicant_id"
	applicationFieldStatus      = "status"
	applicationFieldCreatedAt   = "created_at"
	applicationFieldUpdatedAt   = "updated_at"
)

func applicationColumns() []string {
	return []string{
		applicationFieldID,
		applicationFieldJobID,
		applicationFieldApplicantID,
		applicationFieldStatus,
		applicationFieldCreatedAt,
		applicationFieldUpdatedAt,
	}
}

func scanApplication(row sq.RowScanner) (*jobs.Application, error) {
	var application jobs.Application

	err := row.Scan(
		&application.ID,
		&application.JobID,
		&application.ApplicantID,
		&application.Status,
		&application.CreatedAt,
		&application.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &application, nil
}

func (repo *ApplicationRepository) Insert(ctx context.Context, application *jobs.Application) error {
	q := sq.Insert(tableApplications).
		Columns(applicationColumns()...).
		Values(
			application.ID,
			application.JobID,
			application.ApplicantID,
			string(application.Status),
			application.CreatedAt,
			application.UpdatedAt,
		)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	return nil
}

func (repo *ApplicationRepository) Find(ctx context.Context, applicationID string) (*jobs.Application, error) {
	q := sq.Select(applicationColumns()...).
		From(tableApplications).
		Where(sq.Eq{applicationFieldID: applicationID})

	q = q.RunWith(repo.db)

	application, err := scanApplication(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &jobs.ApplicationNotFoundError{ID: applicationID}
		}

		return nil, fmt.Errorf("failed to scan application: %w", err)
	}

	return application, nil
}

func (repo *ApplicationRepository) FindByJobApplicant(ctx context.Context, jobID, applicantID string) (*jobs.Application, error) {
	q := sq.Select(applicationColumns()...).
		From(tableApplications).
		Where(sq.Eq{applicationFieldJobID: jobID, applicationFieldApplicantID: applicantID})

	q = q.RunWith(repo.db)

	application, err := scanApplication(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &jobs.ApplicationByJobApplicantNotFoundError{JobID: jobID, ApplicantID: applicantID}
		}

		return nil, fmt.Errorf("failed to scan application: %w", err)
	}

	return application, nil
}

func (repo *ApplicationRepository) UpdateStatus(ctx context.Context, application *jobs.Application) error {
	q := sq.Update(tableApplications).
		Set(applicationFieldStatus, string(application.Status)).
		Set(applicationFieldUpdatedAt, application.UpdatedAt).
		Where(sq.Eq{applicationFieldID: application.ID})

	q = q.RunWith(repo.db)

	res, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec update: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return &jobs.ApplicationNotFoundError{ID: application.ID}
	}

	return nil
}

func (repo *ApplicationRepository) ListByJob(ctx context.Context, jobID string) ([]*jobs.Application, error) {
	q := sq.Select(applicationColumns()...).
		From(tableApplications).
		Where(sq.Eq{applicationFieldJobID: jobID}).
		OrderBy(fieldRowID + " ASC")

	rows, err := q.RunWith(repo.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	res := make([]*jobs.Application, 0)

	for rows.Next() {
		application, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application failed: %w", err)
		}

		res = append(res, application)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return res, nil
}
