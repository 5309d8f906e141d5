package web

import (
	"net/http"
	"time"

	"github.com/nasermirzaei89/agora/jobs"
)

type jobResponse struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"companyId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toJobResponse(job *jobs.Job) jobResponse {
	return jobResponse{
		ID:          job.ID,
		CompanyID:   job.CompanyID,
		Title:       job.Title,
		Description: job.Description,
		CreatedAt:   job.CreatedAt,
	}
}

type applicationResponse struct {
	ID          string     `json:"id"`
	JobID       string     `json:"jobId"`
	ApplicantID string     `json:"applicantId"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func toApplicationResponse(application *jobs.Application) applicationResponse {
	return applicationResponse{
		ID:          application.ID,
		JobID:       application.JobID,
		ApplicantID: application.ApplicantID,
		Status:      string(application.Status),
		CreatedAt:   application.CreatedAt,
		UpdatedAt:   application.UpdatedAt,
	}
}

func (h *Handler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, "failed to parse limit", err)

		return
	}

	list, nextCursor, err := h.jobsSvc.ListJobs(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeError(w, r, "failed to list jobs", err)

		return
	}

	items := make([]jobResponse, 0, len(list))
	for _, job := range list {
		items = append(items, toJobResponse(job))
	}

	writeJSON(w, r, http.StatusOK, pageResponse[jobResponse]{Items: items, NextCursor: nextCursor})
}

type createJobRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *Handler) HandleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, "failed to decode request", err)

		return
	}

	job, err := h.jobsSvc.CreateJob(r.Context(), jobs.CreateJobRequest{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, "failed to create job", err)

		return
	}

	writeJSON(w, r, http.StatusCreated, toJobResponse(job))
}

func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobsSvc.GetJob(r.Context(), r.PathValue("jobId"))
	if err != nil {
		writeError(w, r, "failed to get job", err)

		return
	}

	writeJSON(w, r, http.StatusOK, toJobResponse(job))
}

func (h *Handler) HandleApply(w http.ResponseWriter, r *http.Request) {
	application, err := h.jobsSvc.Apply(r.Context(), r.PathValue("jobId"))
	if err != nil {
		writeError(w, r, "failed to apply", err)

		return
	}

	writeJSON(w, r, http.StatusCreated, toApplicationResponse(application))
}

func (h *Handler) HandleListApplications(w http.ResponseWriter, r *http.Request) {
	applications, err := h.jobsSvc.ListApplications(r.Context(), r.PathValue("jobId"))
	if err != nil {
		writeError(w, r, "failed to list applications", err)

		return
	}

	items := make([]applicationResponse, 0, len(applications))
	for _, application := range applications {
		items = append(items, toApplicationResponse(application))
	}

	writeJSON(w, r, http.StatusOK, pageResponse[applicationResponse]{Items: items, NextCursor: ""})
}

type setApplicationStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSetApplicationStatus(w http.ResponseWriter, r *http.Request) {
	var req setApplicationStatusRequest

	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, r, "failed to decode request", err)

		return
	}

	application, err := h.jobsSvc.SetApplicationStatus(
		r.Context(),
		r.PathValue("applicationId"),
		jobs.ApplicationStatus(req.Status),
	)
	if err != nil {
		writeError(w, r, "failed to set application status", err)

		return
	}

	writeJSON(w, r, http.StatusOK, toApplicationResponse(application))
}
