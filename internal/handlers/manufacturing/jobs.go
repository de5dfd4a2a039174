package manufacturing

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"opsboard/internal/audit"
	"opsboard/internal/models"
	"opsboard/internal/response"
	"opsboard/internal/store"
	"opsboard/internal/validation"
)

// ListJobs handles GET /api/v1/jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	jobs, err := h.Store.ListJobs(r.Context(), store.JobFilter{
		Status:     q.Get("status"),
		WorkCenter: q.Get("work_center"),
		Search:     strings.TrimSpace(q.Get("search")),
	})
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	response.JSONMeta(w, jobs, len(jobs))
}

// OverdueJobs handles GET /api/v1/jobs/overdue.
func (h *Handler) OverdueJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Store.OverdueJobs(r.Context())
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	response.JSONMeta(w, jobs, len(jobs))
}

// GetJob handles GET /api/v1/jobs/:id. The payload carries everything the
// job details view shows.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.Store.JobDetails(r.Context(), id)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	response.JSON(w, job)
}

// CreateJob handles POST /api/v1/jobs.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var j models.Job
	if err := response.DecodeBody(r, &j); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	if ve := validation.Job(j); ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}
	if _, err := h.Store.GetJob(r.Context(), j.JobNumber); err == nil {
		response.Err(w, fmt.Sprintf("job %s already exists", j.JobNumber), http.StatusConflict)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		response.Fail(w, h.Log, err)
		return
	}

	j.CreatedAt = ""
	saved, err := h.Store.UpsertJob(r.Context(), j)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	user := audit.Username(r)
	if _, err := h.Store.AddTimelineEvent(r.Context(), models.TimelineEvent{
		JobNumber: saved.JobNumber, EventType: "created", Description: "Job created", CreatedBy: user,
	}); err != nil {
		h.Log.Warn("recording job creation on timeline", zap.String("job", saved.JobNumber), zap.Error(err))
	}
	h.Audit.Record(r.Context(), user, audit.ActionCreate, "job", saved.JobNumber, "Created "+saved.JobNumber+": "+saved.Title)
	response.Created(w, saved)
}

// UpdateJob handles PUT /api/v1/jobs/:id.
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request, id string) {
	cur, err := h.Store.GetJob(r.Context(), id)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	// Decoding over the current row leaves omitted fields unchanged.
	j := cur
	if err := response.DecodeBody(r, &j); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	j.JobNumber = id
	j.CreatedAt = cur.CreatedAt
	if ve := validation.Job(j); ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}
	saved, err := h.Store.UpsertJob(r.Context(), j)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	h.Audit.Record(r.Context(), audit.Username(r), audit.ActionUpdate, "job", id, "Updated "+id)
	response.JSON(w, saved)
}

// UpdateJobStatus handles PUT /api/v1/jobs/:id/status.
func (h *Handler) UpdateJobStatus(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Status string `json:"status"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "status", body.Status)
	validation.ValidateEnum(ve, "status", body.Status, validation.ValidJobStatuses)
	if ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}
	user := audit.Username(r)
	job, err := h.Store.UpdateJobStatus(r.Context(), id, body.Status, user)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	h.Audit.Record(r.Context(), user, audit.ActionUpdate, "job", id, "Status set to "+body.Status)
	response.JSON(w, job)
}

// UpdateJobProgress handles PUT /api/v1/jobs/:id/progress.
func (h *Handler) UpdateJobProgress(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Progress int `json:"progress"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateIntRange(ve, "progress", body.Progress, 0, 100)
	if ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}
	if err := h.Store.UpdateJobProgress(r.Context(), id, body.Progress); err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	h.Audit.Record(r.Context(), audit.Username(r), audit.ActionUpdate, "job", id, fmt.Sprintf("Progress set to %d%%", body.Progress))
	response.JSON(w, map[string]interface{}{"job_number": id, "progress": body.Progress})
}

// AddNote handles POST /api/v1/jobs/:id/notes.
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request, id string) {
	var n models.JobNote
	if err := response.DecodeBody(r, &n); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "body", n.Body)
	validation.ValidateMaxLength(ve, "body", n.Body, validation.MaxTextLength)
	if ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}
	n.JobNumber = id
	if n.Author == "" {
		n.Author = audit.Username(r)
	}
	saved, err := h.Store.AddNote(r.Context(), n)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	h.Audit.Record(r.Context(), n.Author, audit.ActionCreate, "job_note", id, "Note added")
	response.Created(w, saved)
}

// AddReminder handles POST /api/v1/jobs/:id/reminders.
func (h *Handler) AddReminder(w http.ResponseWriter, r *http.Request, id string) {
	var rem models.Reminder
	if err := response.DecodeBody(r, &rem); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "message", rem.Message)
	validation.ValidateDate(ve, "remind_at", rem.RemindAt)
	if ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}
	rem.JobNumber = id
	saved, err := h.Store.AddReminder(r.Context(), rem)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	h.Audit.Record(r.Context(), audit.Username(r), audit.ActionCreate, "job_reminder", id, "Reminder set for "+rem.RemindAt)
	response.Created(w, saved)
}

// Timeline handles GET /api/v1/jobs/:id/timeline.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request, id string) {
	events, err := h.Store.TimelineForJob(r.Context(), id)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	response.JSON(w, events)
}

// AddTimelineEvent handles POST /api/v1/jobs/:id/timeline.
func (h *Handler) AddTimelineEvent(w http.ResponseWriter, r *http.Request, id string) {
	var e models.TimelineEvent
	if err := response.DecodeBody(r, &e); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "description", e.Description)
	if ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}
	if _, err := h.Store.GetJob(r.Context(), id); err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	e.JobNumber = id
	if e.CreatedBy == "" {
		e.CreatedBy = audit.Username(r)
	}
	saved, err := h.Store.AddTimelineEvent(r.Context(), e)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	h.Audit.Record(r.Context(), e.CreatedBy, audit.ActionCreate, "job_timeline", id, e.Description)
	response.Created(w, saved)
}

// JobOperations handles GET /api/v1/jobs/:id/operations.
func (h *Handler) JobOperations(w http.ResponseWriter, r *http.Request, id string) {
	ops, err := h.Store.OperationsForJob(r.Context(), id)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	if ops == nil {
		ops = []models.Operation{}
	}
	response.JSONMeta(w, ops, len(ops))
}

// JobSummary handles GET /api/v1/jobs/:id/summary.
func (h *Handler) JobSummary(w http.ResponseWriter, r *http.Request, id string) {
	sum, err := h.Store.JobSummary(r.Context(), id)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	response.JSON(w, sum)
}

// UpdateActualWork handles PUT /api/v1/operations/:order/:op/actual.
func (h *Handler) UpdateActualWork(w http.ResponseWriter, r *http.Request, order, opNumber string) {
	var body struct {
		ActualWork *float64 `json:"actual_work"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "invalid body", http.StatusBadRequest)
		return
	}
	ve := &validation.ValidationErrors{}
	if body.ActualWork == nil {
		ve.Add("actual_work", "is required")
	} else {
		validation.ValidateNonNegativeFloat(ve, "actual_work", *body.ActualWork)
	}
	if ve.HasErrors() {
		response.Invalid(w, ve)
		return
	}
	op, err := h.Store.UpdateActualWork(r.Context(), order, opNumber, *body.ActualWork)
	if err != nil {
		response.Fail(w, h.Log, err)
		return
	}
	h.Audit.Record(r.Context(), audit.Username(r), audit.ActionUpdate, "operation", order+"/"+opNumber,
		fmt.Sprintf("Actual work set to %.2fh", *body.ActualWork))
	response.JSON(w, op)
}
