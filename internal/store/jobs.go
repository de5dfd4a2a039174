package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"opsboard/internal/database"
	"opsboard/internal/models"
	"opsboard/internal/rollup"
	"opsboard/internal/tables"
)

// JobFilter narrows ListJobs. Empty fields match everything.
type JobFilter struct {
	Status     string
	WorkCenter string
	Search     string
}

var jobSearchCols = []string{"job_number", "title", "description", "customer"}

func jobFromRow(r tables.Row) models.Job {
	return models.Job{
		JobNumber:   str(r, "job_number"),
		Title:       str(r, "title"),
		Description: str(r, "description"),
		Status:      str(r, "status"),
		Priority:    str(r, "priority"),
		Progress:    integer(r, "progress"),
		WorkCenter:  str(r, "work_center"),
		Customer:    str(r, "customer"),
		DueDate:     str(r, "due_date"),
		StartDate:   str(r, "scheduled_date"),
		CreatedAt:   str(r, "created_at"),
		UpdatedAt:   str(r, "updated_at"),
	}
}

func jobToRow(j models.Job) tables.Row {
	return tables.Row{
		"job_number":     j.JobNumber,
		"title":          j.Title,
		"description":    j.Description,
		"status":         j.Status,
		"priority":       j.Priority,
		"progress":       j.Progress,
		"work_center":    j.WorkCenter,
		"customer":       j.Customer,
		"due_date":       j.DueDate,
		"scheduled_date": j.StartDate,
		"created_at":     j.CreatedAt,
		"updated_at":     j.UpdatedAt,
	}
}

// ListJobs returns jobs ordered by due date.
func (s *Store) ListJobs(ctx context.Context, f JobFilter) ([]models.Job, error) {
	q := tables.Query{OrderBy: "due_date"}
	if f.Status != "" {
		q.Filters = append(q.Filters, tables.Eq("status", f.Status))
	}
	if f.WorkCenter != "" {
		q.Filters = append(q.Filters, tables.Eq("work_center", f.WorkCenter))
	}
	if f.Search != "" {
		q.Filters = append(q.Filters, tables.AnyOf(jobSearchCols, f.Search))
	}
	rows, err := s.selectRows(ctx, database.TableJobs, q)
	if err != nil {
		return nil, err
	}
	jobs := make([]models.Job, 0, len(rows))
	for _, r := range rows {
		jobs = append(jobs, jobFromRow(r))
	}
	return jobs, nil
}

// JobNumbers returns every job number.
func (s *Store) JobNumbers(ctx context.Context) ([]string, error) {
	rows, err := s.selectRows(ctx, database.TableJobs, tables.Query{Columns: []string{"job_number"}, OrderBy: "job_number"})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, str(r, "job_number"))
	}
	return out, nil
}

// GetJob returns the job row without its related records.
func (s *Store) GetJob(ctx context.Context, jobNumber string) (models.Job, error) {
	rows, err := s.selectRows(ctx, database.TableJobs, tables.Query{
		Filters: []tables.Filter{tables.Eq("job_number", jobNumber)},
		Limit:   1,
	})
	if err != nil {
		return models.Job{}, err
	}
	if len(rows) == 0 {
		return models.Job{}, fmt.Errorf("job %s: %w", jobNumber, ErrNotFound)
	}
	return jobFromRow(rows[0]), nil
}

// JobDetails returns the job with operations, vendor operations, notes,
// reminders, timeline, NCRs and linked purchase orders. The related tables
// are read concurrently.
func (s *Store) JobDetails(ctx context.Context, jobNumber string) (models.Job, error) {
	job, err := s.GetJob(ctx, jobNumber)
	if err != nil {
		return job, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		job.SAPData, err = s.OperationsForJob(gctx, jobNumber)
		return err
	})
	g.Go(func() (err error) {
		job.VendorOperations, err = s.VendorOperationsForJob(gctx, jobNumber)
		return err
	})
	g.Go(func() (err error) {
		job.Notes, err = s.notesForJob(gctx, jobNumber)
		return err
	})
	g.Go(func() (err error) {
		job.Reminders, err = s.remindersForJob(gctx, jobNumber)
		return err
	})
	g.Go(func() (err error) {
		job.Timeline, err = s.TimelineForJob(gctx, jobNumber)
		return err
	})
	g.Go(func() (err error) {
		job.NCRs, err = s.ListNCRs(gctx, NCRFilter{JobNumber: jobNumber})
		return err
	})
	g.Go(func() (err error) {
		job.PurchaseOrders, err = s.ListPurchaseOrders(gctx, POFilter{JobID: jobNumber})
		return err
	})
	if err := g.Wait(); err != nil {
		return job, fmt.Errorf("job %s details: %w", jobNumber, err)
	}
	return job, nil
}

// UpsertJob creates or replaces a job. Missing status, priority and
// timestamps are defaulted.
func (s *Store) UpsertJob(ctx context.Context, j models.Job) (models.Job, error) {
	now := s.now()
	if j.Status == "" {
		j.Status = "not_started"
	}
	if j.Priority == "" {
		j.Priority = "normal"
	}
	if j.CreatedAt == "" {
		if existing, err := s.GetJob(ctx, j.JobNumber); err == nil {
			j.CreatedAt = existing.CreatedAt
		} else {
			j.CreatedAt = now
		}
	}
	j.UpdatedAt = now
	if _, err := s.write().Upsert(ctx, database.TableJobs, "job_number", jobToRow(j)); err != nil {
		return j, err
	}
	s.invalidate()
	return j, nil
}

// UpdateJobStatus changes a job's status and records it on the timeline.
// Completing a job sets its progress to 100.
func (s *Store) UpdateJobStatus(ctx context.Context, jobNumber, status, by string) (models.Job, error) {
	job, err := s.GetJob(ctx, jobNumber)
	if err != nil {
		return job, err
	}
	set := tables.Row{"status": status, "updated_at": s.now()}
	if status == "completed" {
		set["progress"] = 100
		job.Progress = 100
	}
	if _, err := s.write().Update(ctx, database.TableJobs, set, tables.Eq("job_number", jobNumber)); err != nil {
		return job, err
	}
	old := job.Status
	job.Status = status
	s.invalidate()
	_, err = s.AddTimelineEvent(ctx, models.TimelineEvent{
		JobNumber:   jobNumber,
		EventType:   "status_change",
		Description: fmt.Sprintf("Status changed from %s to %s", old, status),
		CreatedBy:   by,
	})
	return job, err
}

// UpdateJobProgress stores a manual progress value, clamped to 0..100.
func (s *Store) UpdateJobProgress(ctx context.Context, jobNumber string, progress int) error {
	progress = max(0, min(100, progress))
	n, err := s.write().Update(ctx, database.TableJobs,
		tables.Row{"progress": progress, "updated_at": s.now()}, tables.Eq("job_number", jobNumber))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", jobNumber, ErrNotFound)
	}
	s.invalidate()
	return nil
}

// JobSummary rolls a job's operations, purchase orders and NCRs up into
// totals.
func (s *Store) JobSummary(ctx context.Context, jobNumber string) (models.JobSummary, error) {
	job, err := s.JobDetails(ctx, jobNumber)
	if err != nil {
		return models.JobSummary{}, err
	}
	sum := rollup.Job(jobNumber, job.SAPData, job.Progress)
	for _, po := range job.PurchaseOrders {
		sum.PurchaseTotal = sum.PurchaseTotal.Add(po.Amount)
	}
	for _, n := range job.NCRs {
		if n.Status == "open" || n.Status == "investigating" {
			sum.OpenNCRs++
		}
	}
	return sum, nil
}

func (s *Store) notesForJob(ctx context.Context, jobNumber string) ([]models.JobNote, error) {
	rows, err := s.selectRows(ctx, database.TableJobNotes, tables.Query{
		Filters: []tables.Filter{tables.Eq("job_number", jobNumber)},
		OrderBy: "created_at", Desc: true,
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.JobNote, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.JobNote{
			ID:        str(r, "id"),
			JobNumber: str(r, "job_number"),
			Body:      str(r, "body"),
			Author:    str(r, "author"),
			CreatedAt: str(r, "created_at"),
		})
	}
	return out, nil
}

// AddNote attaches a note to a job.
func (s *Store) AddNote(ctx context.Context, n models.JobNote) (models.JobNote, error) {
	if _, err := s.GetJob(ctx, n.JobNumber); err != nil {
		return n, err
	}
	n.ID = newID()
	n.CreatedAt = s.now()
	defer s.invalidate()
	_, err := s.write().Insert(ctx, database.TableJobNotes, tables.Row{
		"id": n.ID, "job_number": n.JobNumber, "body": n.Body, "author": n.Author, "created_at": n.CreatedAt,
	})
	return n, err
}

func (s *Store) remindersForJob(ctx context.Context, jobNumber string) ([]models.Reminder, error) {
	rows, err := s.selectRows(ctx, database.TableJobReminders, tables.Query{
		Filters: []tables.Filter{tables.Eq("job_number", jobNumber)},
		OrderBy: "remind_at",
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Reminder, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Reminder{
			ID:        str(r, "id"),
			JobNumber: str(r, "job_number"),
			Message:   str(r, "message"),
			RemindAt:  str(r, "remind_at"),
			Done:      boolean(r, "done"),
			CreatedAt: str(r, "created_at"),
		})
	}
	return out, nil
}

// AddReminder schedules a reminder on a job.
func (s *Store) AddReminder(ctx context.Context, rem models.Reminder) (models.Reminder, error) {
	if _, err := s.GetJob(ctx, rem.JobNumber); err != nil {
		return rem, err
	}
	rem.ID = newID()
	rem.CreatedAt = s.now()
	done := 0
	if rem.Done {
		done = 1
	}
	defer s.invalidate()
	_, err := s.write().Insert(ctx, database.TableJobReminders, tables.Row{
		"id": rem.ID, "job_number": rem.JobNumber, "message": rem.Message,
		"remind_at": rem.RemindAt, "done": done, "created_at": rem.CreatedAt,
	})
	return rem, err
}

// TimelineForJob returns a job's history, newest first.
func (s *Store) TimelineForJob(ctx context.Context, jobNumber string) ([]models.TimelineEvent, error) {
	rows, err := s.selectRows(ctx, database.TableJobTimelines, tables.Query{
		Filters: []tables.Filter{tables.Eq("job_number", jobNumber)},
		OrderBy: "created_at", Desc: true,
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.TimelineEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.TimelineEvent{
			ID:          str(r, "id"),
			JobNumber:   str(r, "job_number"),
			EventType:   str(r, "event_type"),
			Description: str(r, "description"),
			CreatedBy:   str(r, "created_by"),
			CreatedAt:   str(r, "created_at"),
		})
	}
	return out, nil
}

// AddTimelineEvent appends to a job's history.
func (s *Store) AddTimelineEvent(ctx context.Context, e models.TimelineEvent) (models.TimelineEvent, error) {
	e.ID = newID()
	if e.CreatedAt == "" {
		e.CreatedAt = s.now()
	}
	if e.EventType == "" {
		e.EventType = "note"
	}
	if e.CreatedBy == "" {
		e.CreatedBy = "system"
	}
	defer s.invalidate()
	_, err := s.write().Insert(ctx, database.TableJobTimelines, tables.Row{
		"id": e.ID, "job_number": e.JobNumber, "event_type": e.EventType,
		"description": e.Description, "created_by": e.CreatedBy, "created_at": e.CreatedAt,
	})
	return e, err
}
