package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrJobNotPending is returned when a claim races with another worker.
var ErrJobNotPending = errors.New("job is not pending")

const jobColumns = "id, kind, status, progress, stage, params_json, result_json, error_message, cancel_requested, created_at, updated_at, completed_at"

// NewJob inserts a new import job in the pending state.
func (s *Store) NewJob(ctx context.Context, params JobParams) (*Job, error) {
	if strings.TrimSpace(params.SourceURL) == "" {
		return nil, errors.New("job params: source url required")
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal job params: %w", err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (kind, status, progress, stage, params_json, created_at, updated_at)
         VALUES (?, ?, 0, NULL, ?, ?, ?)`,
		JobKindImport,
		JobPending,
		string(paramsJSON),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier, returning nil when absent.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) ListJobs(ctx context.Context, statuses ...JobStatus) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimNextPending atomically flips the oldest pending job to running and
// returns it, or nil when no pending job exists.
func (s *Store) ClaimNextPending(ctx context.Context) (*Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at LIMIT 1`, JobPending)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select pending job: %w", err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, stage = 'Starting', updated_at = ? WHERE id = ? AND status = ?`,
		JobRunning, now.Format(time.RFC3339Nano), job.ID, JobPending)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrJobNotPending
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	job.Status = JobRunning
	job.Stage = "Starting"
	job.UpdatedAt = now
	return job, nil
}

// UpdateJobCheckpoint persists a progress checkpoint for a running job.
// Progress never decreases; each checkpoint is one atomic update.
func (s *Store) UpdateJobCheckpoint(ctx context.Context, id int64, progress float64, stage string) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET progress = MAX(progress, ?), stage = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		progress,
		stage,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		JobRunning,
	)
	if err != nil {
		return fmt.Errorf("update job checkpoint: %w", err)
	}
	return nil
}

// RequestCancel asks a job to stop. Pending jobs are cancelled immediately;
// running jobs get the cancel flag and observe it at their next checkpoint.
// Returns false when the job is already terminal or unknown.
func (s *Store) RequestCancel(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		JobCancelled, now, now, id, JobPending)
	if err != nil {
		return false, fmt.Errorf("cancel pending job: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return false, err
	} else if affected > 0 {
		return true, nil
	}

	res, err = s.db.ExecContext(ctx,
		`UPDATE jobs SET cancel_requested = 1, updated_at = ? WHERE id = ? AND status = ?`,
		now, id, JobRunning)
	if err != nil {
		return false, fmt.Errorf("flag running job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CancelRequested reports whether a cancel has been requested for the job.
func (s *Store) CancelRequested(ctx context.Context, id int64) (bool, error) {
	var flag int
	err := s.db.QueryRowContext(ctx, `SELECT cancel_requested FROM jobs WHERE id = ?`, id).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag != 0, nil
}

// CompleteJob marks a running job as completed with its single outcome.
func (s *Store) CompleteJob(ctx context.Context, id int64, result JobResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, progress = 1, stage = 'Completed', result_json = ?,
             completed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		JobCompleted, string(resultJSON), now, now, id, JobRunning)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("complete job %d: job is not running", id)
	}
	return nil
}

// FailJob marks a running job as failed with an operator-readable message.
func (s *Store) FailJob(ctx context.Context, id int64, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, stage = 'Failed', error_message = ?, completed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		JobFailed, strings.TrimSpace(message), now, now, id, JobRunning)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// MarkCancelled transitions a running job into its cancelled terminal state.
func (s *Store) MarkCancelled(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, stage = 'Cancelled', completed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		JobCancelled, now, now, id, JobRunning)
	if err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}
	return nil
}

// DeleteJob removes a terminal job. Running or pending jobs are refused.
func (s *Store) DeleteJob(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE id = ? AND status IN (?, ?, ?)`,
		id, JobCompleted, JobFailed, JobCancelled)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteTerminalBefore removes terminal jobs that completed before the cutoff.
// Inbox items are never touched; jobs with an unobserved cancel request are
// still running and therefore excluded by the status filter.
func (s *Store) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs
         WHERE status IN (?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		JobCompleted, JobFailed, JobCancelled,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("sweep terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

// RecoverInterrupted resets jobs left running by a previous process. Jobs with
// a pending cancel request become cancelled; the rest return to pending.
func (s *Store) RecoverInterrupted(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	cancelled, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, stage = 'Cancelled', completed_at = ?, updated_at = ?
         WHERE status = ? AND cancel_requested = 1`,
		JobCancelled, now, now, JobRunning)
	if err != nil {
		return 0, fmt.Errorf("cancel interrupted jobs: %w", err)
	}
	reset, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, progress = 0, stage = 'Recovered after restart', updated_at = ?
         WHERE status = ?`,
		JobPending, now, JobRunning)
	if err != nil {
		return 0, fmt.Errorf("reset interrupted jobs: %w", err)
	}
	cancelledCount, _ := cancelled.RowsAffected()
	resetCount, _ := reset.RowsAffected()
	return cancelledCount + resetCount, nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (JobStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return JobStats{}, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := JobStats{}
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return JobStats{}, err
		}
		stats.Total += count
		switch status {
		case JobPending:
			stats.Pending += count
		case JobRunning:
			stats.Running += count
		case JobCompleted:
			stats.Completed += count
		case JobFailed:
			stats.Failed += count
		case JobCancelled:
			stats.Cancelled += count
		}
	}
	return stats, rows.Err()
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		id           int64
		kind         string
		statusStr    string
		progress     float64
		stage        sql.NullString
		paramsJSON   string
		resultJSON   sql.NullString
		errorMessage sql.NullString
		cancelFlag   int
		createdRaw   string
		updatedRaw   string
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&kind,
		&statusStr,
		&progress,
		&stage,
		&paramsJSON,
		&resultJSON,
		&errorMessage,
		&cancelFlag,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		Kind:            kind,
		Status:          JobStatus(statusStr),
		Progress:        progress,
		Stage:           stage.String,
		ErrorMessage:    errorMessage.String,
		CancelRequested: cancelFlag != 0,
	}
	if err := json.Unmarshal([]byte(paramsJSON), &job.Params); err != nil {
		return nil, fmt.Errorf("decode job params: %w", err)
	}
	if resultJSON.Valid && strings.TrimSpace(resultJSON.String) != "" {
		if err := json.Unmarshal([]byte(resultJSON.String), &job.Result); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}
