package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/courseloop/autograder/internal/model"
	"github.com/courseloop/autograder/internal/pkg/dbutil"
	apperr "github.com/courseloop/autograder/internal/pkg/errors"
)

type SubmissionRepo struct {
	db *sql.DB
}

func NewSubmissionRepo(db *sql.DB) *SubmissionRepo {
	return &SubmissionRepo{db: db}
}

func (r *SubmissionRepo) Create(ctx context.Context, sub *model.Submission) error {
	data := map[string]interface{}{
		"id":                 sub.ID,
		"assignment_id":      sub.AssignmentID,
		"filename":           sub.Filename,
		"file_key":           sub.FileKey,
		"extracted_text":     sub.Text,
		"status":             sub.Status,
		"error_reason":       sub.ErrorReason,
		"grading_started_at": sub.GradingStartedAt,
		"ctime":              sub.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("submissions", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *SubmissionRepo) Get(ctx context.Context, id string) (*model.Submission, error) {
	const query = `
		SELECT id, assignment_id, filename, file_key, extracted_text, status, error_reason, grading_started_at, ctime
		FROM submissions
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)
	var sub model.Submission
	if err := row.Scan(
		&sub.ID,
		&sub.AssignmentID,
		&sub.Filename,
		&sub.FileKey,
		&sub.Text,
		&sub.Status,
		&sub.ErrorReason,
		&sub.GradingStartedAt,
		&sub.Ctime,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *SubmissionRepo) ListByAssignment(ctx context.Context, assignmentID string) ([]model.Submission, error) {
	const query = `
		SELECT id, assignment_id, filename, file_key, status, error_reason, ctime
		FROM submissions
		WHERE assignment_id = $1
		ORDER BY ctime DESC
	`
	rows, err := r.db.QueryContext(ctx, query, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Submission
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(
			&sub.ID,
			&sub.AssignmentID,
			&sub.Filename,
			&sub.FileKey,
			&sub.Status,
			&sub.ErrorReason,
			&sub.Ctime,
		); err != nil {
			return nil, err
		}
		results = append(results, sub)
	}
	return results, rows.Err()
}

// Claim is the queued -> grading transition. It is a single conditional
// update: when two workers race on the same submission only one sees an
// affected row, the other gets claimed=false and must treat the job as
// already taken.
func (r *SubmissionRepo) Claim(ctx context.Context, id string, now int64) (bool, error) {
	const query = `
		UPDATE submissions
		SET status = $1, grading_started_at = $2
		WHERE id = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, model.SubmissionStatusGrading, now, id, model.SubmissionStatusQueued)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkError is the grading -> error transition, recording a human-readable
// reason. It refuses to touch terminal rows.
func (r *SubmissionRepo) MarkError(ctx context.Context, id string, reason string) error {
	const query = `
		UPDATE submissions
		SET status = $1, error_reason = $2
		WHERE id = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, model.SubmissionStatusError, reason, id, model.SubmissionStatusGrading)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.ErrConflict
	}
	return nil
}

// RequeueStuck resets submissions whose grading lease expired back to
// queued, so a crashed worker's jobs get picked up again. Returns the ids
// that were reset.
func (r *SubmissionRepo) RequeueStuck(ctx context.Context, cutoff int64) ([]string, error) {
	const query = `
		UPDATE submissions
		SET status = $1, grading_started_at = 0
		WHERE status = $2 AND grading_started_at > 0 AND grading_started_at < $3
		RETURNING id
	`
	rows, err := r.db.QueryContext(ctx, query, model.SubmissionStatusQueued, model.SubmissionStatusGrading, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListStaleQueued returns queued submissions older than the cutoff. These
// are jobs whose queue delivery was lost (broker restart, failed enqueue);
// putting them back on the queue is safe because the claim transition
// drops duplicate deliveries.
func (r *SubmissionRepo) ListStaleQueued(ctx context.Context, cutoff int64) ([]string, error) {
	const query = `
		SELECT id FROM submissions
		WHERE status = $1 AND ctime < $2
		ORDER BY ctime ASC
	`
	rows, err := r.db.QueryContext(ctx, query, model.SubmissionStatusQueued, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
