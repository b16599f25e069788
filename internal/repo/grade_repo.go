package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/courseloop/autograder/internal/model"
	"github.com/courseloop/autograder/internal/pkg/dbutil"
	apperr "github.com/courseloop/autograder/internal/pkg/errors"
)

type GradeRepo struct {
	db *sql.DB
}

func NewGradeRepo(db *sql.DB) *GradeRepo {
	return &GradeRepo{db: db}
}

// CreateWithStatus persists the grade and flips the submission from grading
// to done in one transaction. Either both happen or neither does, so a
// grade can never exist for a submission that is not done.
func (r *GradeRepo) CreateWithStatus(ctx context.Context, grade *model.Grade) error {
	breakdownJSON, err := json.Marshal(grade.Breakdown)
	if err != nil {
		return err
	}
	citationsJSON, err := json.Marshal(grade.Citations)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const updateQuery = `
		UPDATE submissions
		SET status = $1
		WHERE id = $2 AND status = $3
	`
	res, err := tx.ExecContext(ctx, updateQuery, model.SubmissionStatusDone, grade.SubmissionID, model.SubmissionStatusGrading)
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

	const insertQuery = `
		INSERT INTO grades (id, submission_id, score, breakdown_json, feedback, citations_json, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.ExecContext(ctx, insertQuery,
		grade.ID,
		grade.SubmissionID,
		grade.Score,
		string(breakdownJSON),
		grade.Feedback,
		string(citationsJSON),
		grade.Ctime,
	); err != nil {
		if dbutil.IsUniqueViolation(err) {
			return apperr.ErrConflict
		}
		return err
	}
	return tx.Commit()
}

func (r *GradeRepo) GetBySubmission(ctx context.Context, submissionID string) (*model.Grade, error) {
	const query = `
		SELECT id, submission_id, score, breakdown_json, feedback, citations_json, ctime
		FROM grades
		WHERE submission_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, submissionID)
	var grade model.Grade
	var breakdownJSON, citationsJSON string
	if err := row.Scan(
		&grade.ID,
		&grade.SubmissionID,
		&grade.Score,
		&breakdownJSON,
		&grade.Feedback,
		&citationsJSON,
		&grade.Ctime,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(breakdownJSON), &grade.Breakdown); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(citationsJSON), &grade.Citations); err != nil {
		return nil, err
	}
	return &grade, nil
}
