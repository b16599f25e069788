package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/courseloop/autograder/internal/model"
	"github.com/courseloop/autograder/internal/pkg/dbutil"
	apperr "github.com/courseloop/autograder/internal/pkg/errors"
)

type AssignmentRepo struct {
	db *sql.DB
}

func NewAssignmentRepo(db *sql.DB) *AssignmentRepo {
	return &AssignmentRepo{db: db}
}

func (r *AssignmentRepo) Create(ctx context.Context, asg *model.Assignment) error {
	rubricJSON, err := json.Marshal(asg.Rubric)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":          asg.ID,
		"title":       asg.Title,
		"rubric_json": string(rubricJSON),
		"ctime":       asg.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("assignments", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsUniqueViolation(err) {
			return apperr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *AssignmentRepo) Get(ctx context.Context, id string) (*model.Assignment, error) {
	const query = `
		SELECT id, title, rubric_json, ctime
		FROM assignments
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)
	var asg model.Assignment
	var rubricJSON string
	if err := row.Scan(&asg.ID, &asg.Title, &rubricJSON, &asg.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(rubricJSON), &asg.Rubric); err != nil {
		return nil, err
	}
	return &asg, nil
}

func (r *AssignmentRepo) List(ctx context.Context) ([]model.Assignment, error) {
	const query = `
		SELECT id, title, rubric_json, ctime
		FROM assignments
		ORDER BY ctime DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Assignment
	for rows.Next() {
		var asg model.Assignment
		var rubricJSON string
		if err := rows.Scan(&asg.ID, &asg.Title, &rubricJSON, &asg.Ctime); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(rubricJSON), &asg.Rubric); err != nil {
			return nil, err
		}
		results = append(results, asg)
	}
	return results, rows.Err()
}
