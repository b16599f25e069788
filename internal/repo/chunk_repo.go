package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/courseloop/autograder/internal/model"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Upsert writes one chunk, overwriting any prior vector at the same
// (assignment, doc, ordinal) slot. Re-ingesting a document therefore never
// duplicates chunks.
func (r *ChunkRepo) Upsert(ctx context.Context, chunk *model.ReferenceChunk) error {
	const query = `
		INSERT INTO reference_chunks (id, assignment_id, doc_id, ordinal, content, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (assignment_id, doc_id, ordinal) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	_, err := r.db.ExecContext(ctx, query,
		chunk.ID,
		chunk.AssignmentID,
		chunk.DocID,
		chunk.Ordinal,
		chunk.Content,
		pgvector.NewVector(chunk.Embedding),
		chunk.Ctime,
	)
	return err
}

// DeleteFromOrdinal prunes stale windows after a document shrank on
// re-upload.
func (r *ChunkRepo) DeleteFromOrdinal(ctx context.Context, assignmentID, docID string, fromOrdinal int) (int64, error) {
	const query = `
		DELETE FROM reference_chunks
		WHERE assignment_id = $1 AND doc_id = $2 AND ordinal >= $3
	`
	res, err := r.db.ExecContext(ctx, query, assignmentID, docID, fromOrdinal)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Search returns the topK most similar chunks of one assignment, cosine
// similarity descending, ties broken by (doc_id, ordinal) ascending.
func (r *ChunkRepo) Search(ctx context.Context, assignmentID string, vector []float32, topK int) ([]model.ScoredChunk, error) {
	const query = `
		SELECT id, assignment_id, doc_id, ordinal, content, 1 - (embedding <=> $1) AS similarity
		FROM reference_chunks
		WHERE assignment_id = $2
		ORDER BY embedding <=> $1 ASC, doc_id ASC, ordinal ASC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(vector), assignmentID, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.ScoredChunk
	for rows.Next() {
		var sc model.ScoredChunk
		if err := rows.Scan(
			&sc.Chunk.ID,
			&sc.Chunk.AssignmentID,
			&sc.Chunk.DocID,
			&sc.Chunk.Ordinal,
			&sc.Chunk.Content,
			&sc.Similarity,
		); err != nil {
			return nil, err
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

func (r *ChunkRepo) CountByAssignment(ctx context.Context, assignmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM reference_chunks WHERE assignment_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, assignmentID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
