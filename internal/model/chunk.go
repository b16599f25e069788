package model

// ReferenceChunk is one indexed window of a reference document.
// (assignment_id, doc_id, ordinal) is unique; re-indexing the same window
// overwrites the stored text and vector.
type ReferenceChunk struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	DocID        string    `json:"doc_id"`
	Ordinal      int       `json:"ordinal"`
	Content      string    `json:"content"`
	Embedding    []float32 `json:"-"`
	Ctime        int64     `json:"ctime"`
}

// ScoredChunk is a retrieval hit with its similarity to the query.
type ScoredChunk struct {
	Chunk      ReferenceChunk `json:"chunk"`
	Similarity float32        `json:"similarity"`
}
