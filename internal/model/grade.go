package model

// GradeResult is the validated output of one grading call, before it is
// persisted alongside the done transition.
type GradeResult struct {
	Score     int            `json:"score"`
	Breakdown map[string]int `json:"breakdown"`
	Feedback  string         `json:"feedback"`
	Citations []string       `json:"citations"`
}

type Grade struct {
	ID           string         `json:"id"`
	SubmissionID string         `json:"submission_id"`
	Score        int            `json:"score"`
	Breakdown    map[string]int `json:"breakdown"`
	Feedback     string         `json:"feedback"`
	Citations    []string       `json:"citations"`
	Ctime        int64          `json:"ctime"`
}
