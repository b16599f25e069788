package model

const (
	SubmissionStatusQueued  = "queued"
	SubmissionStatusGrading = "grading"
	SubmissionStatusDone    = "done"
	SubmissionStatusError   = "error"
)

// Submission status moves queued -> grading -> done|error. done and error
// are terminal; the transition queued -> grading is a conditional update so
// only one worker can claim a submission.
type Submission struct {
	ID               string `json:"id"`
	AssignmentID     string `json:"assignment_id"`
	Filename         string `json:"filename"`
	FileKey          string `json:"file_key"`
	Text             string `json:"-"`
	Status           string `json:"status"`
	ErrorReason      string `json:"error_reason,omitempty"`
	GradingStartedAt int64  `json:"-"`
	Ctime            int64  `json:"ctime"`
}
