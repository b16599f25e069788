package model

// GradingJob is the queue payload for one grading attempt. It is not
// durable on its own; its effect is only visible through submission status
// changes.
type GradingJob struct {
	SubmissionID string `json:"submission_id"`
}
