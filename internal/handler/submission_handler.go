package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/courseloop/autograder/internal/pkg/response"
	"github.com/courseloop/autograder/internal/service"
)

type SubmissionHandler struct {
	submissions *service.SubmissionService
}

func NewSubmissionHandler(submissions *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

// Create accepts a multipart submission upload and queues it for grading.
// The response carries the submission in queued state; grading happens
// asynchronously.
func (h *SubmissionHandler) Create(c *gin.Context) {
	filename, data, err := readUpload(c, "file")
	if err != nil {
		handleError(c, err)
		return
	}
	sub, err := h.submissions.Create(c.Request.Context(), c.Param("id"), filename, data)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, sub)
}

func (h *SubmissionHandler) List(c *gin.Context) {
	subs, err := h.submissions.ListByAssignment(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, subs)
}

// Get returns the submission with its status; once grading is done the
// grade rides along.
func (h *SubmissionHandler) Get(c *gin.Context) {
	sub, grade, err := h.submissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	payload := gin.H{"submission": sub}
	if grade != nil {
		payload["grade"] = grade
	}
	response.Success(c, payload)
}
