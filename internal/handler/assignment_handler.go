package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/courseloop/autograder/internal/model"
	"github.com/courseloop/autograder/internal/pkg/errcode"
	"github.com/courseloop/autograder/internal/pkg/response"
	"github.com/courseloop/autograder/internal/service"
)

type AssignmentHandler struct {
	assignments *service.AssignmentService
}

func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

type assignmentCreateRequest struct {
	Title  string       `json:"title"`
	Rubric model.Rubric `json:"rubric"`
}

func (h *AssignmentHandler) Create(c *gin.Context) {
	var req assignmentCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	asg, err := h.assignments.Create(c.Request.Context(), service.AssignmentCreateInput{
		Title:  req.Title,
		Rubric: req.Rubric,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, asg)
}

func (h *AssignmentHandler) List(c *gin.Context) {
	assignments, err := h.assignments.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, assignments)
}

func (h *AssignmentHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	asg, err := h.assignments.Get(ctx, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	chunkCount, err := h.assignments.ChunkCount(ctx, asg.ID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"assignment": asg, "reference_chunks": chunkCount})
}

// IngestReference accepts a multipart upload of one reference document and
// indexes it into the assignment's retrieval namespace.
func (h *AssignmentHandler) IngestReference(c *gin.Context) {
	filename, data, err := readUpload(c, "file")
	if err != nil {
		handleError(c, err)
		return
	}
	report, err := h.assignments.IngestReference(c.Request.Context(), c.Param("id"), filename, data)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, report)
}
