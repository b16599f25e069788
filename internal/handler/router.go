package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Assignments *AssignmentHandler
	Submissions *SubmissionHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/assignments", deps.Assignments.Create)
	api.GET("/assignments", deps.Assignments.List)
	api.GET("/assignments/:id", deps.Assignments.Get)
	api.POST("/assignments/:id/references", deps.Assignments.IngestReference)

	api.POST("/assignments/:id/submissions", deps.Submissions.Create)
	api.GET("/assignments/:id/submissions", deps.Submissions.List)
	api.GET("/submissions/:id", deps.Submissions.Get)
}
