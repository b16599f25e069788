package handler

import (
	"errors"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/courseloop/autograder/internal/pkg/errcode"
	apperr "github.com/courseloop/autograder/internal/pkg/errors"
	"github.com/courseloop/autograder/internal/pkg/response"
)

const maxUploadBytes = 10 << 20

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case apperr.IsNotFound(err):
		response.Error(c, errcode.ErrNotFound, "not found")
	case apperr.IsConflict(err):
		response.Error(c, errcode.ErrConflict, "conflict")
	case apperr.IsModelUnavailable(err):
		response.Error(c, errcode.ErrAIUnavailable, "model unavailable")
	case errors.Is(err, apperr.ErrInvalid), apperr.IsInvalidConfiguration(err):
		response.Error(c, errcode.ErrInvalid, err.Error())
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

// readUpload pulls one uploaded file out of a multipart form field.
func readUpload(c *gin.Context, field string) (string, []byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("%w: form field %q with a file is required", apperr.ErrInvalid, field)
	}
	if header.Size > maxUploadBytes {
		return "", nil, fmt.Errorf("%w: file exceeds %d bytes", apperr.ErrInvalid, maxUploadBytes)
	}
	file, err := header.Open()
	if err != nil {
		return "", nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
}
