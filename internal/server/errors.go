package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/civic/backend/internal/proposals"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps store failures onto HTTP statuses. The service code is
// echoed so clients can tell failures apart without parsing messages.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	slug := "internal_error"
	switch {
	case errors.Is(err, proposals.ErrNotFound):
		status = http.StatusNotFound
		slug = "not_found"
	case errors.Is(err, proposals.ErrInvalidInput):
		status = http.StatusBadRequest
		slug = "invalid_request"
	}

	body := gin.H{"error": slug}
	var serviceErr *proposals.ServiceError
	if errors.As(err, &serviceErr) {
		body["code"] = serviceErr.Code()
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "code": code})
}
