package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/docattest/internal/api"
	"github.com/dmitrijs2005/docattest/internal/common"
)

// StatusCode maps an error kind to an HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrPolicyMismatch):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrProofInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrNotRecipient):
		return http.StatusForbidden
	case errors.Is(err, common.ErrAlreadySigned), errors.Is(err, common.ErrThresholdAlreadyMet),
		errors.Is(err, common.ErrNotReady), errors.Is(err, common.ErrFinalizationBusy):
		return http.StatusConflict
	case common.IsRetryable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *handlers) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	code := StatusCode(err)
	body := api.NewError(err)
	if code == http.StatusInternalServerError {
		h.log.Error(c.Request.Context(), "internal error", "error", err)
		body.Message = "internal error"
	}
	if body.Retryable {
		c.Header("Retry-After", "1")
	}
	c.AbortWithStatusJSON(code, body)
}
