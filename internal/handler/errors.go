package handler

import (
	"context"
	"errors"
	"net/http"

	"public-eye-service/internal/apperror"

	"github.com/gin-gonic/gin"
)

var statusByKind = map[apperror.Kind]int{
	apperror.KindValidation:          http.StatusBadRequest,
	apperror.KindNotFound:            http.StatusNotFound,
	apperror.KindInvalidState:        http.StatusBadRequest,
	apperror.KindAlreadyExists:       http.StatusBadRequest,
	apperror.KindInsufficientBalance: http.StatusBadRequest,
	apperror.KindUnauthorized:        http.StatusUnauthorized,
	apperror.KindForbidden:           http.StatusForbidden,
	apperror.KindUpstream:            http.StatusBadGateway,
	apperror.KindStorage:             http.StatusInternalServerError,
}

// respondError writes err as {"error", "code"} with the status for its kind
// and attaches it to the context for the request logger.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	kind := apperror.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}

	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": kind})
}

// respondBindError reports a malformed or incomplete request body.
func respondBindError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperror.KindValidation})
}
