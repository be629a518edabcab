package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	polyerrors "github.com/polyforge/polyforge/internal/errors"
	"github.com/polyforge/polyforge/internal/logger"
)

// respondError maps a spec §7 error kind to an HTTP status and writes a
// JSON error body, the way every handler in this package reports failure.
func respondError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error(ctx, "handler_error", "error", err.Error(), "status", status)
	} else {
		logger.Warn(ctx, "handler_error", "error", err.Error(), "status", status)
	}
	c.JSON(status, gin.H{"error": msg})
}

func classify(err error) (int, string) {
	var inputErr *polyerrors.InputError
	var authErr *polyerrors.AuthError
	var rateErr *polyerrors.RateLimitError
	var transientErr *polyerrors.TransientError

	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, "authentication/configuration error"
	case errors.As(err, &rateErr):
		return http.StatusServiceUnavailable, "rate limited, try again later"
	case errors.As(err, &transientErr):
		return http.StatusServiceUnavailable, "temporarily unavailable, try again"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// notFound writes a 404 with msg; used for the not-an-error "no row"
// repository return of (nil, nil) that most Get-by-id methods use.
func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{"error": msg})
}
