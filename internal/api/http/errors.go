package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/storage"
)

// statusFor maps icon errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, icon.ErrInvalidBinding),
		errors.Is(err, icon.ErrInvalidImage),
		errors.Is(err, storage.ErrInvalidAppID):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, icon.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}
