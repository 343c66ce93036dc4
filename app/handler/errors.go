package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"verifier/internal/model"
	"verifier/pkg/logger"
	redisstore "verifier/pkg/store/redis"

	"github.com/gin-gonic/gin"
)

// errorStatus maps service errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidTask),
		errors.Is(err, model.ErrUnknownSource),
		errors.Is(err, model.ErrUnknownJobInstance):
		return http.StatusNotFound
	case errors.Is(err, model.ErrMissingPreDeploymentWindow),
		errors.Is(err, model.ErrMissingBaselineRun):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrUnknownVerificationMode),
		errors.Is(err, model.ErrInvalidWindow),
		errors.Is(err, model.ErrInvalidVerdict),
		errors.Is(err, model.ErrNoTasks):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrWindowInFlight),
		errors.Is(err, model.ErrTaskNotRunning):
		return http.StatusConflict
	case errors.Is(err, model.ErrStoreUnavailable),
		errors.Is(err, redisstore.ErrSourceLockTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, action string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorCtx(c.Request.Context(), "failed to %s: %v", action, err)
	} else {
		logger.WarnCtx(c.Request.Context(), "failed to %s: %v", action, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// epochMillisParam parses a required epoch-millisecond query parameter
func epochMillisParam(c *gin.Context, name string) (time.Time, bool) {
	ms, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be epoch milliseconds"})
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// requiredQuery reads a query parameter, replying 400 when it is missing
func requiredQuery(c *gin.Context, name string) (string, bool) {
	v := c.Query(name)
	if v == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " required"})
		return "", false
	}
	return v, true
}
