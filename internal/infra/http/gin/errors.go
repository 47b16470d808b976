package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentfleet/internal/app/dto"
	domainavailability "rentfleet/internal/domain/availability"
)

type errorResponse struct {
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	Conflicts []dto.Conflict `json:"conflicts,omitempty"`
	Details   string         `json:"details,omitempty"`
}

func statusFor(kind domainavailability.Kind) int {
	switch kind {
	case domainavailability.KindInvalidDateRange,
		domainavailability.KindInvalidRecurrence,
		domainavailability.KindInvalidScope,
		domainavailability.KindInvalidRequest:
		return http.StatusBadRequest
	case domainavailability.KindNotFound:
		return http.StatusNotFound
	case domainavailability.KindBookingConflict, domainavailability.KindNotAvailable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondWithError(c *gin.Context, logger *slog.Logger, err error) {
	kind := domainavailability.KindOf(err)
	status := statusFor(kind)
	body := errorResponse{Error: string(kind), Message: err.Error()}

	var typed *domainavailability.Error
	if errors.As(err, &typed) {
		if typed.Message != "" {
			body.Message = typed.Message
		}
		body.Details = typed.Details
		if len(typed.Conflicts) > 0 {
			body.Conflicts = dto.MapConflicts(typed.Conflicts)
		}
	}
	if status >= http.StatusInternalServerError {
		body.Message = "internal error"
		if logger != nil {
			logger.Error("availability request failed",
				"status", status,
				"error", err,
				"path", c.FullPath(),
				"request_id", c.GetString("request_id"))
		}
	}
	c.AbortWithStatusJSON(status, body)
}
