package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Rooms/internal/app"
	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
)

// ErrorType categorizes an error in the JSON body.
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeRateLimited  ErrorType = "rate_limited"
	ErrorTypeExternal     ErrorType = "external"
	ErrorTypeInternal     ErrorType = "internal"
)

type errorBody struct {
	Message   string    `json:"message"`
	Type      ErrorType `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Error errorBody `json:"error"`
}

func writeError(c *gin.Context, status int, typ ErrorType, err error) {
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: errorBody{
		Message:   err.Error(),
		Type:      typ,
		RequestID: c.GetString(requestIDKey),
	}})
}

// classify maps service errors onto an HTTP status and error type.
func classify(err error) (int, ErrorType) {
	switch {
	case errors.Is(err, core.ErrAccessDenied):
		return http.StatusForbidden, ErrorTypeForbidden
	case errors.Is(err, core.ErrRoomNotFound), errors.Is(err, core.ErrServerNotFound),
		errors.Is(err, core.ErrRecordingNotFound):
		return http.StatusNotFound, ErrorTypeNotFound
	case errors.Is(err, domain.ErrMeetingIDTaken), errors.Is(err, domain.ErrParamTaken),
		errors.Is(err, domain.ErrVoiceBridgeTaken):
		return http.StatusUnprocessableEntity, ErrorTypeConflict
	case app.IsValidation(err):
		return http.StatusUnprocessableEntity, ErrorTypeValidation
	case core.IsRemote(err):
		return http.StatusBadGateway, ErrorTypeExternal
	default:
		return http.StatusInternalServerError, ErrorTypeInternal
	}
}

// HandleError writes err with the status its kind calls for. Internal details stay in the log.
func HandleError(c *gin.Context, err error) {
	status, typ := classify(err)
	if typ == ErrorTypeInternal {
		log.Error().Err(err).Str("module", "adapters.http").Str("request_id", c.GetString(requestIDKey)).
			Str("path", c.Request.URL.Path).Msg("request failed")
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, ErrorResponse{Error: errorBody{
			Message:   "internal server error",
			Type:      typ,
			RequestID: c.GetString(requestIDKey),
		}})
		return
	}
	writeError(c, status, typ, err)
}
