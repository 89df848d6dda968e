package middlewares

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/geocoder89/usershub/internal/apperr"
	"github.com/geocoder89/usershub/internal/http/respond"
	"github.com/gin-gonic/gin"
)

const internalMessage = "Internal server error"

// ErrorTranslator is the only place failure responses are decided. Handlers
// and middleware attach errors with ctx.Error and return; once the chain
// unwinds, the last error is rendered as an envelope.
func ErrorTranslator(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, message, details := Translate(err)

		attrs := []any{"status", status, "err", err, "request_id", respond.RequestID(c)}
		if status >= http.StatusInternalServerError {
			log.ErrorContext(c.Request.Context(), "request failed", attrs...)
		} else {
			log.DebugContext(c.Request.Context(), "request rejected", attrs...)
		}

		respond.Error(c, status, message, details)
	}
}

// Translate maps an error to status, client message and optional details.
// Causes of internal errors are never part of the message.
func Translate(err error) (int, string, any) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge, "Request body too large", nil
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, internalMessage, nil
	}

	status := appErr.Kind.Status()

	switch appErr.Kind {
	case apperr.KindValidation:
		var details any
		if appErr.Field != "" || appErr.Rule != "" {
			details = respond.FieldDetail{Field: appErr.Field, Rule: appErr.Rule}
		}
		return status, appErr.Message, details
	case apperr.KindInternal:
		if appErr.Message == "" {
			return status, internalMessage, nil
		}
		return status, appErr.Message, nil
	default:
		return status, appErr.Message, nil
	}
}

// NoRoute answers unmatched routes with the uniform 404 envelope.
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = c.Error(apperr.NotFound(fmt.Sprintf("Route %s %s not found", c.Request.Method, c.Request.URL.Path)))
		c.Abort()
	}
}

// Recovery turns panics into the uniform 500 envelope.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		log.ErrorContext(c.Request.Context(), "panic recovered",
			"panic", fmt.Sprint(recovered),
			"request_id", respond.RequestID(c),
		)
		respond.Error(c, http.StatusInternalServerError, internalMessage, nil)
	})
}
