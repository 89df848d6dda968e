package respond

import (
	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// Envelope is the body of every JSON response the API writes.
type Envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Count     *int   `json:"count,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// FieldDetail names the field and rule behind a validation failure.
type FieldDetail struct {
	Field string `json:"field,omitempty"`
	Rule  string `json:"rule,omitempty"`
}

func RequestID(ctx *gin.Context) string {
	v, ok := ctx.Get(RequestIDKey)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func Success(message string, data any) Envelope {
	return Envelope{Success: true, Message: message, Data: data}
}

func SuccessList(message string, data any, count int) Envelope {
	return Envelope{Success: true, Message: message, Data: data, Count: &count}
}

func JSON(ctx *gin.Context, status int, env Envelope) {
	ctx.JSON(status, env)
}

// Error writes a failure envelope and aborts the chain.
func Error(ctx *gin.Context, status int, message string, details any) {
	ctx.AbortWithStatusJSON(status, Envelope{
		Success:   false,
		Message:   message,
		RequestID: RequestID(ctx),
		Details:   details,
	})
}
