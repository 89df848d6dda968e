package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/usershub/internal/http/respond"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	ping         func(ctx context.Context) error
	shuttingDown func() bool
	now          func() time.Time
}

// NewHealthHandler takes the store ping used by the readiness probe; nil means always ready.
// shuttingDown may be nil.
func NewHealthHandler(ping func(ctx context.Context) error, shuttingDown func() bool) *HealthHandler {
	return &HealthHandler{ping: ping, shuttingDown: shuttingDown, now: time.Now}
}

// Health is the liveness probe; it never touches the store.
func (h *HealthHandler) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Server is running",
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	if h.shuttingDown != nil && h.shuttingDown() {
		respond.JSON(ctx, http.StatusServiceUnavailable, respond.Envelope{
			Success:   false,
			Message:   "Shutting down",
			RequestID: respond.RequestID(ctx),
		})
		return
	}

	if h.ping != nil {
		cctx, cancel := context.WithTimeout(ctx.Request.Context(), time.Second)
		defer cancel()

		if err := h.ping(cctx); err != nil {
			respond.JSON(ctx, http.StatusServiceUnavailable, respond.Envelope{
				Success:   false,
				Message:   "Store unavailable",
				RequestID: respond.RequestID(ctx),
			})
			return
		}
	}

	respond.JSON(ctx, http.StatusOK, respond.Success("ready", nil))
}
