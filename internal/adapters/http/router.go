package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/telodyne/cdmavoice/internal/config"
	"github.com/telodyne/cdmavoice/internal/core"
	"github.com/telodyne/cdmavoice/internal/tracker"
)

type DialRequest struct {
	Number string `json:"number" binding:"required"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, tr *tracker.Tracker) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	api := r.Group("/api")

	api.GET("/calls", func(c *gin.Context) {
		snap, err := tr.Snapshot(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	api.POST("/dial", func(c *gin.Context) {
		var req DialRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid number"})
			return
		}
		if err := tr.Dial(c.Request.Context(), req.Number); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"number": req.Number})
	})

	api.POST("/calls/:slot/hangup", func(c *gin.Context) {
		call, ok := tr.CallForSlot(c.Param("slot"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown call slot"})
			return
		}
		if err := call.Hangup(); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"slot": c.Param("slot")})
	})

	api.GET("/ws/events", func(c *gin.Context) {
		ctl := NewEventsController(tr.Notifier())
		ctl.Handle(ctx, c)
	})

	return r
}

// statusFor maps the error taxonomy to HTTP: state conflicts are the
// caller's to resolve, anything else is on us or the radio.
func statusFor(err error) int {
	var cerr *core.CallStateError
	switch {
	case errors.As(err, &cerr):
		return http.StatusConflict
	case errors.Is(err, tracker.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
