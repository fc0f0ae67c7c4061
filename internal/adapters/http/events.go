package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/telodyne/cdmavoice/internal/tracker"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsController streams tracker events to one websocket client.
type EventsController struct {
	notifier *tracker.Notifier
}

func NewEventsController(n *tracker.Notifier) *EventsController {
	return &EventsController{notifier: n}
}

func (ctl *EventsController) Handle(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.events").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "adapters.events").Str("remote", ws.RemoteAddr().String()).Msg("event subscriber connected")

	events, unsubscribe := ctl.notifier.Subscribe()
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		// Drain the client side; its close or error ends the stream.
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		unsubscribe()
		cancel()
		_ = ws.Close()
		log.Info().Str("module", "adapters.events").Msg("event subscriber gone")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := ws.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "adapters.events").Msg("set deadline")
				return
			}
			if err := ws.WriteJSON(ev); err != nil {
				log.Error().Err(err).Str("module", "adapters.events").Msg("write event")
				return
			}
		}
	}
}
