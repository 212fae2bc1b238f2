package ws

import (
	nethttp "net/http"

	"github.com/gorilla/websocket"

	botzie "github.com/manovDev/agario-botzie"
	"github.com/manovDev/agario-botzie/internal/telemetry"
)

const maxInboundMessage = 4096

// Feed is the snapshot source observers attach to.
type Feed interface {
	Subscribe(conn botzie.SubscriberConn) *botzie.Subscriber
	Unsubscribe(id string, reason string)
}

type HandlerConfig struct {
	Logger telemetry.Logger
}

type Handler struct {
	feed     Feed
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(feed Feed, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.DefaultLogger()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		feed:     feed,
		logger:   logger,
		upgrader: upgrader,
	}
}

// Handle upgrades the request and keeps the observer subscribed until the
// peer goes away. Inbound messages are read and discarded.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	wsConn.SetReadLimit(maxInboundMessage)

	// The first frame arrives with the next broadcast tick.
	sub := h.feed.Subscribe(conn{ws: wsConn})

	for {
		if _, _, err := wsConn.ReadMessage(); err != nil {
			h.feed.Unsubscribe(sub.ID(), "client_closed")
			return
		}
	}
}
