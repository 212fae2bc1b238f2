package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

// conn adapts a websocket connection to botzie.SubscriberConn. Writes are
// serialised by the owning subscriber.
type conn struct {
	ws *websocket.Conn
}

func (c conn) Write(data []byte) error {
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c conn) SetWriteDeadline(deadline time.Time) error {
	return c.ws.SetWriteDeadline(deadline)
}

func (c conn) Close() error {
	return c.ws.Close()
}
