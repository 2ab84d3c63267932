package rest

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

var upgrader = websocket.Upgrader{
	// The API is meant to sit behind the deployment's own auth proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamEvents upgrades to a WebSocket and forwards row-list mutation events
// until either side goes away.
func (rc *rosterController) StreamEvents(c echo.Context) error {
	events, cancel, err := rc.Service.Subscribe(c.Param("room"))
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		cancel()
		return err
	}

	// Drain client frames so close handshakes are noticed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		cancel()
		conn.Close()
	}()

	for {
		select {
		case <-closed:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debugf("event stream closed | error: %v", err)
				return nil
			}
		}
	}
}
