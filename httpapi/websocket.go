package httpapi

import (
	"time"

	"akshay-tray/hub"
	"akshay-tray/ipc"
	"akshay-tray/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 1 << 20
)

// HandleConnection runs a window's websocket until it disconnects.
func HandleConnection(h *hub.Hub, ws *websocket.Conn, windowID string) {
	window := hub.NewWindow(windowID, ws, h.NewLimiter())
	defer ws.Close()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	h.Register(window)
	defer h.Unregister(window)

	go writePump(window)
	readPump(h, window)
}

func readPump(h *hub.Hub, window *hub.Window) {
	log := logger.Component("websocket").WithField("window", window.ID)
	for {
		_, raw, err := window.WS.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("ws read error")
			}
			return
		}
		window.WS.SetReadDeadline(time.Now().Add(pongWait))

		msg, err := ipc.Unmarshal(raw)
		if err != nil {
			log.WithError(err).Warn("invalid message from window")
			continue
		}
		h.Forward(window, msg)
	}
}

func writePump(window *hub.Window) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-window.Send:
			window.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := window.WS.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			window.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := window.WS.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-window.Done:
			window.WS.SetWriteDeadline(time.Now().Add(writeWait))
			window.WS.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			window.WS.Close()
			return
		}
	}
}
