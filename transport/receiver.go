package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"akshay-tray/ipc"
	"akshay-tray/logger"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Receiver holds a window's websocket to the coordinator and dispatches
// every broadcast to the registered listeners.
type Receiver struct {
	wsURL     string
	windowID  string
	listeners *ipc.Listeners
	dialer    *websocket.Dialer
	log       *logrus.Entry
}

func NewReceiver(coordinatorURL, windowID string, listeners *ipc.Listeners) (*Receiver, error) {
	u, err := url.Parse(strings.TrimRight(coordinatorURL, "/") + "/ws")
	if err != nil {
		return nil, fmt.Errorf("invalid coordinator url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return &Receiver{
		wsURL:     u.String(),
		windowID:  windowID,
		listeners: listeners,
		dialer:    websocket.DefaultDialer,
		log:       logger.Component("receiver").WithField("window", windowID),
	}, nil
}

// Run connects and reads until ctx is cancelled or the connection drops.
// Cancellation is not reported as an error.
func (r *Receiver) Run(ctx context.Context) error {
	header := http.Header{}
	header.Set(WindowIDHeader, r.windowID)
	conn, _, err := r.dialer.DialContext(ctx, r.wsURL, header)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dial %s: %w", r.wsURL, err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	r.log.Info("connected to coordinator")
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("ws read: %w", err)
		}

		msg, err := ipc.Unmarshal(raw)
		if err != nil {
			r.log.WithError(err).Warn("dropping malformed message")
			continue
		}
		r.listeners.Dispatch(msg)
	}
}
