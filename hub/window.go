package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const sendBuffer = 64

// Window is one connected renderer process.
type Window struct {
	ID        string
	WS        *websocket.Conn
	Limiter   *rate.Limiter
	Connected time.Time
	Delivered atomic.Int64
	Dropped   atomic.Int64
	Send      chan []byte
	Done      chan struct{}
	closeOnce sync.Once
}

func NewWindow(id string, ws *websocket.Conn, limiter *rate.Limiter) *Window {
	return &Window{
		ID:        id,
		WS:        ws,
		Limiter:   limiter,
		Connected: time.Now(),
		Send:      make(chan []byte, sendBuffer),
		Done:      make(chan struct{}),
	}
}

// CloseDone safely closes the Done channel exactly once.
func (w *Window) CloseDone() {
	w.closeOnce.Do(func() {
		close(w.Done)
	})
}
