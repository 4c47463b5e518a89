package hub

import (
	"sort"
	"sync"
	"time"

	"akshay-tray/ipc"
	"akshay-tray/logger"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// DefaultMessagesPerMinute bounds what a single window may push through
	// its websocket.
	DefaultMessagesPerMinute = 120
)

// Hub is the coordinator's registry of windows. It fans notifications out
// to every window; windows never talk to each other directly.
type Hub struct {
	mu        sync.RWMutex
	windows   map[string]*Window
	perMinute int
	startTime time.Time
	log       *logrus.Entry
}

func NewHub(messagesPerMinute int) *Hub {
	if messagesPerMinute <= 0 {
		messagesPerMinute = DefaultMessagesPerMinute
	}
	return &Hub{
		windows:   make(map[string]*Window),
		perMinute: messagesPerMinute,
		startTime: time.Now(),
		log:       logger.Component("hub"),
	}
}

func (h *Hub) NewLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(h.perMinute)/60.0), h.perMinute)
}

func (h *Hub) StartTime() time.Time {
	return h.startTime
}

func (h *Hub) WindowCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.windows)
}

// WindowStats is a point-in-time view of one connection.
type WindowStats struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
	Delivered   int64     `json:"delivered"`
	Dropped     int64     `json:"dropped"`
}

// Stats lists the connected windows, oldest first.
func (h *Hub) Stats() []WindowStats {
	h.mu.RLock()
	stats := make([]WindowStats, 0, len(h.windows))
	for _, w := range h.windows {
		stats = append(stats, WindowStats{
			ID:          w.ID,
			ConnectedAt: w.Connected,
			Delivered:   w.Delivered.Load(),
			Dropped:     w.Dropped.Load(),
		})
	}
	h.mu.RUnlock()
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].ConnectedAt.Before(stats[j].ConnectedAt)
	})
	return stats
}

// Register adds w, replacing and closing any window with the same ID.
func (h *Hub) Register(w *Window) {
	h.mu.Lock()
	existing := h.windows[w.ID]
	h.windows[w.ID] = w
	h.mu.Unlock()

	if existing != nil && existing != w {
		existing.CloseDone()
	}
	h.log.WithField("window", w.ID).Info("window connected")
}

func (h *Hub) Unregister(w *Window) {
	h.mu.Lock()
	if h.windows[w.ID] == w {
		delete(h.windows, w.ID)
	}
	h.mu.Unlock()
	w.CloseDone()
	h.log.WithField("window", w.ID).Info("window disconnected")
}

// Broadcast queues msg on every window and returns how many accepted it.
// A window with a full queue misses the message.
func (h *Hub) Broadcast(msg *ipc.Message) int {
	data, err := msg.Marshal()
	if err != nil {
		h.log.WithError(err).Error("error marshaling broadcast")
		return 0
	}

	h.mu.RLock()
	targets := make([]*Window, 0, len(h.windows))
	for _, w := range h.windows {
		targets = append(targets, w)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, w := range targets {
		select {
		case w.Send <- data:
			w.Delivered.Add(1)
			delivered++
		default:
			w.Dropped.Add(1)
			h.log.WithField("window", w.ID).Warn("window send buffer full, dropping message")
		}
	}
	h.log.WithFields(logrus.Fields{"channel": msg.Channel, "windows": delivered}).Debug("broadcast")
	return delivered
}

// Forward handles a message a window pushed over its websocket.
func (h *Hub) Forward(from *Window, msg *ipc.Message) bool {
	if from.Limiter != nil && !from.Limiter.Allow() {
		h.log.WithField("window", from.ID).Warn("rate limit exceeded, dropping message")
		return false
	}
	if !KnownChannel(msg.Channel) {
		h.log.WithFields(logrus.Fields{"window": from.ID, "channel": msg.Channel}).Warn("unknown channel")
		return false
	}
	h.Broadcast(msg)
	return true
}

// Close disconnects every window.
func (h *Hub) Close() {
	h.mu.Lock()
	windows := h.windows
	h.windows = make(map[string]*Window)
	h.mu.Unlock()
	for _, w := range windows {
		w.CloseDone()
	}
}

func KnownChannel(channel string) bool {
	switch channel {
	case ipc.ChannelTokenChanged, ipc.ChannelToggleFormat, ipc.ChannelOpenChat, ipc.ChannelStoreChanged:
		return true
	}
	return false
}
