package ipc

import (
	"sync"

	"akshay-tray/logger"
)

// Listener handles inbound messages on a channel. Implementations must be
// comparable (typically a pointer) so they can be removed again.
type Listener interface {
	Handle(msg *Message)
}

// Listeners is the inbound side of a window: handlers registered per
// channel. Registering the same listener twice keeps a single entry.
type Listeners struct {
	mu       sync.RWMutex
	channels map[string][]Listener
}

func NewListeners() *Listeners {
	return &Listeners{channels: make(map[string][]Listener)}
}

func (l *Listeners) On(channel string, listener Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.channels[channel] {
		if existing == listener {
			return
		}
	}
	l.channels[channel] = append(l.channels[channel], listener)
}

func (l *Listeners) RemoveListener(channel string, listener Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := l.channels[channel]
	for i, existing := range list {
		if existing == listener {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(l.channels, channel)
		return
	}
	l.channels[channel] = list
}

func (l *Listeners) ListenerCount(channel string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.channels[channel])
}

// Dispatch delivers msg to every listener on its channel and reports how
// many received it.
func (l *Listeners) Dispatch(msg *Message) int {
	l.mu.RLock()
	list := append([]Listener(nil), l.channels[msg.Channel]...)
	l.mu.RUnlock()

	if len(list) == 0 {
		logger.Component("ipc").WithField("channel", msg.Channel).Debug("no listener for message")
	}
	for _, listener := range list {
		listener.Handle(msg)
	}
	return len(list)
}
