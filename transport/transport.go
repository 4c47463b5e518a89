package transport

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"akshay-tray/ipc"
	"akshay-tray/logger"

	"github.com/sirupsen/logrus"
)

const WindowIDHeader = "X-Window-ID"

// HttpTransport carries a window's outbound notifications to the
// coordinator. Delivery is one-way: no acknowledgement, no retry.
type HttpTransport struct {
	windowID       string
	coordinatorURL string
	client         *http.Client
	log            *logrus.Entry

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewHTTPTransport(windowID, coordinatorURL string, client *http.Client) *HttpTransport {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HttpTransport{
		windowID:       windowID,
		coordinatorURL: strings.TrimRight(coordinatorURL, "/"),
		client:         client,
		log:            logger.Component("transport").WithField("window", windowID),
	}
}

// Send posts the notification in the background and returns immediately.
func (t *HttpTransport) Send(channel string, payload any) {
	msg, err := ipc.NewMessage(channel, payload)
	if err != nil {
		t.log.WithError(err).WithField("channel", channel).Error("failed to build message")
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.log.WithField("channel", channel).Warn("transport closed, dropping message")
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		if err := t.SendMessage(msg); err != nil {
			t.log.WithError(err).WithField("channel", channel).Warn("failed to send message")
		}
	}()
}

// SendMessage posts msg synchronously to /ipc/{channel}.
func (t *HttpTransport) SendMessage(msg *ipc.Message) error {
	data, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	target := fmt.Sprintf("%s/ipc/%s", t.coordinatorURL, url.PathEscape(msg.Channel))
	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(WindowIDHeader, t.windowID)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send message to %s, status: %v", target, resp.Status)
	}
	t.log.WithField("channel", msg.Channel).Debug("message delivered to coordinator")
	return nil
}

// Close stops accepting messages and waits for in-flight sends.
func (t *HttpTransport) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.wg.Wait()
}
