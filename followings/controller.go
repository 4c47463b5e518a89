// Package followings holds the non-visual logic of the followings list:
// the display-format toggle and the cache invalidation rule.
package followings

import (
	"context"
	"fmt"

	"akshay-tray/ipc"
	"akshay-tray/logger"
	"akshay-tray/session"

	"github.com/sirupsen/logrus"
)

// FormatUpdater persists a display format on the server (the GraphQL
// updateUser mutation).
type FormatUpdater interface {
	UpdateDisplayFormat(ctx context.Context, format string) error
}

// Controller wires a followings view to its window's listeners and store.
type Controller struct {
	store     *session.Store
	listeners *ipc.Listeners
	notifier  session.Notifier
	updater   FormatUpdater
	log       *logrus.Entry

	// OnFormatChanged runs after a successful toggle so the view can
	// re-render.
	OnFormatChanged func(format string)
}

// NewController builds a Controller. listeners and notifier may be nil when
// the window has no IPC.
func NewController(store *session.Store, listeners *ipc.Listeners, notifier session.Notifier, updater FormatUpdater) *Controller {
	return &Controller{
		store:     store,
		listeners: listeners,
		notifier:  notifier,
		updater:   updater,
		log:       logger.Component("followings"),
	}
}

// Mount starts listening for toggle-format unless a listener is already
// registered on the channel.
func (c *Controller) Mount() {
	if c.listeners == nil {
		return
	}
	if c.listeners.ListenerCount(ipc.ChannelToggleFormat) == 0 {
		c.listeners.On(ipc.ChannelToggleFormat, c)
	}
}

func (c *Controller) Unmount() {
	if c.listeners == nil {
		return
	}
	c.listeners.RemoveListener(ipc.ChannelToggleFormat, c)
}

// Handle implements ipc.Listener.
func (c *Controller) Handle(msg *ipc.Message) {
	if _, err := c.ToggleFormat(context.Background()); err != nil {
		c.log.WithError(err).Warn("display format toggle failed")
	}
}

// ToggleFormat flips the display format. The store is only updated once the
// server accepted the change.
func (c *Controller) ToggleFormat(ctx context.Context) (string, error) {
	newFormat := session.ToggledFormat(c.store.DisplayFormat())

	if c.updater != nil {
		if err := c.updater.UpdateDisplayFormat(ctx, newFormat); err != nil {
			return "", fmt.Errorf("update display format: %w", err)
		}
	}
	if err := c.store.SetDisplayFormat(newFormat); err != nil {
		return "", err
	}

	c.log.WithField("format", newFormat).Info("display format changed")
	if c.OnFormatChanged != nil {
		c.OnFormatChanged(newFormat)
	}
	return newFormat, nil
}

// OpenChat asks the coordinator to open the support chat for user.
func (c *Controller) OpenChat(user session.Profile) {
	if c.notifier == nil {
		return
	}
	c.notifier.Send(ipc.ChannelOpenChat, user)
}
