package main

import (
	"context"
	"fmt"
	"os"

	"akshay-tray/config"
	"akshay-tray/kvstore"
	"akshay-tray/session"
	"akshay-tray/transport"

	"github.com/google/uuid"
)

// openLocalBackend opens the durable store the coordinator owns.
func openLocalBackend(c config.Config) (kvstore.PersistentStore, func() error, error) {
	noop := func() error { return nil }
	switch c.Backend {
	case config.BackendJSON:
		js, err := kvstore.NewJsonStore(c.StorePath())
		if err != nil {
			return nil, nil, err
		}
		return js, noop, nil
	case config.BackendSQLite:
		if err := os.MkdirAll(c.DataDir, 0755); err != nil {
			return nil, nil, err
		}
		db, err := kvstore.NewSQLiteStore(c.StorePath())
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case config.BackendMemory:
		return kvstore.NewMemoryStore(), noop, nil
	default:
		return nil, nil, fmt.Errorf("backend %q cannot be served locally", c.Backend)
	}
}

// windowSession builds the Store a window works with. Windows reach the
// durable store through the coordinator; with backend "none" they run
// inert.
func windowSession(ctx context.Context, c config.Config) (*session.Store, *transport.HttpTransport, func()) {
	windowID := c.WindowID
	if windowID == "" {
		windowID = uuid.NewString()
	}

	var sender *transport.HttpTransport
	var notifier session.Notifier
	if c.CoordinatorURL != "" {
		sender = transport.NewHTTPTransport(windowID, c.CoordinatorURL, nil)
		notifier = sender
	}

	closeBackend := func() error { return nil }
	dial := func(ctx context.Context) (kvstore.PersistentStore, error) {
		switch c.Backend {
		case config.BackendNone:
			return nil, fmt.Errorf("store disabled")
		case config.BackendRemote:
			rs := kvstore.NewRemoteStore(c.CoordinatorURL, nil)
			if err := rs.Ping(ctx); err != nil {
				return nil, err
			}
			return rs, nil
		default:
			backend, closer, err := openLocalBackend(c)
			if err != nil {
				return nil, err
			}
			closeBackend = closer
			return backend, nil
		}
	}

	store := session.Open(ctx, dial, notifier)
	cleanup := func() {
		if sender != nil {
			sender.Close()
		}
		closeBackend()
	}
	return store, sender, cleanup
}
