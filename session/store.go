// Package session holds a process's view of the shared session state: the
// auth token, the user profile and the GraphQL query cache.
//
// A Store is built once at process start and handed to every consumer. It
// may have no backend, when the process has no privileged context; every
// accessor then does nothing and returns its fallback value.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"akshay-tray/ipc"
	"akshay-tray/kvstore"
	"akshay-tray/logger"

	"github.com/sirupsen/logrus"
)

// Store keys.
const (
	TokenKey      = "token"
	UserKey       = "user"
	QueryCacheKey = "urql-cache"
)

// Defaults is the snapshot a fresh backend is seeded with.
func Defaults() map[string]json.RawMessage {
	return map[string]json.RawMessage{
		TokenKey:      json.RawMessage(`null`),
		UserKey:       json.RawMessage(`{}`),
		QueryCacheKey: json.RawMessage(`{}`),
	}
}

// Notifier is the outbound channel to the coordinator process.
type Notifier interface {
	Send(channel string, payload any)
}

type Store struct {
	backend  kvstore.PersistentStore
	notifier Notifier
	log      *logrus.Entry
}

// New builds a Store. A nil backend gives an inert store and a nil notifier
// disables token-change notifications.
func New(backend kvstore.PersistentStore, notifier Notifier) *Store {
	return &Store{
		backend:  backend,
		notifier: notifier,
		log:      logger.Component("session"),
	}
}

// Open dials the backend and wraps it with the default snapshot. When dial
// fails the process is treated as unprivileged and an inert Store is
// returned.
func Open(ctx context.Context, dial func(ctx context.Context) (kvstore.PersistentStore, error), notifier Notifier) *Store {
	s := New(nil, notifier)
	if dial == nil {
		return s
	}
	backend, err := dial(ctx)
	if err != nil || backend == nil {
		s.log.WithError(err).Info("no store backend available, running inert")
		return s
	}
	kv := kvstore.NewKeyValueStore(backend, Defaults())
	if err := kv.Seed(); err != nil {
		s.log.WithError(err).Warn("failed to seed store defaults")
	}
	s.backend = kv
	return s
}

// Available reports whether the Store has a backend.
func (s *Store) Available() bool {
	return s.backend != nil
}

func (s *Store) read(path kvstore.Path, target any) bool {
	if s.backend == nil {
		return false
	}
	raw, ok, err := s.backend.Get(path)
	if err != nil {
		s.log.WithError(err).WithField("path", path.String()).Warn("store read failed")
		return false
	}
	if !ok || string(raw) == "null" {
		return false
	}
	if err := json.Unmarshal(raw, target); err != nil {
		s.log.WithError(err).WithField("path", path.String()).Warn("store value has unexpected shape")
		return false
	}
	return true
}

func (s *Store) notifyToken(token string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Send(ipc.ChannelTokenChanged, tokenPayload(token))
}

func tokenPayload(token string) any {
	if token == "" {
		return nil
	}
	return token
}

func encodeToken(token string) json.RawMessage {
	if token == "" {
		return json.RawMessage(`null`)
	}
	enc, _ := json.Marshal(token)
	return enc
}

// Token returns the stored auth token. ok is false when there is no backend
// or no token.
func (s *Store) Token() (token string, ok bool) {
	ok = s.read(kvstore.P(TokenKey), &token)
	return token, ok
}

// SetToken stores token and tells the coordinator about it. An empty token
// clears the slot.
func (s *Store) SetToken(token string) error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.Set(kvstore.P(TokenKey), encodeToken(token)); err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	s.notifyToken(token)
	return nil
}

// SetUserAndToken replaces the profile and the token in a single write and
// sends one token-changed notification.
func (s *Store) SetUserAndToken(user Profile, token string) error {
	if s.backend == nil {
		return nil
	}
	if user == nil {
		user = Profile{}
	}
	encUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	err = s.backend.SetMany(map[string]json.RawMessage{
		UserKey:  encUser,
		TokenKey: encodeToken(token),
	})
	if err != nil {
		return fmt.Errorf("set user and token: %w", err)
	}
	s.notifyToken(token)
	return nil
}

// Clear resets every region to its default, as on logout.
func (s *Store) Clear() error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.SetMany(Defaults()); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	s.notifyToken("")
	return nil
}
