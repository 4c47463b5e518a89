package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"akshay-tray/kvstore"
)

var ErrEmptyCacheKey = errors.New("session: empty query cache key")

// QueryCache is the region holding cached GraphQL responses keyed by query
// fingerprint.
type QueryCache struct {
	s *Store
}

func (s *Store) Cache() QueryCache {
	return QueryCache{s: s}
}

// Get returns the cached response for key, or nil when there is none.
func (c QueryCache) Get(key string) json.RawMessage {
	if c.s.backend == nil || key == "" {
		return nil
	}
	raw, ok, err := c.s.backend.Get(kvstore.P(QueryCacheKey, key))
	if err != nil {
		c.s.log.WithError(err).WithField("key", key).Warn("query cache read failed")
		return nil
	}
	if !ok || string(raw) == "null" {
		return nil
	}
	return raw
}

// All returns the whole cache. It is never nil.
func (c QueryCache) All() map[string]json.RawMessage {
	all := map[string]json.RawMessage{}
	if !c.s.read(kvstore.P(QueryCacheKey), &all) || all == nil {
		return map[string]json.RawMessage{}
	}
	return all
}

func (c QueryCache) Set(key string, value json.RawMessage) error {
	if c.s.backend == nil {
		return nil
	}
	if key == "" {
		return ErrEmptyCacheKey
	}
	if err := c.s.backend.Set(kvstore.P(QueryCacheKey, key), value); err != nil {
		return fmt.Errorf("set query cache %s: %w", key, err)
	}
	return nil
}

// Replace swaps the whole cache for entries, dropping every other key.
func (c QueryCache) Replace(entries map[string]json.RawMessage) error {
	if c.s.backend == nil {
		return nil
	}
	if entries == nil {
		entries = map[string]json.RawMessage{}
	}
	enc, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode query cache: %w", err)
	}
	if err := c.s.backend.Set(kvstore.P(QueryCacheKey), enc); err != nil {
		return fmt.Errorf("replace query cache: %w", err)
	}
	return nil
}

func (c QueryCache) Delete(key string) error {
	if c.s.backend == nil || key == "" {
		return nil
	}
	if err := c.s.backend.Delete(kvstore.P(QueryCacheKey, key)); err != nil {
		return fmt.Errorf("delete query cache %s: %w", key, err)
	}
	return nil
}
