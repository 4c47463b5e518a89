package session

import (
	"encoding/json"
	"fmt"

	"akshay-tray/kvstore"
)

const (
	Format24h = "24h"
	Format12h = "12h"

	DefaultDisplayFormat = Format24h
)

// Profile is the stored user record. Known fields have accessors; anything
// else the API returns is kept as is.
type Profile map[string]any

func (p Profile) String(key string) string {
	v, _ := p[key].(string)
	return v
}

func (p Profile) ID() string            { return p.String("id") }
func (p Profile) City() string          { return p.String("city") }
func (p Profile) Timezone() string      { return p.String("timezone") }
func (p Profile) DisplayFormat() string { return p.String("displayFormat") }

// Merge returns a copy of p with every key of update applied on top.
func (p Profile) Merge(update Profile) Profile {
	merged := make(Profile, len(p)+len(update))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range update {
		merged[k] = v
	}
	return merged
}

// User returns the stored profile. ok is false when there is no backend.
func (s *Store) User() (Profile, bool) {
	var user Profile
	if !s.read(kvstore.P(UserKey), &user) {
		return nil, false
	}
	if user == nil {
		user = Profile{}
	}
	return user, true
}

// SetUser merges update into the stored profile. Fields absent from update
// are kept.
func (s *Store) SetUser(update Profile) error {
	if s.backend == nil {
		return nil
	}
	current := Profile{}
	raw, ok, err := s.backend.Get(kvstore.P(UserKey))
	if err != nil {
		return fmt.Errorf("read user: %w", err)
	}
	if ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("decode user: %w", err)
		}
		if current == nil {
			current = Profile{}
		}
	}

	enc, err := json.Marshal(current.Merge(update))
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.backend.Set(kvstore.P(UserKey), enc); err != nil {
		return fmt.Errorf("set user: %w", err)
	}
	return nil
}

func (s *Store) DisplayFormat() string {
	user, ok := s.User()
	if !ok || user.DisplayFormat() == "" {
		return DefaultDisplayFormat
	}
	return user.DisplayFormat()
}

func (s *Store) SetDisplayFormat(format string) error {
	if format != Format24h && format != Format12h {
		return fmt.Errorf("unknown display format %q", format)
	}
	return s.SetUser(Profile{"displayFormat": format})
}

// ToggledFormat returns the other display format.
func ToggledFormat(format string) string {
	if format == Format24h {
		return Format12h
	}
	return Format24h
}
