package kvstore

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrEmptyPath = errors.New("kvstore: empty path")
	ErrNotObject = errors.New("kvstore: value is not an object")
)

// Path addresses a value inside the store. The first segment is the
// top-level key, the rest walk nested objects.
type Path []string

func P(segments ...string) Path {
	return Path(segments)
}

func (p Path) Root() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// PersistentStore is a durable JSON document store addressed by Path.
// A missing value is reported with ok == false and a nil error.
type PersistentStore interface {
	Get(path Path) (value json.RawMessage, ok bool, err error)
	Set(path Path, value json.RawMessage) error
	// SetMany writes several top-level keys in one operation.
	SetMany(entries map[string]json.RawMessage) error
	Delete(path Path) error
	Dump() (map[string]json.RawMessage, error)
	Restore(data map[string]json.RawMessage) error
}
