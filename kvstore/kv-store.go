package kvstore

import (
	"encoding/json"
	"fmt"
)

// KeyValueStore layers a defaults snapshot over a PersistentStore. A
// top-level key missing from the backend reads as its default.
type KeyValueStore struct {
	PersistentStore PersistentStore
	defaults        map[string]json.RawMessage
}

func NewKeyValueStore(store PersistentStore, defaults map[string]json.RawMessage) *KeyValueStore {
	if defaults == nil {
		defaults = map[string]json.RawMessage{}
	}
	return &KeyValueStore{PersistentStore: store, defaults: defaults}
}

// Seed writes every default the backend does not hold yet.
func (kv *KeyValueStore) Seed() error {
	current, err := kv.PersistentStore.Dump()
	if err != nil {
		return fmt.Errorf("seed defaults: %w", err)
	}
	missing := map[string]json.RawMessage{}
	for k, v := range kv.defaults {
		if _, ok := current[k]; !ok {
			missing[k] = v
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return kv.PersistentStore.SetMany(missing)
}

func (kv *KeyValueStore) Get(path Path) (json.RawMessage, bool, error) {
	v, ok, err := kv.PersistentStore.Get(path)
	if err != nil || ok {
		return v, ok, err
	}
	if _, rootStored, err := kv.PersistentStore.Get(P(path.Root())); err != nil || rootStored {
		return nil, false, err
	}
	v, ok = getIn(kv.defaults, path)
	return v, ok, nil
}

func (kv *KeyValueStore) Set(path Path, value json.RawMessage) error {
	return kv.PersistentStore.Set(path, value)
}

func (kv *KeyValueStore) SetMany(entries map[string]json.RawMessage) error {
	return kv.PersistentStore.SetMany(entries)
}

func (kv *KeyValueStore) Delete(path Path) error {
	return kv.PersistentStore.Delete(path)
}

func (kv *KeyValueStore) Dump() (map[string]json.RawMessage, error) {
	data, err := kv.PersistentStore.Dump()
	if err != nil {
		return nil, err
	}
	for k, v := range kv.defaults {
		if _, ok := data[k]; !ok {
			data[k] = v
		}
	}
	return data, nil
}

func (kv *KeyValueStore) Restore(data map[string]json.RawMessage) error {
	return kv.PersistentStore.Restore(data)
}
