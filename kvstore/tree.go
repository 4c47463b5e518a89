package kvstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var jsonNull = []byte("null")

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if isNull(raw) {
		return obj, nil
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, ErrNotObject
	}
	if obj == nil {
		obj = map[string]json.RawMessage{}
	}
	return obj, nil
}

func getIn(doc map[string]json.RawMessage, path Path) (json.RawMessage, bool) {
	if len(path) == 0 {
		return nil, false
	}
	cur := doc
	for i, seg := range path {
		v, ok := cur[seg]
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		next, err := decodeObject(v)
		if err != nil {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

func setIn(doc map[string]json.RawMessage, path Path, value json.RawMessage) error {
	if len(path) == 0 {
		return ErrEmptyPath
	}
	if len(path) == 1 {
		if value == nil {
			value = json.RawMessage(jsonNull)
		}
		doc[path[0]] = value
		return nil
	}

	child, err := decodeObject(doc[path[0]])
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	if err := setIn(child, path[1:], value); err != nil {
		return err
	}
	encoded, err := json.Marshal(child)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path[0], err)
	}
	doc[path[0]] = encoded
	return nil
}

// deleteIn removes the value at path. Missing intermediate objects are not
// an error.
func deleteIn(doc map[string]json.RawMessage, path Path) error {
	if len(path) == 0 {
		return ErrEmptyPath
	}
	if len(path) == 1 {
		delete(doc, path[0])
		return nil
	}

	raw, ok := doc[path[0]]
	if !ok {
		return nil
	}
	child, err := decodeObject(raw)
	if err != nil {
		return nil
	}
	if err := deleteIn(child, path[1:]); err != nil {
		return err
	}
	encoded, err := json.Marshal(child)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path[0], err)
	}
	doc[path[0]] = encoded
	return nil
}
