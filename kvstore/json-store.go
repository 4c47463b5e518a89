package kvstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"akshay-tray/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// JsonStore keeps the whole store in a single JSON file. The file is re-read
// on every operation so writes made by other processes are always visible.
type JsonStore struct {
	filePath string

	mu        sync.Mutex
	lastWrite [sha256.Size]byte
	log       *logrus.Entry
}

func NewJsonStore(filePath string) (*JsonStore, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("error creating store dir: %w", err)
	}
	js := &JsonStore{
		filePath: filePath,
		log:      logger.Component("jsonstore").WithField("file", filePath),
	}
	if _, err := os.Stat(filePath); errors.Is(err, fs.ErrNotExist) {
		if err := js.save(map[string]json.RawMessage{}); err != nil {
			return nil, err
		}
	}
	return js, nil
}

func (js *JsonStore) Path() string {
	return js.filePath
}

func (js *JsonStore) load() (map[string]json.RawMessage, error) {
	byteValue, err := os.ReadFile(js.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	if len(bytes.TrimSpace(byteValue)) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(byteValue, &data); err != nil {
		return nil, fmt.Errorf("error unmarshalling JSON: %w", err)
	}
	if data == nil {
		data = map[string]json.RawMessage{}
	}
	return data, nil
}

// save writes to a temp file and renames it over the store so readers in
// other processes never see a half-written document.
func (js *JsonStore) save(data map[string]json.RawMessage) error {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling JSON: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(js.filePath), filepath.Base(js.filePath)+".tmp*")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(output); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("error writing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error closing file: %w", err)
	}
	if err := os.Rename(tmpName, js.filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error replacing file: %w", err)
	}

	js.lastWrite = sha256.Sum256(output)
	js.log.Debug("successfully written to file")
	return nil
}

func (js *JsonStore) update(fn func(data map[string]json.RawMessage) error) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	data, err := js.load()
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	return js.save(data)
}

func (js *JsonStore) Get(path Path) (json.RawMessage, bool, error) {
	js.mu.Lock()
	data, err := js.load()
	js.mu.Unlock()
	if err != nil {
		return nil, false, err
	}
	v, ok := getIn(data, path)
	return v, ok, nil
}

func (js *JsonStore) Set(path Path, value json.RawMessage) error {
	return js.update(func(data map[string]json.RawMessage) error {
		return setIn(data, path, value)
	})
}

func (js *JsonStore) SetMany(entries map[string]json.RawMessage) error {
	return js.update(func(data map[string]json.RawMessage) error {
		for k, v := range entries {
			if err := setIn(data, P(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (js *JsonStore) Delete(path Path) error {
	return js.update(func(data map[string]json.RawMessage) error {
		return deleteIn(data, path)
	})
}

func (js *JsonStore) Dump() (map[string]json.RawMessage, error) {
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.load()
}

func (js *JsonStore) Restore(data map[string]json.RawMessage) error {
	js.mu.Lock()
	defer js.mu.Unlock()
	if data == nil {
		data = map[string]json.RawMessage{}
	}
	return js.save(data)
}

// Watch blocks until ctx is done, calling onChange whenever the store file
// is rewritten by someone other than this JsonStore.
func (js *JsonStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	defer watcher.Close()

	// Writes replace the file, so the directory is watched instead.
	if err := watcher.Add(filepath.Dir(js.filePath)); err != nil {
		return fmt.Errorf("error watching %s: %w", filepath.Dir(js.filePath), err)
	}
	js.log.Info("watching store file")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(js.filePath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if js.ownWrite() {
				continue
			}
			js.log.WithField("op", event.Op.String()).Info("store file changed externally")
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			js.log.WithError(err).Warn("watcher error")
		}
	}
}

func (js *JsonStore) ownWrite() bool {
	js.mu.Lock()
	defer js.mu.Unlock()
	content, err := os.ReadFile(js.filePath)
	if err != nil {
		return false
	}
	return sha256.Sum256(content) == js.lastWrite
}
