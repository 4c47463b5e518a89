package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RemoteStore is a PersistentStore served by the coordinator process over
// its /kv HTTP API. Windows use it instead of opening the file themselves.
type RemoteStore struct {
	baseURL string
	client  *http.Client
}

func NewRemoteStore(baseURL string, client *http.Client) *RemoteStore {
	c := http.Client{Timeout: 5 * time.Second}
	if client != nil {
		c = *client
	}
	// A redirect would turn a write into a GET of some other key.
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &RemoteStore{baseURL: strings.TrimRight(baseURL, "/"), client: &c}
}

// EscapePath encodes each segment so keys containing "/" survive routing.
// Dot segments are percent-encoded so nothing along the way resolves them.
func EscapePath(path Path) string {
	parts := make([]string, len(path))
	for i, seg := range path {
		switch seg {
		case ".", "..":
			parts[i] = strings.Repeat("%2E", len(seg))
		default:
			parts[i] = url.PathEscape(seg)
		}
	}
	return strings.Join(parts, "/")
}

// Ping checks that the coordinator answers.
func (rs *RemoteStore) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rs.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := rs.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping coordinator: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping coordinator: status %s", resp.Status)
	}
	return nil
}

func (rs *RemoteStore) do(method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, rs.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := rs.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func expectStatus(resp *http.Response, codes ...int) error {
	for _, c := range codes {
		if resp.StatusCode == c {
			return nil
		}
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("remote store: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
}

func (rs *RemoteStore) Get(path Path) (json.RawMessage, bool, error) {
	if len(path) == 0 {
		return nil, false, ErrEmptyPath
	}
	resp, err := rs.do(http.MethodGet, "/kv/"+EscapePath(path), nil)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return nil, false, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(body), true, nil
}

func (rs *RemoteStore) Set(path Path, value json.RawMessage) error {
	if len(path) == 0 {
		return ErrEmptyPath
	}
	if value == nil {
		value = json.RawMessage(jsonNull)
	}
	resp, err := rs.do(http.MethodPut, "/kv/"+EscapePath(path), value)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return expectStatus(resp, http.StatusNoContent, http.StatusOK)
}

func (rs *RemoteStore) SetMany(entries map[string]json.RawMessage) error {
	body, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	resp, err := rs.do(http.MethodPost, "/kv", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return expectStatus(resp, http.StatusNoContent, http.StatusOK)
}

func (rs *RemoteStore) Delete(path Path) error {
	if len(path) == 0 {
		return ErrEmptyPath
	}
	resp, err := rs.do(http.MethodDelete, "/kv/"+EscapePath(path), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return expectStatus(resp, http.StatusNoContent, http.StatusOK)
}

func (rs *RemoteStore) Dump() (map[string]json.RawMessage, error) {
	resp, err := rs.do(http.MethodGet, "/kv", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}
	data := map[string]json.RawMessage{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode dump: %w", err)
	}
	return data, nil
}

func (rs *RemoteStore) Restore(data map[string]json.RawMessage) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	resp, err := rs.do(http.MethodPut, "/kv", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return expectStatus(resp, http.StatusNoContent, http.StatusOK)
}
