package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"akshay-tray/ipc"
	"akshay-tray/kvstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	channel string
	payload any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (n *recordingNotifier) Send(channel string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{channel, payload})
}

func (n *recordingNotifier) all() []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sent(nil), n.sent...)
}

// failingStore fails every write.
type failingStore struct {
	*kvstore.MemoryStore
}

var errDisk = errors.New("disk full")

func (f failingStore) Set(kvstore.Path, json.RawMessage) error { return errDisk }
func (f failingStore) SetMany(map[string]json.RawMessage) error { return errDisk }
func (f failingStore) Delete(kvstore.Path) error { return errDisk }
func (f failingStore) Restore(map[string]json.RawMessage) error { return errDisk }

func newTestStore(t *testing.T) (*Store, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	s := Open(context.Background(), func(context.Context) (kvstore.PersistentStore, error) {
		return kvstore.NewMemoryStore(), nil
	}, n)
	require.True(t, s.Available())
	return s, n
}

func newInertStore() (*Store, *recordingNotifier) {
	n := &recordingNotifier{}
	s := Open(context.Background(), func(context.Context) (kvstore.PersistentStore, error) {
		return nil, errors.New("no privileged context")
	}, n)
	return s, n
}

func TestDefaultsSnapshot(t *testing.T) {
	s, n := newTestStore(t)

	_, ok := s.Token()
	assert.False(t, ok)

	user, ok := s.User()
	require.True(t, ok)
	assert.Empty(t, user)

	assert.Empty(t, s.Cache().All())
	assert.Empty(t, n.all())
}

func TestSetTokenThenToken(t *testing.T) {
	s, n := newTestStore(t)

	require.NoError(t, s.SetToken("abc"))

	token, ok := s.Token()
	require.True(t, ok)
	assert.Equal(t, "abc", token)
	assert.Equal(t, []sent{{ipc.ChannelTokenChanged, "abc"}}, n.all())
}

func TestSetEmptyTokenClearsSlot(t *testing.T) {
	s, n := newTestStore(t)
	require.NoError(t, s.SetToken("abc"))
	require.NoError(t, s.SetToken(""))

	_, ok := s.Token()
	assert.False(t, ok)

	got := n.all()
	require.Len(t, got, 2)
	assert.Nil(t, got[1].payload)
}

func TestInertStoreIsNoop(t *testing.T) {
	s, n := newInertStore()
	assert.False(t, s.Available())

	require.NoError(t, s.SetToken("abc"))
	require.NoError(t, s.SetUser(Profile{"id": "u1"}))
	require.NoError(t, s.SetUserAndToken(Profile{"id": "u1"}, "abc"))
	require.NoError(t, s.Cache().Set("k", json.RawMessage(`1`)))
	require.NoError(t, s.Cache().Replace(map[string]json.RawMessage{"a": json.RawMessage(`1`)}))
	require.NoError(t, s.Cache().Delete("k"))
	require.NoError(t, s.Clear())
	require.NoError(t, s.SetDisplayFormat(Format12h))

	_, ok := s.Token()
	assert.False(t, ok)
	_, ok = s.User()
	assert.False(t, ok)
	assert.Nil(t, s.Cache().Get("k"))
	assert.Equal(t, map[string]json.RawMessage{}, s.Cache().All())
	assert.Equal(t, DefaultDisplayFormat, s.DisplayFormat())

	assert.Empty(t, n.all(), "inert store must not notify")
}

func TestNilNotifier(t *testing.T) {
	s := New(kvstore.NewMemoryStore(), nil)
	require.NoError(t, s.SetToken("abc"))
	token, ok := s.Token()
	require.True(t, ok)
	assert.Equal(t, "abc", token)
}

func TestFailedWriteSendsNothing(t *testing.T) {
	n := &recordingNotifier{}
	s := New(failingStore{kvstore.NewMemoryStore()}, n)

	assert.ErrorIs(t, s.SetToken("abc"), errDisk)
	assert.ErrorIs(t, s.SetUserAndToken(Profile{"id": "u1"}, "abc"), errDisk)
	assert.ErrorIs(t, s.Clear(), errDisk)
	assert.Empty(t, n.all())
}

func TestSetUserMergesInCallOrder(t *testing.T) {
	s, _ := newTestStore(t)

	partials := []Profile{
		{"id": "u1"},
		{"city": "NYC"},
		{"timezone": "America/New_York"},
		{"city": "Berlin"},
	}
	for _, p := range partials {
		require.NoError(t, s.SetUser(p))
	}

	user, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, Profile{
		"id":       "u1",
		"city":     "Berlin",
		"timezone": "America/New_York",
	}, user)
	assert.Equal(t, "u1", user.ID())
	assert.Equal(t, "Berlin", user.City())
	assert.Equal(t, "America/New_York", user.Timezone())
}

func TestUserReadsWithoutWriting(t *testing.T) {
	backend := kvstore.NewMemoryStore()
	s := New(backend, nil)
	require.NoError(t, s.SetUser(Profile{"id": "u1"}))

	before, err := backend.Dump()
	require.NoError(t, err)
	user, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, "u1", user.ID())
	after, err := backend.Dump()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSetUserAndTokenEndToEnd(t *testing.T) {
	s, n := newTestStore(t)

	require.NoError(t, s.SetUserAndToken(Profile{"id": "u1"}, "abc"))

	token, ok := s.Token()
	require.True(t, ok)
	assert.Equal(t, "abc", token)
	assert.Equal(t, []sent{{ipc.ChannelTokenChanged, "abc"}}, n.all())

	require.NoError(t, s.SetUser(Profile{"city": "NYC"}))
	user, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, Profile{"id": "u1", "city": "NYC"}, user)
	assert.Len(t, n.all(), 1, "SetUser does not notify")
}

func TestClearResetsToDefaults(t *testing.T) {
	s, n := newTestStore(t)
	require.NoError(t, s.SetUserAndToken(Profile{"id": "u1"}, "abc"))
	require.NoError(t, s.Cache().Set("q1", json.RawMessage(`{"a":1}`)))

	require.NoError(t, s.Clear())

	_, ok := s.Token()
	assert.False(t, ok)
	user, _ := s.User()
	assert.Empty(t, user)
	assert.Empty(t, s.Cache().All())

	got := n.all()
	require.Len(t, got, 2)
	assert.Equal(t, ipc.ChannelTokenChanged, got[1].channel)
	assert.Nil(t, got[1].payload)
}

func TestDisplayFormat(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Equal(t, Format24h, s.DisplayFormat())

	require.NoError(t, s.SetUser(Profile{"id": "u1"}))
	require.NoError(t, s.SetDisplayFormat(Format12h))
	assert.Equal(t, Format12h, s.DisplayFormat())

	user, _ := s.User()
	assert.Equal(t, "u1", user.ID(), "format is merged into the profile")

	assert.Error(t, s.SetDisplayFormat("36h"))
	assert.Equal(t, Format24h, ToggledFormat(Format12h))
	assert.Equal(t, Format12h, ToggledFormat(Format24h))
}

func TestJsonBackendSurvivesReopen(t *testing.T) {
	path := t.TempDir() + "/config.json"
	dial := func(context.Context) (kvstore.PersistentStore, error) {
		return kvstore.NewJsonStore(path)
	}

	first := Open(context.Background(), dial, nil)
	require.NoError(t, first.SetUserAndToken(Profile{"id": "u1"}, "abc"))
	require.NoError(t, first.Cache().Set("q1", json.RawMessage(`[1,2]`)))

	second := Open(context.Background(), dial, nil)
	token, ok := second.Token()
	require.True(t, ok)
	assert.Equal(t, "abc", token)
	user, _ := second.User()
	assert.Equal(t, "u1", user.ID())
	assert.JSONEq(t, `[1,2]`, string(second.Cache().Get("q1")))
}
