package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"akshay-tray/httpapi"
	"akshay-tray/hub"
	"akshay-tray/ipc"
	"akshay-tray/kvstore"
	"akshay-tray/session"
	"akshay-tray/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type coordinator struct {
	store *kvstore.KeyValueStore
	hub   *hub.Hub
	srv   *httptest.Server
}

func newCoordinator(t *testing.T) *coordinator {
	t.Helper()
	store := kvstore.NewKeyValueStore(kvstore.NewMemoryStore(), session.Defaults())
	require.NoError(t, store.Seed())
	h := hub.NewHub(0)
	srv := httptest.NewServer(httpapi.NewRouter(store, h))
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return &coordinator{store: store, hub: h, srv: srv}
}

type chanListener struct {
	ch chan *ipc.Message
}

func (c *chanListener) Handle(msg *ipc.Message) {
	c.ch <- msg
}

func TestRemoteStoreRoundTrip(t *testing.T) {
	c := newCoordinator(t)
	rs := kvstore.NewRemoteStore(c.srv.URL, c.srv.Client())
	require.NoError(t, rs.Ping(context.Background()))

	key := kvstore.P(session.QueryCacheKey, "query/with slash?x=1")
	require.NoError(t, rs.Set(key, json.RawMessage(`{"a":1}`)))

	raw, ok, err := rs.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(raw))

	local, ok, err := c.store.Get(key)
	require.NoError(t, err)
	require.True(t, ok, "write landed in the coordinator store")
	assert.JSONEq(t, `{"a":1}`, string(local))

	require.NoError(t, rs.Delete(key))
	_, ok, err = rs.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rs.SetMany(map[string]json.RawMessage{
		session.TokenKey: json.RawMessage(`"abc"`),
		session.UserKey:  json.RawMessage(`{"id":"u1"}`),
	}))
	dump, err := rs.Dump()
	require.NoError(t, err)
	assert.JSONEq(t, `"abc"`, string(dump[session.TokenKey]))

	require.NoError(t, rs.Restore(map[string]json.RawMessage{"x": json.RawMessage(`1`)}))
	dump, err = c.store.PersistentStore.Dump()
	require.NoError(t, err)
	assert.Len(t, dump, 1)
}

func TestSessionOverRemoteStore(t *testing.T) {
	c := newCoordinator(t)

	sender := transport.NewHTTPTransport("w1", c.srv.URL, c.srv.Client())
	defer sender.Close()
	store := session.Open(context.Background(), func(ctx context.Context) (kvstore.PersistentStore, error) {
		rs := kvstore.NewRemoteStore(c.srv.URL, c.srv.Client())
		return rs, rs.Ping(ctx)
	}, sender)
	require.True(t, store.Available())

	require.NoError(t, store.SetUserAndToken(session.Profile{"id": "u1"}, "abc"))
	require.NoError(t, store.SetUser(session.Profile{"city": "NYC"}))
	require.NoError(t, store.Cache().Set("q1", json.RawMessage(`[1]`)))

	token, ok := store.Token()
	require.True(t, ok)
	assert.Equal(t, "abc", token)
	user, ok := store.User()
	require.True(t, ok)
	assert.Equal(t, session.Profile{"id": "u1", "city": "NYC"}, user)
	assert.JSONEq(t, `[1]`, string(store.Cache().Get("q1")))
	assert.Nil(t, store.Cache().Get("missing"))
}

func TestSessionInertWhenCoordinatorDown(t *testing.T) {
	c := newCoordinator(t)
	url := c.srv.URL
	c.srv.Close()

	store := session.Open(context.Background(), func(ctx context.Context) (kvstore.PersistentStore, error) {
		rs := kvstore.NewRemoteStore(url, nil)
		return rs, rs.Ping(ctx)
	}, nil)
	assert.False(t, store.Available())
	assert.NoError(t, store.SetToken("abc"))
	_, ok := store.Token()
	assert.False(t, ok)
}

func TestTokenChangedFansOutToWindows(t *testing.T) {
	c := newCoordinator(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var windows []*chanListener
	for _, id := range []string{"w1", "w2"} {
		l := &chanListener{ch: make(chan *ipc.Message, 4)}
		listeners := ipc.NewListeners()
		listeners.On(ipc.ChannelTokenChanged, l)
		r, err := transport.NewReceiver(c.srv.URL, id, listeners)
		require.NoError(t, err)
		go r.Run(ctx)
		windows = append(windows, l)
	}
	require.Eventually(t, func() bool { return c.hub.WindowCount() == 2 }, 5*time.Second, 10*time.Millisecond)

	sender := transport.NewHTTPTransport("w1", c.srv.URL, c.srv.Client())
	store := session.New(kvstore.NewRemoteStore(c.srv.URL, c.srv.Client()), sender)
	require.NoError(t, store.SetToken("abc"))
	sender.Close()

	for _, w := range windows {
		select {
		case msg := <-w.ch:
			assert.Equal(t, ipc.ChannelTokenChanged, msg.Channel)
			var token string
			require.NoError(t, msg.ParsePayload(&token))
			assert.Equal(t, "abc", token)
		case <-time.After(5 * time.Second):
			t.Fatal("window did not receive token-changed")
		}
	}
}

func TestNotifyRejectsUnknownChannel(t *testing.T) {
	c := newCoordinator(t)
	msg, err := ipc.NewMessage("reboot", nil)
	require.NoError(t, err)
	body, err := msg.Marshal()
	require.NoError(t, err)

	resp, err := c.srv.Client().Post(c.srv.URL+"/ipc/reboot", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNotifyReportsDeliveries(t *testing.T) {
	c := newCoordinator(t)
	msg, err := ipc.NewMessage(ipc.ChannelToggleFormat, nil)
	require.NoError(t, err)
	body, err := msg.Marshal()
	require.NoError(t, err)

	resp, err := c.srv.Client().Post(c.srv.URL+"/ipc/toggle-format", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 0, out["delivered"])
}

func TestPutRejectsInvalidJSON(t *testing.T) {
	c := newCoordinator(t)
	req, err := http.NewRequest(http.MethodPut, c.srv.URL+"/kv/token", bytes.NewBufferString("not json"))
	require.NoError(t, err)
	resp, err := c.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	c := newCoordinator(t)
	resp, err := c.srv.Client().Get(c.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out["status"])
	assert.EqualValues(t, 0, out["windows"])
	assert.Empty(t, out["connections"])
}

func TestCacheDotKeysOverRemoteStore(t *testing.T) {
	c := newCoordinator(t)
	store := session.New(kvstore.NewRemoteStore(c.srv.URL, c.srv.Client()), nil)

	for _, key := range []string{".", "..", "a/../b", "./x"} {
		t.Run(key, func(t *testing.T) {
			require.NoError(t, store.Cache().Set(key, json.RawMessage(`{"a":1}`)))
			assert.JSONEq(t, `{"a":1}`, string(store.Cache().Get(key)))

			local, ok, err := c.store.Get(kvstore.P(session.QueryCacheKey, key))
			require.NoError(t, err)
			require.True(t, ok, "write landed under the literal key")
			assert.JSONEq(t, `{"a":1}`, string(local))
		})
	}

	_, ok := store.Token()
	assert.False(t, ok, "no dot key leaked into the token slot")
	assert.Len(t, store.Cache().All(), 4)
}

func TestRemoteStoreDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.RedirectHandler("/kv", http.StatusMovedPermanently))
	defer srv.Close()

	rs := kvstore.NewRemoteStore(srv.URL, srv.Client())
	assert.Error(t, rs.Set(kvstore.P("token"), json.RawMessage(`"abc"`)))
	_, _, err := rs.Get(kvstore.P("token"))
	assert.Error(t, err)
}
