package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	base := []string{"--config", "", "--backend", "json", "--data-dir", dir, "--coordinator", "", "--log-level", "error"}
	rootCmd.SetArgs(append(base, args...))
	rootCmd.SetOut(&out)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestCommandsShareDurableStore(t *testing.T) {
	dir := t.TempDir()

	run(t, dir, "user", "login", "abc", "id=u1")
	run(t, dir, "user", "set", "city=NYC")
	run(t, dir, "cache", "set", "q1", `{"a":1}`)

	var token string
	require.NoError(t, json.Unmarshal([]byte(run(t, dir, "token", "get")), &token))
	assert.Equal(t, "abc", token)

	var user map[string]any
	require.NoError(t, json.Unmarshal([]byte(run(t, dir, "user", "get")), &user))
	assert.Equal(t, map[string]any{"id": "u1", "city": "NYC"}, user)

	assert.JSONEq(t, `{"a":1}`, run(t, dir, "cache", "get", "q1"))

	run(t, dir, "clear")
	assert.JSONEq(t, `null`, run(t, dir, "token", "get"))
	assert.JSONEq(t, `{}`, run(t, dir, "cache", "get"))
}

func TestInertBackendCommands(t *testing.T) {
	dir := t.TempDir()
	run(t, dir, "--backend", "none", "token", "set", "abc")
	assert.JSONEq(t, `null`, run(t, dir, "--backend", "none", "token", "get"))
	assert.JSONEq(t, `"24h"`, run(t, dir, "--backend", "none", "format", "get"))
}

func TestParseProfile(t *testing.T) {
	p, err := parseProfile([]string{"id=u1", "timezone=Europe/Berlin"})
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID())
	assert.Equal(t, "Europe/Berlin", p.Timezone())

	_, err = parseProfile([]string{"novalue"})
	assert.Error(t, err)
}
