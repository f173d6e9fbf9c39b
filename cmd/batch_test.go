package main

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyValues(t *testing.T) {
	out, err := parseKeyValues([]string{"source=webhook", "priority=high"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"source": "webhook", "priority": "high"}, out)
}

func TestParseKeyValues_Empty(t *testing.T) {
	out, err := parseKeyValues(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestParseKeyValues_Invalid(t *testing.T) {
	for _, bad := range []string{"noequals", "=value", ""} {
		_, err := parseKeyValues([]string{bad})
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseKeyValues_ValueContainsEquals(t *testing.T) {
	out, err := parseKeyValues([]string{"query=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"query": "a=b"}, out)
}

func TestCutKeyValue(t *testing.T) {
	k, v, ok := cutKeyValue("key=value")
	assert.True(t, ok)
	assert.Equal(t, "key", k)
	assert.Equal(t, "value", v)

	_, _, ok = cutKeyValue("keyvalue")
	assert.False(t, ok)
}

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	runErr := fn()
	require.NoError(t, w.Close())
	require.NoError(t, runErr)

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestRender_JSON(t *testing.T) {
	out := captureStdout(t, func() error {
		return render("json", map[string]string{"status": "ok"})
	})
	assert.JSONEq(t, `{"status":"ok"}`, out)
}

func TestRender_YAML(t *testing.T) {
	out := captureStdout(t, func() error {
		return render("yaml", map[string]string{"status": "ok"})
	})
	assert.Equal(t, "status: ok\n", out)
}

func TestRender_UnknownFormat(t *testing.T) {
	assert.Error(t, render("xml", map[string]string{}))
}
