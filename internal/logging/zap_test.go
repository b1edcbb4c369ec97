package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ZapJSON_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(FormatZap, &buf)
	require.NoError(t, err)

	log.With("module", "collector").Info(context.Background(), "signature accepted", "remaining", 1)
	if z, ok := log.(*ZapLogger); ok {
		_ = z.Sync()
	}

	line := strings.TrimSpace(buf.String())
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &got))
	assert.Equal(t, "info", got["level"])
	assert.Equal(t, "signature accepted", got["msg"])
	assert.Equal(t, "collector", got["module"])
	assert.EqualValues(t, 1, got["remaining"])
	assert.Contains(t, got, "timestamp")
}

func TestNew_ZapDev_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(FormatZapDev, &buf)
	require.NoError(t, err)

	log.Warn(context.Background(), "ledger slow", "attempt", 2)
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "ledger slow")
}

func TestNew_DefaultIsSlogJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("", &buf)
	require.NoError(t, err)
	_, ok := log.(*SlogLogger)
	require.True(t, ok)

	log.Error(context.Background(), "boom", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"boom"`)
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New("xml", &bytes.Buffer{})
	require.Error(t, err)
}

func TestZapLogger_RequestIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(FormatZap, &buf)
	require.NoError(t, err)

	log.Info(WithRequestID(context.Background(), "req-9"), "document finalized")

	var got map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got))
	assert.Equal(t, "req-9", got["request_id"])
}
