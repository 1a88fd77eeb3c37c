package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/mcp-trader/errs"
)

func TestJSONLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := NewWriter(&buf, "info", "json")
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("backtest done")
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "backtest done", entry["msg"])
	assert.Equal(t, "info", entry["level"])
}

func TestConsoleLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := NewWriter(&buf, "debug", "console")
	require.NoError(t, err)

	log.Debug("open")
	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "open")
}

func TestBadSettings(t *testing.T) {
	t.Parallel()

	_, err := NewWriter(&bytes.Buffer{}, "loud", "json")
	assert.ErrorIs(t, err, errs.ErrConfig)

	_, err = NewWriter(&bytes.Buffer{}, "info", "xml")
	assert.ErrorIs(t, err, errs.ErrConfig)
}
