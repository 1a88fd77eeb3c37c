package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRunOrg(t *testing.T) {
	t.Parallel()

	run, trades, _ := fixture("01JTEST", t0)
	out, err := FormatRunOrg(run, trades)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "* BACKTEST: BTCUSDT 1\n:PROPERTIES:"))
	assert.Contains(t, out, ":DATASET:     testdata/btc.csv")
	assert.Contains(t, out, ":RANGE:       2025-04-01 .. 2025-04-01")
	assert.Contains(t, out, ":WIN_RATE:    50.00")
	assert.Contains(t, out, `{"position":{"size":100}}`)
	assert.Contains(t, out, "| 0 | LONG | 2025-04-01 00:01 | 2025-04-01 00:03 | 100.0000 | 105.0000 | 5.00 | 5.00 | profit_target |")
	assert.Contains(t, out, "** Review")
}

func TestFormatRunOrgNoTrades(t *testing.T) {
	t.Parallel()

	run := Run{RunID: "empty", Symbol: "ETHUSDT", Created: t0}
	out, err := FormatRunOrg(run, nil)
	require.NoError(t, err)

	assert.Contains(t, out, "(interval?)")
	assert.Contains(t, out, "(dataset?)")
	assert.Contains(t, out, "(start?)")
	assert.Contains(t, out, "No trades.")
}

func TestSaveRunOrg(t *testing.T) {
	t.Parallel()

	run, trades, _ := fixture("save", t0)
	path := filepath.Join(t.TempDir(), "run.org")
	require.NoError(t, SaveRunOrg(path, run, trades))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), ":RUN_ID:      save")
}
