package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"candlecache/internal/app"
	"candlecache/internal/manifest"
	"candlecache/internal/market"
	"candlecache/internal/store"
	"candlecache/internal/syncer"
	"candlecache/internal/timeunit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func sampleReport() app.StatusReport {
	return app.StatusReport{
		CacheRoot: "/data",
		Pairs:     2,
		Inventory: []store.Entry{{Symbol: "BTCUSDT", TimeUnit: "1h", Tabular: true, Canonical: true}},
		Manifest: []manifest.Record{{
			Symbol: "BTCUSDT", TimeUnit: "1h", Rows: 3,
			MinTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		}},
	}
}

func TestWriteStatusTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, formatTable, sampleReport()))
	out := buf.String()
	assert.Contains(t, out, "pairs in catalog: 2")
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "2024-01-01 00:00")
}

func TestWriteStatusJSONAndYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, formatJSON, sampleReport()))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "/data", decoded["cache_root"])

	buf.Reset()
	require.NoError(t, writeStatus(&buf, formatYAML, sampleReport()))
	decoded = nil
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2, decoded["pairs"])
}

func TestValidFormat(t *testing.T) {
	assert.True(t, validFormat("yaml"))
	assert.False(t, validFormat("xml"))
}

func TestPrintSummary(t *testing.T) {
	unit, err := timeunit.FromCode("1d")
	require.NoError(t, err)
	sum := syncer.Summary{
		RunID:    "run-1",
		TimeUnit: unit,
		Outcomes: []syncer.Outcome{
			{Pair: market.Pair{Symbol: "BTCUSDT"}, TimeUnit: "1d", Candles: 5, Added: 2, Fetched: 2},
			{Pair: market.Pair{Symbol: "ETHBTC"}, TimeUnit: "1d", Err: errors.New("boom")},
		},
		Succeeded: 1,
		Failed:    1,
	}
	var buf bytes.Buffer
	printSummary(&buf, sum)
	out := buf.String()
	assert.Contains(t, out, "BTCUSDT 1d: updated, 5 candles cached (+2, fetched 2)")
	assert.Contains(t, out, "ETHBTC 1d: FAILED: boom")
	assert.Contains(t, out, "1 ok, 1 failed")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(errors.New("x")))
	assert.Equal(t, 2, exitCode(cli.Exit("bad flag", 2)))
	assert.Equal(t, 3, exitCode(fmt.Errorf("runupdate: %w", cli.Exit("partial", 3))))
}
