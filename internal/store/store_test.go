package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"candlecache/internal/market"
	"candlecache/internal/timeunit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	btc  = market.Pair{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT", OrderTypes: []string{"LIMIT"}}
	hour = mustUnit("1h")
)

func mustUnit(code string) timeunit.TimeUnit {
	u, err := timeunit.FromCode(code)
	if err != nil {
		panic(err)
	}
	return u
}

func candle(ts int64, closePx float64) market.Candle {
	return market.Candle{
		Timestamp: ts, Open: 1, High: 2, Low: 0.5, Close: closePx, Volume: 10,
		CloseTime: ts + 3_599_999, QuoteAssetVolume: 12.25, Trades: 7,
		TakerBuyBaseVolume: 4, TakerBuyQuoteVolume: 5.5,
	}
}

func TestMergeTabularExistingWins(t *testing.T) {
	existing := []market.Candle{candle(1, 100), candle(2, 200)}
	fresh := []market.Candle{candle(2, 999), candle(3, 300), candle(3, 301)}

	got := MergeTabular(existing, fresh)
	assert.Equal(t, []int64{1, 2, 3}, market.Timestamps(got))
	assert.Equal(t, 200.0, got[1].Close)
	assert.Equal(t, 300.0, got[2].Close)
}

func TestMergeCanonicalNewFirst(t *testing.T) {
	existing := []market.Candle{candle(1, 100), candle(2, 200)}
	fresh := []market.Candle{candle(2, 999), candle(4, 400), candle(3, 300), candle(4, 401)}

	got := MergeCanonical(existing, fresh)
	assert.Equal(t, []int64{4, 3, 1, 2}, market.Timestamps(got))
	assert.Equal(t, 400.0, got[0].Close)
	assert.Equal(t, 200.0, got[3].Close)
}

func TestMergeEmptyInputs(t *testing.T) {
	assert.Empty(t, MergeTabular(nil, nil))
	assert.Empty(t, MergeCanonical(nil, nil))
	got := MergeCanonical(nil, []market.Candle{candle(5, 1), candle(5, 2)})
	assert.Len(t, got, 1)
}

func TestPersistCreatesBothFiles(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	res, err := s.Persist(btc, hour, nil, []market.Candle{candle(1000, 1), candle(2000, 2), candle(3000, 3)})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TabularAdded)
	assert.Equal(t, 3, res.CanonicalAdded)
	assert.True(t, res.CanonicalWritten)

	assert.FileExists(t, filepath.Join(s.Root(), "csv", "BTCUSDT-1h-data.csv"))
	assert.FileExists(t, filepath.Join(s.Root(), "json", "BTCUSDT-1h-data.json"))

	tab, err := s.LoadTabular(btc, hour)
	require.NoError(t, err)
	assert.Equal(t, []int64{1000, 2000, 3000}, market.Timestamps(tab))
	assert.Equal(t, btc.Symbol, tab[0].Pair.Symbol)
	assert.Equal(t, "1h", tab[0].TimeUnit.Code)
	assert.Equal(t, 12.25, tab[0].QuoteAssetVolume)
	assert.Equal(t, int64(7), tab[0].Trades)

	canon, err := s.LoadCanonical(btc, hour)
	require.NoError(t, err)
	assert.ElementsMatch(t, market.Timestamps(tab), market.Timestamps(canon))
}

func TestPersistSecondRunKeepsSetsEqual(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	first := []market.Candle{candle(1000, 1), candle(2000, 2)}
	_, err = s.Persist(btc, hour, nil, first)
	require.NoError(t, err)

	existing, err := s.LoadTabular(btc, hour)
	require.NoError(t, err)
	res, err := s.Persist(btc, hour, existing, []market.Candle{candle(2000, 99), candle(3000, 3)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TabularAdded)
	assert.Equal(t, 1, res.CanonicalAdded)

	tab, err := s.LoadTabular(btc, hour)
	require.NoError(t, err)
	assert.Equal(t, []int64{1000, 2000, 3000}, market.Timestamps(tab))
	assert.Equal(t, 2.0, tab[1].Close)

	canon, err := s.LoadCanonical(btc, hour)
	require.NoError(t, err)
	assert.Equal(t, []int64{3000, 1000, 2000}, market.Timestamps(canon))
}

func TestPersistRebuildsMissingCanonical(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = s.Persist(btc, hour, nil, []market.Candle{candle(1000, 1), candle(2000, 2)})
	require.NoError(t, err)
	require.NoError(t, os.Remove(s.CanonicalPath("BTCUSDT", "1h")))

	existing, err := s.LoadTabular(btc, hour)
	require.NoError(t, err)
	_, err = s.Persist(btc, hour, existing, nil)
	require.NoError(t, err)

	canon, err := s.LoadCanonical(btc, hour)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1000, 2000}, market.Timestamps(canon))
}

func TestReconcileNoopWhenComplete(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	rows := []market.Candle{candle(1000, 1)}
	_, err = s.Persist(btc, hour, nil, rows)
	require.NoError(t, err)

	path := s.CanonicalPath("BTCUSDT", "1h")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	res, err := s.Reconcile(btc, hour, rows)
	require.NoError(t, err)
	assert.False(t, res.CanonicalWritten)
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCanonicalFileFormat(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = s.Persist(btc, hour, nil, []market.Candle{candle(1000, 1.5)})
	require.NoError(t, err)

	raw, err := os.ReadFile(s.CanonicalPath("BTCUSDT", "1h"))
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.HasPrefix(text, "[\n    {\n        \"timestamp\": 1000,"))
	assert.Contains(t, text, `"time_unit": "1h"`)
	assert.Contains(t, text, `"symbol": "BTCUSDT"`)
	assert.Contains(t, text, `"close": 1.5`)
}

func TestTabularFileFormat(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = s.Persist(btc, hour, nil, []market.Candle{candle(1000, 0.000123)})
	require.NoError(t, err)

	raw, err := os.ReadFile(s.TabularPath("BTCUSDT", "1h"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "timestamp,open,high,low,close,volume,close_time,quote_av,trades,tb_base_av,tb_quote_av,ignore", lines[0])
	assert.Equal(t, "1000,1,2,0.5,0.000123,10,3600999,12.25,7,4,5.5,0", lines[1])
}

func TestLoadMissingIsEmpty(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	rows, err := s.LoadTabular(btc, hour)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLoadCorruptFile(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	path := s.TabularPath("BTCUSDT", "1h")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("timestamp,open,high,low,close,volume,close_time\nabc,1,1,1,1,1,1\n"), 0o644))

	_, err = s.LoadTabular(btc, hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorruptStore))

	_, err = s.Persist(btc, hour, nil, []market.Candle{candle(1, 1)})
	require.NoError(t, err, "persist overwrites from the rows it is given")
}

func TestPersistCanonicalWriteFailure(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)
	// json 目录位置被普通文件占用，规范文件写入必然失败
	require.NoError(t, os.WriteFile(filepath.Join(root, "json"), []byte("x"), 0o644))

	_, err = s.Persist(btc, hour, nil, []market.Candle{candle(1, 1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreWrite))

	rows, err := s.LoadTabular(btc, hour)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestInventory(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	eth := market.Pair{Symbol: "ETHBTC"}
	_, err = s.Persist(btc, hour, nil, []market.Candle{candle(1, 1)})
	require.NoError(t, err)
	_, err = s.Persist(eth, mustUnit("1M"), nil, []market.Candle{candle(1, 1)})
	require.NoError(t, err)
	require.NoError(t, os.Remove(s.CanonicalPath("ETHBTC", "1M")))

	inv, err := s.Inventory()
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Symbol: "BTCUSDT", TimeUnit: "1h", Tabular: true, Canonical: true},
		{Symbol: "ETHBTC", TimeUnit: "1M", Tabular: true, Canonical: false},
	}, inv)
}

func TestParseFileName(t *testing.T) {
	sym, code, ok := parseFileName("BTCUSDT-15m-data.csv", ".csv")
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", sym)
	assert.Equal(t, "15m", code)

	_, _, ok = parseFileName(".BTCUSDT-15m-data.csv.123.tmp", ".csv")
	assert.False(t, ok)
	_, _, ok = parseFileName("notes.txt", ".csv")
	assert.False(t, ok)
}

func TestNewRequiresRoot(t *testing.T) {
	_, err := New("  ")
	require.Error(t, err)
}
