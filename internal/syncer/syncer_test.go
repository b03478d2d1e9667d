package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"candlecache/internal/catalog"
	"candlecache/internal/exchange"
	"candlecache/internal/manifest"
	"candlecache/internal/market"
	"candlecache/internal/store"
	"candlecache/internal/timeunit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hourMs = int64(time.Hour / time.Millisecond)

var (
	t0   = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	hour = mustUnit("1h")
	btc  = market.Pair{Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT"}
	eth  = market.Pair{Symbol: "ETHBTC", BaseAsset: "ETH", QuoteAsset: "BTC"}
	bnb  = market.Pair{Symbol: "BNBUSDT", BaseAsset: "BNB", QuoteAsset: "USDT"}
)

func mustUnit(code string) timeunit.TimeUnit {
	u, err := timeunit.FromCode(code)
	if err != nil {
		panic(err)
	}
	return u
}

func row(ts int64) exchange.CandleRow {
	return exchange.CandleRow{
		OpenTime: ts, Open: "1.5", High: "2", Low: "1", Close: "1.75", Volume: "10",
		CloseTime: ts + hourMs - 1, QuoteAssetVolume: "17.5", Trades: 3,
		TakerBuyBaseVolume: "5", TakerBuyQuoteVolume: "8.75",
	}
}

func hourly(n int) []exchange.CandleRow {
	out := make([]exchange.CandleRow, n)
	for i := range out {
		out[i] = row(t0 + int64(i)*hourMs)
	}
	return out
}

type fakeSource struct {
	mu          sync.Mutex
	series      map[string][]exchange.CandleRow
	failLatest  map[string]error
	failCandles map[string]error
	latestCalls int
	queries     []exchange.CandleQuery
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		series:      map[string][]exchange.CandleRow{},
		failLatest:  map[string]error{},
		failCandles: map[string]error{},
	}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) LatestCandle(_ context.Context, symbol, _ string) (exchange.CandleRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latestCalls++
	if err := f.failLatest[symbol]; err != nil {
		return exchange.CandleRow{}, err
	}
	rows := f.series[symbol]
	if len(rows) == 0 {
		return exchange.CandleRow{}, exchange.ErrNoCandles
	}
	return rows[len(rows)-1], nil
}

func (f *fakeSource) Candles(_ context.Context, q exchange.CandleQuery) ([]exchange.CandleRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if err := f.failCandles[q.Symbol]; err != nil {
		return nil, err
	}
	var out []exchange.CandleRow
	for _, r := range f.series[q.Symbol] {
		if r.OpenTime >= q.Start && r.OpenTime <= q.End {
			out = append(out, r)
		}
	}
	return out, nil
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return nil
}

func newEngine(t *testing.T, src exchange.CandleSource) (*Engine, *store.Store, *sleepRecorder) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	rec := &sleepRecorder{}
	eng, err := NewEngine(EngineConfig{
		Source:          src,
		Store:           st,
		EarliestHistory: time.UnixMilli(t0),
		Sleep:           rec.sleep,
	})
	require.NoError(t, err)
	return eng, st, rec
}

func TestSyncColdThenIdempotent(t *testing.T) {
	src := newFakeSource()
	src.series["BTCUSDT"] = hourly(3)
	eng, st, sleeps := newEngine(t, src)
	ctx := context.Background()

	res, err := eng.Sync(ctx, btc, hour)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 3, res.Added)
	assert.Equal(t, int64(2), res.Window.Expected)
	require.Len(t, res.Candles, 3)
	assert.Equal(t, 1.75, res.Candles[0].Close)
	assert.Equal(t, 17.5, res.Candles[0].QuoteAssetVolume)

	tab, err := st.LoadTabular(btc, hour)
	require.NoError(t, err)
	canon, err := st.LoadCanonical(btc, hour)
	require.NoError(t, err)
	assert.Equal(t, []int64{t0, t0 + hourMs, t0 + 2*hourMs}, market.Timestamps(tab))
	assert.ElementsMatch(t, market.Timestamps(tab), market.Timestamps(canon))
	csvBefore, jsonBefore := readCacheFiles(t, st, btc, hour)

	again, err := eng.Sync(ctx, btc, hour)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Len(t, again.Candles, 3)
	assert.Len(t, src.queries, 1, "no range fetch when already up to date")
	assert.Equal(t, []time.Duration{MinCooldown, MinCooldown}, sleeps.waits)

	csvAfter, jsonAfter := readCacheFiles(t, st, btc, hour)
	assert.Equal(t, csvBefore, csvAfter)
	assert.Equal(t, jsonBefore, jsonAfter)
}

func readCacheFiles(t *testing.T, st *store.Store, pair market.Pair, unit timeunit.TimeUnit) (csvData, jsonData []byte) {
	t.Helper()
	csvData, err := os.ReadFile(st.TabularPath(pair.Symbol, unit.Code))
	require.NoError(t, err)
	jsonData, err = os.ReadFile(st.CanonicalPath(pair.Symbol, unit.Code))
	require.NoError(t, err)
	return csvData, jsonData
}

func TestSyncSubMinuteGapSkipsFetch(t *testing.T) {
	src := newFakeSource()
	eng, st, _ := newEngine(t, src)
	cached, err := ToCandles(hourly(2), btc, hour)
	require.NoError(t, err)
	_, err = st.Persist(btc, hour, nil, cached)
	require.NoError(t, err)
	csvBefore, jsonBefore := readCacheFiles(t, st, btc, hour)

	src.series["BTCUSDT"] = append(hourly(2), row(t0+hourMs+30_000))
	res, err := eng.Sync(context.Background(), btc, hour)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, src.queries, "a 30s gap must not trigger a range fetch")
	assert.InDelta(t, 0.5, res.Window.Minutes, 1e-9)
	assert.Zero(t, res.Window.Expected)
	assert.Len(t, res.Candles, 2)

	csvAfter, jsonAfter := readCacheFiles(t, st, btc, hour)
	assert.Equal(t, csvBefore, csvAfter)
	assert.Equal(t, jsonBefore, jsonAfter)
}

func TestSyncStartsFromDefaultFloor(t *testing.T) {
	const dayMs = 24 * hourMs
	day := mustUnit("1d")
	floor := DefaultEarliestHistory.UnixMilli()
	src := newFakeSource()
	for i := int64(0); i < 4; i++ {
		src.series["BTCUSDT"] = append(src.series["BTCUSDT"], row(floor+i*dayMs))
	}
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	rec := &sleepRecorder{}
	eng, err := NewEngine(EngineConfig{Source: src, Store: st, Sleep: rec.sleep})
	require.NoError(t, err)

	res, err := eng.Sync(context.Background(), btc, day)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2017, time.January, 1, 0, 0, 0, 0, time.UTC), res.Window.Start)
	require.Len(t, src.queries, 1)
	q := src.queries[0]
	assert.Equal(t, floor, q.Start)
	assert.Equal(t, floor+3*dayMs, q.End)
	assert.Equal(t, 3, q.Limit)
	assert.Equal(t, "1d", q.Interval)

	tab, err := st.LoadTabular(btc, day)
	require.NoError(t, err)
	assert.Len(t, tab, 4)
	assert.Equal(t, floor, tab[0].Timestamp)
}

func TestSyncIncrementalWindow(t *testing.T) {
	src := newFakeSource()
	src.series["BTCUSDT"] = hourly(2)
	eng, st, _ := newEngine(t, src)
	ctx := context.Background()

	_, err := eng.Sync(ctx, btc, hour)
	require.NoError(t, err)

	src.series["BTCUSDT"] = hourly(7)
	res, err := eng.Sync(ctx, btc, hour)
	require.NoError(t, err)
	require.Len(t, src.queries, 2)
	q := src.queries[1]
	assert.Equal(t, t0+hourMs, q.Start)
	assert.Equal(t, t0+6*hourMs, q.End)
	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, "1h", q.Interval)
	assert.Equal(t, 5, res.Added)
	assert.Equal(t, 6, res.Fetched)

	canon, err := st.LoadCanonical(btc, hour)
	require.NoError(t, err)
	ts := market.Timestamps(canon)
	assert.Len(t, ts, 7)
	assert.Equal(t, []int64{t0, t0 + hourMs}, ts[5:], "existing canonical rows stay after the new ones")
}

func TestSyncExistingRowsWin(t *testing.T) {
	src := newFakeSource()
	src.series["BTCUSDT"] = hourly(2)
	eng, st, _ := newEngine(t, src)
	ctx := context.Background()
	_, err := eng.Sync(ctx, btc, hour)
	require.NoError(t, err)

	rows := hourly(3)
	rows[1].Close = "99"
	src.series["BTCUSDT"] = rows
	_, err = eng.Sync(ctx, btc, hour)
	require.NoError(t, err)

	tab, err := st.LoadTabular(btc, hour)
	require.NoError(t, err)
	require.Len(t, tab, 3)
	assert.Equal(t, 1.75, tab[1].Close)
}

func TestSyncRemoteFailures(t *testing.T) {
	src := newFakeSource()
	src.series["BTCUSDT"] = hourly(3)
	src.failLatest["BTCUSDT"] = errors.New("503")
	eng, st, sleeps := newEngine(t, src)

	_, err := eng.Sync(context.Background(), btc, hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoteFetch))
	assert.Empty(t, sleeps.waits)

	delete(src.failLatest, "BTCUSDT")
	src.failCandles["BTCUSDT"] = errors.New("429")
	_, err = eng.Sync(context.Background(), btc, hour)
	assert.True(t, errors.Is(err, ErrRemoteFetch))

	tab, err := st.LoadTabular(btc, hour)
	require.NoError(t, err)
	assert.Empty(t, tab)
}

func TestSyncEmptyLatestIsRemoteFailure(t *testing.T) {
	eng, _, _ := newEngine(t, newFakeSource())
	_, err := eng.Sync(context.Background(), btc, hour)
	assert.True(t, errors.Is(err, ErrRemoteFetch))
	assert.True(t, errors.Is(err, exchange.ErrNoCandles))
}

func TestSyncMalformedRow(t *testing.T) {
	src := newFakeSource()
	rows := hourly(3)
	rows[1].High = "n/a"
	src.series["BTCUSDT"] = rows
	eng, st, _ := newEngine(t, src)

	_, err := eng.Sync(context.Background(), btc, hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedCandleRow))
	tab, err := st.LoadTabular(btc, hour)
	require.NoError(t, err)
	assert.Empty(t, tab)
}

func TestNewEngineClampsCooldown(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	eng, err := NewEngine(EngineConfig{Source: newFakeSource(), Store: st, Cooldown: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, MinCooldown, eng.cooldown)
	assert.Equal(t, DefaultEarliestHistory, eng.floor)

	_, err = NewEngine(EngineConfig{Store: st})
	require.Error(t, err)
}

func TestSleepCtxHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepCtx(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToCandle(t *testing.T) {
	c, err := ToCandle(row(t0), btc, hour)
	require.NoError(t, err)
	assert.Equal(t, t0, c.Timestamp)
	assert.Equal(t, 8.75, c.TakerBuyQuoteVolume)
	assert.Equal(t, "BTCUSDT", c.Pair.Symbol)

	r := row(t0)
	r.QuoteAssetVolume = ""
	c, err = ToCandle(r, btc, hour)
	require.NoError(t, err)
	assert.Zero(t, c.QuoteAssetVolume)

	r = row(0)
	_, err = ToCandle(r, btc, hour)
	assert.ErrorIs(t, err, ErrMalformedCandleRow)

	r = row(t0)
	r.Volume = ""
	_, err = ToCandle(r, btc, hour)
	assert.ErrorIs(t, err, ErrMalformedCandleRow)
}

type fakeCatalog struct {
	pairs []market.Pair
	err   error
}

func (f *fakeCatalog) GetAvailablePairs(context.Context) ([]market.Pair, error) {
	return f.pairs, f.err
}

func (f *fakeCatalog) PairBySymbol(_ context.Context, symbol string) (market.Pair, error) {
	if p, ok := catalog.Find(f.pairs, symbol); ok {
		return p, nil
	}
	return market.Pair{}, fmt.Errorf("%w: %s", catalog.ErrPairNotFound, symbol)
}

type fakeLedger struct {
	mu   sync.Mutex
	recs []manifest.Record
}

func (f *fakeLedger) Record(_ context.Context, rec manifest.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func newOrchestrator(t *testing.T, src *fakeSource, cat PairCatalog, ledger Ledger, concurrency int, quotes ...string) *Orchestrator {
	t.Helper()
	eng, _, _ := newEngine(t, src)
	o, err := NewOrchestrator(OrchestratorConfig{
		Catalog: cat, Engine: eng, Ledger: ledger, Concurrency: concurrency, QuoteAssets: quotes,
	})
	require.NoError(t, err)
	return o
}

func TestSyncAllIsolatesFailures(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			src := newFakeSource()
			src.series["BTCUSDT"] = hourly(3)
			src.series["ETHBTC"] = hourly(3)
			src.series["BNBUSDT"] = hourly(2)
			src.failCandles["ETHBTC"] = errors.New("connection reset")
			ledger := &fakeLedger{}
			o := newOrchestrator(t, src, &fakeCatalog{pairs: []market.Pair{btc, eth, bnb}}, ledger, concurrency)

			sum, err := o.SyncAll(context.Background(), hour)
			require.NoError(t, err)
			assert.NotEmpty(t, sum.RunID)
			assert.Equal(t, 2, sum.Succeeded)
			assert.Equal(t, 1, sum.Failed)
			require.Len(t, sum.Outcomes, 3)
			assert.Equal(t, "BTCUSDT", sum.Outcomes[0].Pair.Symbol)
			assert.Equal(t, 3, sum.Outcomes[0].Candles)
			assert.False(t, sum.Outcomes[1].OK())
			assert.Equal(t, 2, sum.Outcomes[2].Candles)

			runErr := sum.Err()
			require.Error(t, runErr)
			assert.True(t, errors.Is(runErr, ErrRemoteFetch))
			assert.Contains(t, runErr.Error(), "ETHBTC")

			require.Len(t, ledger.recs, 3)
			for _, rec := range ledger.recs {
				assert.Equal(t, sum.RunID, rec.LastRunID)
				if rec.Symbol == "ETHBTC" {
					assert.NotEmpty(t, rec.LastError)
				} else {
					assert.Empty(t, rec.LastError)
					assert.Equal(t, t0, rec.MinTime)
				}
			}
		})
	}
}

func TestSyncAllQuoteFilter(t *testing.T) {
	src := newFakeSource()
	src.series["BTCUSDT"] = hourly(1)
	src.series["BNBUSDT"] = hourly(1)
	o := newOrchestrator(t, src, &fakeCatalog{pairs: []market.Pair{btc, eth, bnb}}, nil, 1, "usdt")

	sum, err := o.SyncAll(context.Background(), hour)
	require.NoError(t, err)
	require.Len(t, sum.Outcomes, 2)
	assert.NoError(t, sum.Err())
}

func TestSyncAllCatalogUnavailable(t *testing.T) {
	o := newOrchestrator(t, newFakeSource(), &fakeCatalog{err: catalog.ErrCatalogUnavailable}, nil, 1)
	_, err := o.SyncAll(context.Background(), hour)
	assert.ErrorIs(t, err, catalog.ErrCatalogUnavailable)
}

func TestSyncOne(t *testing.T) {
	src := newFakeSource()
	src.series["BTCUSDT"] = hourly(3)
	o := newOrchestrator(t, src, &fakeCatalog{pairs: []market.Pair{btc}}, nil, 1)

	out, err := o.SyncOne(context.Background(), "btc/usdt", hour)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Candles)

	_, err = o.SyncOne(context.Background(), "DOGEUSDT", hour)
	assert.ErrorIs(t, err, catalog.ErrPairNotFound)
}
