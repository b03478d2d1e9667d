// Package syncer 负责把远端 K 线增量同步进本地缓存。
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"candlecache/internal/exchange"
	"candlecache/internal/logger"
	"candlecache/internal/market"
	"candlecache/internal/store"
	"candlecache/internal/timeunit"
)

// ErrRemoteFetch 远端调用失败（包括最新一根为空）。不在内部重试。
var ErrRemoteFetch = errors.New("remote fetch failed")

const (
	// MinCooldown 是取最新 K 线之后必须等待的最短时间。
	MinCooldown = 500 * time.Millisecond
	// EarliestHistoryLayout 是 earliest_history 的解析格式。
	EarliestHistoryLayout = "2 Jan 2006"
)

// DefaultEarliestHistory 本地无缓存时的起点。
var DefaultEarliestHistory = time.Date(2017, time.January, 1, 0, 0, 0, 0, time.UTC)

// CandleStore 是 Engine 需要的缓存能力，*store.Store 满足该接口。
type CandleStore interface {
	LoadTabular(pair market.Pair, unit timeunit.TimeUnit) ([]market.Candle, error)
	Persist(pair market.Pair, unit timeunit.TimeUnit, existing, fresh []market.Candle) (store.PersistResult, error)
	Reconcile(pair market.Pair, unit timeunit.TimeUnit, rows []market.Candle) (store.PersistResult, error)
}

type EngineConfig struct {
	Source          exchange.CandleSource
	Store           CandleStore
	EarliestHistory time.Time
	Cooldown        time.Duration
	// Sleep 可在测试中替换；默认按 ctx 可取消地等待。
	Sleep func(ctx context.Context, d time.Duration) error
}

type Engine struct {
	source   exchange.CandleSource
	store    CandleStore
	floor    time.Time
	cooldown time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// Window 是一次同步计算出的拉取区间。
type Window struct {
	Start    time.Time
	End      time.Time
	Minutes  float64
	Expected int64
}

// Result 是单个 (pair, unit) 同步后的状态。
type Result struct {
	Pair     market.Pair
	TimeUnit timeunit.TimeUnit
	Candles  []market.Candle
	Fetched  int
	Added    int
	Skipped  bool
	Window   Window
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Source == nil || cfg.Store == nil {
		return nil, fmt.Errorf("syncer: source/store 不能为空")
	}
	floor := cfg.EarliestHistory
	if floor.IsZero() {
		floor = DefaultEarliestHistory
	}
	cooldown := cfg.Cooldown
	if cooldown < MinCooldown {
		cooldown = MinCooldown
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return &Engine{
		source:   cfg.Source,
		store:    cfg.Store,
		floor:    floor.UTC(),
		cooldown: cooldown,
		sleep:    sleep,
	}, nil
}

// Sync 把 pair/unit 的本地缓存补到远端最新一根。
func (e *Engine) Sync(ctx context.Context, pair market.Pair, unit timeunit.TimeUnit) (Result, error) {
	res := Result{Pair: pair, TimeUnit: unit}
	if !pair.Valid() || unit.IsZero() {
		return res, fmt.Errorf("syncer: pair/unit 不能为空")
	}
	existing, err := e.store.LoadTabular(pair, unit)
	if err != nil {
		return res, err
	}
	oldest := e.floor.UnixMilli()
	if n := len(existing); n > 0 {
		oldest = existing[n-1].Timestamp
	}

	latest, err := e.source.LatestCandle(ctx, pair.Symbol, unit.RemoteCode)
	if err != nil {
		return res, fmt.Errorf("%w: latest %s %s: %w", ErrRemoteFetch, pair.Symbol, unit.Code, err)
	}
	if err := e.sleep(ctx, e.cooldown); err != nil {
		return res, err
	}
	newest := latest.OpenTime

	gap := time.Duration(newest-oldest) * time.Millisecond
	res.Window = Window{
		Start:   time.UnixMilli(oldest).UTC(),
		End:     time.UnixMilli(newest).UTC(),
		Minutes: gap.Minutes(),
	}
	if gap < time.Minute {
		res.Skipped = true
		res.Candles = existing
		if _, err := e.store.Reconcile(pair, unit, existing); err != nil {
			return res, err
		}
		logger.Debugf("[sync] %s %s 已是最新（%d 行）", pair.Symbol, unit.Code, len(existing))
		return res, nil
	}
	res.Window.Expected = unit.Bins(gap)

	rows, err := e.source.Candles(ctx, exchange.CandleQuery{
		Symbol:   pair.Symbol,
		Interval: unit.RemoteCode,
		Start:    oldest,
		End:      newest,
		Limit:    int(res.Window.Expected),
	})
	if err != nil {
		return res, fmt.Errorf("%w: candles %s %s: %w", ErrRemoteFetch, pair.Symbol, unit.Code, err)
	}
	fresh, err := ToCandles(rows, pair, unit)
	if err != nil {
		return res, err
	}
	res.Fetched = len(fresh)

	persisted, err := e.store.Persist(pair, unit, existing, fresh)
	if err != nil {
		return res, err
	}
	res.Candles = persisted.Tabular
	res.Added = persisted.TabularAdded
	logger.Infof("[sync] %s %s 窗口 %s → %s 预期 %d 拉取 %d 新增 %d",
		pair.Symbol, unit.Code,
		res.Window.Start.Format(time.RFC3339), res.Window.End.Format(time.RFC3339),
		res.Window.Expected, res.Fetched, res.Added)
	return res, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
