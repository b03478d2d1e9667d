package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"candlecache/internal/logger"
	"candlecache/internal/manifest"
	"candlecache/internal/market"
	"candlecache/internal/timeunit"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// PairCatalog 提供待同步的交易对，*catalog.Catalog 满足该接口。
type PairCatalog interface {
	GetAvailablePairs(ctx context.Context) ([]market.Pair, error)
	PairBySymbol(ctx context.Context, symbol string) (market.Pair, error)
}

// Ledger 记录每个交易对的同步结果，*manifest.Ledger 满足该接口。
type Ledger interface {
	Record(ctx context.Context, rec manifest.Record) error
}

type OrchestratorConfig struct {
	Catalog     PairCatalog
	Engine      *Engine
	Ledger      Ledger
	Concurrency int
	QuoteAssets []string
}

type Orchestrator struct {
	catalog     PairCatalog
	engine      *Engine
	ledger      Ledger
	concurrency int
	quotes      map[string]struct{}
}

// Outcome 是单个交易对的同步结果；Err 非空即失败。
type Outcome struct {
	Pair     market.Pair   `json:"pair"`
	TimeUnit string        `json:"time_unit"`
	Candles  int           `json:"candles"`
	Fetched  int           `json:"fetched"`
	Added    int           `json:"added"`
	Skipped  bool          `json:"skipped"`
	Elapsed  time.Duration `json:"elapsed"`
	Err      error         `json:"-"`
}

func (o Outcome) OK() bool { return o.Err == nil }

// Summary 汇总一次批量同步。
type Summary struct {
	RunID     string
	TimeUnit  timeunit.TimeUnit
	StartedAt time.Time
	Elapsed   time.Duration
	Outcomes  []Outcome
	Succeeded int
	Failed    int
}

// Err 合并所有失败交易对的错误；全部成功时为 nil。
func (s Summary) Err() error {
	var errs []error
	for _, o := range s.Outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Pair.Symbol, o.Err))
		}
	}
	return errors.Join(errs...)
}

func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Catalog == nil || cfg.Engine == nil {
		return nil, fmt.Errorf("syncer: catalog/engine 不能为空")
	}
	n := cfg.Concurrency
	if n <= 0 {
		n = 1
	}
	var quotes map[string]struct{}
	for _, q := range cfg.QuoteAssets {
		q = strings.ToUpper(strings.TrimSpace(q))
		if q == "" {
			continue
		}
		if quotes == nil {
			quotes = make(map[string]struct{})
		}
		quotes[q] = struct{}{}
	}
	return &Orchestrator{
		catalog:     cfg.Catalog,
		engine:      cfg.Engine,
		ledger:      cfg.Ledger,
		concurrency: n,
		quotes:      quotes,
	}, nil
}

// SyncAll 同步目录中的所有交易对。单个交易对失败只记录在 Outcome 中，不会中断整批。
func (o *Orchestrator) SyncAll(ctx context.Context, unit timeunit.TimeUnit) (Summary, error) {
	if unit.IsZero() {
		return Summary{}, fmt.Errorf("syncer: time unit 不能为空")
	}
	pairs, err := o.catalog.GetAvailablePairs(ctx)
	if err != nil {
		return Summary{}, err
	}
	pairs = o.filter(pairs)
	sum := Summary{
		RunID:     uuid.NewString(),
		TimeUnit:  unit,
		StartedAt: time.Now().UTC(),
		Outcomes:  make([]Outcome, len(pairs)),
	}
	logger.Infof("[sync] run=%s unit=%s 开始同步 %d 个交易对（并发 %d）", sum.RunID, unit.Code, len(pairs), o.concurrency)

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, pair := range pairs {
		i, pair := i, pair
		g.Go(func() error {
			sum.Outcomes[i] = o.syncPair(ctx, sum.RunID, pair, unit)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range sum.Outcomes {
		if out.OK() {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	sum.Elapsed = time.Since(sum.StartedAt)
	logger.Infof("[sync] run=%s unit=%s 完成：成功 %d 失败 %d 耗时 %s", sum.RunID, unit.Code, sum.Succeeded, sum.Failed, sum.Elapsed.Round(time.Millisecond))
	return sum, nil
}

// SyncOne 解析 symbol 后同步单个交易对。
func (o *Orchestrator) SyncOne(ctx context.Context, symbol string, unit timeunit.TimeUnit) (Outcome, error) {
	pair, err := o.catalog.PairBySymbol(ctx, symbol)
	if err != nil {
		return Outcome{TimeUnit: unit.Code, Err: err}, err
	}
	return o.SyncPair(ctx, pair, unit)
}

// SyncPair 同步一个已知交易对，返回当前缓存的根数。
func (o *Orchestrator) SyncPair(ctx context.Context, pair market.Pair, unit timeunit.TimeUnit) (Outcome, error) {
	out := o.syncPair(ctx, uuid.NewString(), pair, unit)
	return out, out.Err
}

func (o *Orchestrator) syncPair(ctx context.Context, runID string, pair market.Pair, unit timeunit.TimeUnit) Outcome {
	start := time.Now()
	out := Outcome{Pair: pair, TimeUnit: unit.Code}
	res, err := o.engine.Sync(ctx, pair, unit)
	out.Elapsed = time.Since(start)
	out.Fetched = res.Fetched
	out.Added = res.Added
	out.Skipped = res.Skipped
	out.Candles = len(res.Candles)
	out.Err = err
	if err != nil {
		logger.Errorf("[sync] %s %s 同步失败: %v", pair.Symbol, unit.Code, err)
	}
	o.record(ctx, runID, res, out)
	return out
}

func (o *Orchestrator) record(ctx context.Context, runID string, res Result, out Outcome) {
	if o.ledger == nil {
		return
	}
	rec := manifest.Record{
		Symbol:        out.Pair.Symbol,
		TimeUnit:      out.TimeUnit,
		Rows:          int64(out.Candles),
		Fetched:       int64(out.Fetched),
		Added:         int64(out.Added),
		LastAttemptAt: time.Now().UnixMilli(),
		LastRunID:     runID,
	}
	rec.MinTime, rec.MaxTime = market.Span(res.Candles)
	if out.Err != nil {
		rec.LastError = out.Err.Error()
	}
	// 取消后仍要落台账
	if err := o.ledger.Record(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warnf("[sync] 台账写入失败 %s %s: %v", out.Pair.Symbol, out.TimeUnit, err)
	}
}

func (o *Orchestrator) filter(pairs []market.Pair) []market.Pair {
	if len(o.quotes) == 0 {
		return pairs
	}
	out := make([]market.Pair, 0, len(pairs))
	for _, p := range pairs {
		if _, ok := o.quotes[strings.ToUpper(p.QuoteAsset)]; ok {
			out = append(out, p)
		}
	}
	return out
}
