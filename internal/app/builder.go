package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"candlecache/internal/catalog"
	"candlecache/internal/config"
	"candlecache/internal/exchange"
	"candlecache/internal/exchange/binance"
	"candlecache/internal/exchange/cryptocom"
	"candlecache/internal/logger"
	"candlecache/internal/manifest"
	"candlecache/internal/store"
	"candlecache/internal/syncer"
	"candlecache/internal/timeunit"
)

type AppBuilder struct {
	cfg *config.Config

	candleSourceFn func(config.ExchangeConfig) (exchange.CandleSource, error)
	symbolListerFn func(*config.Config, exchange.CandleSource) (exchange.SymbolLister, error)
	ledgerFn       func(path string) (*manifest.Ledger, error)

	sleep func(ctx context.Context, d time.Duration) error
}

type AppBuilderOption func(*AppBuilder)

// WithCandleSource 替换行情源（测试或离线回放）。
func WithCandleSource(src exchange.CandleSource) AppBuilderOption {
	return func(b *AppBuilder) {
		b.candleSourceFn = func(config.ExchangeConfig) (exchange.CandleSource, error) { return src, nil }
	}
}

// WithSymbolLister 替换交易对目录来源。
func WithSymbolLister(lister exchange.SymbolLister) AppBuilderOption {
	return func(b *AppBuilder) {
		b.symbolListerFn = func(*config.Config, exchange.CandleSource) (exchange.SymbolLister, error) { return lister, nil }
	}
}

// WithSleep 替换同步冷却的等待函数。
func WithSleep(fn func(ctx context.Context, d time.Duration) error) AppBuilderOption {
	return func(b *AppBuilder) { b.sleep = fn }
}

// WithoutLedger 关闭 sqlite 台账。
func WithoutLedger() AppBuilderOption {
	return func(b *AppBuilder) { b.ledgerFn = nil }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:            cfg,
		candleSourceFn: buildBinanceSource,
		symbolListerFn: buildSymbolLister,
		ledgerFn:       manifest.Open,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	app := &App{cfg: cfg}
	built := false
	defer func() {
		if !built {
			_ = app.Close()
		}
	}()
	if err := app.setupLogging(cfg.App); err != nil {
		return nil, err
	}

	st, err := store.New(cfg.Cache.Root)
	if err != nil {
		return nil, err
	}
	app.Store = st

	src, err := b.candleSourceFn(cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("init candle source: %w", err)
	}
	app.Source = src

	lister, err := b.symbolListerFn(cfg, src)
	if err != nil {
		return nil, fmt.Errorf("init symbol lister: %w", err)
	}
	cat, err := catalog.New(catalog.Config{
		Path:   filepath.Join(cfg.Cache.Root, catalog.FileName),
		Lister: lister,
	})
	if err != nil {
		return nil, err
	}
	app.Catalog = cat

	floor, err := cfg.Cache.EarliestHistoryTime()
	if err != nil {
		return nil, err
	}
	engine, err := syncer.NewEngine(syncer.EngineConfig{
		Source:          src,
		Store:           st,
		EarliestHistory: floor,
		Cooldown:        cfg.Sync.Cooldown(),
		Sleep:           b.sleep,
	})
	if err != nil {
		return nil, err
	}
	app.Engine = engine

	var ledger syncer.Ledger
	if b.ledgerFn != nil {
		l, err := b.ledgerFn(filepath.Join(cfg.Cache.Root, manifest.FileName))
		if err != nil {
			return nil, fmt.Errorf("open manifest: %w", err)
		}
		app.Ledger = l
		app.closers = append(app.closers, l)
		ledger = l
	}

	orch, err := syncer.NewOrchestrator(syncer.OrchestratorConfig{
		Catalog:     cat,
		Engine:      engine,
		Ledger:      ledger,
		Concurrency: cfg.Sync.Concurrency,
		QuoteAssets: cfg.Sync.QuoteAssets,
	})
	if err != nil {
		return nil, err
	}
	app.Orchestrator = orch

	app.Summary = &StartupSummary{
		Env:          cfg.App.Env,
		CacheRoot:    cfg.Cache.Root,
		Floor:        floor,
		Provider:     lister.Name(),
		Source:       src.Name(),
		RESTBaseURL:  cfg.Exchange.RESTBaseURL,
		Cooldown:     cfg.Sync.Cooldown(),
		Concurrency:  cfg.Sync.Concurrency,
		QuoteAssets:  cfg.Sync.QuoteAssets,
		TimeUnits:    timeunit.Default().Codes(),
		HTTPAddr:     cfg.HTTP.Addr,
		LedgerActive: app.Ledger != nil,
	}
	built = true
	return app, nil
}

func (a *App) setupLogging(cfg config.AppConfig) error {
	logger.SetFormat(cfg.LogFormat)
	logger.SetLevel(cfg.LogLevel)
	path := strings.TrimSpace(cfg.LogPath)
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, f))
	a.logFile = f
	return nil
}

func buildBinanceSource(cfg config.ExchangeConfig) (exchange.CandleSource, error) {
	return binance.New(binance.Config{
		RESTBaseURL:     cfg.RESTBaseURL,
		HTTPTimeout:     cfg.HTTPTimeout(),
		APIKey:          cfg.APIKey,
		APISecret:       cfg.APISecret,
		PageLimit:       cfg.PageLimit,
		RateLimitPerMin: cfg.RateLimitPerMin,
		ProxyURL:        cfg.ProxyURL,
	})
}

// buildSymbolLister 按 catalog.provider 选择目录来源；binance 复用行情客户端。
func buildSymbolLister(cfg *config.Config, src exchange.CandleSource) (exchange.SymbolLister, error) {
	switch cfg.Catalog.Provider {
	case config.ProviderCryptoCom:
		return cryptocom.New(cryptocom.Config{
			BaseURL:     cfg.Catalog.CryptoComBaseURL,
			HTTPTimeout: cfg.Exchange.HTTPTimeout(),
		}), nil
	case config.ProviderBinance, "":
		if lister, ok := src.(exchange.SymbolLister); ok {
			return lister, nil
		}
		return nil, fmt.Errorf("candle source %s cannot list symbols", src.Name())
	default:
		return nil, fmt.Errorf("unknown catalog provider %q", cfg.Catalog.Provider)
	}
}
