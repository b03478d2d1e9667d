package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"candlecache/internal/catalog"
	"candlecache/internal/config"
	"candlecache/internal/exchange"
	"candlecache/internal/logger"
	"candlecache/internal/manifest"
	"candlecache/internal/store"
	"candlecache/internal/syncer"
	cachehttp "candlecache/internal/transport/http/cache"

	"golang.org/x/sync/errgroup"
)

// App 持有一次命令执行所需的全部依赖：缓存、目录、同步引擎与台账。
type App struct {
	cfg *config.Config

	Store        *store.Store
	Catalog      *catalog.Catalog
	Ledger       *manifest.Ledger
	Source       exchange.CandleSource
	Engine       *syncer.Engine
	Orchestrator *syncer.Orchestrator
	Summary      *StartupSummary

	closers []io.Closer
	logFile *os.File
}

// NewApp 根据配置构建应用对象（不启动任何服务）。
func NewApp(ctx context.Context, cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return buildAppWithWire(ctx, NewAppBuilder(cfg, opts...))
}

func (a *App) Config() *config.Config { return a.cfg }

// Serve 启动只读 HTTP 接口，直到 ctx 取消。
func (a *App) Serve(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	server, err := a.NewHTTPServer()
	if err != nil {
		return err
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

func (a *App) NewHTTPServer() (*cachehttp.Server, error) {
	cfg := cachehttp.ServerConfig{
		Addr:    a.cfg.HTTP.Addr,
		Pairs:   a.Catalog,
		Candles: a.Store,
	}
	if a.Ledger != nil {
		cfg.Manifest = a.Ledger
	}
	server, err := cachehttp.NewServer(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 失败: %w", err)
	}
	return server, nil
}

// Close 释放台账与日志文件。
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.logFile != nil {
		logger.SetOutput(os.Stdout)
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, err)
		}
		a.logFile = nil
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warnf("close app: %v", err)
		return err
	}
	return nil
}
