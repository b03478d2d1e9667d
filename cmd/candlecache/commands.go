package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"candlecache/internal/chart"
	"candlecache/internal/config"
	"candlecache/internal/logger"
	"candlecache/internal/market"
	"candlecache/internal/pkg/fsutil"
	"candlecache/internal/pkg/symbol"
	"candlecache/internal/timeunit"

	"github.com/urfave/cli/v2"
)

var timeUnitFlag = &cli.StringFlag{
	Name:     "time-unit",
	Aliases:  []string{"t"},
	Usage:    "candle granularity: " + strings.Join(timeunit.Default().Codes(), ", "),
	Required: true,
}

var importSymbolsCommand = &cli.Command{
	Name:  "importsymbols",
	Usage: "refresh the cached pair catalog from the exchange",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "provider",
			Usage: "catalog provider: binance or cryptocom (overrides catalog.provider)",
		},
	},
	Action: importSymbols,
}

var importQuotesCommand = &cli.Command{
	Name:  "importquotes",
	Usage: "sync candles for a single pair",
	Flags: []cli.Flag{
		timeUnitFlag,
		&cli.StringFlag{
			Name:     "symbol",
			Aliases:  []string{"s"},
			Usage:    "pair symbol, e.g. BTCUSDT or BTC/USDT",
			Required: true,
		},
	},
	Action: func(c *cli.Context) error {
		return syncCandles(c, c.String("symbol"))
	},
}

var runUpdateCommand = &cli.Command{
	Name:  "runupdate",
	Usage: "sync candles for every catalog pair (or one with --pair)",
	Flags: []cli.Flag{
		timeUnitFlag,
		&cli.StringFlag{
			Name:  "pair",
			Usage: "only sync this pair",
		},
	},
	Action: func(c *cli.Context) error {
		return syncCandles(c, c.String("pair"))
	},
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "show cached files and the sync ledger",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "format",
			Value: formatTable,
			Usage: "output format: table, json or yaml",
		},
		&cli.StringFlag{
			Name:  "time-unit",
			Usage: "only show this granularity",
		},
	},
	Action: showStatus,
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "serve the cache over a read-only HTTP API",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Usage: "listen address (overrides http.addr)",
		},
	},
	Action: func(c *cli.Context) error {
		a, err := loadApp(c, func(cfg *config.Config) {
			if addr := strings.TrimSpace(c.String("addr")); addr != "" {
				cfg.HTTP.Addr = addr
			}
		})
		if err != nil {
			return err
		}
		defer a.Close()
		if strings.TrimSpace(configPath) != "" {
			if err := config.Watch(configPath, applyLogSettings); err != nil {
				logger.Warnf("配置热更新未启用: %v", err)
			}
		}
		return a.Serve(c.Context)
	},
}

var chartCommand = &cli.Command{
	Name:  "chart",
	Usage: "render cached candles to an HTML or PNG chart",
	Flags: []cli.Flag{
		timeUnitFlag,
		&cli.StringFlag{
			Name:     "symbol",
			Aliases:  []string{"s"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "out",
			Aliases:  []string{"o"},
			Usage:    "output file; .png renders through headless chrome",
			Required: true,
		},
		&cli.IntFlag{
			Name:  "limit",
			Value: chart.DefaultLimit,
			Usage: "number of most recent candles",
		},
	},
	Action: renderChart,
}

// applyLogSettings 只热更新日志级别与格式，其余配置需要重启。
func applyLogSettings(cfg *config.Config, err error) {
	if err != nil {
		logger.Warnf("配置重载失败: %v", err)
		return
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.SetFormat(cfg.App.LogFormat)
	logger.Infof("✓ 日志配置已更新 level=%s format=%s", cfg.App.LogLevel, cfg.App.LogFormat)
}

func importSymbols(c *cli.Context) error {
	a, err := loadApp(c, func(cfg *config.Config) {
		if p := strings.ToLower(strings.TrimSpace(c.String("provider"))); p != "" {
			cfg.Catalog.Provider = p
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()
	pairs, err := a.Catalog.ImportAllPairs(c.Context)
	if err != nil {
		return err
	}
	logger.Infof("✓ 已导入 %d 个交易对 -> %s", len(pairs), a.Catalog.Path())
	return nil
}

// syncCandles 在 pair 为空时同步全部目录交易对；任一失败则以非零退出码结束。
func syncCandles(c *cli.Context, pair string) error {
	unit, err := timeunit.FromCode(c.String("time-unit"))
	if err != nil {
		return cli.Exit(err, 2)
	}
	a, err := loadApp(c, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if strings.TrimSpace(pair) != "" {
		out, err := a.Orchestrator.SyncOne(c.Context, pair, unit)
		if err != nil {
			return err
		}
		printOutcome(c.App.Writer, out)
		return nil
	}
	sum, err := a.Orchestrator.SyncAll(c.Context, unit)
	if err != nil {
		return err
	}
	printSummary(c.App.Writer, sum)
	if err := sum.Err(); err != nil {
		return cli.Exit(fmt.Sprintf("%d/%d pairs failed", sum.Failed, len(sum.Outcomes)), 1)
	}
	return nil
}

func showStatus(c *cli.Context) error {
	format := strings.ToLower(strings.TrimSpace(c.String("format")))
	if !validFormat(format) {
		return cli.Exit(fmt.Sprintf("unknown format %q", format), 2)
	}
	a, err := loadApp(c, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	rep, err := a.Status(c.Context, c.String("time-unit"))
	if err != nil {
		return err
	}
	return writeStatus(c.App.Writer, format, rep)
}

func renderChart(c *cli.Context) error {
	unit, err := timeunit.FromCode(c.String("time-unit"))
	if err != nil {
		return cli.Exit(err, 2)
	}
	a, err := loadApp(c, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	pair := market.Pair{Symbol: symbol.Compact(c.String("symbol"))}
	candles, err := a.Store.LoadCanonical(pair, unit)
	if err != nil {
		return err
	}
	in := chart.Input{Symbol: pair.Symbol, TimeUnit: unit.Code, Candles: candles, Limit: c.Int("limit")}
	out := c.String("out")
	switch strings.ToLower(filepath.Ext(out)) {
	case ".png":
		var data []byte
		if data, err = chart.RenderPNG(c.Context, in); err == nil {
			err = fsutil.WriteFileAtomic(out, data)
		}
	case ".html", ".htm":
		err = fsutil.WriteAtomic(out, func(w io.Writer) error { return chart.RenderHTML(w, in) })
	default:
		return cli.Exit("--out must end with .html or .png", 2)
	}
	if err != nil {
		return err
	}
	logger.Infof("✓ 图表已写入 %s (缓存 %d 根 K 线)", out, len(candles))
	return nil
}
