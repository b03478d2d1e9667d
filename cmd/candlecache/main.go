package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"candlecache/internal/app"
	"candlecache/internal/config"
	"candlecache/internal/logger"

	"github.com/urfave/cli/v2"
)

const envConfigPath = "CANDLECACHE_CONFIG"

var configPath string

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "candlecache"
	cliApp.Usage = "local candle/quote cache synced from exchange REST APIs"
	cliApp.EnableBashCompletion = true
	cliApp.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to the yaml config file; defaults only when empty",
			EnvVars:     []string{envConfigPath},
			Destination: &configPath,
		},
	}
	cliApp.Commands = []*cli.Command{
		importSymbolsCommand,
		importQuotesCommand,
		runUpdateCommand,
		statusCommand,
		serveCommand,
		chartCommand,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		logger.Errorf("%v", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode 取包装链中的 cli.ExitCoder；未包装的已由 cli.HandleExitCoder 处理。
func exitCode(err error) int {
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}

// loadApp 读取配置并构建应用；mutate 可在构建前覆盖配置。
func loadApp(c *cli.Context, mutate func(*config.Config)) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}
	if mutate != nil {
		mutate(cfg)
	}
	a, err := app.NewApp(c.Context, cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化应用失败: %w", err)
	}
	return a, nil
}
