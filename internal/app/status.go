package app

import (
	"context"
	"fmt"

	"candlecache/internal/manifest"
	"candlecache/internal/store"
	"candlecache/internal/timeunit"
)

// StatusReport 汇总缓存目录与同步台账，供 status 命令输出。
type StatusReport struct {
	CacheRoot string            `json:"cache_root" yaml:"cache_root"`
	Pairs     int               `json:"pairs" yaml:"pairs"`
	Inventory []store.Entry     `json:"inventory" yaml:"inventory"`
	Manifest  []manifest.Record `json:"manifest" yaml:"manifest"`
}

// Status 只读本地文件，不访问远端。
func (a *App) Status(ctx context.Context, unit string) (StatusReport, error) {
	if unit != "" {
		if _, err := timeunit.FromCode(unit); err != nil {
			return StatusReport{}, err
		}
	}
	rep := StatusReport{CacheRoot: a.Store.Root()}
	pairs, err := a.Catalog.Cached()
	if err != nil {
		return rep, fmt.Errorf("read catalog: %w", err)
	}
	rep.Pairs = len(pairs)
	inv, err := a.Store.Inventory()
	if err != nil {
		return rep, fmt.Errorf("scan cache: %w", err)
	}
	for _, e := range inv {
		if unit == "" || e.TimeUnit == unit {
			rep.Inventory = append(rep.Inventory, e)
		}
	}
	if a.Ledger != nil {
		recs, err := a.Ledger.List(ctx, unit)
		if err != nil {
			return rep, fmt.Errorf("read manifest: %w", err)
		}
		rep.Manifest = recs
	}
	return rep, nil
}
