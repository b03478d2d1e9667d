// Package catalog 缓存可交易对目录（available_pairs.json），冷启动时从远端导入。
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"candlecache/internal/exchange"
	"candlecache/internal/logger"
	"candlecache/internal/market"
	"candlecache/internal/pkg/fsutil"
	symbolpkg "candlecache/internal/pkg/symbol"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FileName 是目录文件在缓存根目录下的名字。
const FileName = "available_pairs.json"

var (
	ErrCatalogUnavailable = errors.New("pair catalog unavailable")
	ErrPairNotFound       = errors.New("pair not found")
)

type Config struct {
	Path   string
	Lister exchange.SymbolLister
}

type Catalog struct {
	path   string
	lister exchange.SymbolLister
	schema *jsonschema.Schema

	mu sync.Mutex
}

func New(cfg Config) (*Catalog, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("catalog path 不能为空")
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}
	return &Catalog{path: path, lister: cfg.Lister, schema: schema}, nil
}

func (c *Catalog) Path() string { return c.path }

// GetAvailablePairs 优先读本地文件；文件缺失、为空数组或无法解析时从远端导入。
func (c *Catalog) GetAvailablePairs(ctx context.Context) ([]market.Pair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pairs, err := c.load()
	switch {
	case err == nil && len(pairs) > 0:
		return pairs, nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		logger.Warnf("[catalog] 本地目录不可用，重新导入: %v", err)
	}
	imported, importErr := c.importAll(ctx)
	if importErr != nil {
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, errors.Join(err, importErr))
		}
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, importErr)
	}
	return imported, nil
}

// ImportAllPairs 无条件从远端拉取并覆盖本地目录文件。
func (c *Catalog) ImportAllPairs(ctx context.Context) ([]market.Pair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.importAll(ctx)
}

// Cached 只读本地文件，不触发远端请求；文件不存在时返回 nil。
func (c *Catalog) Cached() ([]market.Pair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pairs, err := c.load()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return pairs, err
}

// PairBySymbol 接受 "btc/usdt"、"BTC_USDT"、" btcusdt " 等写法。
func (c *Catalog) PairBySymbol(ctx context.Context, symbol string) (market.Pair, error) {
	want := symbolpkg.Compact(symbol)
	if want == "" {
		return market.Pair{}, fmt.Errorf("%w: empty symbol", ErrPairNotFound)
	}
	pairs, err := c.GetAvailablePairs(ctx)
	if err != nil {
		return market.Pair{}, err
	}
	if p, ok := Find(pairs, want); ok {
		return p, nil
	}
	return market.Pair{}, fmt.Errorf("%w: %s", ErrPairNotFound, want)
}

// Find 在列表中按规范化后的 symbol 查找。
func Find(pairs []market.Pair, symbol string) (market.Pair, bool) {
	want := symbolpkg.Compact(symbol)
	for _, p := range pairs {
		if strings.EqualFold(p.Symbol, want) {
			return p, true
		}
	}
	return market.Pair{}, false
}

func (c *Catalog) importAll(ctx context.Context) ([]market.Pair, error) {
	if c.lister == nil {
		return nil, fmt.Errorf("no symbol lister configured")
	}
	records, err := c.lister.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols from %s: %w", c.lister.Name(), err)
	}
	pairs := make([]market.Pair, 0, len(records))
	skipped := 0
	for _, rec := range records {
		p, err := PairFromRecord(rec.Raw)
		if err != nil {
			skipped++
			logger.Debugf("[catalog] 跳过 %s 记录: %v", rec.Source, err)
			continue
		}
		pairs = append(pairs, p)
	}
	if len(pairs) == 0 && len(records) > 0 {
		return nil, fmt.Errorf("%w: none of %d records from %s adapted", ErrUnknownSymbolSchema, len(records), c.lister.Name())
	}
	pairs = market.DedupePairs(pairs)
	if err := fsutil.WriteAtomic(c.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return enc.Encode(pairs)
	}); err != nil {
		return nil, fmt.Errorf("write catalog %s: %w", c.path, err)
	}
	logger.Infof("[catalog] 从 %s 导入 %d 个交易对（跳过 %d）", c.lister.Name(), len(pairs), skipped)
	return pairs, nil
}

func (c *Catalog) load() ([]market.Pair, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", c.path, err)
	}
	if err := c.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate %s: %w", c.path, err)
	}
	var pairs []market.Pair
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.path, err)
	}
	return pairs, nil
}
