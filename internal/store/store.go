// Package store 维护每个 (交易对, 周期) 的两份本地缓存：
// csv/ 下的表格文件（已有数据优先）与 json/ 下的规范文件（新数据在前）。
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"candlecache/internal/logger"
	"candlecache/internal/market"
	"candlecache/internal/pkg/fsutil"
	"candlecache/internal/timeunit"
)

var (
	// ErrStoreWrite 写入失败；原文件保持不变。
	ErrStoreWrite = errors.New("store write failed")
	// ErrCorruptStore 已有缓存文件无法解析。
	ErrCorruptStore = errors.New("corrupt store file")
)

const (
	tabularDir   = "csv"
	canonicalDir = "json"
	fileSuffix   = "-data"
)

type Store struct {
	root  string
	locks *lockTable
}

// PersistResult 描述一次落盘的结果。
type PersistResult struct {
	Tabular          []market.Candle
	TabularAdded     int
	CanonicalAdded   int
	TabularWritten   bool
	CanonicalWritten bool
}

func New(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("cache root 不能为空")
	}
	return &Store{root: root, locks: newLockTable(defaultShardCount)}, nil
}

func (s *Store) Root() string { return s.root }

func (s *Store) TabularPath(symbol, code string) string {
	return filepath.Join(s.root, tabularDir, symbol+"-"+code+fileSuffix+".csv")
}

func (s *Store) CanonicalPath(symbol, code string) string {
	return filepath.Join(s.root, canonicalDir, symbol+"-"+code+fileSuffix+".json")
}

// LoadTabular 读取表格缓存，文件不存在时返回空切片。
func (s *Store) LoadTabular(pair market.Pair, unit timeunit.TimeUnit) ([]market.Candle, error) {
	rows, err := loadFile(s.TabularPath(pair.Symbol, unit.Code), readTabular)
	if err != nil {
		return nil, err
	}
	return own(rows, pair, unit), nil
}

// LoadCanonical 读取规范缓存，保持文件内顺序。
func (s *Store) LoadCanonical(pair market.Pair, unit timeunit.TimeUnit) ([]market.Candle, error) {
	rows, err := loadFile(s.CanonicalPath(pair.Symbol, unit.Code), readCanonical)
	if err != nil {
		return nil, err
	}
	return own(rows, pair, unit), nil
}

// Persist 合并并覆盖两份缓存：表格文件 = existing ++ fresh 去重；
// 规范文件以合并后的表格行作为候选，确保两边时间戳集合一致。
func (s *Store) Persist(pair market.Pair, unit timeunit.TimeUnit, existing, fresh []market.Candle) (PersistResult, error) {
	if !pair.Valid() || unit.IsZero() {
		return PersistResult{}, fmt.Errorf("%w: pair/unit 不能为空", ErrStoreWrite)
	}
	defer s.locks.lock(lockKey(pair.Symbol, unit.Code))()

	merged := MergeTabular(own(existing, pair, unit), own(fresh, pair, unit))
	res := PersistResult{Tabular: merged, TabularAdded: len(merged) - countUnique(existing)}
	path := s.TabularPath(pair.Symbol, unit.Code)
	if err := s.write(path, func(w io.Writer) error { return writeTabular(w, merged) }); err != nil {
		return res, err
	}
	res.TabularWritten = true

	added, written, err := s.reconcile(pair, unit, merged)
	if err != nil {
		return res, err
	}
	res.CanonicalAdded = added
	res.CanonicalWritten = written
	return res, nil
}

// Reconcile 只补齐规范文件；已包含全部时间戳时不写盘。
func (s *Store) Reconcile(pair market.Pair, unit timeunit.TimeUnit, rows []market.Candle) (PersistResult, error) {
	if !pair.Valid() || unit.IsZero() {
		return PersistResult{}, fmt.Errorf("%w: pair/unit 不能为空", ErrStoreWrite)
	}
	defer s.locks.lock(lockKey(pair.Symbol, unit.Code))()
	added, written, err := s.reconcile(pair, unit, own(rows, pair, unit))
	return PersistResult{Tabular: rows, CanonicalAdded: added, CanonicalWritten: written}, err
}

func (s *Store) reconcile(pair market.Pair, unit timeunit.TimeUnit, candidates []market.Candle) (int, bool, error) {
	path := s.CanonicalPath(pair.Symbol, unit.Code)
	current, err := loadFile(path, readCanonical)
	if err != nil {
		if !errors.Is(err, ErrCorruptStore) {
			err = fmt.Errorf("%w: %v", ErrStoreWrite, err)
		}
		return 0, false, err
	}
	exists, err := fsutil.Exists(path)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	merged := MergeCanonical(current, candidates)
	added := len(merged) - len(current)
	if added == 0 && exists {
		return 0, false, nil
	}
	if err := s.write(path, func(w io.Writer) error { return writeCanonical(w, merged) }); err != nil {
		return 0, false, err
	}
	logger.Debugf("[store] %s %s 规范缓存新增 %d 行", pair.Symbol, unit.Code, added)
	return added, true, nil
}

func (s *Store) write(path string, fn func(io.Writer) error) error {
	if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStoreWrite, path, err)
	}
	if err := fsutil.WriteAtomic(path, fn); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStoreWrite, path, err)
	}
	return nil
}

func loadFile(path string, decode func(io.Reader) ([]market.Candle, error)) ([]market.Candle, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []market.Candle{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	rows, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, path, err)
	}
	if rows == nil {
		rows = []market.Candle{}
	}
	return rows, nil
}

func own(rows []market.Candle, pair market.Pair, unit timeunit.TimeUnit) []market.Candle {
	out := make([]market.Candle, len(rows))
	for i, c := range rows {
		out[i] = c.WithOwner(pair, unit)
	}
	return out
}

func countUnique(rows []market.Candle) int {
	seen := make(map[int64]struct{}, len(rows))
	for _, c := range rows {
		seen[c.Timestamp] = struct{}{}
	}
	return len(seen)
}
