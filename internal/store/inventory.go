package store

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Entry 是缓存目录中的一个 (symbol, unit) 组合。
type Entry struct {
	Symbol    string `json:"symbol" yaml:"symbol"`
	TimeUnit  string `json:"time_unit" yaml:"time_unit"`
	Tabular   bool   `json:"tabular" yaml:"tabular"`
	Canonical bool   `json:"canonical" yaml:"canonical"`
}

// Inventory 扫描 csv/ 与 json/ 目录，按 symbol、unit 排序返回已缓存组合。
func (s *Store) Inventory() ([]Entry, error) {
	found := make(map[string]*Entry)
	scan := func(dir, ext string, mark func(*Entry)) error {
		entries, err := os.ReadDir(filepath.Join(s.root, dir))
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, de := range entries {
			if de.IsDir() {
				continue
			}
			symbol, code, ok := parseFileName(de.Name(), ext)
			if !ok {
				continue
			}
			k := lockKey(symbol, code)
			e, exists := found[k]
			if !exists {
				e = &Entry{Symbol: symbol, TimeUnit: code}
				found[k] = e
			}
			mark(e)
		}
		return nil
	}
	if err := scan(tabularDir, ".csv", func(e *Entry) { e.Tabular = true }); err != nil {
		return nil, err
	}
	if err := scan(canonicalDir, ".json", func(e *Entry) { e.Canonical = true }); err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(found))
	for _, e := range found {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].TimeUnit < out[j].TimeUnit
	})
	return out, nil
}

// parseFileName 解析 "<SYMBOL>-<code>-data<ext>"。
func parseFileName(name, ext string) (symbol, code string, ok bool) {
	base, found := strings.CutSuffix(name, fileSuffix+ext)
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(base, "-")
	if i <= 0 || i == len(base)-1 {
		return "", "", false
	}
	return base[:i], base[i+1:], true
}
