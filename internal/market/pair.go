package market

import "strings"

// Pair 是可交易的交易对，以 Symbol 作为唯一标识。
type Pair struct {
	Symbol     string   `json:"symbol"`
	BaseAsset  string   `json:"base_asset"`
	QuoteAsset string   `json:"quote_asset"`
	OrderTypes []string `json:"order_types"`
}

func (p Pair) String() string { return p.Symbol }

// Valid reports whether the pair carries the fields every store path needs.
func (p Pair) Valid() bool {
	return strings.TrimSpace(p.Symbol) != ""
}

// DedupePairs 按 Symbol 去重，保留首次出现。
func DedupePairs(pairs []Pair) []Pair {
	seen := make(map[string]struct{}, len(pairs))
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if _, ok := seen[p.Symbol]; ok {
			continue
		}
		seen[p.Symbol] = struct{}{}
		out = append(out, p)
	}
	return out
}
