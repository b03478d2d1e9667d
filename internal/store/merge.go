package store

import "candlecache/internal/market"

// MergeTabular 追加新行并按时间戳去重，保留先出现者（已有数据优先）。
func MergeTabular(existing, fresh []market.Candle) []market.Candle {
	out := make([]market.Candle, 0, len(existing)+len(fresh))
	seen := make(map[int64]struct{}, len(existing)+len(fresh))
	for _, batch := range [][]market.Candle{existing, fresh} {
		for _, c := range batch {
			if _, ok := seen[c.Timestamp]; ok {
				continue
			}
			seen[c.Timestamp] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// MergeCanonical 把 existing 中没有的新行放在前面，随后是 existing 原样。
func MergeCanonical(existing, fresh []market.Candle) []market.Candle {
	seen := make(map[int64]struct{}, len(existing)+len(fresh))
	for _, c := range existing {
		seen[c.Timestamp] = struct{}{}
	}
	out := make([]market.Candle, 0, len(existing)+len(fresh))
	for _, c := range fresh {
		if _, ok := seen[c.Timestamp]; ok {
			continue
		}
		seen[c.Timestamp] = struct{}{}
		out = append(out, c)
	}
	return append(out, existing...)
}
