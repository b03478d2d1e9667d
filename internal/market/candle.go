package market

import "candlecache/internal/timeunit"

// Candle 是一根 OHLCV K 线；Timestamp 为开盘时间（UTC 毫秒）。
type Candle struct {
	Timestamp           int64             `json:"timestamp"`
	Open                float64           `json:"open"`
	High                float64           `json:"high"`
	Low                 float64           `json:"low"`
	Close               float64           `json:"close"`
	Volume              float64           `json:"volume"`
	CloseTime           int64             `json:"close_time"`
	QuoteAssetVolume    float64           `json:"quote_av,omitempty"`
	Trades              int64             `json:"trades,omitempty"`
	TakerBuyBaseVolume  float64           `json:"tb_base_av,omitempty"`
	TakerBuyQuoteVolume float64           `json:"tb_quote_av,omitempty"`
	Pair                Pair              `json:"pair"`
	TimeUnit            timeunit.TimeUnit `json:"time_unit"`
}

// WithOwner 返回绑定了交易对与周期的副本。
func (c Candle) WithOwner(p Pair, u timeunit.TimeUnit) Candle {
	c.Pair = p
	c.TimeUnit = u
	return c
}

// Timestamps 按原顺序返回时间戳。
func Timestamps(candles []Candle) []int64 {
	out := make([]int64, len(candles))
	for i, c := range candles {
		out[i] = c.Timestamp
	}
	return out
}

// Span 返回最小/最大时间戳；空切片返回 (0, 0)。
func Span(candles []Candle) (minTS, maxTS int64) {
	for i, c := range candles {
		if i == 0 || c.Timestamp < minTS {
			minTS = c.Timestamp
		}
		if i == 0 || c.Timestamp > maxTS {
			maxTS = c.Timestamp
		}
	}
	return minTS, maxTS
}
