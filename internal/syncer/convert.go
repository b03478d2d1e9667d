package syncer

import (
	"errors"
	"fmt"
	"strings"

	"candlecache/internal/exchange"
	"candlecache/internal/market"
	"candlecache/internal/timeunit"

	"github.com/shopspring/decimal"
)

// ErrMalformedCandleRow 远端 K 线行无法转换成 Candle。
var ErrMalformedCandleRow = errors.New("malformed candle row")

// ToCandle 校验并转换一行远端 K 线；价格与成交量必须是合法十进制数。
func ToCandle(row exchange.CandleRow, pair market.Pair, unit timeunit.TimeUnit) (market.Candle, error) {
	if row.OpenTime <= 0 {
		return market.Candle{}, fmt.Errorf("%w: open time %d", ErrMalformedCandleRow, row.OpenTime)
	}
	c := market.Candle{
		Timestamp: row.OpenTime,
		CloseTime: row.CloseTime,
		Trades:    row.Trades,
		Pair:      pair,
		TimeUnit:  unit,
	}
	required := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", row.Open, &c.Open},
		{"high", row.High, &c.High},
		{"low", row.Low, &c.Low},
		{"close", row.Close, &c.Close},
		{"volume", row.Volume, &c.Volume},
	}
	for _, f := range required {
		v, err := parseDecimal(f.raw, false)
		if err != nil {
			return market.Candle{}, fmt.Errorf("%w: %d %s=%q", ErrMalformedCandleRow, row.OpenTime, f.name, f.raw)
		}
		*f.dst = v
	}
	optional := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"quote_av", row.QuoteAssetVolume, &c.QuoteAssetVolume},
		{"tb_base_av", row.TakerBuyBaseVolume, &c.TakerBuyBaseVolume},
		{"tb_quote_av", row.TakerBuyQuoteVolume, &c.TakerBuyQuoteVolume},
	}
	for _, f := range optional {
		v, err := parseDecimal(f.raw, true)
		if err != nil {
			return market.Candle{}, fmt.Errorf("%w: %d %s=%q", ErrMalformedCandleRow, row.OpenTime, f.name, f.raw)
		}
		*f.dst = v
	}
	return c, nil
}

// ToCandles 转换整批，任意一行失败即整批失败。
func ToCandles(rows []exchange.CandleRow, pair market.Pair, unit timeunit.TimeUnit) ([]market.Candle, error) {
	out := make([]market.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := ToCandle(row, pair, unit)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func parseDecimal(raw string, allowEmpty bool) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if allowEmpty {
			return 0, nil
		}
		return 0, errors.New("empty")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
