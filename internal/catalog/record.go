package catalog

import (
	"errors"
	"fmt"
	"strings"

	"candlecache/internal/market"
	symbolpkg "candlecache/internal/pkg/symbol"

	"github.com/tidwall/gjson"
)

// ErrUnknownSymbolSchema 远端记录既不是 Binance 也不是 Crypto.com 格式。
var ErrUnknownSymbolSchema = errors.New("unknown symbol record schema")

// PairFromRecord 按判别字段选择适配器：
// symbol → Binance exchangeInfo；instrument_name → Crypto.com get-instruments。
func PairFromRecord(raw []byte) (market.Pair, error) {
	if !gjson.ValidBytes(raw) {
		return market.Pair{}, fmt.Errorf("%w: invalid json", ErrUnknownSymbolSchema)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return market.Pair{}, fmt.Errorf("%w: not an object", ErrUnknownSymbolSchema)
	}
	var p market.Pair
	switch {
	case doc.Get("symbol").Exists():
		p = fromBinance(doc)
	case doc.Get("instrument_name").Exists():
		p = fromCryptoCom(doc)
	default:
		return market.Pair{}, fmt.Errorf("%w: %s", ErrUnknownSymbolSchema, truncate(doc.Raw, 80))
	}
	if !p.Valid() {
		return market.Pair{}, fmt.Errorf("%w: empty symbol", ErrUnknownSymbolSchema)
	}
	return p, nil
}

func fromBinance(doc gjson.Result) market.Pair {
	p := market.Pair{
		Symbol:     symbolpkg.Binance.FromExchange(doc.Get("symbol").String()),
		BaseAsset:  strings.TrimSpace(doc.Get("baseAsset").String()),
		QuoteAsset: strings.TrimSpace(doc.Get("quoteAsset").String()),
	}
	for _, ot := range doc.Get("orderTypes").Array() {
		p.OrderTypes = append(p.OrderTypes, ot.String())
	}
	return p
}

func fromCryptoCom(doc gjson.Result) market.Pair {
	return market.Pair{
		Symbol:     symbolpkg.CryptoCom.FromExchange(doc.Get("instrument_name").String()),
		BaseAsset:  strings.TrimSpace(doc.Get("base_currency").String()),
		QuoteAsset: strings.TrimSpace(doc.Get("quote_currency").String()),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
