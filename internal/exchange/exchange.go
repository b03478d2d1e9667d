// Package exchange 定义远端行情源的最小契约，具体实现位于子包。
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoCandles 表示远端对该 symbol/interval 没有返回任何 K 线。
var ErrNoCandles = errors.New("remote returned no candles")

// SymbolRecord 保留远端返回的单条交易对原始 JSON，由 catalog 按字段判别格式。
type SymbolRecord struct {
	Source string
	Raw    json.RawMessage
}

// CandleRow 是远端返回的原始 K 线行，价格字段保持字符串原样。
type CandleRow struct {
	OpenTime            int64
	Open                string
	High                string
	Low                 string
	Close               string
	Volume              string
	CloseTime           int64
	QuoteAssetVolume    string
	Trades              int64
	TakerBuyBaseVolume  string
	TakerBuyQuoteVolume string
}

// CandleQuery 描述一次区间拉取。
type CandleQuery struct {
	Symbol   string
	Interval string
	Start    int64 // Unix ms，含
	End      int64 // Unix ms，含；0 表示不限制
	Limit    int   // 预期根数，仅作容量提示
}

func (q CandleQuery) Validate() error {
	if strings.TrimSpace(q.Symbol) == "" || strings.TrimSpace(q.Interval) == "" {
		return fmt.Errorf("symbol/interval 不能为空")
	}
	if q.End > 0 && q.End < q.Start {
		return fmt.Errorf("invalid range: start %d > end %d", q.Start, q.End)
	}
	return nil
}

// SymbolLister 拉取可交易对目录。
type SymbolLister interface {
	ListSymbols(ctx context.Context) ([]SymbolRecord, error)
	Name() string
}

// CandleSource 提供最新一根 K 线与区间 K 线。
type CandleSource interface {
	LatestCandle(ctx context.Context, symbol, interval string) (CandleRow, error)
	Candles(ctx context.Context, q CandleQuery) ([]CandleRow, error)
	Name() string
}

// Client 同时具备两种能力（例如 Binance）。
type Client interface {
	SymbolLister
	CandleSource
}
