package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"candlecache/internal/market"
)

var tabularHeader = []string{
	"timestamp", "open", "high", "low", "close", "volume",
	"close_time", "quote_av", "trades", "tb_base_av", "tb_quote_av", "ignore",
}

func writeTabular(w io.Writer, rows []market.Candle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tabularHeader); err != nil {
		return err
	}
	rec := make([]string, len(tabularHeader))
	for _, c := range rows {
		rec[0] = strconv.FormatInt(c.Timestamp, 10)
		rec[1] = formatFloat(c.Open)
		rec[2] = formatFloat(c.High)
		rec[3] = formatFloat(c.Low)
		rec[4] = formatFloat(c.Close)
		rec[5] = formatFloat(c.Volume)
		rec[6] = strconv.FormatInt(c.CloseTime, 10)
		rec[7] = formatFloat(c.QuoteAssetVolume)
		rec[8] = strconv.FormatInt(c.Trades, 10)
		rec[9] = formatFloat(c.TakerBuyBaseVolume)
		rec[10] = formatFloat(c.TakerBuyQuoteVolume)
		rec[11] = "0"
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// readTabular 按表头列名取值，缺失的附加列记为零。
func readTabular(r io.Reader) ([]market.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.ToLower(h))] = i
	}
	for _, col := range tabularHeader[:7] {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}
	var out []market.Candle
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		p := rowParser{rec: rec, idx: idx}
		c := market.Candle{
			Timestamp:           p.integer("timestamp"),
			Open:                p.number("open"),
			High:                p.number("high"),
			Low:                 p.number("low"),
			Close:               p.number("close"),
			Volume:              p.number("volume"),
			CloseTime:           p.integer("close_time"),
			QuoteAssetVolume:    p.number("quote_av"),
			Trades:              p.integer("trades"),
			TakerBuyBaseVolume:  p.number("tb_base_av"),
			TakerBuyQuoteVolume: p.number("tb_quote_av"),
		}
		if p.err != nil {
			return nil, fmt.Errorf("line %d: %w", line, p.err)
		}
		out = append(out, c)
	}
}

type rowParser struct {
	rec []string
	idx map[string]int
	err error
}

func (p *rowParser) field(col string) string {
	i, ok := p.idx[col]
	if !ok || i >= len(p.rec) {
		return ""
	}
	return strings.TrimSpace(p.rec[i])
}

func (p *rowParser) integer(col string) int64 {
	s := p.field(col)
	if s == "" || p.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// pandas 导出的整数列偶尔带 ".0"
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			p.err = fmt.Errorf("%s=%q: %w", col, s, err)
			return 0
		}
		return int64(f)
	}
	return v
}

func (p *rowParser) number(col string) float64 {
	s := p.field(col)
	if s == "" || p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = fmt.Errorf("%s=%q: %w", col, s, err)
		return 0
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
