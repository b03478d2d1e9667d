package store

import (
	"encoding/json"
	"io"

	"candlecache/internal/market"
)

const canonicalIndent = "    "

func writeCanonical(w io.Writer, rows []market.Candle) error {
	if rows == nil {
		rows = []market.Candle{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", canonicalIndent)
	return enc.Encode(rows)
}

func readCanonical(r io.Reader) ([]market.Candle, error) {
	var out []market.Candle
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}
