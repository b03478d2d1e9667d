// Package cryptocom 只实现交易对目录拉取，行情同步仍走 Binance。
package cryptocom

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"candlecache/internal/exchange"

	"github.com/tidwall/gjson"
)

const defaultBaseURL = "https://api.crypto.com/v2"

type Config struct {
	BaseURL     string
	HTTPTimeout time.Duration
}

type Client struct {
	baseURL string
	http    *http.Client
}

var _ exchange.SymbolLister = (*Client)(nil)

func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{baseURL: base, http: &http.Client{Timeout: timeout}}
}

func (c *Client) Name() string { return "cryptocom" }

// ListSymbols 读取 public/get-instruments 的 result.instruments。
func (c *Client) ListSymbols(ctx context.Context) ([]exchange.SymbolRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/public/get-instruments", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cryptocom get-instruments: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cryptocom read body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cryptocom get-instruments status=%d body=%s", resp.StatusCode, truncate(string(body), 200))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("cryptocom get-instruments: invalid json")
	}
	if code := gjson.GetBytes(body, "code"); code.Exists() && code.Int() != 0 {
		return nil, fmt.Errorf("cryptocom get-instruments code=%d message=%s", code.Int(), gjson.GetBytes(body, "message").String())
	}
	list := gjson.GetBytes(body, "result.instruments")
	if !list.IsArray() {
		return nil, fmt.Errorf("cryptocom get-instruments: result.instruments missing")
	}
	items := list.Array()
	out := make([]exchange.SymbolRecord, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		out = append(out, exchange.SymbolRecord{Source: c.Name(), Raw: []byte(item.Raw)})
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
