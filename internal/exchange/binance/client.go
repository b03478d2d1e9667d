package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"candlecache/internal/exchange"
	"candlecache/internal/logger"
	symbolpkg "candlecache/internal/pkg/symbol"

	gobinance "github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"
)

// maxPrealloc caps the capacity hint so a decade of 1m candles does not allocate up front.
const maxPrealloc = 100_000

// Client 基于 go-binance SDK 的现货行情实现，满足 exchange.Client。
type Client struct {
	cfg     Config
	api     *gobinance.Client
	limiter *rate.Limiter
}

var _ exchange.Client = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	final := cfg.withDefaults()
	api := gobinance.NewClient(final.APIKey, final.APISecret)
	api.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyURL != "" {
		proxyURL, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	api.HTTPClient = httpClient
	perSec := rate.Limit(float64(final.RateLimitPerMin) / 60.0)
	return &Client{
		cfg:     final,
		api:     api,
		limiter: rate.NewLimiter(perSec, 1),
	}, nil
}

func (c *Client) Name() string { return "binance" }

// ListSymbols 调用 exchangeInfo，逐条保留原始 JSON（symbol/baseAsset/quoteAsset/orderTypes）。
func (c *Client) ListSymbols(ctx context.Context) ([]exchange.SymbolRecord, error) {
	info, err := c.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance exchangeInfo: %w", err)
	}
	out := make([]exchange.SymbolRecord, 0, len(info.Symbols))
	for _, sym := range info.Symbols {
		raw, err := json.Marshal(sym)
		if err != nil {
			return nil, fmt.Errorf("encode symbol %s: %w", sym.Symbol, err)
		}
		out = append(out, exchange.SymbolRecord{Source: c.Name(), Raw: raw})
	}
	return out, nil
}

// LatestCandle 返回最近一根（可能尚未收盘的）K 线。
func (c *Client) LatestCandle(ctx context.Context, symbol, interval string) (exchange.CandleRow, error) {
	sym, iv, err := cleanArgs(symbol, interval)
	if err != nil {
		return exchange.CandleRow{}, err
	}
	kls, err := c.api.NewKlinesService().Symbol(sym).Interval(iv).Limit(1).Do(ctx)
	if err != nil {
		return exchange.CandleRow{}, fmt.Errorf("binance klines %s %s: %w", sym, iv, err)
	}
	for i := len(kls) - 1; i >= 0; i-- {
		if kls[i] != nil {
			return toRow(kls[i]), nil
		}
	}
	return exchange.CandleRow{}, fmt.Errorf("%w: %s %s", exchange.ErrNoCandles, sym, iv)
}

// Candles 从 Start 起按页拉取直至 End，页间经限速器等待。
func (c *Client) Candles(ctx context.Context, q exchange.CandleQuery) ([]exchange.CandleRow, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	sym, iv, err := cleanArgs(q.Symbol, q.Interval)
	if err != nil {
		return nil, err
	}
	hint := q.Limit
	if hint <= 0 || hint > maxPrealloc {
		hint = c.cfg.PageLimit
	}
	out := make([]exchange.CandleRow, 0, hint)
	cursor := q.Start
	pages := 0
	for q.End <= 0 || cursor <= q.End {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		svc := c.api.NewKlinesService().Symbol(sym).Interval(iv).StartTime(cursor).Limit(c.cfg.PageLimit)
		if q.End > 0 {
			svc = svc.EndTime(q.End)
		}
		kls, err := svc.Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s %s from %d: %w", sym, iv, cursor, err)
		}
		pages++
		last := int64(-1)
		for _, kl := range kls {
			if kl == nil {
				continue
			}
			out = append(out, toRow(kl))
			last = kl.OpenTime
		}
		if len(kls) < c.cfg.PageLimit || last < cursor {
			break
		}
		cursor = last + 1
	}
	logger.Debugf("[binance] %s %s 拉取 %d 根，%d 页", sym, iv, len(out), pages)
	return out, nil
}

func cleanArgs(symbol, interval string) (string, string, error) {
	sym := symbolpkg.Binance.ToExchange(symbol)
	iv := strings.TrimSpace(interval)
	if sym == "" || iv == "" {
		return "", "", fmt.Errorf("symbol and interval are required")
	}
	return sym, iv, nil
}

func toRow(kl *gobinance.Kline) exchange.CandleRow {
	return exchange.CandleRow{
		OpenTime:            kl.OpenTime,
		Open:                kl.Open,
		High:                kl.High,
		Low:                 kl.Low,
		Close:               kl.Close,
		Volume:              kl.Volume,
		CloseTime:           kl.CloseTime,
		QuoteAssetVolume:    kl.QuoteAssetVolume,
		Trades:              kl.TradeNum,
		TakerBuyBaseVolume:  kl.TakerBuyBaseAssetVolume,
		TakerBuyQuoteVolume: kl.TakerBuyQuoteAssetVolume,
	}
}
