package binance

import (
	"strings"
	"time"
)

const (
	defaultRESTBaseURL     = "https://api.binance.com"
	defaultPageLimit       = 1000
	maxPageLimit           = 1000
	defaultRateLimitPerMin = 1200
)

type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
	APIKey      string
	APISecret   string

	// PageLimit 单次 klines 请求的根数上限（Binance 现货最大 1000）。
	PageLimit int
	// RateLimitPerMin 分页请求之间的速率上限。
	RateLimitPerMin int

	ProxyURL string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimRight(strings.TrimSpace(out.RESTBaseURL), "/")
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = defaultRESTBaseURL
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	if out.PageLimit <= 0 || out.PageLimit > maxPageLimit {
		out.PageLimit = defaultPageLimit
	}
	if out.RateLimitPerMin <= 0 {
		out.RateLimitPerMin = defaultRateLimitPerMin
	}
	out.ProxyURL = strings.TrimSpace(out.ProxyURL)
	return out
}
