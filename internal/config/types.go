package config

import (
	"strings"
	"time"
)

// Config 是 candlecache 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Cache    CacheConfig    `toml:"cache"`
	Exchange ExchangeConfig `toml:"exchange"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Sync     SyncConfig     `toml:"sync"`
	HTTP     HTTPConfig     `toml:"http"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogPath   string `toml:"log_path"`
}

// CacheConfig 描述本地缓存根目录及无缓存时的历史起点。
type CacheConfig struct {
	Root            string `toml:"root"`
	EarliestHistory string `toml:"earliest_history"`
}

// EarliestHistoryTime 按 "2 Jan 2006" 解析（UTC）。
func (c CacheConfig) EarliestHistoryTime() (time.Time, error) {
	return time.ParseInLocation(earliestHistoryLayout, strings.TrimSpace(c.EarliestHistory), time.UTC)
}

type ExchangeConfig struct {
	RESTBaseURL        string `toml:"rest_base_url"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
	PageLimit          int    `toml:"page_limit"`
	RateLimitPerMin    int    `toml:"rate_limit_per_min"`
	APIKey             string `toml:"api_key"`
	APISecret          string `toml:"api_secret"`
	ProxyURL           string `toml:"proxy_url"`
}

func (e ExchangeConfig) HTTPTimeout() time.Duration {
	return time.Duration(e.HTTPTimeoutSeconds) * time.Second
}

// 目录来源
const (
	ProviderBinance   = "binance"
	ProviderCryptoCom = "cryptocom"
)

type CatalogConfig struct {
	Provider         string `toml:"provider"`
	CryptoComBaseURL string `toml:"cryptocom_base_url"`
}

type SyncConfig struct {
	CooldownMS  int      `toml:"cooldown_ms"`
	Concurrency int      `toml:"concurrency"`
	QuoteAssets []string `toml:"quote_assets"`
}

func (s SyncConfig) Cooldown() time.Duration {
	return time.Duration(s.CooldownMS) * time.Millisecond
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
