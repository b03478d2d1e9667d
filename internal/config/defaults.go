package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppLogFormat      = "text"
	defaultCacheRoot         = "/data"
	defaultEarliestHistory   = "1 Jan 2017"
	defaultExchangeREST      = "https://api.binance.com"
	defaultExchangeTimeout   = 15
	defaultExchangePageLimit = 1000
	defaultExchangeRateLimit = 1200
	defaultCatalogProvider   = ProviderBinance
	defaultCryptoComBaseURL  = "https://api.crypto.com/v2"
	defaultSyncCooldownMS    = 500
	defaultSyncConcurrency   = 1
	defaultHTTPAddr          = ":9991"
	earliestHistoryLayout    = "2 Jan 2006"
	minSyncCooldownMS        = 500
	maxExchangePageLimit     = 1000
	envCacheRoot             = "CRYPTO_QUOTES_FOLDER"
	envBinanceAPIKey         = "BINANCE_API_KEY"
	envBinanceAPISecret      = "BINANCE_API_SECRET"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Cache.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Catalog.applyDefaults(keys)
	c.Sync.applyDefaults(keys)
	c.HTTP.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
	)
}

func (c *CacheConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("cache.root", &c.Root, defaultCacheRoot),
		stringFieldDefault("cache.earliest_history", &c.EarliestHistory, defaultEarliestHistory),
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.rest_base_url", &e.RESTBaseURL, defaultExchangeREST),
		intFieldDefault("exchange.http_timeout_seconds", &e.HTTPTimeoutSeconds, defaultExchangeTimeout),
		intFieldDefault("exchange.page_limit", &e.PageLimit, defaultExchangePageLimit),
		intFieldDefault("exchange.rate_limit_per_min", &e.RateLimitPerMin, defaultExchangeRateLimit),
	)
}

func (c *CatalogConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("catalog.provider", &c.Provider, defaultCatalogProvider),
		stringFieldDefault("catalog.cryptocom_base_url", &c.CryptoComBaseURL, defaultCryptoComBaseURL),
	)
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
}

func (s *SyncConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("sync.cooldown_ms", &s.CooldownMS, defaultSyncCooldownMS),
		intFieldDefault("sync.concurrency", &s.Concurrency, defaultSyncConcurrency),
	)
	s.QuoteAssets = normalizeUpperList(s.QuoteAssets)
}

func (h *HTTPConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("http.addr", &h.Addr, defaultHTTPAddr),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func normalizeUpperList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, item := range in {
		item = strings.ToUpper(strings.TrimSpace(item))
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
