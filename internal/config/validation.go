package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Cache.validate(); err != nil {
		return err
	}
	if err := c.Exchange.validate(); err != nil {
		return err
	}
	if err := c.Catalog.validate(); err != nil {
		return err
	}
	if err := c.Sync.validate(); err != nil {
		return err
	}
	return nil
}

func (c *CacheConfig) validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return fmt.Errorf("cache.root cannot be empty")
	}
	if _, err := c.EarliestHistoryTime(); err != nil {
		return fmt.Errorf("cache.earliest_history must look like %q: %w", earliestHistoryLayout, err)
	}
	return nil
}

func (e *ExchangeConfig) validate() error {
	if _, err := url.ParseRequestURI(strings.TrimSpace(e.RESTBaseURL)); err != nil {
		return fmt.Errorf("exchange.rest_base_url is invalid: %w", err)
	}
	if e.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("exchange.http_timeout_seconds must be > 0")
	}
	if e.PageLimit <= 0 || e.PageLimit > maxExchangePageLimit {
		return fmt.Errorf("exchange.page_limit must be within 1..%d", maxExchangePageLimit)
	}
	if e.RateLimitPerMin <= 0 {
		return fmt.Errorf("exchange.rate_limit_per_min must be > 0")
	}
	if p := strings.TrimSpace(e.ProxyURL); p != "" {
		if _, err := url.Parse(p); err != nil {
			return fmt.Errorf("exchange.proxy_url is invalid: %w", err)
		}
	}
	return nil
}

func (c *CatalogConfig) validate() error {
	switch c.Provider {
	case ProviderBinance, ProviderCryptoCom:
	default:
		return fmt.Errorf("catalog.provider must be %s or %s, got %q", ProviderBinance, ProviderCryptoCom, c.Provider)
	}
	return nil
}

func (s *SyncConfig) validate() error {
	if s.CooldownMS < minSyncCooldownMS {
		return fmt.Errorf("sync.cooldown_ms must be >= %d", minSyncCooldownMS)
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be >= 1")
	}
	return nil
}
