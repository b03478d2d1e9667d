package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch 监听配置文件，变更后重新 Load 并回调 fn；Load 失败时 cfg 为 nil。
// 只监听主文件，include 的文件变化不会触发。
func Watch(path string, fn func(cfg *Config, err error)) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config watch requires path")
	}
	if fn == nil {
		return fmt.Errorf("config watch requires callback")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			fn(nil, fmt.Errorf("reload %s: %w", evt.Name, err))
			return
		}
		fn(cfg, nil)
	})
	v.WatchConfig()
	return nil
}
