package app

import (
	"fmt"
	"strings"
	"time"
)

type StartupSummary struct {
	Env          string
	CacheRoot    string
	Floor        time.Time
	Provider     string
	Source       string
	RESTBaseURL  string
	Cooldown     time.Duration
	Concurrency  int
	QuoteAssets  []string
	TimeUnits    []string
	HTTPAddr     string
	LedgerActive bool
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[缓存 (CACHE)]")
	fmt.Printf("  根目录:   %s\n", s.CacheRoot)
	fmt.Printf("  历史起点: %s\n", s.Floor.UTC().Format("2 Jan 2006"))
	fmt.Printf("  同步台账: %s\n", onOff(s.LedgerActive))
	fmt.Println()

	fmt.Println("[行情源 (EXCHANGE)]")
	fmt.Printf("  K线来源:  %s (%s)\n", s.Source, s.RESTBaseURL)
	fmt.Printf("  目录来源: %s\n", s.Provider)
	fmt.Printf("  支持周期: %s\n", formatList(s.TimeUnits))
	fmt.Println()

	fmt.Println("[同步 (SYNC)]")
	fmt.Printf("  冷却时间: %s\n", s.Cooldown)
	fmt.Printf("  并发数:   %d\n", s.Concurrency)
	fmt.Printf("  报价币:   %s\n", formatList(s.QuoteAssets))
	if s.HTTPAddr != "" {
		fmt.Printf("  HTTP:     %s\n", s.HTTPAddr)
	}
	fmt.Println(strings.Repeat("=", 80))
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
