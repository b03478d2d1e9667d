package symbol

import "strings"

// Symbol 是拆分后的交易对两端。
type Symbol struct {
	Base  string
	Quote string
}

// Compact 拼成无分隔符写法（BTCUSDT），任一端为空时返回 ""。
func (s Symbol) Compact() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// 无分隔符写法按后缀识别报价币。
var knownQuotes = []string{"FDUSD", "USDT", "BUSD", "USDC", "TUSD", "BTC", "ETH", "BNB", "EUR"}

// Parse 识别 "ETH/USDT"、"ETH_USDT"、"ETH-USDT"、"ETHUSDT"；合约后缀 ":USDT" 会被忽略。
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return Symbol{}
	}
	if i := strings.IndexAny(s, "/_-"); i >= 0 {
		return Symbol{Base: strings.TrimSpace(s[:i]), Quote: strings.TrimSpace(s[i+1:])}
	}
	for _, q := range knownQuotes {
		if len(s) > len(q) && strings.HasSuffix(s, q) {
			return Symbol{Base: s[:len(s)-len(q)], Quote: q}
		}
	}
	return Symbol{}
}

// Compact 返回缓存文件与目录使用的写法；无法识别报价币时退化为去分隔符的大写串。
func Compact(s string) string {
	if out := Parse(s).Compact(); out != "" {
		return out
	}
	return strings.NewReplacer("/", "", "_", "", "-", "").Replace(strings.ToUpper(strings.TrimSpace(s)))
}
