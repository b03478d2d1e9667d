package symbol

import "strings"

type cryptoComFormat struct{}

// FromExchange 去掉 instrument_name 中的下划线，使目录键与 Binance 一致。
func (cryptoComFormat) FromExchange(raw string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), "_", "")
}

// CryptoCom 只用于读取目录，不需要反向转换。
var CryptoCom = cryptoComFormat{}
