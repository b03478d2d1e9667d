package symbol

type binanceFormat struct{}

// ToExchange 把任意写法转成 Binance REST 参数。
func (binanceFormat) ToExchange(s string) string { return Compact(s) }

// FromExchange 把 exchangeInfo 的 symbol 转成缓存键。
func (binanceFormat) FromExchange(raw string) string { return Compact(raw) }

// Binance 的写法本身就是缓存键，两个方向都归一到 Compact。
var Binance = binanceFormat{}
