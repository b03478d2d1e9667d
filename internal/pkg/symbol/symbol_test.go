package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := map[string]Symbol{
		"btc/usdt":      {Base: "BTC", Quote: "USDT"},
		"BTC_USDT":      {Base: "BTC", Quote: "USDT"},
		"eth-btc":       {Base: "ETH", Quote: "BTC"},
		" ETHUSDT ":     {Base: "ETH", Quote: "USDT"},
		"BNBFDUSD":      {Base: "BNB", Quote: "FDUSD"},
		"ETH/USDT:USDT": {Base: "ETH", Quote: "USDT"},
		"":              {},
		"USDT":          {},
	}
	for in, want := range cases {
		assert.Equal(t, want, Parse(in), in)
	}
}

func TestCompact(t *testing.T) {
	assert.Equal(t, "BTCUSDT", Compact("btc/usdt"))
	assert.Equal(t, "BTCUSDT", Compact("BTC_USDT"))
	assert.Equal(t, "BTCUSDT", Compact(" btcusdt "))
	assert.Equal(t, "FOOBAR", Compact("foo_bar"))
	assert.Equal(t, "XYZ", Compact("xyz"))
}

func TestExchangeFormats(t *testing.T) {
	assert.Equal(t, "ETHUSDT", Binance.ToExchange("ETH/USDT"))
	assert.Equal(t, "ETHUSDT", Binance.ToExchange(" eth_usdt "))
	assert.Equal(t, "BNBFDUSD", Binance.FromExchange("bnbfdusd"))
	assert.Equal(t, "ETHUSDT", CryptoCom.FromExchange("eth_usdt"))
	assert.Equal(t, "CROUSD1", CryptoCom.FromExchange("CRO_USD1"))
}

func TestSymbolCompact(t *testing.T) {
	assert.Equal(t, "ETHBTC", Symbol{Base: "ETH", Quote: "BTC"}.Compact())
	assert.Empty(t, Symbol{Base: "ETH"}.Compact())
}
