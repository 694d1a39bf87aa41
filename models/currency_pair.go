package models

import "strings"

// CurrencyPair is a base/quote asset pair traded on an exchange, e.g.
// BTC/USDT. Its wire form is the concatenated "<BASE><QUOTE>" symbol
// Binance and most venues expect (e.g. "BTCUSDT").
type CurrencyPair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// NewCurrencyPair builds a CurrencyPair from its two legs.
func NewCurrencyPair(base, quote string) CurrencyPair {
	return CurrencyPair{Base: strings.ToUpper(base), Quote: strings.ToUpper(quote)}
}

// String renders the venue wire symbol, e.g. "BTCUSDT".
func (p CurrencyPair) String() string {
	return p.Base + p.Quote
}
