package binance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexherrero/sherwood-engine/cancel"
	"github.com/alexherrero/sherwood-engine/config"
	"github.com/alexherrero/sherwood-engine/errs"
	"github.com/alexherrero/sherwood-engine/events"
	"github.com/alexherrero/sherwood-engine/exchange"
	"github.com/alexherrero/sherwood-engine/timeouts"
)

func TestNew_DerivesSymbolsFromCurrencyPairs(t *testing.T) {
	settings := config.ExchangeSettings{
		ExchangeAccountID: "Binance0",
		APIKey:            "k",
		SecretKey:         "s",
		CurrencyPairs: []config.CurrencyPairSetting{
			{Base: "BTC", Quote: "USDT"},
			{Base: "ETH", Quote: "USDT"},
			{Base: "SOL", Quote: "USDT", CurrencyPair: "SOLUSDT"},
		},
	}

	ex := New(exchange.NewAccountID("Binance", 0), settings, events.NewBus(4))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, ex.symbols)
}

func TestAccountID(t *testing.T) {
	id := exchange.NewAccountID("Binance", 2)
	ex := New(id, config.ExchangeSettings{}, events.NewBus(4))
	assert.Equal(t, id, ex.AccountID())
}

func TestDisconnect_NoConnectionIsNoOp(t *testing.T) {
	ex := New(exchange.NewAccountID("Binance", 0), config.ExchangeSettings{}, events.NewBus(4))
	require.NoError(t, ex.Disconnect())
	require.NoError(t, ex.Disconnect())
}

func TestConnectMarketData_RequiresHost(t *testing.T) {
	ex := New(exchange.NewAccountID("Binance", 0), config.ExchangeSettings{}, events.NewBus(4))
	err := ex.ConnectMarketData(nil) // nolint:staticcheck — only the missing-host guard is exercised
	assert.Error(t, err)
}

func TestConnectMarketData_DialFailureIsExchangeUnavailable(t *testing.T) {
	ex := New(exchange.NewAccountID("Binance", 0), config.ExchangeSettings{
		WebSocketHost: "ws://127.0.0.1:1", // nothing listens here
	}, events.NewBus(4))
	err := ex.ConnectMarketData(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ExchangeUnavailable))
}

func TestCancelOpenedOrders_RateLimiterDeniesAdmission(t *testing.T) {
	settings := config.ExchangeSettings{
		ExchangeAccountID: "Binance0",
		CurrencyPairs:     []config.CurrencyPairSetting{{Base: "BTC", Quote: "USDT"}},
	}
	ex := New(exchange.NewAccountID("Binance", 0), settings, events.NewBus(4))
	ex.SetLimiter(timeouts.NewLimiter(0, time.Minute)) // admits nothing

	token := cancel.New()
	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		token.Cancel()
	}()
	go func() {
		err := ex.CancelOpenedOrders(token, true)
		if err != nil && errs.Is(err, errs.RateLimited) {
			close(done)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected a RateLimited error once the token was cancelled while waiting on admission")
	}
}
