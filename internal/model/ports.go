package model

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ── Collaborator Port Interfaces ──
// These interfaces decouple the bot service from concrete collaborators
// (Binance client, SQLite store). Implementations live under
// internal/exchange and internal/store.

// OrderResult is the exchange's answer to a submitted order.
type OrderResult struct {
	ID        string  `json:"id"`
	AvgPrice  float64 `json:"avg_price"`
	FilledQty float64 `json:"filled_qty"`
	Status    string  `json:"status"`
}

// Exchange is the trading-client port consumed by the bot service.
type Exchange interface {
	// LoadMarketRules fetches the trading constraints for a symbol.
	LoadMarketRules(ctx context.Context, symbol string) (MarketRules, error)

	// FetchCandles returns up to limit historical candles, oldest first.
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)

	// FetchBalances returns the current account balances.
	FetchBalances(ctx context.Context) ([]Balance, error)

	// SubmitMarketOrder places a market order for qty of symbol.
	SubmitMarketOrder(ctx context.Context, symbol string, side OrderSide, qty decimal.Decimal) (OrderResult, error)

	// SubscribePriceStream starts delivering live price ticks to onTick
	// until the returned stop function is called or ctx is cancelled.
	// Reconnection is the client's responsibility, not the caller's.
	SubscribePriceStream(ctx context.Context, symbol string, onTick func(PriceTick)) (stop func(), err error)
}

// PositionStore is the persistence port for position records. Records
// are append-only: closing a position marks it CLOSED, never deletes it.
// "At most one OPEN per market" is an application-level invariant the
// store must uphold on insert.
type PositionStore interface {
	// FindOpen returns the OPEN position for market, or nil if none.
	FindOpen(ctx context.Context, market string) (*Position, error)

	// InsertOpen persists a new OPEN position. Fails if one already
	// exists for the market.
	InsertOpen(ctx context.Context, pos Position) error

	// MarkClosed transitions the OPEN position for market to CLOSED,
	// recording the exit price and realized P&L.
	MarkClosed(ctx context.Context, market string, exitPrice, realizedPnL float64) error
}

// StatusSnapshot is a read-only view of the bot service. Building one
// must never block on exchange I/O.
type StatusSnapshot struct {
	Running         bool      `json:"running"`
	State           string    `json:"state"`
	Market          string    `json:"market"`
	Timeframe       string    `json:"timeframe"`
	LastTickTime    time.Time `json:"last_tick_time"`
	HistoryLength   int       `json:"history_length"`
	HasOpenPosition bool      `json:"has_open_position"`
}
