package model

import "time"

// PositionStatus is the persisted lifecycle state of a position record.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position is the single open spot position for a market. It exists
// from the moment a buy order is confirmed until the corresponding
// sell is confirmed. The bot service owns it exclusively; at most one
// OPEN position per market may exist in persistence.
type Position struct {
	Market          string    `json:"market"`
	Side            OrderSide `json:"side"` // always buy for spot entries
	EntryPrice      float64   `json:"entry_price"`
	Quantity        float64   `json:"quantity"`
	OpenedAt        time.Time `json:"opened_at"`
	StrategyTag     string    `json:"strategy_tag"`
	TakeProfitPrice OptFloat  `json:"take_profit_price"`
	StopLossPrice   OptFloat  `json:"stop_loss_price"`
}

// UnrealizedPnL computes the unrealized profit/loss at the given price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * p.Quantity
}
