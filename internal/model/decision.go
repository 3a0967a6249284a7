package model

import "github.com/shopspring/decimal"

// Action is the outcome of one strategy evaluation.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// OrderSide is the side of an exchange order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Diagnostics reports the truth value of every individual strategy
// condition for one evaluation, regardless of the final action.
type Diagnostics struct {
	// Entry conditions (FLAT state)
	PriceBelowLowerBand bool `json:"price_below_lower_band"`
	RSIOversold         bool `json:"rsi_oversold"`
	MACDBullishCross    bool `json:"macd_bullish_cross"`

	// Exit conditions (IN_POSITION state)
	PriceAboveUpperBand bool `json:"price_above_upper_band"`
	RSIOverbought       bool `json:"rsi_overbought"`
	TakeProfitHit       bool `json:"take_profit_hit"`
	StopLossHit         bool `json:"stop_loss_hit"`

	// Constraint notes: why an otherwise actionable signal degraded
	// to hold (insufficient funds, lot rules, ...).
	Notes []string `json:"notes,omitempty"`
}

// Decision is the ephemeral result of one strategy evaluation. It is
// produced fresh per tick and never persisted; only its consequences
// (orders, positions) are.
type Decision struct {
	Action      Action          `json:"action"`
	OrderSide   OrderSide       `json:"order_side,omitempty"`
	OrderQty    decimal.Decimal `json:"order_qty"`
	Diagnostics Diagnostics     `json:"diagnostics"`
}

// Hold returns a hold decision carrying the given diagnostics.
func Hold(d Diagnostics) Decision {
	return Decision{Action: ActionHold, Diagnostics: d}
}
