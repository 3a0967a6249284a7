package model

import "github.com/shopspring/decimal"

// MarketRules holds the exchange-imposed constraints for one symbol.
// Any submitted order quantity must be an integer multiple of StepSize,
// at least MinQty, and quantity*price must reach MinNotional.
type MarketRules struct {
	Symbol     string `json:"symbol"`
	BaseAsset  string `json:"base_asset"`
	QuoteAsset string `json:"quote_asset"`

	MinQty      decimal.Decimal `json:"min_qty"`
	MaxQty      decimal.Decimal `json:"max_qty"`
	StepSize    decimal.Decimal `json:"step_size"`
	MinNotional decimal.Decimal `json:"min_notional"`

	PricePrecision int32 `json:"price_precision"`
	QtyPrecision   int32 `json:"qty_precision"`
}

// Balance is the per-asset account balance. Only Free is usable for
// new orders.
type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

// FreeBalance returns the free balance for the given asset, 0 if absent.
func FreeBalance(balances []Balance, asset string) float64 {
	for _, b := range balances {
		if b.Asset == asset {
			return b.Free
		}
	}
	return 0
}
