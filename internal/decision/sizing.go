package decision

import (
	"fmt"

	"github.com/shopspring/decimal"

	"spot-traderv1/internal/model"
)

// sizeOrder runs the canonical buy-sizing pipeline:
//
//	risk-size -> notional-fix -> step-floor -> precision-round -> re-validate
//
// The order of operations matters: flooring before the notional fix
// would systematically undersize orders relative to the exchange
// minimum, and rounding before the step floor could produce quantities
// that are not step multiples. Returns a non-empty note (and zero
// quantity) when the order degrades to hold.
func sizeOrder(price, freeQuote float64, rules model.MarketRules, p Params) (decimal.Decimal, string) {
	if price <= 0 {
		return decimal.Zero, "non-positive price"
	}
	priceD := decimal.NewFromFloat(price)
	free := decimal.NewFromFloat(freeQuote)

	// Risk-size: commit the configured fraction of the free balance.
	qty := free.Mul(decimal.NewFromFloat(p.RiskFraction)).Div(priceD)

	// Notional-fix: bump undersized orders up to minNotional with a
	// safety margin, unless the balance itself cannot cover it.
	if qty.Mul(priceD).LessThan(rules.MinNotional) {
		if free.LessThan(rules.MinNotional) {
			return decimal.Zero, fmt.Sprintf(
				"insufficient funds: free %s below min notional %s", free, rules.MinNotional)
		}
		margin := decimal.NewFromFloat(1 + p.NotionalMargin)
		qty = rules.MinNotional.Mul(margin).Div(priceD)
	}

	// Step-floor: quantities must be integer multiples of the lot step.
	if rules.StepSize.IsPositive() {
		qty = qty.Div(rules.StepSize).Floor().Mul(rules.StepSize)
	}

	// Precision-round: truncate to the symbol's declared amount precision.
	qty = qty.Truncate(rules.QtyPrecision)

	// Re-validate against lot, notional, and balance constraints.
	if qty.LessThan(rules.MinQty) {
		return decimal.Zero, fmt.Sprintf(
			"sized quantity %s below exchange minimum %s", qty, rules.MinQty)
	}
	if rules.MaxQty.IsPositive() && qty.GreaterThan(rules.MaxQty) {
		qty = rules.MaxQty
	}
	// The step floor (or the max-qty clamp) can undo the notional fix:
	// a coarse lot step may round the bumped quantity back below the
	// minimum, so the notional must be checked again on the final qty.
	if qty.Mul(priceD).LessThan(rules.MinNotional) {
		return decimal.Zero, fmt.Sprintf(
			"sized notional %s below exchange minimum %s at current lot rules",
			qty.Mul(priceD), rules.MinNotional)
	}
	if qty.Mul(priceD).GreaterThan(free) {
		return decimal.Zero, fmt.Sprintf(
			"order cost %s exceeds free balance %s", qty.Mul(priceD), free)
	}
	return qty, ""
}
