// Package decision maps indicator state plus account and exchange
// constraints to a trade action.
//
// Decide is pure and deterministic: identical inputs always produce an
// identical Decision. Unavailable indicators never trigger a
// condition; they simply evaluate to false.
package decision

import (
	"fmt"

	"github.com/shopspring/decimal"

	"spot-traderv1/internal/annotate"
	"spot-traderv1/internal/model"
)

// Params holds the strategy thresholds and sizing knobs.
type Params struct {
	// MinHistory is the minimum number of annotated points required
	// before any non-hold decision is possible.
	MinHistory int `yaml:"min_history"`

	// RSIBuy and RSISell are the oversold/overbought thresholds.
	RSIBuy  float64 `yaml:"rsi_buy"`
	RSISell float64 `yaml:"rsi_sell"`

	// RiskFraction is the share of the free quote balance committed
	// to a new entry.
	RiskFraction float64 `yaml:"risk_fraction"`

	// NotionalMargin is the safety margin applied when bumping an
	// undersized order up to the exchange minimum notional.
	NotionalMargin float64 `yaml:"notional_margin"`

	Annotate annotate.Params `yaml:"annotate"`
}

// DefaultParams returns the standard strategy parameters.
func DefaultParams() Params {
	return Params{
		MinHistory:     30,
		RSIBuy:         35,
		RSISell:        65,
		RiskFraction:   0.95,
		NotionalMargin: 0.01,
		Annotate:       annotate.DefaultParams(),
	}
}

// Decide evaluates the strategy over annotated history.
//
// With an open position it checks the exit conditions (close at or
// above the upper band, RSI at or above the sell threshold, or a
// take-profit/stop-loss level on the position itself) and exits the
// full position quantity. When flat it requires at least 2 of 3 entry
// conditions (close at or below the lower band, RSI at or below the
// buy threshold, MACD histogram crossing from <=0 to >0) and sizes the
// order through the canonical pipeline. Every branch reports all
// condition values in the decision diagnostics.
func Decide(history []model.AnnotatedPoint, price float64, balances []model.Balance,
	open *model.Position, rules model.MarketRules, p Params) model.Decision {

	if len(history) < p.MinHistory || len(history) < 2 {
		return model.Decision{Action: model.ActionHold}
	}
	latest := history[len(history)-1]
	prev := history[len(history)-2]

	if open != nil {
		return decideExit(latest, price, open, rules, p)
	}
	return decideEntry(latest, prev, price, balances, rules, p)
}

func decideExit(latest model.AnnotatedPoint, price float64, open *model.Position,
	rules model.MarketRules, p Params) model.Decision {

	diag := model.Diagnostics{
		PriceAboveUpperBand: latest.UpperBand.Valid && latest.Close >= latest.UpperBand.Value,
		RSIOverbought:       latest.RSI.GE(p.RSISell),
		TakeProfitHit:       open.TakeProfitPrice.Valid && price >= open.TakeProfitPrice.Value,
		StopLossHit:         open.StopLossPrice.Valid && price <= open.StopLossPrice.Value,
	}

	if !diag.PriceAboveUpperBand && !diag.RSIOverbought && !diag.TakeProfitHit && !diag.StopLossHit {
		return model.Hold(diag)
	}

	// Full exit only: partial exits are not supported.
	qty := decimal.NewFromFloat(open.Quantity)
	if qty.LessThan(rules.MinQty) {
		diag.Notes = append(diag.Notes, fmt.Sprintf(
			"position quantity %s below exchange minimum %s; cannot exit at current lot rules",
			qty, rules.MinQty))
		return model.Hold(diag)
	}

	return model.Decision{
		Action:      model.ActionSell,
		OrderSide:   model.SideSell,
		OrderQty:    qty,
		Diagnostics: diag,
	}
}

func decideEntry(latest, prev model.AnnotatedPoint, price float64,
	balances []model.Balance, rules model.MarketRules, p Params) model.Decision {

	diag := model.Diagnostics{
		PriceBelowLowerBand: latest.LowerBand.Valid && latest.Close <= latest.LowerBand.Value,
		RSIOversold:         latest.RSI.LE(p.RSIBuy),
		MACDBullishCross: prev.MACDHist.Valid && latest.MACDHist.Valid &&
			prev.MACDHist.Value <= 0 && latest.MACDHist.Value > 0,
	}

	met := 0
	for _, c := range []bool{diag.PriceBelowLowerBand, diag.RSIOversold, diag.MACDBullishCross} {
		if c {
			met++
		}
	}
	if met < 2 {
		return model.Hold(diag)
	}

	free := model.FreeBalance(balances, rules.QuoteAsset)
	qty, note := sizeOrder(price, free, rules, p)
	if note != "" {
		diag.Notes = append(diag.Notes, note)
		return model.Hold(diag)
	}

	return model.Decision{
		Action:      model.ActionBuy,
		OrderSide:   model.SideBuy,
		OrderQty:    qty,
		Diagnostics: diag,
	}
}
