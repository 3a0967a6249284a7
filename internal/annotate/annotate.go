// Package annotate derives indicator-annotated price points from raw
// candle history.
//
// For each candle index i, indicators are computed using candles
// [0..i] only — no look-ahead. At recomputes a single index and Series
// the whole window; the two must agree for any history, which the
// package tests assert over random candle runs.
package annotate

import (
	"spot-traderv1/internal/indicator"
	"spot-traderv1/internal/model"
)

// Params holds the indicator periods used to annotate history.
type Params struct {
	SMAPeriod  int     `yaml:"sma_period"`
	RSIPeriod  int     `yaml:"rsi_period"`
	BBPeriod   int     `yaml:"bb_period"`
	BBStdDev   float64 `yaml:"bb_std_dev"`
	MACDFast   int     `yaml:"macd_fast"`
	MACDSlow   int     `yaml:"macd_slow"`
	MACDSignal int     `yaml:"macd_signal"`
	ATRPeriod  int     `yaml:"atr_period"`
	ADXPeriod  int     `yaml:"adx_period"`
}

// DefaultParams returns the standard parameter set (20-period bands at
// 2 sigma, RSI 14, MACD 12/26/9, ATR/ADX 14).
func DefaultParams() Params {
	return Params{
		SMAPeriod:  20,
		RSIPeriod:  14,
		BBPeriod:   20,
		BBStdDev:   2.0,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		ATRPeriod:  14,
		ADXPeriod:  14,
	}
}

// At computes the annotated point for candles[i] from candles[0..i].
func At(candles []model.Candle, i int, p Params) model.AnnotatedPoint {
	window := candles[:i+1]
	closes := make([]float64, len(window))
	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	for j, c := range window {
		closes[j] = c.Close
		highs[j] = c.High
		lows[j] = c.Low
	}

	pt := model.AnnotatedPoint{Candle: candles[i]}
	pt.SMA = opt(indicator.SMA(closes, p.SMAPeriod))
	pt.RSI = opt(indicator.RSI(closes, p.RSIPeriod))
	pt.ATR = opt(indicator.ATR(highs, lows, closes, p.ATRPeriod))
	pt.ADX = opt(indicator.ADX(highs, lows, closes, p.ADXPeriod))

	if upper, middle, lower, ok := indicator.Bollinger(closes, p.BBPeriod, p.BBStdDev); ok {
		pt.UpperBand = model.Some(upper)
		pt.MiddleBand = model.Some(middle)
		pt.LowerBand = model.Some(lower)
	}

	// The MACD triple is atomic: all three defined or none.
	if line, signal, hist, ok := indicator.MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal); ok {
		pt.MACDLine = model.Some(line)
		pt.SignalLine = model.Some(signal)
		pt.MACDHist = model.Some(hist)
	}

	return pt
}

// Series annotates every index of the candle window.
func Series(candles []model.Candle, p Params) []model.AnnotatedPoint {
	points := make([]model.AnnotatedPoint, len(candles))
	for i := range candles {
		points[i] = At(candles, i, p)
	}
	return points
}

func opt(v float64, ok bool) model.OptFloat {
	if !ok {
		return model.None()
	}
	return model.Some(v)
}
