package model

import "time"

// Candle represents a single OHLC candle for the traded market.
// Candles are immutable once their bucket has closed; only the newest
// candle in a window is updated by live ticks. OpenTime is strictly
// increasing within any history window.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// PriceTick is a single live price update from the exchange stream.
type PriceTick struct {
	Price float64   `json:"price"`
	Time  time.Time `json:"time"`
}

// AnnotatedPoint is a Candle together with the indicator values valid
// as of that point. Indicator fields are unavailable (not zero) until
// enough history exists; see OptFloat.
type AnnotatedPoint struct {
	Candle

	SMA        OptFloat `json:"sma"`
	RSI        OptFloat `json:"rsi"`
	MACDLine   OptFloat `json:"macd_line"`
	SignalLine OptFloat `json:"signal_line"`
	MACDHist   OptFloat `json:"macd_hist"`
	UpperBand  OptFloat `json:"upper_band"`
	MiddleBand OptFloat `json:"middle_band"`
	LowerBand  OptFloat `json:"lower_band"`
	ATR        OptFloat `json:"atr"`
	ADX        OptFloat `json:"adx"`
}
