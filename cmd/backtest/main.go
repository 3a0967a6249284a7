// Command backtest replays a CSV of candles through the live decision
// function with a simulated balance and position. It is an offline
// script, not part of the trading core: same strategy, no exchange.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"spot-traderv1/internal/annotate"
	"spot-traderv1/internal/decision"
	"spot-traderv1/internal/model"
)

func main() {
	var (
		csvPath     = flag.String("csv", "", "candle CSV: open_time_unix,open,high,low,close,volume")
		quote       = flag.Float64("balance", 1000, "starting quote balance")
		minNotional = flag.Float64("min-notional", 5, "exchange minimum notional")
		minQty      = flag.Float64("min-qty", 0.00001, "exchange minimum quantity")
		step        = flag.Float64("step", 0.00001, "exchange lot step size")
		verbose     = flag.Bool("v", false, "print every non-hold decision")
	)
	flag.Parse()
	if *csvPath == "" {
		log.Fatal("usage: backtest -csv candles.csv [-balance 1000]")
	}

	candles, err := loadCandles(*csvPath)
	if err != nil {
		log.Fatalf("load candles: %v", err)
	}

	stepD := decimal.NewFromFloat(*step)
	rules := model.MarketRules{
		Symbol:       "SIM",
		QuoteAsset:   "QUOTE",
		BaseAsset:    "BASE",
		MinQty:       decimal.NewFromFloat(*minQty),
		MinNotional:  decimal.NewFromFloat(*minNotional),
		StepSize:     stepD,
		QtyPrecision: -stepD.Exponent(),
	}
	params := decision.DefaultParams()

	var (
		pos     *model.Position
		balance = *quote
		trades  int
		wins    int
	)

	points := annotate.Series(candles, params.Annotate)
	for i := params.MinHistory; i < len(points); i++ {
		price := points[i].Close
		balances := []model.Balance{{Asset: rules.QuoteAsset, Free: balance}}

		dec := decision.Decide(points[:i+1], price, balances, pos, rules, params)
		switch dec.Action {
		case model.ActionBuy:
			qty := dec.OrderQty.InexactFloat64()
			balance -= qty * price
			pos = &model.Position{
				Market:     rules.Symbol,
				Side:       model.SideBuy,
				EntryPrice: price,
				Quantity:   qty,
				OpenedAt:   candles[i].OpenTime,
			}
			if *verbose {
				fmt.Printf("%s BUY  qty=%s price=%.8f diag=%+v\n",
					candles[i].OpenTime.Format(time.RFC3339), dec.OrderQty, price, dec.Diagnostics)
			}
		case model.ActionSell:
			pnl := pos.UnrealizedPnL(price)
			balance += pos.Quantity * price
			trades++
			if pnl > 0 {
				wins++
			}
			if *verbose {
				fmt.Printf("%s SELL qty=%.8f price=%.8f pnl=%.8f\n",
					candles[i].OpenTime.Format(time.RFC3339), pos.Quantity, price, pnl)
			}
			pos = nil
		}
	}

	final := balance
	if pos != nil {
		final += pos.Quantity * candles[len(candles)-1].Close
	}
	fmt.Printf("candles=%d round_trips=%d wins=%d final_equity=%.2f (start %.2f, %+.2f%%)\n",
		len(candles), trades, wins, final, *quote, (final / *quote - 1) * 100)
}

func loadCandles(path string) ([]model.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}

	candles := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("row %d: expected 6 columns, got %d", i+1, len(row))
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue // header row
		}
		var vals [5]float64
		for j := 0; j < 5; j++ {
			if vals[j], err = strconv.ParseFloat(row[j+1], 64); err != nil {
				return nil, fmt.Errorf("row %d col %d: %w", i+1, j+2, err)
			}
		}
		candles = append(candles, model.Candle{
			OpenTime: time.Unix(ts, 0).UTC(),
			Open:     vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4],
		})
	}
	return candles, nil
}
