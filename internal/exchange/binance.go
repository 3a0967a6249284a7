// Package exchange adapts the Binance spot API to the bot's Exchange
// port: market rules from exchangeInfo filters, candles from klines,
// balances from the account endpoint, market orders, and a resilient
// aggTrade price stream.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"spot-traderv1/internal/model"
)

// Config holds Binance connection settings.
type Config struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

// Client wraps the Binance spot REST and websocket APIs.
type Client struct {
	api *binance.Client
	log *slog.Logger
}

// New creates a Binance client. With Testnet set, all REST and stream
// calls go to the spot testnet.
func New(cfg Config, log *slog.Logger) *Client {
	binance.UseTestnet = cfg.Testnet
	return &Client{
		api: binance.NewClient(cfg.APIKey, cfg.APISecret),
		log: log,
	}
}

// LoadMarketRules fetches the exchange filters for symbol and reduces
// them to the constraint set the sizing pipeline needs.
func (c *Client) LoadMarketRules(ctx context.Context, symbol string) (model.MarketRules, error) {
	info, err := c.api.NewExchangeInfoService().Symbols(symbol).Do(ctx)
	if err != nil {
		return model.MarketRules{}, fmt.Errorf("exchange info: %w", err)
	}
	for i := range info.Symbols {
		if info.Symbols[i].Symbol == symbol {
			return rulesFromSymbol(&info.Symbols[i])
		}
	}
	return model.MarketRules{}, fmt.Errorf("symbol %s not found in exchange info", symbol)
}

func rulesFromSymbol(sym *binance.Symbol) (model.MarketRules, error) {
	rules := model.MarketRules{
		Symbol:         sym.Symbol,
		BaseAsset:      sym.BaseAsset,
		QuoteAsset:     sym.QuoteAsset,
		PricePrecision: int32(sym.QuotePrecision),
		QtyPrecision:   int32(sym.BaseAssetPrecision),
	}

	lot := sym.LotSizeFilter()
	if lot == nil {
		return rules, fmt.Errorf("symbol %s has no LOT_SIZE filter", sym.Symbol)
	}
	var err error
	if rules.MinQty, err = decimal.NewFromString(lot.MinQuantity); err != nil {
		return rules, fmt.Errorf("parse minQty: %w", err)
	}
	if rules.MaxQty, err = decimal.NewFromString(lot.MaxQuantity); err != nil {
		return rules, fmt.Errorf("parse maxQty: %w", err)
	}
	if rules.StepSize, err = decimal.NewFromString(lot.StepSize); err != nil {
		return rules, fmt.Errorf("parse stepSize: %w", err)
	}

	// The order quantity precision Binance accepts is the step size's
	// decimal count, not the asset precision.
	if rules.StepSize.IsPositive() {
		rules.QtyPrecision = stepPrecision(rules.StepSize)
	}

	if nf := sym.NotionalFilter(); nf != nil {
		if rules.MinNotional, err = decimal.NewFromString(nf.MinNotional); err != nil {
			return rules, fmt.Errorf("parse minNotional: %w", err)
		}
	}
	return rules, nil
}

// stepPrecision returns the number of decimal places in a lot step,
// e.g. 0.001 -> 3, 1 -> 0.
func stepPrecision(step decimal.Decimal) int32 {
	if step.Exponent() < 0 {
		return -step.Exponent()
	}
	return 0
}

// FetchCandles returns up to limit klines for symbol, oldest first.
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	klines, err := c.api.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("klines: %w", err)
	}

	candles := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := candleFromKline(k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func candleFromKline(k *binance.Kline) (model.Candle, error) {
	c := model.Candle{OpenTime: time.UnixMilli(k.OpenTime).UTC()}
	fields := []struct {
		dst *float64
		src string
	}{
		{&c.Open, k.Open},
		{&c.High, k.High},
		{&c.Low, k.Low},
		{&c.Close, k.Close},
		{&c.Volume, k.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.src, 64)
		if err != nil {
			return c, fmt.Errorf("parse kline field %q: %w", f.src, err)
		}
		*f.dst = v
	}
	return c, nil
}

// FetchBalances returns the spot account balances.
func (c *Client) FetchBalances(ctx context.Context) ([]model.Balance, error) {
	acct, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}

	balances := make([]model.Balance, 0, len(acct.Balances))
	for _, b := range acct.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		balances = append(balances, model.Balance{Asset: b.Asset, Free: free, Locked: locked})
	}
	return balances, nil
}

// SubmitMarketOrder places a market order and reports the fill.
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol string, side model.OrderSide, qty decimal.Decimal) (model.OrderResult, error) {
	binSide := binance.SideTypeBuy
	if side == model.SideSell {
		binSide = binance.SideTypeSell
	}

	res, err := c.api.NewCreateOrderService().
		Symbol(symbol).
		Side(binSide).
		Type(binance.OrderTypeMarket).
		Quantity(qty.String()).
		NewClientOrderID("bot-" + uuid.NewString()).
		Do(ctx)
	if err != nil {
		return model.OrderResult{}, fmt.Errorf("create order: %w", err)
	}

	filled, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
	quote, _ := strconv.ParseFloat(res.CummulativeQuoteQuantity, 64)

	return model.OrderResult{
		ID:        strconv.FormatInt(res.OrderID, 10),
		AvgPrice:  avgFillPrice(quote, filled),
		FilledQty: filled,
		Status:    string(res.Status),
	}, nil
}

// avgFillPrice derives the average fill price from the cumulative
// quote amount; 0 when the fill quantity is unknown.
func avgFillPrice(quote, filled float64) float64 {
	if filled <= 0 {
		return 0
	}
	return quote / filled
}
