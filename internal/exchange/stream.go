package exchange

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/jpillora/backoff"

	"spot-traderv1/internal/model"
)

// SubscribePriceStream starts an aggTrade websocket stream for symbol
// and delivers each trade price to onTick. Disconnects are resubscribed
// with exponential backoff until the returned stop function is called
// or ctx is cancelled; the caller never sees reconnection.
func (c *Client) SubscribePriceStream(ctx context.Context, symbol string, onTick func(model.PriceTick)) (func(), error) {
	streamCtx, cancel := context.WithCancel(ctx)
	go c.streamLoop(streamCtx, symbol, onTick)
	return cancel, nil
}

func (c *Client) streamLoop(ctx context.Context, symbol string, onTick func(model.PriceTick)) {
	retry := &backoff.Backoff{
		Min:    time.Second,
		Max:    time.Minute,
		Factor: 2,
		Jitter: true,
	}

	handler := func(ev *binance.WsAggTradeEvent) {
		price, err := strconv.ParseFloat(ev.Price, 64)
		if err != nil {
			return
		}
		onTick(model.PriceTick{Price: price, Time: time.UnixMilli(ev.TradeTime).UTC()})
	}
	errHandler := func(err error) {
		c.log.Warn("price stream error", slog.String("symbol", symbol), slog.Any("err", err))
	}

	for {
		if ctx.Err() != nil {
			return
		}

		doneC, stopC, err := binance.WsAggTradeServe(symbol, handler, errHandler)
		if err != nil {
			wait := retry.Duration()
			c.log.Warn("price stream connect failed",
				slog.String("symbol", symbol), slog.Any("err", err), slog.Duration("retry_in", wait))
			if !sleep(ctx, wait) {
				return
			}
			continue
		}
		retry.Reset()
		c.log.Info("price stream connected", slog.String("symbol", symbol))

		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return
		case <-doneC:
			wait := retry.Duration()
			c.log.Warn("price stream disconnected",
				slog.String("symbol", symbol), slog.Duration("retry_in", wait))
			if !sleep(ctx, wait) {
				return
			}
		}
	}
}

// sleep waits for d or until ctx is done; reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
