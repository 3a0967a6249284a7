package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spot-traderv1/internal/annotate"
	"spot-traderv1/internal/decision"
	"spot-traderv1/internal/model"
	"spot-traderv1/internal/notification"
)

// ioTimeout bounds the exchange and store calls made from a tick
// cycle. The cycle deliberately does not use the loop context: a Stop
// arriving mid-cycle must let the in-flight order finish.
const ioTimeout = 30 * time.Second

// handleTick runs one feed tick through the full cycle:
// update window -> re-annotate latest -> decide -> execute -> persist
// -> notify. It is only ever called from the consumer goroutine.
func (s *Service) handleTick(tick model.PriceTick) {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.lastTick = tick.Time
	s.applyTick(tick)
	points := s.points
	pos := s.position
	rules := s.rules
	market := s.market
	s.mu.Unlock()

	if s.mtr != nil {
		s.mtr.TicksTotal.Inc()
		s.mtr.LastTickUnix.Set(float64(tick.Time.Unix()))
		s.mtr.HistoryLength.Set(float64(len(points)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()

	// Balances only matter for the entry sizing path.
	var balances []model.Balance
	if pos == nil {
		var err error
		balances, err = s.exchange.FetchBalances(ctx)
		if err != nil {
			s.log.Warn("fetch balances failed, holding", slog.Any("err", err))
			return
		}
	}

	dec := decision.Decide(points, tick.Price, balances, pos, rules, s.cfg.Strategy)
	if s.mtr != nil {
		s.mtr.DecisionsTotal.WithLabelValues(string(dec.Action)).Inc()
	}
	if len(dec.Diagnostics.Notes) > 0 {
		s.log.Info("decision degraded to hold", slog.Any("notes", dec.Diagnostics.Notes))
	}
	if dec.Action == model.ActionHold {
		return
	}

	s.execute(ctx, market, tick, pos, dec)
}

// applyTick folds a live price into the candle window: it updates the
// newest candle's close/high/low, or rolls a new candle when the tick
// crosses the current timeframe bucket, evicting beyond retention.
// Caller holds s.mu.
func (s *Service) applyTick(tick model.PriceTick) {
	last := &s.history[len(s.history)-1]
	bucketEnd := last.OpenTime.Add(s.tfDur)

	if tick.Time.Before(bucketEnd) {
		last.Close = tick.Price
		if tick.Price > last.High {
			last.High = tick.Price
		}
		if tick.Price < last.Low {
			last.Low = tick.Price
		}
		// Only the newest point changes; earlier points depend only on
		// their own prefix of history.
		s.points[len(s.points)-1] = annotate.At(s.history, len(s.history)-1, s.cfg.Strategy.Annotate)
		return
	}

	// Roll a new bucket aligned to the timeframe grid.
	elapsed := tick.Time.Sub(last.OpenTime)
	start := last.OpenTime.Add(elapsed.Truncate(s.tfDur))
	s.history = append(s.history, model.Candle{
		OpenTime: start,
		Open:     tick.Price,
		High:     tick.Price,
		Low:      tick.Price,
		Close:    tick.Price,
	})

	if len(s.history) > s.cfg.Retention {
		drop := len(s.history) - s.cfg.Retention
		s.history = append([]model.Candle(nil), s.history[drop:]...)
		// Eviction shifts the window base, so every annotation is
		// recomputed from the retained prefix.
		s.points = annotate.Series(s.history, s.cfg.Strategy.Annotate)
		return
	}
	s.points = append(s.points, annotate.At(s.history, len(s.history)-1, s.cfg.Strategy.Annotate))
}

// execute submits the decided order and applies its consequences. On
// any submission failure state is left untouched; the next tick
// re-evaluates from the same state, so the tick cadence is the retry
// interval.
func (s *Service) execute(ctx context.Context, market string, tick model.PriceTick,
	pos *model.Position, dec model.Decision) {

	start := time.Now()
	res, err := s.exchange.SubmitMarketOrder(ctx, market, dec.OrderSide, dec.OrderQty)
	if s.mtr != nil {
		s.mtr.OrderSubmitDur.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if s.mtr != nil {
			s.mtr.OrdersTotal.WithLabelValues(string(dec.OrderSide), "rejected").Inc()
		}
		s.log.Error("order submission failed",
			slog.String("side", string(dec.OrderSide)),
			slog.String("qty", dec.OrderQty.String()),
			slog.Any("err", err))
		s.notify(notification.AlertWarning, "Order rejected",
			fmt.Sprintf("%s %s %s failed: %v", dec.OrderSide, dec.OrderQty, market, err))
		return
	}
	if s.mtr != nil {
		s.mtr.OrdersTotal.WithLabelValues(string(dec.OrderSide), "filled").Inc()
	}

	switch dec.Action {
	case model.ActionBuy:
		s.applyBuy(ctx, market, tick, dec, res)
	case model.ActionSell:
		s.applySell(ctx, market, tick, pos, res)
	}
}

func (s *Service) applyBuy(ctx context.Context, market string, tick model.PriceTick,
	dec model.Decision, res model.OrderResult) {

	fill := res.AvgPrice
	if fill <= 0 {
		fill = tick.Price
	}
	qty := res.FilledQty
	if qty <= 0 {
		qty = dec.OrderQty.InexactFloat64()
	}

	pos := model.Position{
		Market:      market,
		Side:        model.SideBuy,
		EntryPrice:  fill,
		Quantity:    qty,
		OpenedAt:    time.Now().UTC(),
		StrategyTag: s.cfg.StrategyTag,
	}
	if s.cfg.TakeProfitPct > 0 {
		pos.TakeProfitPrice = model.Some(fill * (1 + s.cfg.TakeProfitPct))
	}
	if s.cfg.StopLossPct > 0 {
		pos.StopLossPrice = model.Some(fill * (1 - s.cfg.StopLossPct))
	}

	// A store failure degrades crash recovery but must not undo a
	// confirmed fill: the in-memory position stays authoritative.
	if err := s.store.InsertOpen(ctx, pos); err != nil {
		if s.mtr != nil {
			s.mtr.StoreFailures.Inc()
		}
		s.log.Error("position not persisted; crash recovery degraded", slog.Any("err", err))
	}

	s.mu.Lock()
	s.position = &pos
	s.mu.Unlock()

	s.log.Info("position opened",
		slog.String("market", market),
		slog.Float64("entry_price", fill),
		slog.Float64("quantity", qty),
		slog.String("order_id", res.ID))
	s.notify(notification.AlertInfo, "Position opened",
		fmt.Sprintf("Bought %.8f %s at %.8f", qty, market, fill))
}

func (s *Service) applySell(ctx context.Context, market string, tick model.PriceTick,
	pos *model.Position, res model.OrderResult) {

	exit := res.AvgPrice
	if exit <= 0 {
		exit = tick.Price
	}
	pnl := (exit - pos.EntryPrice) * pos.Quantity

	if err := s.store.MarkClosed(ctx, market, exit, pnl); err != nil {
		if s.mtr != nil {
			s.mtr.StoreFailures.Inc()
		}
		s.log.Error("position not marked closed; crash recovery degraded", slog.Any("err", err))
	}

	s.mu.Lock()
	s.position = nil
	s.mu.Unlock()

	s.log.Info("position closed",
		slog.String("market", market),
		slog.Float64("exit_price", exit),
		slog.Float64("realized_pnl", pnl),
		slog.String("order_id", res.ID))
	s.notify(notification.AlertInfo, "Position closed",
		fmt.Sprintf("Sold %.8f %s at %.8f, P&L %.8f", pos.Quantity, market, exit, pnl))
}

// notify delivers an alert without ever blocking the trading cycle.
func (s *Service) notify(level notification.AlertLevel, title, msg string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.Send(ctx, notification.Alert{Level: level, Title: title, Message: msg}); err != nil {
			s.log.Warn("notification failed", slog.String("title", title), slog.Any("err", err))
		}
	}()
}
