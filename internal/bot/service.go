// Package bot owns the trading lifecycle: it subscribes to the live
// price feed, keeps the sliding candle window annotated, invokes the
// decision engine on every tick, executes resulting orders, and
// persists position state for crash recovery.
//
// Exactly one Service instance exists per process; the control surface
// and the feed callbacks share it. Concurrency model: the feed pushes
// ticks into a capacity-1 mailbox (latest price wins), and a single
// consumer goroutine owns {history, position}. The mutex only guards
// lifecycle transitions and the status snapshot, and is never held
// across exchange I/O, so Status never blocks on the network.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spot-traderv1/internal/annotate"
	"spot-traderv1/internal/decision"
	"spot-traderv1/internal/metrics"
	"spot-traderv1/internal/model"
	"spot-traderv1/internal/notification"
)

// State is the bot lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	default:
		return "STOPPED"
	}
}

// Config holds the bot's trading parameters.
type Config struct {
	// HistoryLimit is the number of seed candles fetched on start.
	HistoryLimit int
	// Retention bounds the in-memory candle window; older candles are
	// evicted as new buckets roll.
	Retention int
	// TakeProfitPct / StopLossPct set exit levels on new positions as
	// fractions of the entry price (0 disables the level).
	TakeProfitPct float64
	StopLossPct   float64
	// StrategyTag labels persisted positions.
	StrategyTag string

	Strategy decision.Params
}

// Service is the bot state machine. Construct it once with New and
// share the instance between the control surface and the feed.
type Service struct {
	cfg      Config
	exchange model.Exchange
	store    model.PositionStore
	notifier notification.Notifier
	log      *slog.Logger
	mtr      *metrics.Metrics

	mu        sync.Mutex
	state     State
	market    string
	timeframe string
	tfDur     time.Duration
	rules     model.MarketRules
	history   []model.Candle
	points    []model.AnnotatedPoint
	position  *model.Position
	lastTick  time.Time

	ticks      chan model.PriceTick
	stopStream func()
	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

// New constructs the bot service with injected collaborators. mtr may
// be nil to disable metrics (tests).
func New(cfg Config, ex model.Exchange, store model.PositionStore,
	notifier notification.Notifier, log *slog.Logger, mtr *metrics.Metrics) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 200
	}
	if cfg.Retention < cfg.HistoryLimit {
		cfg.Retention = cfg.HistoryLimit
	}
	return &Service{
		cfg:      cfg,
		exchange: ex,
		store:    store,
		notifier: notifier,
		log:      log,
		mtr:      mtr,
	}
}

// Start transitions STOPPED -> STARTING -> RUNNING: loads market
// rules, recovers a persisted OPEN position, seeds the candle window,
// and subscribes to the live feed. A no-op when already running.
func (s *Service) Start(ctx context.Context, market, timeframe string) error {
	tfDur, err := parseTimeframe(timeframe)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == StateRunning || s.state == StateStarting {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStarting
	s.market = market
	s.timeframe = timeframe
	s.tfDur = tfDur
	s.mu.Unlock()

	rules, err := s.exchange.LoadMarketRules(ctx, market)
	if err != nil {
		s.abortStart()
		return fmt.Errorf("load market rules: %w", err)
	}

	// Recover the single OPEN position, if any. Its existence disables
	// new entries until it is closed.
	pos, err := s.store.FindOpen(ctx, market)
	if err != nil {
		s.abortStart()
		return fmt.Errorf("recover position: %w", err)
	}
	if pos != nil {
		s.log.Info("recovered open position",
			slog.String("market", market),
			slog.Float64("entry_price", pos.EntryPrice),
			slog.Float64("quantity", pos.Quantity))
	}

	candles, err := s.exchange.FetchCandles(ctx, market, timeframe, s.cfg.HistoryLimit)
	if err != nil {
		s.abortStart()
		return fmt.Errorf("seed history: %w", err)
	}
	if len(candles) == 0 {
		s.abortStart()
		return fmt.Errorf("seed history: no candles for %s %s", market, timeframe)
	}
	points := annotate.Series(candles, s.cfg.Strategy.Annotate)

	// The stream outlives the start request: tie it to the service,
	// not to ctx.
	loopCtx, cancel := context.WithCancel(context.Background())
	stop, err := s.exchange.SubscribePriceStream(loopCtx, market, s.offer)
	if err != nil {
		cancel()
		s.abortStart()
		return fmt.Errorf("subscribe price stream: %w", err)
	}

	s.mu.Lock()
	s.rules = rules
	s.position = pos
	s.history = candles
	s.points = points
	s.ticks = make(chan model.PriceTick, 1)
	s.stopStream = stop
	s.cancelLoop = cancel
	s.loopDone = make(chan struct{})
	s.state = StateRunning
	s.mu.Unlock()

	go s.run(loopCtx)

	s.log.Info("bot started",
		slog.String("market", market),
		slog.String("timeframe", timeframe),
		slog.Int("history", len(candles)),
		slog.Bool("has_position", pos != nil))
	return nil
}

func (s *Service) abortStart() {
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
}

// Stop transitions RUNNING -> STOPPING -> STOPPED. The feed is
// unsubscribed and an in-flight tick cycle is allowed to finish
// naturally; interrupting mid-order would risk desynchronized state.
// The in-memory position is kept — the next Start recovers it from
// persistence regardless.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	stop := s.stopStream
	cancel := s.cancelLoop
	done := s.loopDone
	market := s.market
	s.mu.Unlock()

	stop()
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.state = StateStopped
	s.stopStream = nil
	s.cancelLoop = nil
	s.mu.Unlock()

	s.log.Info("bot stopped", slog.String("market", market))
	return nil
}

// Status returns a read-only snapshot. It never touches the exchange
// and never waits on an in-flight order.
func (s *Service) Status() model.StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.StatusSnapshot{
		Running:         s.state == StateRunning,
		State:           s.state.String(),
		Market:          s.market,
		Timeframe:       s.timeframe,
		LastTickTime:    s.lastTick,
		HistoryLength:   len(s.history),
		HasOpenPosition: s.position != nil,
	}
}

// offer pushes a tick into the capacity-1 mailbox, replacing any tick
// that is still waiting: while a decide-and-execute cycle is in
// flight only the latest price is kept, never a queue.
func (s *Service) offer(t model.PriceTick) {
	s.mu.Lock()
	ch := s.ticks
	s.mu.Unlock()
	if ch == nil {
		return
	}
	for {
		select {
		case ch <- t:
			return
		default:
		}
		select {
		case <-ch:
			if s.mtr != nil {
				s.mtr.CoalescedTicks.Inc()
			}
		default:
		}
	}
}

// run is the single consumer of the tick mailbox.
func (s *Service) run(ctx context.Context) {
	defer close(s.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-s.ticks:
			s.handleTick(tick)
		}
	}
}
