package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spot-traderv1/internal/decision"
	"spot-traderv1/internal/model"
	"spot-traderv1/internal/notification"
)

// ── Fakes ──

type orderReq struct {
	side model.OrderSide
	qty  decimal.Decimal
}

type fakeExchange struct {
	mu        sync.Mutex
	rules     model.MarketRules
	candles   []model.Candle
	balances  []model.Balance
	orderErr  error
	orders    []orderReq
	loadCalls int
	onTick    func(model.PriceTick)
	stopped   bool
}

func (f *fakeExchange) LoadMarketRules(ctx context.Context, symbol string) (model.MarketRules, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	return f.rules, nil
}

func (f *fakeExchange) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.candles, nil
}

func (f *fakeExchange) FetchBalances(ctx context.Context) ([]model.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances, nil
}

func (f *fakeExchange) SubmitMarketOrder(ctx context.Context, symbol string, side model.OrderSide, qty decimal.Decimal) (model.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return model.OrderResult{}, f.orderErr
	}
	f.orders = append(f.orders, orderReq{side: side, qty: qty})
	// Zero fill fields: the service must fall back to the tick price
	// and the requested quantity.
	return model.OrderResult{ID: "order-1", Status: "FILLED"}, nil
}

func (f *fakeExchange) SubscribePriceStream(ctx context.Context, symbol string, onTick func(model.PriceTick)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTick = onTick
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.stopped = true
	}, nil
}

func (f *fakeExchange) push(price float64, at time.Time) {
	f.mu.Lock()
	h := f.onTick
	f.mu.Unlock()
	if h != nil {
		h(model.PriceTick{Price: price, Time: at})
	}
}

func (f *fakeExchange) setOrderErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderErr = err
}

func (f *fakeExchange) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type closeRec struct {
	exitPrice float64
	pnl       float64
}

type fakeStore struct {
	mu        sync.Mutex
	open      *model.Position
	inserts   int
	closes    []closeRec
	findErr   error
	insertErr error
}

func (f *fakeStore) FindOpen(ctx context.Context, market string) (*model.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.open, nil
}

func (f *fakeStore) InsertOpen(ctx context.Context, pos model.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserts++
	f.open = &pos
	return nil
}

func (f *fakeStore) MarkClosed(ctx context.Context, market string, exitPrice, realizedPnL float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes = append(f.closes, closeRec{exitPrice: exitPrice, pnl: realizedPnL})
	f.open = nil
	return nil
}

func (f *fakeStore) insertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts
}

func (f *fakeStore) closeRecords() []closeRec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]closeRec(nil), f.closes...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []notification.Alert
	err    error
}

func (f *fakeNotifier) Send(ctx context.Context, a notification.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return f.err
}

func (f *fakeNotifier) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeNotifier) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.alerts))
	for i, a := range f.alerts {
		out[i] = a.Title
	}
	return out
}

// ── Fixtures ──

var seedStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// seedCandles produces a window whose tail declines from 100 so that a
// tick at 80 trips both the lower-band and the oversold conditions.
func seedCandles() []model.Candle {
	closes := make([]float64, 0, 40)
	for i := 0; i < 31; i++ {
		closes = append(closes, 100)
	}
	for v := 99.0; v >= 91; v-- {
		closes = append(closes, v)
	}
	candles := make([]model.Candle, len(closes))
	for i, c := range closes {
		candles[i] = model.Candle{
			OpenTime: seedStart.Add(time.Duration(i) * time.Minute),
			Open:     c, High: c, Low: c, Close: c, Volume: 1,
		}
	}
	return candles
}

func testRules() model.MarketRules {
	return model.MarketRules{
		Symbol:       "BTCUSDT",
		BaseAsset:    "BTC",
		QuoteAsset:   "USDT",
		MinQty:       decimal.RequireFromString("0.0001"),
		StepSize:     decimal.RequireFromString("0.0001"),
		MinNotional:  decimal.RequireFromString("5"),
		QtyPrecision: 4,
	}
}

func newTestService(t *testing.T) (*Service, *fakeExchange, *fakeStore, *fakeNotifier) {
	t.Helper()
	ex := &fakeExchange{
		rules:    testRules(),
		candles:  seedCandles(),
		balances: []model.Balance{{Asset: "USDT", Free: 1000}},
	}
	st := &fakeStore{}
	nt := &fakeNotifier{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(Config{
		HistoryLimit: 40,
		Retention:    100,
		StrategyTag:  "test",
		Strategy:     decision.DefaultParams(),
	}, ex, st, nt, log, nil)
	return svc, ex, st, nt
}

// lastOpen is the open time of the newest seed candle; ticks within a
// minute of it land in the same bucket.
var lastOpen = seedStart.Add(39 * time.Minute)

// ── Tests ──

func TestStartRecoversOpenPosition(t *testing.T) {
	svc, ex, st, _ := newTestService(t)
	st.open = &model.Position{
		Market: "BTCUSDT", Side: model.SideBuy, EntryPrice: 95, Quantity: 1.5,
	}

	require.NoError(t, svc.Start(context.Background(), "BTCUSDT", "1m"))
	defer svc.Stop(context.Background())

	status := svc.Status()
	assert.True(t, status.Running)
	assert.True(t, status.HasOpenPosition, "persisted OPEN position must be recovered")
	assert.Equal(t, "BTCUSDT", status.Market)
	assert.Equal(t, 40, status.HistoryLength)

	// Second start is a no-op, not a second subscription.
	require.NoError(t, svc.Start(context.Background(), "BTCUSDT", "1m"))
	assert.Equal(t, 1, ex.loadCalls)
}

func TestStartFailsWhenRecoveryFails(t *testing.T) {
	svc, ex, st, _ := newTestService(t)
	st.findErr = errors.New("disk gone")

	err := svc.Start(context.Background(), "BTCUSDT", "1m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recover position")
	assert.False(t, svc.Status().Running)
	assert.Nil(t, ex.onTick, "stream must not be subscribed after a failed start")
}

func TestStartRejectsBadTimeframe(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	require.Error(t, svc.Start(context.Background(), "BTCUSDT", "banana"))
	assert.False(t, svc.Status().Running)
}

func TestBuyThenSellRoundTrip(t *testing.T) {
	svc, ex, st, nt := newTestService(t)
	require.NoError(t, svc.Start(context.Background(), "BTCUSDT", "1m"))
	defer svc.Stop(context.Background())

	// A sharp drop to 80 inside the open bucket: lower band and RSI
	// both fire, the order sizes to 95% of 1000 USDT at 80 = 11.875.
	ex.push(80, lastOpen.Add(20*time.Second))

	require.Eventually(t, func() bool {
		return svc.Status().HasOpenPosition
	}, 2*time.Second, 10*time.Millisecond, "buy should open a position")

	require.Equal(t, 1, ex.orderCount())
	ex.mu.Lock()
	order := ex.orders[0]
	ex.mu.Unlock()
	assert.Equal(t, model.SideBuy, order.side)
	assert.Equal(t, "11.875", order.qty.String())
	assert.Equal(t, 1, st.insertCount(), "position must be persisted")

	// A spike well above the upper band closes the position in full.
	ex.push(200, lastOpen.Add(30*time.Second))

	require.Eventually(t, func() bool {
		return !svc.Status().HasOpenPosition
	}, 2*time.Second, 10*time.Millisecond, "sell should close the position")

	require.Equal(t, 2, ex.orderCount())
	ex.mu.Lock()
	sell := ex.orders[1]
	ex.mu.Unlock()
	assert.Equal(t, model.SideSell, sell.side)
	assert.Equal(t, "11.875", sell.qty.String(), "exit is the full position quantity")

	closes := st.closeRecords()
	require.Len(t, closes, 1)
	assert.InDelta(t, 200, closes[0].exitPrice, 1e-9)
	assert.InDelta(t, (200-80)*11.875, closes[0].pnl, 1e-9)

	assert.Eventually(t, func() bool {
		titles := nt.titles()
		return contains(titles, "Position opened") && contains(titles, "Position closed")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOrderFailureLeavesStateUnchanged(t *testing.T) {
	svc, ex, st, nt := newTestService(t)
	require.NoError(t, svc.Start(context.Background(), "BTCUSDT", "1m"))
	defer svc.Stop(context.Background())

	ex.setOrderErr(errors.New("binance: account has insufficient balance"))
	ex.push(80, lastOpen.Add(20*time.Second))

	require.Eventually(t, func() bool {
		return contains(nt.titles(), "Order rejected")
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, svc.Status().HasOpenPosition)
	assert.Equal(t, 0, st.insertCount())

	// The next tick is the retry: same conditions, submission now works.
	ex.setOrderErr(nil)
	ex.push(80, lastOpen.Add(25*time.Second))

	require.Eventually(t, func() bool {
		return svc.Status().HasOpenPosition
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, st.insertCount())
}

func TestStoreFailureKeepsConfirmedFill(t *testing.T) {
	svc, ex, st, _ := newTestService(t)
	st.insertErr = errors.New("database is locked")
	require.NoError(t, svc.Start(context.Background(), "BTCUSDT", "1m"))
	defer svc.Stop(context.Background())

	ex.push(80, lastOpen.Add(20*time.Second))

	// The fill happened on the exchange: the in-memory position must
	// exist even though persistence failed.
	require.Eventually(t, func() bool {
		return svc.Status().HasOpenPosition
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, st.insertCount())
}

func TestNotifierFailureDoesNotBlockTrading(t *testing.T) {
	svc, ex, st, nt := newTestService(t)
	nt.setErr(errors.New("telegram: unexpected status 502"))
	require.NoError(t, svc.Start(context.Background(), "BTCUSDT", "1m"))
	defer svc.Stop(context.Background())

	// The full buy then sell cycle must complete even though every
	// notification delivery fails.
	ex.push(80, lastOpen.Add(20*time.Second))
	require.Eventually(t, func() bool {
		return svc.Status().HasOpenPosition
	}, 2*time.Second, 10*time.Millisecond, "buy must not be blocked by notifier errors")
	assert.Equal(t, 1, st.insertCount())

	ex.push(200, lastOpen.Add(30*time.Second))
	require.Eventually(t, func() bool {
		return !svc.Status().HasOpenPosition
	}, 2*time.Second, 10*time.Millisecond, "sell must not be blocked by notifier errors")
	require.Len(t, st.closeRecords(), 1)
}

func TestStopUnsubscribesAndKeepsPosition(t *testing.T) {
	svc, ex, st, _ := newTestService(t)
	st.open = &model.Position{Market: "BTCUSDT", Side: model.SideBuy, EntryPrice: 95, Quantity: 1}
	require.NoError(t, svc.Start(context.Background(), "BTCUSDT", "1m"))

	require.NoError(t, svc.Stop(context.Background()))

	ex.mu.Lock()
	stopped := ex.stopped
	ex.mu.Unlock()
	assert.True(t, stopped, "stream must be unsubscribed")

	status := svc.Status()
	assert.False(t, status.Running)
	assert.Equal(t, "STOPPED", status.State)
	assert.True(t, status.HasOpenPosition, "stop must not discard the position")

	// Stopping again is a no-op.
	require.NoError(t, svc.Stop(context.Background()))
}

func TestTicksAfterStopAreIgnored(t *testing.T) {
	svc, ex, st, _ := newTestService(t)
	require.NoError(t, svc.Start(context.Background(), "BTCUSDT", "1m"))
	require.NoError(t, svc.Stop(context.Background()))

	ex.push(80, lastOpen.Add(20*time.Second))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, ex.orderCount())
	assert.Equal(t, 0, st.insertCount())
}

func TestOfferKeepsOnlyLatestTick(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	svc.ticks = make(chan model.PriceTick, 1)

	for i := 1; i <= 5; i++ {
		svc.offer(model.PriceTick{Price: float64(i), Time: lastOpen})
	}

	require.Len(t, svc.ticks, 1)
	got := <-svc.ticks
	assert.Equal(t, 5.0, got.Price, "mailbox must hold the latest price, not the first")
}

func TestCandleRolloverAndEviction(t *testing.T) {
	svc, ex, _, _ := newTestService(t)
	svc.cfg.Retention = 40 // already full after seeding
	require.NoError(t, svc.Start(context.Background(), "BTCUSDT", "1m"))
	defer svc.Stop(context.Background())

	// Tick in the next minute bucket: a candle rolls, and retention
	// evicts the oldest one, keeping the window length constant.
	ex.push(91, lastOpen.Add(90*time.Second))

	require.Eventually(t, func() bool {
		return !svc.Status().LastTickTime.IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 40, svc.Status().HistoryLength)

	svc.mu.Lock()
	newest := svc.history[len(svc.history)-1]
	oldest := svc.history[0]
	svc.mu.Unlock()
	assert.Equal(t, lastOpen.Add(time.Minute), newest.OpenTime, "new bucket aligned to the grid")
	assert.Equal(t, seedStart.Add(time.Minute), oldest.OpenTime, "oldest candle evicted")
	assert.Equal(t, 91.0, newest.Open)
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
