package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spot-traderv1/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := New(filepath.Join(t.TempDir(), "positions.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func samplePosition() model.Position {
	return model.Position{
		Market:          "BTCUSDT",
		Side:            model.SideBuy,
		EntryPrice:      42000.5,
		Quantity:        0.0125,
		OpenedAt:        time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		StrategyTag:     "bb-rsi-macd",
		TakeProfitPrice: model.Some(44100.525),
		// StopLossPrice deliberately unset: must round-trip as NULL.
	}
}

func TestFindOpenOnEmptyStore(t *testing.T) {
	st := newTestStore(t)

	pos, err := st.FindOpen(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, pos, "no rows is not an error")
}

func TestInsertAndFindRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	want := samplePosition()

	require.NoError(t, st.InsertOpen(ctx, want))

	got, err := st.FindOpen(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Market, got.Market)
	assert.Equal(t, want.Side, got.Side)
	assert.InDelta(t, want.EntryPrice, got.EntryPrice, 1e-9)
	assert.InDelta(t, want.Quantity, got.Quantity, 1e-9)
	assert.True(t, want.OpenedAt.Equal(got.OpenedAt))
	assert.Equal(t, want.StrategyTag, got.StrategyTag)
	require.True(t, got.TakeProfitPrice.Valid)
	assert.InDelta(t, 44100.525, got.TakeProfitPrice.Value, 1e-9)
	assert.False(t, got.StopLossPrice.Valid, "unset stop loss must stay unavailable")

	// Other markets are unaffected.
	other, err := st.FindOpen(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestInsertOpenEnforcesSingleOpenPerMarket(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertOpen(ctx, samplePosition()))

	err := st.InsertOpen(ctx, samplePosition())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// A different market is fine.
	eth := samplePosition()
	eth.Market = "ETHUSDT"
	require.NoError(t, st.InsertOpen(ctx, eth))
}

func TestMarkClosedIsAppendOnly(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertOpen(ctx, samplePosition()))
	require.NoError(t, st.MarkClosed(ctx, "BTCUSDT", 43000, 12.49375))

	pos, err := st.FindOpen(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, pos, "closed position must not be found as open")

	// The CLOSED row is retained for audit, not deleted.
	records, err := st.History(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.PositionClosed, records[0].Status)
	assert.InDelta(t, 43000, records[0].ExitPrice, 1e-9)
	assert.InDelta(t, 12.49375, records[0].RealizedPnL, 1e-9)
	assert.NotEmpty(t, records[0].ClosedAt)

	// Closing again fails: there is nothing open.
	err = st.MarkClosed(ctx, "BTCUSDT", 43000, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no open position")
}

func TestHistoryNewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		pos := samplePosition()
		pos.EntryPrice = 100 + float64(i)
		require.NoError(t, st.InsertOpen(ctx, pos))
		require.NoError(t, st.MarkClosed(ctx, "BTCUSDT", pos.EntryPrice+5, 5*pos.Quantity))
	}

	records, err := st.History(ctx, "BTCUSDT", 2)
	require.NoError(t, err)
	require.Len(t, records, 2, "limit applies")
	assert.InDelta(t, 102, records[0].EntryPrice, 1e-9, "newest first")
	assert.InDelta(t, 101, records[1].EntryPrice, 1e-9)
}

func TestReopenAfterClose(t *testing.T) {
	// The full lifecycle the bot drives across restarts: open, close,
	// open again for the same market.
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertOpen(ctx, samplePosition()))
	require.NoError(t, st.MarkClosed(ctx, "BTCUSDT", 43000, 10))

	second := samplePosition()
	second.EntryPrice = 41000
	require.NoError(t, st.InsertOpen(ctx, second))

	got, err := st.FindOpen(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 41000, got.EntryPrice, 1e-9)

	records, err := st.History(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
