// Package metrics exposes Prometheus metrics and a health endpoint for
// the trading bot.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spot-traderv1/internal/model"
)

// Metrics holds all Prometheus metrics for the bot service.
type Metrics struct {
	TicksTotal     prometheus.Counter
	CoalescedTicks prometheus.Counter
	DecisionsTotal *prometheus.CounterVec // labels: action
	OrdersTotal    *prometheus.CounterVec // labels: side, status
	OrderSubmitDur prometheus.Histogram
	HistoryLength  prometheus.Gauge
	LastTickUnix   prometheus.Gauge
	StoreFailures  prometheus.Counter
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_ticks_total",
			Help: "Total price ticks consumed from the feed",
		}),
		CoalescedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_coalesced_ticks_total",
			Help: "Ticks dropped in favor of a newer price while a cycle was in flight",
		}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_decisions_total",
			Help: "Strategy decisions by action",
		}, []string{"action"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Submitted orders by side and outcome",
		}, []string{"side", "status"}),
		OrderSubmitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bot_order_submit_duration_seconds",
			Help:    "Market order submission latency",
			Buckets: prometheus.DefBuckets,
		}),
		HistoryLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_history_length",
			Help: "Candles currently held in the sliding window",
		}),
		LastTickUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_last_tick_unix_seconds",
			Help: "Timestamp of the most recent feed tick (staleness probe)",
		}),
		StoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_store_failures_total",
			Help: "Position store write failures (degraded crash recovery)",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.CoalescedTicks,
		m.DecisionsTotal,
		m.OrdersTotal,
		m.OrderSubmitDur,
		m.HistoryLength,
		m.LastTickUnix,
		m.StoreFailures,
	)
	return m
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr     string
	srv      *http.Server
	statusFn func() model.StatusSnapshot
	log      *slog.Logger
}

// NewServer creates a metrics and health server. statusFn supplies the
// bot snapshot for /healthz; it must be non-blocking.
func NewServer(addr string, statusFn func() model.StatusSnapshot, log *slog.Logger) *Server {
	s := &Server{addr: addr, statusFn: statusFn, log: log}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := s.statusFn()

	status := "ok"
	code := http.StatusOK
	if snap.Running && !snap.LastTickTime.IsZero() && time.Since(snap.LastTickTime) > time.Minute {
		// Running but no ticks for a minute: the feed is stale.
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(struct {
		Status string               `json:"status"`
		Bot    model.StatusSnapshot `json:"bot"`
	}{Status: status, Bot: snap})
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", slog.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("metrics server error", slog.Any("err", err))
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
