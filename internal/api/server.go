// Package api exposes the bot control surface over HTTP. Start, stop,
// and status are the only operations the dashboard layer may invoke;
// no other mutation path into the bot exists.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"spot-traderv1/internal/bot"
)

// Server is the HTTP control server for the bot service.
type Server struct {
	bot *bot.Service
	log *slog.Logger
	srv *http.Server
}

// New creates the control server for addr.
func New(addr string, b *bot.Service, log *slog.Logger) *Server {
	s := &Server{bot: b, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/bot/start", s.handleStart)
	mux.HandleFunc("/api/v1/bot/stop", s.handleStop)
	mux.HandleFunc("/api/v1/bot/status", s.handleStatus)

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

type startRequest struct {
	Market    string `json:"market"`
	Timeframe string `json:"timeframe"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Market == "" || req.Timeframe == "" {
		writeError(w, http.StatusBadRequest, "market and timeframe are required")
		return
	}

	if err := s.bot.Start(r.Context(), req.Market, req.Timeframe); err != nil {
		// Input errors are the caller's fault; everything else means a
		// collaborator (exchange, store) failed.
		if errors.Is(err, bot.ErrInvalidTimeframe) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("start failed", slog.Any("err", err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.bot.Stop(r.Context()); err != nil {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.bot.Status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// Start launches the control server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("control server listening", slog.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("control server error", slog.Any("err", err))
		}
	}()
}

// Stop gracefully shuts down the control server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
