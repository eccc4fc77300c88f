package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"HolyLedger/internal/model"
	"HolyLedger/internal/recorder"
	"HolyLedger/internal/treasury"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// Reader is the read-only view of the ledger the server exposes.
type Reader interface {
	Snapshot() *model.LedgerSnapshot
	AccountSnapshot(account common.Address) model.AccountSnapshot
	PowercardState() treasury.PowercardState
	RecentEvents(limit int) ([]recorder.StoredEvent, error)
}

// Server is the ops HTTP server: health, metrics and read-only state.
type Server struct {
	router *chi.Mux
	ledger Reader
	logger *slog.Logger
	srv    *http.Server
}

func New(addr string, ledger Reader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router: chi.NewRouter(),
		ledger: ledger,
		logger: logger,
	}
	s.setupRoutes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(15 * time.Second))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/pool", s.handlePool)
		r.Get("/valors", s.handleValors)
		r.Get("/treasury", s.handleTreasury)
		r.Get("/accounts/{address}", s.handleAccount)
		r.Get("/events", s.handleEvents)
	})
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("server: listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Snapshot().Pool)
}

func (s *Server) handleValors(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Snapshot().Valors)
}

func (s *Server) handleTreasury(w http.ResponseWriter, r *http.Request) {
	type powercard struct {
		Phase         string     `json:"phase"`
		Holder        string     `json:"holder,omitempty"`
		ActiveUntil   *time.Time `json:"active_until,omitempty"`
		CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	}
	type response struct {
		model.TreasurySnapshot
		Powercard powercard `json:"powercard"`
	}

	st := s.ledger.PowercardState()
	resp := response{
		TreasurySnapshot: s.ledger.Snapshot().Treasury,
		Powercard:        powercard{Phase: string(st.Phase)},
	}
	if st.Phase != treasury.PhaseUnstaked {
		resp.Powercard.Holder = st.Holder.Hex()
		resp.Powercard.ActiveUntil = &st.ActiveUntil
		resp.Powercard.CooldownUntil = &st.CooldownUntil
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	if !common.IsHexAddress(addr) {
		s.writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	s.writeJSON(w, http.StatusOK, s.ledger.AccountSnapshot(common.HexToAddress(addr)))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}
	events, err := s.ledger.RecentEvents(limit)
	if err != nil {
		s.logger.Error("server: recent events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	if events == nil {
		events = []recorder.StoredEvent{}
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("server: encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
