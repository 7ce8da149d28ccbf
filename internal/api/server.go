// Package api exposes the validation pipeline over REST/JSON plus a
// websocket verdict stream. The API is the only write path into the service:
// events arrive here, verdicts leave through the bus, webhooks, and stream.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/claimsentry/backend/internal/consensus"
	"github.com/claimsentry/backend/internal/events"
	"github.com/claimsentry/backend/internal/history"
	"github.com/claimsentry/backend/internal/redteam"
	"github.com/claimsentry/backend/internal/validator"
	"github.com/claimsentry/backend/internal/webhooks"
)

// BlocklistAdmin is the operator-facing write side of the blocklist.
type BlocklistAdmin interface {
	Block(ctx context.Context, wallets ...string) error
}

// VenueRecorder records per-wallet venue activity as events are ingested.
type VenueRecorder interface {
	RecordActivity(ctx context.Context, wallet, venue string) error
}

// Server wires the pipeline, red-team framework, and supporting stores to
// HTTP. All handler state is read-only or internally synchronized.
type Server struct {
	pipeline  *validator.Pipeline
	consensus *consensus.Validator
	framework *redteam.Framework
	store     history.Store
	blocklist BlocklistAdmin
	venues    VenueRecorder
	registry  *webhooks.Registry
	bus       *events.Bus
	stream    *Streamer

	mu     sync.RWMutex
	latest *redteam.Report

	httpSrv *http.Server
}

// Deps carries the collaborators the server exposes. blocklist, venues,
// framework, and bus may be nil; the matching endpoints then return 503.
type Deps struct {
	Pipeline  *validator.Pipeline
	Consensus *consensus.Validator
	Framework *redteam.Framework
	Store     history.Store
	Blocklist BlocklistAdmin
	Venues    VenueRecorder
	Registry  *webhooks.Registry
	Bus       *events.Bus
}

func NewServer(deps Deps) *Server {
	s := &Server{
		pipeline:  deps.Pipeline,
		consensus: deps.Consensus,
		framework: deps.Framework,
		store:     deps.Store,
		blocklist: deps.Blocklist,
		venues:    deps.Venues,
		registry:  deps.Registry,
		bus:       deps.Bus,
	}
	if deps.Bus != nil {
		s.stream = NewStreamer(deps.Bus)
	}
	return s
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)
	r.Use(requestLogMiddleware)

	v1 := r.PathPrefix("/api/v1").Subrouter()

	// Validation.
	v1.HandleFunc("/events/validate", s.handleValidate).Methods(http.MethodPost)
	v1.HandleFunc("/events/validate/batch", s.handleValidateBatch).Methods(http.MethodPost)

	// Red-team assessments.
	v1.HandleFunc("/assessments/run", s.handleRunAssessment).Methods(http.MethodPost)
	v1.HandleFunc("/assessments/latest", s.handleLatestAssessment).Methods(http.MethodGet)

	// Consensus party health.
	v1.HandleFunc("/consensus/parties", s.handlePartyStats).Methods(http.MethodGet)

	// Operator blocklist.
	v1.HandleFunc("/blocklist", s.handleBlock).Methods(http.MethodPost)

	// Webhook subscriptions.
	v1.HandleFunc("/webhooks", s.handleRegisterWebhook).Methods(http.MethodPost)
	v1.HandleFunc("/webhooks", s.handleListWebhooks).Methods(http.MethodGet)
	v1.HandleFunc("/webhooks/{id}", s.handleUnregisterWebhook).Methods(http.MethodDelete)

	// Live verdict stream.
	if s.stream != nil {
		r.HandleFunc("/ws/verdicts", s.stream.HandleWebSocket)
	}

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start(port string) error {
	if s.stream != nil {
		go s.stream.Run()
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("API listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stream != nil {
		s.stream.Stop()
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("request served",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(started))
	})
}
