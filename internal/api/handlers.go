package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/claimsentry/backend/internal/events"
	"github.com/claimsentry/backend/internal/history"
	"github.com/claimsentry/backend/internal/validator"
	"github.com/claimsentry/backend/internal/webhooks"
)

const maxBatchSize = 1000

// handleValidate runs one event through the pipeline. When the caller sends
// no behavioral window the server loads one from the history store.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Event.ID == "" {
		writeError(w, http.StatusBadRequest, "event id is required")
		return
	}

	ctx := r.Context()
	if len(req.Window) == 0 && s.store != nil {
		ref := req.Event.Timestamp
		if ref.IsZero() {
			ref = time.Now()
		}
		window, err := s.store.Window(ctx, history.DefaultSpan, ref)
		if err != nil {
			// A missing window degrades anomaly coverage, not availability.
			slog.Warn("history window load failed", "event", req.Event.ID, "error", err)
		} else {
			req.Window = window
		}
	}

	verdict := s.pipeline.Validate(ctx, req)
	s.recordEvent(r, req)
	writeJSON(w, http.StatusOK, verdict)
}

// handleValidateBatch validates up to maxBatchSize independent events and
// returns one verdict per input plus an aggregate summary.
func (s *Server) handleValidateBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requests []validator.Request `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(body.Requests) == 0 {
		writeError(w, http.StatusBadRequest, "at least one request is required")
		return
	}
	if len(body.Requests) > maxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge, "batch exceeds maximum size")
		return
	}

	verdicts := s.pipeline.ValidateBatch(r.Context(), body.Requests)
	for _, req := range body.Requests {
		s.recordEvent(r, req)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"verdicts": verdicts,
		"summary":  validator.Summarize(verdicts),
	})
}

// recordEvent appends the reported event to the history store and marks
// venue activity. Both are best-effort: a store fault never fails the
// request that produced a verdict.
func (s *Server) recordEvent(r *http.Request, req validator.Request) {
	ctx := r.Context()
	if s.store != nil {
		if err := s.store.Append(ctx, req.Event); err != nil {
			slog.Warn("history append failed", "event", req.Event.ID, "error", err)
		}
	}
	if s.venues != nil && req.Event.Chain != "" {
		if err := s.venues.RecordActivity(ctx, req.Event.Wallet, req.Event.Chain); err != nil {
			slog.Warn("venue activity record failed", "wallet", req.Event.Wallet, "error", err)
		}
	}
}

// handleRunAssessment executes the full red-team catalogue against the live
// pipeline and publishes the resulting report.
func (s *Server) handleRunAssessment(w http.ResponseWriter, r *http.Request) {
	if s.framework == nil {
		writeError(w, http.StatusServiceUnavailable, "red-team framework not configured")
		return
	}

	report := s.framework.Run(r.Context())

	s.mu.Lock()
	s.latest = &report
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Emit(events.TypeAssessmentCompleted, report.ID, report)
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLatestAssessment(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	report := s.latest
	s.mu.RUnlock()

	if report == nil {
		writeError(w, http.StatusNotFound, "no assessment has been run yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handlePartyStats reports per-party consensus health counters.
func (s *Server) handlePartyStats(w http.ResponseWriter, r *http.Request) {
	if s.consensus == nil {
		writeError(w, http.StatusServiceUnavailable, "consensus layer not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.consensus.Stats())
}

// handleBlock adds wallets to the shared block-list.
func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	if s.blocklist == nil {
		writeError(w, http.StatusServiceUnavailable, "blocklist not configured")
		return
	}
	var body struct {
		Wallets []string `json:"wallets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(body.Wallets) == 0 {
		writeError(w, http.StatusBadRequest, "at least one wallet is required")
		return
	}
	if err := s.blocklist.Block(r.Context(), body.Wallets...); err != nil {
		writeError(w, http.StatusInternalServerError, "blocklist update failed: "+err.Error())
		return
	}
	slog.Info("wallets blocked", "count", len(body.Wallets))
	writeJSON(w, http.StatusOK, map[string]int{"blocked": len(body.Wallets)})
}

func (s *Server) handleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	var sub webhooks.Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.registry.Register(&sub); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.ListAll())
}

func (s *Server) handleUnregisterWebhook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.registry.Unregister(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	}
	if s.bus != nil {
		health["bus_subscribers"] = s.bus.SubscriberCount()
	}
	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
