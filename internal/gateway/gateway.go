// Package gateway implements the G role: a stateless HTTP front that
// translates the three public endpoints into socket calls against the
// dispatcher (A) and store (S) pools, load-balancing payment writes
// round-robin across the configured A instances.
package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/rinha-core/dispatch/internal/metrics"
	"github.com/rinha-core/dispatch/internal/model"
	"github.com/rinha-core/dispatch/internal/transport"
)

// Gateway holds the warm connection pools to every A instance and to
// S, plus the round-robin counter used to fan payment writes out.
type Gateway struct {
	apiPools  []*transport.Pool
	storePool *transport.Pool
	next      atomic.Uint64
	logger    zerolog.Logger
}

func New(apiPools []*transport.Pool, storePool *transport.Pool, logger zerolog.Logger) *Gateway {
	return &Gateway{apiPools: apiPools, storePool: storePool, logger: logger}
}

// Router builds the mux.Router serving the three public endpoints.
func (g *Gateway) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/payments", g.handlePayments).Methods(http.MethodPost)
	r.HandleFunc("/payments-summary", g.handleSummary).Methods(http.MethodGet)
	r.HandleFunc("/purge-payments", g.handlePurge).Methods(http.MethodPost)
	r.HandleFunc("/metrics", metrics.Handler().ServeHTTP).Methods(http.MethodGet)
	return r
}

// nextAPIPool picks the next A backend by a relaxed-atomic counter
// modulo the instance count — fairness, not strict sequencing, is the
// goal (spec §4.1/§5).
func (g *Gateway) nextAPIPool() *transport.Pool {
	idx := g.next.Add(1) % uint64(len(g.apiPools))
	metrics.GatewayBackendSelected.WithLabelValues(strconv.FormatUint(idx, 10)).Inc()
	return g.apiPools[idx]
}

type paymentBody struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
}

func (g *Gateway) handlePayments(w http.ResponseWriter, r *http.Request) {
	var body paymentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		metrics.GatewayRequests.WithLabelValues("payments", "bad_request").Inc()
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := uuid.Parse(body.CorrelationID); err != nil {
		metrics.GatewayRequests.WithLabelValues("payments", "bad_request").Inc()
		http.Error(w, "correlationId must be a UUID", http.StatusBadRequest)
		return
	}

	req := model.PaymentRequest{CorrelationID: body.CorrelationID, Amount: body.Amount}
	payload, err := req.Encode()
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("payments", "error").Inc()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	pool := g.nextAPIPool()
	conn, err := pool.Acquire()
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("payments", "pool_exhausted").Inc()
		g.logger.Error().Err(err).Msg("failed to acquire API connection")
		http.Error(w, "service unavailable", http.StatusInternalServerError)
		return
	}
	defer pool.Release(conn)

	if err := transport.WriteFrame(conn, payload); err != nil {
		metrics.GatewayRequests.WithLabelValues("payments", "error").Inc()
		g.logger.Error().Err(err).Msg("failed to write payment frame")
		http.Error(w, "service unavailable", http.StatusInternalServerError)
		return
	}

	metrics.GatewayRequests.WithLabelValues("payments", "accepted").Inc()
	w.WriteHeader(http.StatusOK)
}

func (g *Gateway) handleSummary(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	if from == "" {
		from = model.MinTimestamp
	}
	to := r.URL.Query().Get("to")
	if to == "" {
		to = model.MaxTimestamp
	}

	cmd := model.NewReadCommand(from, to)
	payload, err := cmd.Encode()
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("summary", "error").Inc()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := g.storePool.Acquire()
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("summary", "pool_exhausted").Inc()
		g.logger.Error().Err(err).Msg("failed to acquire store connection")
		http.Error(w, "service unavailable", http.StatusInternalServerError)
		return
	}
	defer g.storePool.Release(conn)

	if err := transport.WriteFrame(conn, payload); err != nil {
		metrics.GatewayRequests.WithLabelValues("summary", "error").Inc()
		http.Error(w, "service unavailable", http.StatusInternalServerError)
		return
	}

	line, err := transport.ReadLine(conn)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("summary", "error").Inc()
		http.Error(w, "service unavailable", http.StatusInternalServerError)
		return
	}

	summary, err := model.DecodeGlobalSummary(line)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("summary", "error").Inc()
		http.Error(w, "service unavailable", http.StatusInternalServerError)
		return
	}

	metrics.GatewayRequests.WithLabelValues("summary", "ok").Inc()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summary)
}

func (g *Gateway) handlePurge(w http.ResponseWriter, r *http.Request) {
	cmd := model.NewPurgeCommand()
	payload, err := cmd.Encode()
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("purge", "error").Inc()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := g.storePool.Acquire()
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("purge", "pool_exhausted").Inc()
		http.Error(w, "service unavailable", http.StatusInternalServerError)
		return
	}
	defer g.storePool.Release(conn)

	if err := transport.WriteFrame(conn, payload); err != nil {
		metrics.GatewayRequests.WithLabelValues("purge", "error").Inc()
		http.Error(w, "service unavailable", http.StatusInternalServerError)
		return
	}

	metrics.GatewayRequests.WithLabelValues("purge", "ok").Inc()
	w.WriteHeader(http.StatusOK)
}
