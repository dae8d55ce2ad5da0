package metaserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/struggle121224/sofa-registry/internal/clientmanager"
	"github.com/struggle121224/sofa-registry/internal/renewal"
)

// IPSetRequest is the body of the client manager mutation endpoints.
type IPSetRequest struct {
	IPs []string `json:"ips"`
}

// BoolResponse reports the repository's boolean outcome.
type BoolResponse struct {
	Success bool `json:"success"`
}

// Mux wires the renewal endpoint and the client manager admin surface.
func Mux(s *Server, cm *clientmanager.Service, log *zap.Logger) *http.ServeMux {
	h := &handlers{server: s, cm: cm, log: log.Named("metaHTTP")}
	mux := http.NewServeMux()
	mux.HandleFunc(renewal.RenewalPath, h.handleRenewal)
	mux.HandleFunc("/api/v1/clientManager/clientOpen", h.handleClientOpen)
	mux.HandleFunc("/api/v1/clientManager/clientOff", h.handleClientOff)
	mux.HandleFunc("/api/v1/clientManager/reduce", h.handleReduce)
	mux.HandleFunc("/api/v1/clientManager/query", h.handleQuery)
	return mux
}

type handlers struct {
	server *Server
	cm     *clientmanager.Service
	log    *zap.Logger
}

func (h *handlers) handleRenewal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req renewal.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	resp, err := h.server.HandleRenewal(req)
	if err != nil {
		h.log.Warn("renewal rejected", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, h.log, resp)
}

func (h *handlers) handleClientOpen(w http.ResponseWriter, r *http.Request) {
	h.handleIPSet(w, r, h.cm.ClientOpen)
}

func (h *handlers) handleClientOff(w http.ResponseWriter, r *http.Request) {
	h.handleIPSet(w, r, h.cm.ClientOff)
}

func (h *handlers) handleReduce(w http.ResponseWriter, r *http.Request) {
	h.handleIPSet(w, r, h.cm.Reduce)
}

func (h *handlers) handleIPSet(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, ips []string) bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req IPSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, h.log, BoolResponse{Success: op(r.Context(), req.IPs)})
}

func (h *handlers) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := h.cm.QueryClientOffAddress(r.Context())
	if errors.Is(err, clientmanager.ErrNotFound) {
		http.Error(w, "client off address not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.log, data)
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("write response failed", zap.Error(err))
	}
}
