// Package api provides the debug HTTP endpoints of the restart controller.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/WiredSharp/restart-controller/internal/restarter"
	"github.com/WiredSharp/restart-controller/internal/tree"
)

// TreeSource provides the current dependency tree.
type TreeSource interface {
	Current() *tree.Tree
}

// LedgerSource provides the restart ledger snapshot.
type LedgerSource interface {
	Ledger() map[string]restarter.LedgerEntry
}

// TreeResponse is the response for GET /api/v1/tree.
type TreeResponse struct {
	// Edges maps each parent to its sorted direct children.
	Edges map[string][]string `json:"edges"`

	// Nodes is the number of workloads appearing in the tree.
	Nodes int `json:"nodes"`
}

// TreeHandler handles GET /api/v1/tree.
type TreeHandler struct {
	logger *zap.Logger
	trees  TreeSource
}

// NewTreeHandler creates a new TreeHandler.
func NewTreeHandler(trees TreeSource, logger *zap.Logger) *TreeHandler {
	return &TreeHandler{
		logger: logger.Named("tree-handler"),
		trees:  trees,
	}
}

// ServeHTTP implements http.Handler.
func (h *TreeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	current := h.trees.Current()
	response := TreeResponse{
		Edges: current.Edges(),
		Nodes: current.Len(),
	}
	if response.Edges == nil {
		response.Edges = map[string][]string{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode tree response", zap.Error(err))
	}
}

// LedgerResponse is the response for GET /api/v1/ledger.
type LedgerResponse struct {
	// Workloads maps each restarted workload to its last issued restart.
	Workloads map[string]restarter.LedgerEntry `json:"workloads"`
}

// LedgerHandler handles GET /api/v1/ledger.
type LedgerHandler struct {
	logger *zap.Logger
	ledger LedgerSource
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger LedgerSource, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		logger: logger.Named("ledger-handler"),
		ledger: ledger,
	}
}

// ServeHTTP implements http.Handler.
func (h *LedgerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := LedgerResponse{Workloads: h.ledger.Ledger()}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode ledger response", zap.Error(err))
	}
}

// HealthResponse is the response for health endpoints.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// HealthHandler handles GET /healthz and GET /api/v1/health.
type HealthHandler struct {
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{logger: logger.Named("health-handler")}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// RegisterHandlers registers the debug endpoints on the given mux.
func RegisterHandlers(mux *http.ServeMux, trees TreeSource, ledger LedgerSource, logger *zap.Logger) {
	treeHandler := NewTreeHandler(trees, logger)
	ledgerHandler := NewLedgerHandler(ledger, logger)
	healthHandler := NewHealthHandler(logger)

	mux.Handle("/api/v1/tree", treeHandler)
	mux.Handle("/api/v1/ledger", ledgerHandler)
	mux.Handle("/api/v1/health", healthHandler)
	mux.Handle("/healthz", healthHandler)
}
