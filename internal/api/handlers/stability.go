package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/goahead/predtracker/internal/stability"
	"github.com/goahead/predtracker/pkg/logger"
)

// StabilityHandler handles stable prediction API endpoints
type StabilityHandler struct {
	gate   *stability.Gate
	logger *logger.Logger
}

// NewStabilityHandler creates a new stability handler
func NewStabilityHandler(gate *stability.Gate, log *logger.Logger) *StabilityHandler {
	return &StabilityHandler{
		gate:   gate,
		logger: log,
	}
}

// GetStatus returns stored signal counts grouped by age
// GET /api/stability/status
func (h *StabilityHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.gate.Status())
}

// GetSignal returns the stored signal of one symbol
// GET /api/stability/{symbol}
func (h *StabilityHandler) GetSignal(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	signal, ok := h.gate.Signal(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "no stable prediction for symbol")
		return
	}
	respondJSON(w, http.StatusOK, signal)
}
