package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/goahead/predtracker/internal/contracts"
	"github.com/goahead/predtracker/internal/tracking"
	"github.com/goahead/predtracker/pkg/logger"
)

// TrackingHandler handles prediction tracking API endpoints
// ⭐ SSOT: 추적/잠금 API 핸들러는 이 구조체에서만
type TrackingHandler struct {
	tracker *tracking.Tracker
	logger  *logger.Logger
}

// NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(tracker *tracking.Tracker, log *logger.Logger) *TrackingHandler {
	return &TrackingHandler{
		tracker: tracker,
		logger:  log,
	}
}

// LockStateResponse 호라이즌 잠금 상태 응답
type LockStateResponse struct {
	Symbol      string              `json:"symbol"`
	Horizon     contracts.Horizon   `json:"horizon"`
	State       contracts.LockState `json:"state"`
	Locked      bool                `json:"locked"`
	Persistent  bool                `json:"persistent"`
	LockedDates []string            `json:"locked_dates"`
}

// GetSummary returns tracking statistics
// GET /api/tracking/summary
func (h *TrackingHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.tracker.Summary())
}

// ListSymbols returns every tracked symbol
// GET /api/tracking
func (h *TrackingHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	symbols := h.tracker.Symbols()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": symbols,
		"count":   len(symbols),
	})
}

// GetRecord returns the full tracking record of one symbol
// GET /api/tracking/{symbol}
func (h *TrackingHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	rec, ok := h.tracker.Get(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "symbol is not tracked")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// GetSeries returns the chart series of one horizon
// GET /api/tracking/{symbol}/series/{horizon}
func (h *TrackingHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	symbol, horizon, ok := h.target(w, r)
	if !ok {
		return
	}

	series, err := h.tracker.Series(symbol, horizon)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, series)
}

// GetLock returns the effective lock state and the locked date labels
// GET /api/tracking/{symbol}/lock/{horizon}
func (h *TrackingHandler) GetLock(w http.ResponseWriter, r *http.Request) {
	symbol, horizon, ok := h.target(w, r)
	if !ok {
		return
	}

	state, err := h.tracker.LockState(symbol, horizon)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, LockStateResponse{
		Symbol:      symbol,
		Horizon:     horizon,
		State:       state,
		Locked:      state.IsLocked(),
		Persistent:  state.IsPersistent(),
		LockedDates: h.tracker.LockedDateLabels(symbol, horizon),
	})
}

// Lock locks a horizon's predictions
// POST /api/tracking/{symbol}/lock/{horizon}?persistent=true
func (h *TrackingHandler) Lock(w http.ResponseWriter, r *http.Request) {
	symbol, horizon, ok := h.target(w, r)
	if !ok {
		return
	}

	persistent := false
	if v := r.URL.Query().Get("persistent"); v != "" {
		p, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "persistent must be a boolean")
			return
		}
		persistent = p
	}

	h.respondAck(w, h.tracker.Lock(symbol, horizon, persistent))
}

// Unlock unlocks a horizon's predictions
// POST /api/tracking/{symbol}/unlock/{horizon}
func (h *TrackingHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	symbol, horizon, ok := h.target(w, r)
	if !ok {
		return
	}

	h.respondAck(w, h.tracker.Unlock(symbol, horizon))
}

func (h *TrackingHandler) target(w http.ResponseWriter, r *http.Request) (string, contracts.Horizon, bool) {
	vars := mux.Vars(r)
	symbol := vars["symbol"]
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "symbol is required")
		return "", "", false
	}

	horizon, err := contracts.ParseHorizon(vars["horizon"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return symbol, horizon, true
}

func (h *TrackingHandler) respondAck(w http.ResponseWriter, ack contracts.LockAck) {
	if !ack.Success {
		h.logger.WithField("message", ack.Message).Warn("Lock request failed")
		respondJSON(w, http.StatusConflict, ack)
		return
	}
	respondJSON(w, http.StatusOK, ack)
}
