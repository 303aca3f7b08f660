package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/goahead/predtracker/internal/api/handlers"
	"github.com/goahead/predtracker/pkg/logger"
)

// requestIDHeader 요청 추적용 헤더
const requestIDHeader = "X-Request-ID"

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(trackingHandler *handlers.TrackingHandler, stabilityHandler *handlers.StabilityHandler, metricsHandler http.Handler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Prometheus
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Tracking endpoints (summary before {symbol})
	api.HandleFunc("/tracking", trackingHandler.ListSymbols).Methods("GET")
	api.HandleFunc("/tracking/summary", trackingHandler.GetSummary).Methods("GET")
	api.HandleFunc("/tracking/{symbol}", trackingHandler.GetRecord).Methods("GET")
	api.HandleFunc("/tracking/{symbol}/series/{horizon}", trackingHandler.GetSeries).Methods("GET")
	api.HandleFunc("/tracking/{symbol}/lock/{horizon}", trackingHandler.GetLock).Methods("GET")
	api.HandleFunc("/tracking/{symbol}/lock/{horizon}", trackingHandler.Lock).Methods("POST")
	api.HandleFunc("/tracking/{symbol}/unlock/{horizon}", trackingHandler.Unlock).Methods("POST")

	// Stability endpoints
	if stabilityHandler != nil {
		api.HandleFunc("/stability/status", stabilityHandler.GetStatus).Methods("GET")
		api.HandleFunc("/stability/{symbol}", stabilityHandler.GetSignal).Methods("GET")
	}

	// Apply middleware
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "predtracker-api",
	})
}

// requestIDMiddleware echoes or assigns X-Request-ID
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"request_id": r.Header.Get(requestIDHeader),
				"duration":   time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
