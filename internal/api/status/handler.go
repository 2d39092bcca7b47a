package status

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"cerberus/internal/domain/liquidation"
	"cerberus/internal/domain/risk"
	"cerberus/internal/domain/token"
	"cerberus/internal/services/breaker"
	"cerberus/internal/services/exposure"
	"cerberus/internal/services/health"
	"cerberus/pkg/errors"
	"cerberus/pkg/logger"
)

const defaultLimit = 50

// Handler serves the operational status API: breaker state and reset,
// the liquidation record log, exposure levels and liquidator health.
type Handler struct {
	breaker    *breaker.Service
	exposure   *exposure.Service
	health     *health.Service
	recordRepo liquidation.Repository
	riskRepo   risk.Repository
	tokenRepo  token.Repository
	log        *logger.Logger
}

// New creates a new status API handler
func New(
	breakerSvc *breaker.Service,
	exposureSvc *exposure.Service,
	healthSvc *health.Service,
	recordRepo liquidation.Repository,
	riskRepo risk.Repository,
	tokenRepo token.Repository,
) *Handler {
	return &Handler{
		breaker:    breakerSvc,
		exposure:   exposureSvc,
		health:     healthSvc,
		recordRepo: recordRepo,
		riskRepo:   riskRepo,
		tokenRepo:  tokenRepo,
		log:        logger.Get().With("component", "status_api"),
	}
}

// Register mounts all status routes under /api/v1
func (h *Handler) Register(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/breaker", h.GetBreakerStatus).Methods("GET")
	api.HandleFunc("/breaker/reset", h.ResetBreaker).Methods("POST")

	api.HandleFunc("/liquidations/recent", h.GetRecentLiquidations).Methods("GET")
	api.HandleFunc("/liquidations/losses", h.GetLiquidationsWithLosses).Methods("GET")

	api.HandleFunc("/tokens", h.GetTokens).Methods("GET")
	api.HandleFunc("/tokens/{mint}/stats", h.GetTokenStats).Methods("GET")

	api.HandleFunc("/exposure", h.GetAllExposures).Methods("GET")
	api.HandleFunc("/exposure/refresh", h.RefreshExposures).Methods("POST")
	api.HandleFunc("/exposure/warnings", h.GetExposureWarnings).Methods("GET")
	api.HandleFunc("/exposure/{mint}", h.GetTokenExposure).Methods("GET")

	api.HandleFunc("/liquidator/health", h.GetLiquidatorHealth).Methods("GET")

	api.HandleFunc("/events", h.GetSecurityEvents).Methods("GET")
}

// GetBreakerStatus returns the current breaker verdict with live window
// metrics. Read-only: it never latches a trip.
// GET /api/v1/breaker
func (h *Handler) GetBreakerStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.breaker.Status(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// ResetBreaker clears a tripped breaker. The caller must identify itself
// via the X-Actor-ID header; the reset is written to the security log.
// POST /api/v1/breaker/reset
func (h *Handler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	actorID := r.Header.Get("X-Actor-ID")

	if err := h.breaker.Reset(r.Context(), actorID); err != nil {
		if errors.Is(err, errors.ErrUnauthorized) {
			h.writeError(w, http.StatusUnauthorized, err)
			return
		}
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	status, err := h.breaker.Status(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// GetRecentLiquidations returns the newest liquidation records
// GET /api/v1/liquidations/recent?limit=50
func (h *Handler) GetRecentLiquidations(w http.ResponseWriter, r *http.Request) {
	limit := h.limitParam(r)

	records, err := h.recordRepo.GetRecent(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// GetLiquidationsWithLosses returns only records where recovery fell short
// GET /api/v1/liquidations/losses
func (h *Handler) GetLiquidationsWithLosses(w http.ResponseWriter, r *http.Request) {
	records, err := h.recordRepo.GetWithLosses(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// GetTokens returns the collateral whitelist including blacklisted entries
// GET /api/v1/tokens
func (h *Handler) GetTokens(w http.ResponseWriter, r *http.Request) {
	configs, err := h.tokenRepo.GetAll(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": configs,
		"count":  len(configs),
	})
}

// GetTokenStats returns aggregated liquidation stats for one mint
// GET /api/v1/tokens/{mint}/stats
func (h *Handler) GetTokenStats(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]

	stats, err := h.recordRepo.GetTokenStats(r.Context(), mint)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// GetAllExposures returns concentration snapshots for every token with
// active loans or a whitelist entry
// GET /api/v1/exposure
func (h *Handler) GetAllExposures(w http.ResponseWriter, r *http.Request) {
	exposures, err := h.exposure.GetAllExposures(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"exposures": exposures,
		"count":     len(exposures),
	})
}

// RefreshExposures forces a recomputation of all exposure snapshots
// POST /api/v1/exposure/refresh
func (h *Handler) RefreshExposures(w http.ResponseWriter, r *http.Request) {
	exposures, err := h.exposure.RefreshAll(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"exposures": exposures,
		"count":     len(exposures),
	})
}

// GetExposureWarnings returns only tokens at watch level or above
// GET /api/v1/exposure/warnings
func (h *Handler) GetExposureWarnings(w http.ResponseWriter, r *http.Request) {
	exposures, err := h.exposure.GetTokensWithWarnings(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"exposures": exposures,
		"count":     len(exposures),
	})
}

// GetTokenExposure recomputes the concentration snapshot for one mint
// GET /api/v1/exposure/{mint}
func (h *Handler) GetTokenExposure(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]

	exp, err := h.exposure.ComputeExposure(r.Context(), mint)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, exp)
}

// GetLiquidatorHealth returns the any-one-healthy verdict across all
// registered liquidator instances. 503 when no instance is healthy so the
// endpoint doubles as an alerting probe.
// GET /api/v1/liquidator/health
func (h *Handler) GetLiquidatorHealth(w http.ResponseWriter, r *http.Request) {
	verdict, err := h.health.GetLiquidatorHealth(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	statusCode := http.StatusOK
	if !verdict.Healthy {
		statusCode = http.StatusServiceUnavailable
	}
	h.writeJSON(w, statusCode, verdict)
}

// GetSecurityEvents returns recent entries from the security log
// GET /api/v1/events?limit=50
func (h *Handler) GetSecurityEvents(w http.ResponseWriter, r *http.Request) {
	limit := h.limitParam(r)

	events, err := h.riskRepo.GetEvents(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func (h *Handler) limitParam(r *http.Request) int {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}
	return limit
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, statusCode int, err error) {
	h.log.Error("Request failed", "status", statusCode, "error", err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	})
}
