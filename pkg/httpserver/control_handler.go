package httpserver

import (
	"context"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/cycle-arb/internal/engine"
	"github.com/mselser95/cycle-arb/internal/venue"
	"github.com/mselser95/cycle-arb/pkg/types"
	"go.uber.org/zap"
)

// Controller is the operator surface of the engine. *engine.Engine satisfies it.
type Controller interface {
	Status() engine.Status
	Pause()
	Resume()
	ResetEmergencyStop()
	ResetBreaker()
}

// VenueReporter reports venue health. *venue.Registry satisfies it.
type VenueReporter interface {
	HealthAll(ctx context.Context) []venue.Health
}

// PriceReporter exposes the current price snapshot. *pricecache.Cache satisfies it.
type PriceReporter interface {
	Snapshot(now time.Time) (types.Snapshot, error)
}

// ControlHandler serves the /api routes.
type ControlHandler struct {
	controller Controller
	venues     VenueReporter
	prices     PriceReporter
	logger     *zap.Logger
}

// NewControlHandler creates a control handler. venues and prices may be nil.
func NewControlHandler(controller Controller, venues VenueReporter, prices PriceReporter, logger *zap.Logger) *ControlHandler {
	return &ControlHandler{
		controller: controller,
		venues:     venues,
		prices:     prices,
		logger:     logger,
	}
}

// ActionResponse acknowledges a control action.
type ActionResponse struct {
	Action string        `json:"action"`
	Status engine.Status `json:"status"`
}

// PriceResponse is one sample in the /api/prices listing.
type PriceResponse struct {
	Key   string            `json:"key"`
	Age   string            `json:"age"`
	Quote types.PriceSample `json:"sample"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleStatus handles GET /api/status.
func (h *ControlHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.controller.Status())
}

// HandlePause handles POST /api/pause.
func (h *ControlHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.controller.Pause()
	h.ack(w, "pause")
}

// HandleResume handles POST /api/resume.
func (h *ControlHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.controller.Resume()
	h.ack(w, "resume")
}

// HandleResetEmergencyStop handles POST /api/emergency-stop/reset.
func (h *ControlHandler) HandleResetEmergencyStop(w http.ResponseWriter, r *http.Request) {
	h.controller.ResetEmergencyStop()
	h.ack(w, "emergency-stop-reset")
}

// HandleResetBreaker handles POST /api/breaker/reset.
func (h *ControlHandler) HandleResetBreaker(w http.ResponseWriter, r *http.Request) {
	h.controller.ResetBreaker()
	h.ack(w, "breaker-reset")
}

// HandleVenues handles GET /api/venues.
func (h *ControlHandler) HandleVenues(w http.ResponseWriter, r *http.Request) {
	if h.venues == nil {
		h.writeError(w, "venue registry not configured", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, h.venues.HealthAll(r.Context()))
}

// HandlePrices handles GET /api/prices?asset=<asset>.
func (h *ControlHandler) HandlePrices(w http.ResponseWriter, r *http.Request) {
	if h.prices == nil {
		h.writeError(w, "price cache not configured", http.StatusNotFound)
		return
	}

	now := time.Now()
	snap, err := h.prices.Snapshot(now)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	asset := r.URL.Query().Get("asset")
	out := make([]PriceResponse, 0, len(snap.Samples))
	for _, s := range snap.Sorted() {
		if asset != "" && s.Asset != asset {
			continue
		}
		out = append(out, PriceResponse{Key: s.Key(), Age: s.Age(now).String(), Quote: s})
	}

	h.writeJSON(w, http.StatusOK, out)
}

func (h *ControlHandler) ack(w http.ResponseWriter, action string) {
	h.logger.Info("control-action", zap.String("action", action))
	h.writeJSON(w, http.StatusOK, ActionResponse{Action: action, Status: h.controller.Status()})
}

func (h *ControlHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *ControlHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	h.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
