// Package emulator serves the mobile network control-plane API: edge
// application management, mobility reads, the tick endpoint, and the
// exposure surface. One server owns the whole simulation state.
package emulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Frixxie/mobile-network-emulator/internal/edge"
	"github.com/Frixxie/mobile-network-emulator/internal/exposure"
	"github.com/Frixxie/mobile-network-emulator/internal/mobilenet"
)

// ErrorResponse is the JSON body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Handler owns the two state locks. The mobility lock guards the core, the
// network lock guards the edge network; a tick writes both, so it always
// takes mobility before network.
type Handler struct {
	log   *slog.Logger
	cfg   Config
	fatal func(error)

	mobilityMu sync.RWMutex
	networkMu  sync.RWMutex
}

func NewHandler(log *slog.Logger, cfg Config, fatal func(error)) (*Handler, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if fatal == nil {
		return nil, errors.New("fatal callback is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("handler config validation failed: %w", err)
	}
	return &Handler{log: log, cfg: cfg, fatal: fatal}, nil
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /network/edge_data_centers", h.listDataCenters)
	mux.HandleFunc("GET /network/edge_data_centers/{edc_id}/applications", h.listApplications)
	mux.HandleFunc("POST /network/edge_data_centers/{edc_id}/applications/{app_id}", h.addApplication)
	mux.HandleFunc("DELETE /network/edge_data_centers/{edc_id}/applications/{app_id}", h.removeApplication)
	mux.HandleFunc("GET /network/edge_data_centers/{edc_id}/applications/{app_id}/total_usages", h.totalUsages)
	mux.HandleFunc("GET /network/edge_data_centers/{edc_id}/applications/{app_id}/usages", h.usages)
	mux.HandleFunc("GET /mobile_network/users", h.listUsers)
	mux.HandleFunc("GET /mobile_network/connected_users", h.listConnectedUsers)
	mux.HandleFunc("GET /mobile_network/rans", h.listRans)
	mux.HandleFunc("POST /mobile_network/update_user_positions", h.updateUserPositions)
	mux.HandleFunc("GET /mobile_network_exposure/events", h.listEvents)
	mux.HandleFunc("GET /mobile_network_exposure/subscribers", h.listSubscribers)
	mux.HandleFunc("POST /mobile_network_exposure/subscribers", h.addSubscriber)
	mux.HandleFunc("POST /mobile_network_exposure/events/publish", h.publishEvents)
	mux.HandleFunc("GET /healthz", h.healthz)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeJSONError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg, Code: status})
}

func (h *Handler) writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// pathID parses the named path wildcard as a uint32. A false return means a
// 400 has already been written.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uint32, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 32)
	if err != nil {
		h.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: %v", name, err))
		return 0, false
	}
	return uint32(id), true
}

func (h *Handler) listDataCenters(w http.ResponseWriter, r *http.Request) {
	h.networkMu.RLock()
	defer h.networkMu.RUnlock()
	h.writeJSON(w, http.StatusOK, h.cfg.Network.DataCenters())
}

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	edcID, ok := h.pathID(w, r, "edc_id")
	if !ok {
		return
	}
	h.networkMu.RLock()
	defer h.networkMu.RUnlock()
	dc, err := h.cfg.Network.DataCenter(edcID)
	if err != nil {
		h.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, dc.Applications())
}

func (h *Handler) addApplication(w http.ResponseWriter, r *http.Request) {
	edcID, ok := h.pathID(w, r, "edc_id")
	if !ok {
		return
	}
	appID, ok := h.pathID(w, r, "app_id")
	if !ok {
		return
	}
	h.networkMu.Lock()
	defer h.networkMu.Unlock()
	dc, err := h.cfg.Network.DataCenter(edcID)
	if err != nil {
		h.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := dc.AddApplication(appID); err != nil {
		h.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.log.Info("application added", "edc", edcID, "app", appID)
	h.writeText(w, http.StatusOK, strconv.FormatUint(uint64(appID), 10))
}

func (h *Handler) removeApplication(w http.ResponseWriter, r *http.Request) {
	edcID, ok := h.pathID(w, r, "edc_id")
	if !ok {
		return
	}
	appID, ok := h.pathID(w, r, "app_id")
	if !ok {
		return
	}
	h.networkMu.Lock()
	defer h.networkMu.Unlock()
	dc, err := h.cfg.Network.DataCenter(edcID)
	if err != nil {
		h.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := dc.RemoveApplication(appID); err != nil {
		h.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.log.Info("application removed", "edc", edcID, "app", appID)
	h.writeText(w, http.StatusOK, "OK")
}

func (h *Handler) totalUsages(w http.ResponseWriter, r *http.Request) {
	edcID, ok := h.pathID(w, r, "edc_id")
	if !ok {
		return
	}
	appID, ok := h.pathID(w, r, "app_id")
	if !ok {
		return
	}
	h.networkMu.RLock()
	defer h.networkMu.RUnlock()
	total, err := h.cfg.Network.TotalUses(edcID, appID)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, total)
	case errors.Is(err, edge.ErrDataCenterNotFound), errors.Is(err, edge.ErrApplicationNotFound):
		h.writeJSONError(w, http.StatusNotFound, err.Error())
	default:
		h.writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) usages(w http.ResponseWriter, r *http.Request) {
	edcID, ok := h.pathID(w, r, "edc_id")
	if !ok {
		return
	}
	appID, ok := h.pathID(w, r, "app_id")
	if !ok {
		return
	}
	h.networkMu.RLock()
	defer h.networkMu.RUnlock()
	dc, err := h.cfg.Network.DataCenter(edcID)
	if err != nil {
		h.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	usage, err := dc.Usage(appID)
	if err != nil {
		h.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, usage)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	h.mobilityMu.RLock()
	defer h.mobilityMu.RUnlock()
	h.writeJSON(w, http.StatusOK, h.cfg.Core.Users())
}

func (h *Handler) listConnectedUsers(w http.ResponseWriter, r *http.Request) {
	h.mobilityMu.RLock()
	defer h.mobilityMu.RUnlock()
	h.writeJSON(w, http.StatusOK, h.cfg.Core.ConnectedUsers())
}

func (h *Handler) listRans(w http.ResponseWriter, r *http.Request) {
	h.mobilityMu.RLock()
	defer h.mobilityMu.RUnlock()
	h.writeJSON(w, http.StatusOK, h.cfg.Core.Rans())
}

func (h *Handler) updateUserPositions(w http.ResponseWriter, r *http.Request) {
	h.mobilityMu.Lock()
	defer h.mobilityMu.Unlock()
	h.networkMu.Lock()
	defer h.networkMu.Unlock()

	started := time.Now()
	err := h.cfg.Core.Tick(r.Context(), h.cfg.Network, h.cfg.Store)
	TickDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		TicksTotal.WithLabelValues("error").Inc()
		if errors.Is(err, mobilenet.ErrInvariant) {
			h.log.Error("simulation invariant violated, shutting down", "error", err)
			h.fatal(err)
		} else {
			h.log.Error("tick failed", "error", err)
		}
		h.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	TicksTotal.WithLabelValues("ok").Inc()
	ConnectedUsers.Set(float64(len(h.cfg.Core.ConnectedUsers())))
	h.writeText(w, http.StatusOK, "OK")
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.cfg.Store.ScanEvents(r.Context())
	if err != nil {
		h.log.Error("event scan failed", "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, events)
}

func (h *Handler) listSubscribers(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.cfg.Bus.Subscribers())
}

func (h *Handler) addSubscriber(w http.ResponseWriter, r *http.Request) {
	var sub exposure.Subscriber
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.cfg.Bus.AddSubscriber(sub); err != nil {
		h.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeText(w, http.StatusOK, "OK")
}

func (h *Handler) publishEvents(w http.ResponseWriter, r *http.Request) {
	delivered, err := h.cfg.Bus.Publish(r.Context(), h.cfg.Store)
	if err != nil {
		PublishErrorsTotal.Inc()
		h.log.Error("publish failed", "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	PublishedEventsTotal.Add(float64(delivered))
	h.writeText(w, http.StatusOK, "OK")
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
