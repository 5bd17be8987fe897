package http

import (
	"log/slog"
	"net/http"

	"github.com/pbengoa/Tourline-front-sub001/internal/domain"
	"github.com/pbengoa/Tourline-front-sub001/pkg/httputil"
)

// ConnectivityHandler handles the /v1/connectivity and /v1/lifecycle endpoints.
type ConnectivityHandler struct {
	monitor   ConnectivityService
	lifecycle Lifecycle
	logger    *slog.Logger
}

// NewConnectivityHandler creates a connectivity HTTP handler.
func NewConnectivityHandler(monitor ConnectivityService, lifecycle Lifecycle, logger *slog.Logger) *ConnectivityHandler {
	return &ConnectivityHandler{monitor: monitor, lifecycle: lifecycle, logger: logger}
}

type connectivityView struct {
	Network    domain.NetworkState `json:"network"`
	IsOffline  bool                `json:"isOffline"`
	QueueDepth int                 `json:"queueDepth"`
	AppState   domain.AppState     `json:"appState"`
}

func (h *ConnectivityHandler) view(state domain.NetworkState) connectivityView {
	return connectivityView{
		Network:    state,
		IsOffline:  state.IsOffline(),
		QueueDepth: h.monitor.QueueLen(),
		AppState:   h.lifecycle.State(),
	}
}

// Get handles GET /v1/connectivity
func (h *ConnectivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.view(h.monitor.State()))
}

// Check handles POST /v1/connectivity/check. A failed probe keeps the last
// known state and is reported as a network error.
func (h *ConnectivityHandler) Check(w http.ResponseWriter, r *http.Request) {
	state, err := h.monitor.CheckNow(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "connectivity check failed", slog.String("error", err.Error()))
	}
	httputil.WriteData(w, http.StatusOK, h.view(state))
}

// Foreground handles POST /v1/lifecycle/foreground
func (h *ConnectivityHandler) Foreground(w http.ResponseWriter, r *http.Request) {
	h.lifecycle.Foreground()
	httputil.WriteData(w, http.StatusOK, h.view(h.monitor.State()))
}

// Background handles POST /v1/lifecycle/background
func (h *ConnectivityHandler) Background(w http.ResponseWriter, r *http.Request) {
	h.lifecycle.Background()
	httputil.WriteData(w, http.StatusOK, h.view(h.monitor.State()))
}
