package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router thin wrapper over http.ServeMux.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterTrackingRoutes mounts the tracking API under /tracking/api/v1.
func (r *Router) RegisterTrackingRoutes(h *TrackingHandler) {
	r.Handle("/tracking/api/v1/units", methodOnly(http.MethodGet, h.GetUnits))
	r.Handle("/tracking/api/v1/selection", methodOnly(http.MethodGet, h.GetSelection))
	r.Handle("/tracking/api/v1/selection/toggle", methodOnly(http.MethodPost, h.ToggleSelection))
	r.Handle("/tracking/api/v1/selection/clear", methodOnly(http.MethodPost, h.ClearSelection))
	r.Handle("/tracking/api/v1/map", methodOnly(http.MethodGet, h.GetMap))
}

// RegisterHealthRoute mounts GET /health.
func (r *Router) RegisterHealthRoute(h *TrackingHandler) {
	r.Handle("/health", methodOnly(http.MethodGet, h.Health))
}
