package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Handler binds the public routes to the backend that owns them. Paths are
// relayed unchanged: the orders service owns carts, checkout, orders and
// vendor decisions, the inventory service owns the product catalogue.
type Handler struct {
	orders    *ServiceProxy
	inventory *ServiceProxy
	logger    *slog.Logger
}

func NewHandler(orders, inventory *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		orders:    orders,
		inventory: inventory,
		logger:    logger,
	}
}

func (h *Handler) Orders() http.HandlerFunc { return h.relayTo(h.orders) }

func (h *Handler) Products() http.HandlerFunc { return h.relayTo(h.inventory) }

func (h *Handler) relayTo(backend *ServiceProxy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status, err := backend.Relay(w, r)
		switch {
		case errors.Is(err, ErrBackendUnreachable):
			h.logger.ErrorContext(ctx, "backend unreachable", "error", err, "backend", backend.Name(), "path", r.URL.Path)
			writeBadGateway(w, backend.Name())
			return
		case err != nil:
			h.logger.WarnContext(ctx, "relay interrupted", "error", err, "backend", backend.Name(), "status", status)
			return
		}
		h.logger.DebugContext(ctx, "relayed",
			"backend", backend.Name(), "method", r.Method, "path", r.URL.Path, "status", status)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeBadGateway(w http.ResponseWriter, backend string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(errorBody{Error: backend + " service unavailable"})
}
