package orders

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
	"github.com/ThekraQaqish/Quikko-sub000/internal/identity"
)

type Handler struct {
	checkout  *Checkout
	decisions *Decisions
	projector *Projector
	repo      *OrderRepository
	logger    *slog.Logger
}

func NewHandler(checkout *Checkout, decisions *Decisions, projector *Projector, repo *OrderRepository, logger *slog.Logger) *Handler {
	return &Handler{
		checkout:  checkout,
		decisions: decisions,
		projector: projector,
		repo:      repo,
		logger:    logger,
	}
}

type checkoutRequest struct {
	CartID          string             `json:"cart_id"`
	ShippingAddress domain.Address     `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method"`
	Payment         domain.PaymentData `json:"payment"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.FromRequest(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payment, err := domain.NormalizePayment(req.PaymentMethod, req.Payment)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	order, err := h.checkout.Place(r.Context(), CheckoutRequest{
		CartID:  req.CartID,
		Caller:  caller,
		Address: req.ShippingAddress,
		Payment: payment,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.FromRequest(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	orders, err := h.repo.ListByCustomer(r.Context(), caller)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.FromRequest(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	id := r.PathValue("id")
	order, err := h.repo.GetByID(r.Context(), id)
	if err == nil && !order.Customer.Equal(caller) {
		err = domain.ErrOrderNotFound
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "order retrieved", "order_id", order.ID)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleStatusView(w http.ResponseWriter, r *http.Request) {
	view, err := h.projector.View(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.repo.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if err := h.projector.Invalidate(r.Context(), order.ID); err != nil {
		h.logger.WarnContext(r.Context(), "failed to invalidate status view", "error", err, "order_id", order.ID)
	}

	h.logger.InfoContext(r.Context(), "order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.UserID(r)
	if !ok {
		h.writeDomainError(w, r, domain.ErrMissingOwner)
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.decisions.Decide(r.Context(), r.PathValue("id"), userID, req.Decision)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

// writeDomainError maps an error kind onto an HTTP status. Persistence
// failures roll back completely and are reported as retryable.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		h.writeError(w, http.StatusBadRequest, err.Error())
	case domain.KindNotFound:
		h.writeError(w, http.StatusNotFound, err.Error())
	case domain.KindConflict:
		h.writeError(w, http.StatusConflict, err.Error())
	case domain.KindPersistence:
		h.logger.WarnContext(r.Context(), "request rolled back", "error", err, "transient", domain.IsTransient(err))
		if domain.IsTransient(err) {
			w.Header().Set("Retry-After", "1")
		}
		h.writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, retry")
	default:
		h.logger.ErrorContext(r.Context(), "request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
