package carts

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
	"github.com/ThekraQaqish/Quikko-sub000/internal/identity"
)

type Handler struct {
	repo   *CartRepository
	logger *slog.Logger
}

func NewHandler(repo *CartRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	owner, err := identity.FromRequest(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	cart, err := h.repo.Create(r.Context(), owner)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "cart created", "cart_id", cart.ID, "guest", owner.IsGuest())
	h.writeJSON(w, http.StatusCreated, cart)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.ownedCart(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, cart)
}

type addItemRequest struct {
	ProductID string         `json:"product_id"`
	Quantity  int            `json:"quantity"`
	Variant   domain.Variant `json:"variant"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, ok := h.ownedCart(w, r)
	if !ok {
		return
	}

	item, err := h.repo.AddItem(r.Context(), cart.ID, req.ProductID, req.Quantity, req.Variant)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "cart item added",
		"cart_id", cart.ID, "product_id", item.ProductID, "quantity", item.Quantity)
	h.writeJSON(w, http.StatusCreated, item)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart, ok := h.ownedCart(w, r)
	if !ok {
		return
	}

	itemID := r.PathValue("itemId")
	item, err := h.repo.UpdateItemQuantity(r.Context(), cart.ID, itemID, req.Quantity)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if item == nil {
		h.logger.InfoContext(r.Context(), "cart item removed", "cart_id", cart.ID, "item_id", itemID)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.logger.InfoContext(r.Context(), "cart item updated", "cart_id", cart.ID, "item_id", itemID, "quantity", item.Quantity)
	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.ownedCart(w, r)
	if !ok {
		return
	}

	itemID := r.PathValue("itemId")
	if err := h.repo.RemoveItem(r.Context(), cart.ID, itemID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "cart item removed", "cart_id", cart.ID, "item_id", itemID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.ownedCart(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), cart.ID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "cart deleted", "cart_id", cart.ID)
	w.WriteHeader(http.StatusNoContent)
}

// ownedCart loads the cart named in the path and checks it belongs to the
// caller. A cart owned by someone else is reported as not found.
func (h *Handler) ownedCart(w http.ResponseWriter, r *http.Request) (*domain.Cart, bool) {
	owner, err := identity.FromRequest(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return nil, false
	}

	cart, err := h.repo.Get(r.Context(), r.PathValue("id"))
	if err == nil && !cart.Owner.Equal(owner) {
		err = domain.ErrCartNotFound
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return nil, false
	}

	return cart, true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		h.writeError(w, http.StatusBadRequest, err.Error())
	case domain.KindNotFound:
		h.writeError(w, http.StatusNotFound, err.Error())
	case domain.KindConflict:
		h.writeError(w, http.StatusConflict, err.Error())
	case domain.KindPersistence:
		h.logger.WarnContext(r.Context(), "cart request rolled back", "error", err, "transient", domain.IsTransient(err))
		h.writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, retry")
	default:
		h.logger.ErrorContext(r.Context(), "cart request failed", "error", err)
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
