package handler

import (
	"net/http"

	"github.com/strhma/ukm-catalog/internal/domain/auth"
	"github.com/strhma/ukm-catalog/internal/domain/cart"
	"github.com/strhma/ukm-catalog/internal/domain/order"
)

// cartMutationRequest is the body of POST /api/cart.
type cartMutationRequest struct {
	Action    string `json:"action"`
	ProductID string `json:"productId,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

// cartCountResponse reports the cart size after a mutation.
type cartCountResponse struct {
	Count int `json:"count"`
}

// cartResponse is the full cart snapshot.
type cartResponse struct {
	Items map[string]int `json:"items"`
	Count int            `json:"count"`
}

// GetCart returns the current session cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	items, err := h.carts.Items(r.Context(), session.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, cartResponse{Items: items, Count: items.Count()})
}

// MutateCart handles add/update/remove/clear cart actions, each returning the
// new total item count. Add and update re-check live stock first; the check
// is advisory — checkout performs the authoritative one.
func (h *Handler) MutateCart(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	var req cartMutationRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeErrorMsg(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch req.Action {
	case "add":
		if req.ProductID == "" || req.Quantity < 1 {
			h.writeErrorMsg(w, r, http.StatusBadRequest, "productId and quantity >= 1 are required")
			return
		}
		items, err := h.carts.Items(r.Context(), session.ID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if err := h.checkStock(r, req.ProductID, items[req.ProductID]+req.Quantity); err != nil {
			h.writeError(w, r, err)
			return
		}
		if err := h.carts.Add(r.Context(), session.ID, req.ProductID, req.Quantity); err != nil {
			h.writeError(w, r, err)
			return
		}

	case "update":
		if req.ProductID == "" {
			h.writeErrorMsg(w, r, http.StatusBadRequest, "productId is required")
			return
		}
		if req.Quantity > 0 {
			if err := h.checkStock(r, req.ProductID, req.Quantity); err != nil {
				h.writeError(w, r, err)
				return
			}
		}
		if err := h.carts.Update(r.Context(), session.ID, req.ProductID, req.Quantity); err != nil {
			h.writeError(w, r, err)
			return
		}

	case "remove":
		if req.ProductID == "" {
			h.writeErrorMsg(w, r, http.StatusBadRequest, "productId is required")
			return
		}
		if err := h.carts.Remove(r.Context(), session.ID, req.ProductID); err != nil {
			h.writeError(w, r, err)
			return
		}

	case "clear":
		if err := h.carts.Clear(r.Context(), session.ID); err != nil {
			h.writeError(w, r, err)
			return
		}

	default:
		h.writeErrorMsg(w, r, http.StatusBadRequest, "unknown action: use add, update, remove, or clear")
		return
	}

	count, err := h.carts.TotalItems(r.Context(), session.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, cartCountResponse{Count: count})
}

// checkStock performs the advisory availability check for cart mutations:
// the product must be active and wantQty within current stock.
func (h *Handler) checkStock(r *http.Request, productID string, wantQty int) error {
	_, _, err := order.ValidateStock(r.Context(), h.products, cart.Items{productID: wantQty})
	return err
}
