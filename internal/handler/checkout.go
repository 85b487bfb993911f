package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/strhma/ukm-catalog/internal/domain/auth"
	"github.com/strhma/ukm-catalog/internal/domain/order"
	"github.com/strhma/ukm-catalog/internal/domain/shipping"
)

type checkoutRequest struct {
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	Address         string          `json:"address"`
	PaymentMethod   string          `json:"paymentMethod"`
	Notes           string          `json:"notes,omitempty"`
	Courier         string          `json:"courier,omitempty"`
	ShippingService string          `json:"shippingService,omitempty"`
	ShippingCost    decimal.Decimal `json:"shippingCost,omitempty"`
}

type checkoutResponse struct {
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	Total       decimal.Decimal `json:"total"`
}

// Checkout places an order from the session cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	var req checkoutRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeErrorMsg(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.orders.Checkout(r.Context(), order.CheckoutRequest{
		SessionID:     session.ID,
		UserID:        session.UserID,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		Shipping: shipping.Selection{
			Courier: req.Courier,
			Service: req.ShippingService,
			Cost:    req.ShippingCost,
		},
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, checkoutResponse{
		OrderID:     result.OrderID,
		OrderNumber: result.OrderNumber,
		Total:       result.Total,
	})
}
