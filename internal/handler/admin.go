package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/strhma/ukm-catalog/internal/domain/activity"
	"github.com/strhma/ukm-catalog/internal/domain/auth"
	"github.com/strhma/ukm-catalog/internal/domain/order"
	"github.com/strhma/ukm-catalog/internal/domain/product"
)

type orderItemResponse struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"orderNumber"`
	Status          string              `json:"status"`
	Total           decimal.Decimal     `json:"total"`
	PaymentMethod   string              `json:"paymentMethod"`
	ShippingAddress string              `json:"shippingAddress"`
	Courier         string              `json:"courier,omitempty"`
	ShippingService string              `json:"shippingService,omitempty"`
	ShippingCost    decimal.Decimal     `json:"shippingCost"`
	Notes           string              `json:"notes,omitempty"`
	Items           []orderItemResponse `json:"items"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		}
	}
	return orderResponse{
		ID:              o.ID,
		OrderNumber:     o.Number,
		Status:          string(o.Status),
		Total:           o.Total,
		PaymentMethod:   o.PaymentMethod,
		ShippingAddress: o.ShippingAddress,
		Courier:         o.Courier,
		ShippingService: o.ShippingService,
		ShippingCost:    o.ShippingCost,
		Notes:           o.Notes,
		Items:           items,
	}
}

// GetOrder returns a full order with its lines.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus moves an order through its lifecycle state machine.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	var req statusUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeErrorMsg(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), order.StatusUpdateRequest{
		ActorID:   session.UserID,
		OrderID:   r.PathValue("id"),
		Status:    order.Status(req.Status),
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

type productWriteRequest struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Status      string          `json:"status"`
	WeightGrams int             `json:"weightGrams"`
}

func (req productWriteRequest) validate() string {
	switch {
	case req.Name == "":
		return "name is required"
	case req.Price.IsNegative():
		return "price must not be negative"
	case req.Stock < 0:
		return "stock must not be negative"
	case req.Status != "" && !product.Status(req.Status).Valid():
		return "status must be active or inactive"
	case req.WeightGrams < 0:
		return "weightGrams must not be negative"
	}
	return ""
}

// CreateProduct adds a catalog product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	var req productWriteRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeErrorMsg(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		h.writeErrorMsg(w, r, http.StatusBadRequest, msg)
		return
	}

	status := product.Status(req.Status)
	if req.Status == "" {
		status = product.StatusActive
	}
	p := product.Product{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Price:       req.Price,
		Stock:       req.Stock,
		Status:      status,
		WeightGrams: req.WeightGrams,
	}
	if err := h.products.Create(r.Context(), &p); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recordProductActivity(r, session.UserID, activity.ActionProductCreated,
		fmt.Sprintf("Created product %q (%s)", p.Name, p.ID))
	h.writeJSON(w, r, http.StatusCreated, toProductResponse(p))
}

// UpdateProduct replaces the mutable fields of an existing product.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	var req productWriteRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeErrorMsg(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		h.writeErrorMsg(w, r, http.StatusBadRequest, msg)
		return
	}
	if req.Status == "" {
		h.writeErrorMsg(w, r, http.StatusBadRequest, "status must be active or inactive")
		return
	}

	p := product.Product{
		ID:          r.PathValue("id"),
		Name:        req.Name,
		Price:       req.Price,
		Stock:       req.Stock,
		Status:      product.Status(req.Status),
		WeightGrams: req.WeightGrams,
	}
	if err := h.products.Update(r.Context(), &p); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recordProductActivity(r, session.UserID, activity.ActionProductUpdated,
		fmt.Sprintf("Updated product %q (%s)", p.Name, p.ID))
	h.writeJSON(w, r, http.StatusOK, toProductResponse(p))
}

// recordProductActivity appends an audit entry best effort: a failed append
// is logged, never surfaced to the admin.
func (h *Handler) recordProductActivity(r *http.Request, userID, action, details string) {
	err := h.acts.Append(r.Context(), activity.Entry{
		UserID:    userID,
		Action:    action,
		Details:   details,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		zctx.From(r.Context()).Warn("Activity append failed", zap.Error(err))
	}
}
