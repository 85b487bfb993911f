// Package handler exposes the storefront JSON API over net/http.
package handler

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/strhma/ukm-catalog/internal/domain/activity"
	"github.com/strhma/ukm-catalog/internal/domain/cart"
	"github.com/strhma/ukm-catalog/internal/domain/order"
	"github.com/strhma/ukm-catalog/internal/domain/product"
	"github.com/strhma/ukm-catalog/internal/domain/shipping"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// DevMode exposes internal error detail in responses. Never enable it in
	// production: there failures surface as a generic message and the detail
	// goes to the server log only.
	DevMode bool
	// Couriers is the courier list queried when a shipping cost request does
	// not name one.
	Couriers []string
}

// Handler serves the storefront API, delegating business logic to the
// injected domain services and repositories.
type Handler struct {
	cfg      Config
	products product.Repository
	carts    cart.Store
	orders   *order.Service
	rates    shipping.Provider
	acts     activity.Recorder
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	products product.Repository,
	carts cart.Store,
	orders *order.Service,
	rates shipping.Provider,
	acts activity.Recorder,
) *Handler {
	return &Handler{
		cfg:      cfg,
		products: products,
		carts:    carts,
		orders:   orders,
		rates:    rates,
		acts:     acts,
	}
}

// Register mounts all API routes on mux. auth wraps the routes that need a
// valid session; admin additionally requires the admin scope.
func (h *Handler) Register(mux *http.ServeMux, auth, admin func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.Handle("GET /api/cart", auth(http.HandlerFunc(h.GetCart)))
	mux.Handle("POST /api/cart", auth(http.HandlerFunc(h.MutateCart)))
	mux.Handle("POST /api/checkout", auth(http.HandlerFunc(h.Checkout)))
	mux.Handle("POST /api/shipping/cost", auth(http.HandlerFunc(h.ShippingCost)))

	mux.Handle("GET /api/admin/orders/{id}", admin(http.HandlerFunc(h.GetOrder)))
	mux.Handle("POST /api/admin/orders/{id}/status", admin(http.HandlerFunc(h.UpdateOrderStatus)))
	mux.Handle("POST /api/admin/products", admin(http.HandlerFunc(h.CreateProduct)))
	mux.Handle("PUT /api/admin/products/{id}", admin(http.HandlerFunc(h.UpdateProduct)))
}

// errorResponse is the uniform error payload.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("Encode response", zap.Error(err))
	}
}

func (h *Handler) writeErrorMsg(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, r, status, errorResponse{Code: status, Message: msg})
}

// writeError maps a domain error onto the HTTP failure taxonomy.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch e := err.(type) {
	case *order.ValidationError:
		h.writeErrorMsg(w, r, http.StatusBadRequest, e.Error())
		return
	case *order.InsufficientStockError:
		h.writeJSON(w, r, http.StatusConflict, stockErrorResponse{
			Code:      http.StatusConflict,
			Message:   e.Error(),
			ProductID: e.ProductID,
			Product:   e.ProductName,
			Available: e.Available,
			Requested: e.Requested,
		})
		return
	case *order.ProductUnavailableError:
		h.writeErrorMsg(w, r, http.StatusUnprocessableEntity, e.Error())
		return
	case *order.InvalidTransitionError:
		h.writeErrorMsg(w, r, http.StatusConflict, e.Error())
		return
	case *order.PersistenceError:
		zctx.From(r.Context()).Error("Persistence failure", zap.Error(e))
		if h.cfg.DevMode {
			h.writeErrorMsg(w, r, http.StatusInternalServerError, e.Error())
			return
		}
		h.writeErrorMsg(w, r, http.StatusInternalServerError, "internal error, please retry")
		return
	}

	switch err {
	case order.ErrNotAuthenticated:
		h.writeErrorMsg(w, r, http.StatusUnauthorized, "authentication required")
	case order.ErrNotAuthorized:
		h.writeErrorMsg(w, r, http.StatusForbidden, "admin access required")
	case order.ErrNotFound:
		h.writeErrorMsg(w, r, http.StatusNotFound, "order not found")
	case order.ErrUnknownStatus:
		h.writeErrorMsg(w, r, http.StatusBadRequest, "unknown order status")
	case product.ErrNotFound:
		h.writeErrorMsg(w, r, http.StatusNotFound, "product not found")
	case shipping.ErrNoRates:
		h.writeErrorMsg(w, r, http.StatusNotFound, "no shipping rates available for this destination")
	default:
		zctx.From(r.Context()).Error("Unexpected failure", zap.Error(err))
		if h.cfg.DevMode {
			h.writeErrorMsg(w, r, http.StatusInternalServerError, err.Error())
			return
		}
		h.writeErrorMsg(w, r, http.StatusInternalServerError, "internal error, please retry")
	}
}

// stockErrorResponse carries the actionable detail for stock failures: the
// offending product and available vs requested quantities.
type stockErrorResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	ProductID string `json:"productId"`
	Product   string `json:"product"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

// decodeBody parses a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// clientIP extracts the remote address without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
