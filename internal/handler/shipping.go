package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/strhma/ukm-catalog/internal/domain/shipping"
)

type shippingCostRequest struct {
	DestinationCityID string `json:"destinationCityId"`
	WeightGrams       int    `json:"weightGrams"`
	Courier           string `json:"courier,omitempty"`
}

type shippingQuoteResponse struct {
	Courier     string          `json:"courier"`
	Service     string          `json:"service"`
	Description string          `json:"description,omitempty"`
	Cost        decimal.Decimal `json:"cost"`
	ETA         string          `json:"eta,omitempty"`
}

// ShippingCost quotes delivery rates for a destination. When no courier is
// given, all configured couriers are queried.
func (h *Handler) ShippingCost(w http.ResponseWriter, r *http.Request) {
	if h.rates == nil {
		h.writeErrorMsg(w, r, http.StatusServiceUnavailable, "shipping rates are not configured")
		return
	}

	var req shippingCostRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeErrorMsg(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.DestinationCityID == "" || req.WeightGrams < 1 {
		h.writeErrorMsg(w, r, http.StatusBadRequest, "destinationCityId and weightGrams >= 1 are required")
		return
	}

	var (
		quotes []shipping.Quote
		err    error
	)
	if req.Courier != "" {
		quotes, err = h.rates.Cost(r.Context(), req.DestinationCityID, req.WeightGrams, req.Courier)
	} else {
		quotes, err = h.rates.CostAll(r.Context(), req.DestinationCityID, req.WeightGrams, h.cfg.Couriers)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]shippingQuoteResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, shippingQuoteResponse{
			Courier:     q.Courier,
			Service:     q.Service,
			Description: q.Description,
			Cost:        q.Cost,
			ETA:         q.ETA,
		})
	}
	h.writeJSON(w, r, http.StatusOK, out)
}
