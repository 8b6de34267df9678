package httpx

import (
	"net/http"
	"strings"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/ariefcatur/beras-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type adminStatusReq struct {
	Status string `json:"status"`
}

type adminStockReq struct {
	Stock *int `json:"stock"`
}

func (s *Server) adminSetOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req adminStatusReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	target := orders.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	out, err := s.Reconciler.SetStatusByAdmin(r.Context(), chi.URLParam(r, "id"), target, middleware.GetReqID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) adminSetStock(w http.ResponseWriter, r *http.Request) {
	var req adminStockReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Stock == nil {
		writeError(w, apperr.Validation("stock is required"))
		return
	}
	p, err := s.Products.SetStock(r.Context(), chi.URLParam(r, "id"), *req.Stock)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
