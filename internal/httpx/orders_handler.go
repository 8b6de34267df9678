package httpx

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/ariefcatur/beras-storefront/internal/auth"
	"github.com/ariefcatur/beras-storefront/internal/checkout"
	"github.com/ariefcatur/beras-storefront/internal/orders"
	"github.com/ariefcatur/beras-storefront/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type checkoutReq struct {
	Items             []checkout.ItemInput   `json:"items"`
	PaymentMethod     string                 `json:"payment_method"`
	ShippingCostCents int64                  `json:"shipping_cost_cents"`
	AddressID         string                 `json:"address_id"`
	CustomerInfo      *checkout.CustomerInfo `json:"customer_info"`
}

type checkoutResp struct {
	Order      orders.OrderWithItems `json:"order"`
	Address    any                   `json:"address,omitempty"`
	Idempotent bool                  `json:"idempotent,omitempty"`
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := s.Products.ListProducts(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	p := principal(r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Fast-path idempotency via Redis: retry dengan Idempotency-Key yang sama dapat order yang sama
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if id, ok := s.Cache.IdempotentOrder(ctx, p.UserID, idemKey); ok {
		o, err := s.Orders.GetWithItems(ctx, id)
		if err == nil && o.OwnedBy(p.UserID) {
			writeJSON(w, http.StatusOK, checkoutResp{Order: o, Idempotent: true})
			return
		}
	}

	res, err := s.Checkout.Checkout(ctx, checkout.Input{
		UserID:            p.UserID,
		Items:             req.Items,
		PaymentMethod:     req.PaymentMethod,
		ShippingCostCents: req.ShippingCostCents,
		AddressID:         req.AddressID,
		CustomerInfo:      req.CustomerInfo,
		TraceID:           middleware.GetReqID(r.Context()),
	})
	if err != nil {
		s.Metrics.ObserveCheckout(outcomeOf(err))
		writeError(w, err)
		return
	}
	s.Metrics.ObserveCheckout("created")

	s.Cache.RememberOrder(ctx, p.UserID, idemKey, res.Order.ID)
	s.Cache.SetStatus(ctx, res.Order.ID, redisx.StatusEntry{Status: string(res.Order.Status), Owner: p.UserID})

	writeJSON(w, http.StatusCreated, checkoutResp{
		Order:   orders.OrderWithItems{Order: res.Order, Items: res.Items},
		Address: res.Address,
	})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := s.Orders.ListByUser(ctx, principal(r).UserID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := s.Orders.GetWithItems(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !canSee(principal(r), o.Order) {
		writeError(w, apperr.NotFound("order %s not found", orderID))
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type statusResp struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

func (s *Server) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	p := principal(r)
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if e, ok := s.Cache.GetStatus(ctx, orderID); ok && (e.Owner == p.UserID || p.Role == auth.RoleAdmin) {
		writeJSON(w, http.StatusOK, statusResp{OrderID: orderID, Status: e.Status, PaymentStatus: e.PaymentStatus})
		return
	}

	// 2) fallback DB
	o, err := s.Orders.Lookup(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !canSee(p, o) {
		writeError(w, apperr.NotFound("order %s not found", orderID))
		return
	}
	s.Cache.SetStatus(ctx, o.ID, redisx.StatusEntry{Status: string(o.Status), PaymentStatus: o.Payment.Status, Owner: o.Owner()})
	writeJSON(w, http.StatusOK, statusResp{OrderID: o.ID, Status: string(o.Status), PaymentStatus: o.Payment.Status})
}

// canSee: order milik orang lain dijawab 404 (bukan 403) supaya id tidak bisa ditebak.
func canSee(p auth.Principal, o orders.Order) bool {
	return o.OwnedBy(p.UserID) || p.Role == auth.RoleAdmin
}

func outcomeOf(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "invalid"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindConflict:
		return "conflict"
	case apperr.KindUnauthorized, apperr.KindForbidden:
		return "unauthorized"
	case apperr.KindProvider:
		return "provider_error"
	default:
		return "error"
	}
}
