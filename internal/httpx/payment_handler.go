package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/ariefcatur/beras-storefront/internal/payment"
	"github.com/ariefcatur/beras-storefront/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const webhookDedupScope = "webhook"

type createPaymentReq struct {
	OrderID      string           `json:"order_id"`
	CustomerInfo payment.Customer `json:"customer_info"`
}

func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	// provider call bisa lambat, budget lebih longgar dari handler lain
	ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
	defer cancel()

	res, err := s.Payments.Create(ctx, payment.CreateInput{
		UserID:   principal(r).UserID,
		Provider: chi.URLParam(r, "provider"),
		OrderID:  req.OrderID,
		Customer: req.CustomerInfo,
		BaseURL:  s.baseURL(r),
		TraceID:  middleware.GetReqID(r.Context()),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// notification: verifikasi provider, dedup replay byte-identik, lalu apply ke order.
// Replay yang sudah pernah sukses langsung dijawab sukses.
func (s *Server) notification(r *http.Request, provider string, body []byte) error {
	gw, err := s.Gateways.Get(provider)
	if err != nil {
		return apperr.NotFound("provider %s not configured", provider)
	}
	n, err := gw.VerifyCallback(r.Header, body)
	if err != nil {
		s.Metrics.ObserveNotification(provider, "rejected")
		log.Warn().Err(err).Str("provider", provider).Msg("payment notification rejected")
		return err
	}

	ctx := r.Context()
	hash := redisx.BodyHash([]byte(provider), body)
	if !s.Cache.FirstSeen(ctx, webhookDedupScope, hash) {
		s.Metrics.ObserveNotification(provider, "duplicate")
		return nil
	}
	out, err := s.Reconciler.Apply(ctx, provider, n)
	if err != nil {
		// lepas dedup supaya retry dari provider tetap diproses
		s.Cache.Forget(ctx, webhookDedupScope, hash)
		s.Metrics.ObserveNotification(provider, outcomeOf(err))
		log.Warn().Err(err).Str("provider", provider).Str("external_id", n.ExternalRef).Msg("payment notification failed")
		return err
	}
	if out.Changed {
		s.Metrics.ObserveNotification(provider, "applied")
	} else {
		s.Metrics.ObserveNotification(provider, "noop")
	}
	return nil
}

func (s *Server) xenditWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err == nil {
		err = s.notification(r, payment.XenditName, body)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

type dokuAck struct {
	Response dokuAckResponse `json:"response"`
	Status   dokuAckStatus   `json:"status"`
}

type dokuAckResponse struct {
	Result string `json:"result"`
}

type dokuAckStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// dokuNotify: semua response (termasuk error) pakai envelope Doku, retry Doku bergantung pada bentuk ini.
func (s *Server) dokuNotify(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err == nil {
		err = s.notification(r, payment.DokuName, body)
	}
	if err != nil {
		code := apperr.HTTPStatus(err)
		writeJSON(w, code, dokuAck{
			Response: dokuAckResponse{Result: "FAILED"},
			Status:   dokuAckStatus{Code: code, Message: apperr.Message(err)},
		})
		return
	}
	writeJSON(w, http.StatusOK, dokuAck{
		Response: dokuAckResponse{Result: "OK"},
		Status:   dokuAckStatus{Code: http.StatusOK, Message: "success"},
	})
}
