package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/ariefcatur/beras-storefront/internal/auth"
	"github.com/ariefcatur/beras-storefront/internal/config"
	"github.com/ariefcatur/beras-storefront/internal/metrics"
	"github.com/ariefcatur/beras-storefront/internal/payment"
	"github.com/ariefcatur/beras-storefront/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// Server menampung dependency semua handler. Field interface supaya handler bisa dites tanpa DB.
type Server struct {
	Tokens     *auth.Tokens
	Users      UserStore
	Checkout   Checkouter
	Orders     OrderStore
	Products   ProductStore
	Addresses  AddressStore
	Payments   PaymentCreator
	Gateways   *payment.Registry
	Reconciler Reconciler
	Cache      redisx.Cache
	Metrics    *metrics.ServerMetrics

	// BaseURL kosong = fallback ke Host header request.
	BaseURL      string
	SecureCookie bool
}

func NewRouter(m *metrics.ServerMetrics) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)
	if m != nil {
		r.Use(m.Middleware)
	}
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}

func (s *Server) Register(r chi.Router) {
	session := auth.Required(s.Tokens, writeError)

	r.Post("/auth/register", s.register)
	r.Post("/auth/login", s.login)
	r.Post("/auth/logout", s.logout)
	r.Get("/products", s.listProducts)

	// provider callbacks: autentikasi lewat token/signature, bukan session
	r.Post("/payment/xendit/webhook", s.xenditWebhook)
	r.Post("/payment/doku/notify", s.dokuNotify)

	r.Group(func(r chi.Router) {
		r.Use(session)
		r.Post("/checkout", s.checkout)
		r.Get("/orders", s.listOrders)
		r.Get("/orders/{id}", s.getOrder)
		r.Get("/orders/{id}/status", s.getOrderStatus)

		r.Get("/addresses", s.listAddresses)
		r.Post("/addresses", s.createAddress)
		r.Put("/addresses/{id}", s.updateAddress)
		r.Delete("/addresses/{id}", s.deleteAddress)
		r.Post("/addresses/{id}/default", s.setDefaultAddress)

		r.Post("/payment/{provider}/create", s.createPayment)
	})

	r.Group(func(r chi.Router) {
		r.Use(session, auth.RoleRequired(writeError, auth.RoleAdmin))
		r.Patch("/admin/orders/{id}/status", s.adminSetOrderStatus)
		r.Patch("/admin/products/{id}/stock", s.adminSetStock)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := log.Info()
		if status >= 500 {
			ev = log.Error()
		}
		ev.Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := apperr.HTTPStatus(err)
	if code >= 500 {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, code, map[string]string{"error": apperr.Message(err)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("invalid json")
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, apperr.Validation("unreadable body")
	}
	return body, nil
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

// baseURL: config (APP_BASE_URL / VERCEL_URL) -> Host header -> localhost.
func (s *Server) baseURL(r *http.Request) string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	if r.Host == "" {
		return config.DefaultBaseURL
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
