package payment

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/rs/zerolog/log"
)

const (
	XenditName = "xendit"

	// minimal invoice Xendit dalam rupiah utuh
	XenditMinAmount = 10000

	minPhoneDigits = 8
)

type Xendit struct {
	SecretKey     string
	CallbackToken string
	BaseURL       string
	InvoiceTTL    time.Duration
	HTTP          *http.Client
	Now           func() time.Time
}

func (x *Xendit) Name() string { return XenditName }

// ---- payload invoice (omitempty = field kosong tidak dikirim) ----

type xenditAddress struct {
	StreetLine1 string `json:"street_line1,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	Country     string `json:"country,omitempty"`
}

type xenditCustomer struct {
	GivenNames   string          `json:"given_names,omitempty"`
	Surname      string          `json:"surname,omitempty"`
	Email        string          `json:"email,omitempty"`
	MobileNumber string          `json:"mobile_number,omitempty"`
	Addresses    []xenditAddress `json:"addresses,omitempty"`
}

type xenditItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
	URL      string `json:"url,omitempty"`
}

type xenditFee struct {
	Type  string `json:"type"`
	Value int64  `json:"value"`
}

type xenditInvoiceReq struct {
	ExternalID         string          `json:"external_id"`
	Amount             int64           `json:"amount"`
	PayerEmail         string          `json:"payer_email,omitempty"`
	Description        string          `json:"description,omitempty"`
	InvoiceDuration    int64           `json:"invoice_duration,omitempty"`
	Currency           string          `json:"currency,omitempty"`
	Customer           *xenditCustomer `json:"customer,omitempty"`
	Items              []xenditItem    `json:"items,omitempty"`
	Fees               []xenditFee     `json:"fees,omitempty"`
	SuccessRedirectURL string          `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string          `json:"failure_redirect_url,omitempty"`
}

type xenditInvoiceResp struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Status     string    `json:"status"`
	InvoiceURL string    `json:"invoice_url"`
	ExpiryDate time.Time `json:"expiry_date"`
}

type xenditError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// buildInvoice menyusun request invoice. Validasi yang gagal di sini terjadi sebelum call ke provider.
func (x *Xendit) buildInvoice(req PaymentRequest, now time.Time) (xenditInvoiceReq, error) {
	amount := ToWholeUnits(req.Order.TotalCents)
	if amount < XenditMinAmount {
		return xenditInvoiceReq{}, apperr.Validation("minimum payment amount is %d", XenditMinAmount)
	}
	email := strings.TrimSpace(req.Customer.Email)
	if email == "" {
		return xenditInvoiceReq{}, apperr.Validation("customer email is required")
	}

	given, surname := splitName(req.Customer.Name)
	if given == "" {
		given = strings.SplitN(email, "@", 2)[0]
	}
	cust := &xenditCustomer{GivenNames: given, Surname: surname, Email: email}
	if phone := digitsOnly(req.Customer.Phone); len(phone) >= minPhoneDigits {
		cust.MobileNumber = phone
	}
	if a := strings.TrimSpace(req.Customer.Address); a != "" {
		cust.Addresses = []xenditAddress{{
			StreetLine1: a,
			City:        strings.TrimSpace(req.Customer.City),
			PostalCode:  strings.TrimSpace(req.Customer.PostalCode),
			Country:     "ID",
		}}
	}

	inv := xenditInvoiceReq{
		ExternalID:         ExternalReference("INV", req.Order.ID, now),
		Amount:             amount,
		PayerEmail:         email,
		Description:        fmt.Sprintf("Pembayaran order %s", req.Order.ID),
		Currency:           "IDR",
		Customer:           cust,
		SuccessRedirectURL: redirectURL(req.BaseURL, "/payment/success", req.Order.ID),
		FailureRedirectURL: redirectURL(req.BaseURL, "/payment/failed", req.Order.ID),
	}
	if x.InvoiceTTL > 0 {
		inv.InvoiceDuration = int64(x.InvoiceTTL / time.Second)
	}

	var itemsTotal int64
	for _, it := range req.Items {
		price := ToWholeUnits(it.PriceCents)
		if price <= 0 || it.Qty <= 0 {
			continue
		}
		inv.Items = append(inv.Items, xenditItem{Name: it.Name, Quantity: it.Qty, Price: price})
		itemsTotal += price * int64(it.Qty)
	}
	if ship := ToWholeUnits(req.Order.ShippingCostCents); ship > 0 {
		inv.Fees = append(inv.Fees, xenditFee{Type: "Ongkos Kirim", Value: ship})
		itemsTotal += ship
	}
	// cek lunak: selisih cuma di-log, tidak menggagalkan pembayaran
	if len(inv.Items) > 0 && abs(itemsTotal-amount) > 1 {
		log.Warn().Str("order_id", req.Order.ID).Int64("items_total", itemsTotal).Int64("amount", amount).
			Msg("xendit items total differs from order total")
	}
	return inv, nil
}

func (x *Xendit) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResult, error) {
	inv, err := x.buildInvoice(req, x.now())
	if err != nil {
		return PaymentResult{}, err
	}
	body, err := json.Marshal(inv)
	if err != nil {
		return PaymentResult{}, err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(x.BaseURL, "/")+"/v2/invoices", bytes.NewReader(body))
	if err != nil {
		return PaymentResult{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.SetBasicAuth(x.SecretKey, "")

	resp, err := x.client().Do(hreq)
	if err != nil {
		return PaymentResult{}, apperr.Wrap(apperr.KindProvider, err, "xendit request failed")
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode/100 != 2 {
		var xe xenditError
		_ = json.Unmarshal(raw, &xe)
		msg := xe.Message
		if msg == "" {
			msg = resp.Status
		}
		return PaymentResult{}, apperr.Provider("xendit: %s", msg)
	}

	var out xenditInvoiceResp
	if err := json.Unmarshal(raw, &out); err != nil {
		return PaymentResult{}, apperr.Wrap(apperr.KindProvider, err, "xendit: invalid response")
	}
	res := PaymentResult{
		PaymentURL:  out.InvoiceURL,
		ExternalRef: inv.ExternalID,
		ProviderRef: out.ID,
		Status:      out.Status,
	}
	if !out.ExpiryDate.IsZero() {
		exp := out.ExpiryDate.UTC()
		res.ExpiresAt = &exp
	}
	return res, nil
}

type xenditCallback struct {
	ID                 string    `json:"id"`
	ExternalID         string    `json:"external_id"`
	Status             string    `json:"status"`
	PaidAmount         float64   `json:"paid_amount"`
	PaidAt             time.Time `json:"paid_at"`
	Updated            time.Time `json:"updated"`
	PaymentMethod      string    `json:"payment_method"`
	PaymentChannel     string    `json:"payment_channel"`
	BankCode           string    `json:"bank_code"`
	PaymentDestination string    `json:"payment_destination"`
}

// VerifyCallback: token dicek hanya kalau dikonfigurasi. Tanpa token, webhook tidak terautentikasi.
func (x *Xendit) VerifyCallback(h http.Header, body []byte) (Notification, error) {
	if x.CallbackToken != "" {
		got := h.Get("x-callback-token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(x.CallbackToken)) != 1 {
			return Notification{}, apperr.Unauthorized("invalid callback token")
		}
	}

	var cb xenditCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return Notification{}, apperr.Validation("invalid webhook payload")
	}
	if cb.ExternalID == "" && cb.ID == "" {
		return Notification{}, apperr.Validation("missing external_id")
	}

	at := cb.PaidAt
	if at.IsZero() {
		at = cb.Updated
	}
	if at.IsZero() {
		at = x.now()
	}
	channel := cb.PaymentChannel
	if channel == "" {
		channel = cb.BankCode
	}
	return Notification{
		ExternalRef:  cb.ExternalID,
		ProviderRef:  cb.ID,
		Status:       strings.ToUpper(cb.Status),
		ChannelLabel: channel,
		Code:         cb.PaymentDestination,
		PaidAmount:   int64(cb.PaidAmount),
		At:           at.UTC(),
	}, nil
}

func (x *Xendit) client() *http.Client {
	if x.HTTP != nil {
		return x.HTTP
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func (x *Xendit) now() time.Time {
	if x.Now != nil {
		return x.Now()
	}
	return time.Now()
}

func redirectURL(base, path, orderID string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + path + "?order_id=" + url.QueryEscape(orderID)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
