package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/beras-storefront/internal/apperr"
	"github.com/google/uuid"
)

const (
	DokuName = "doku"

	DokuCheckoutTarget = "/checkout/v1/payment"
	DokuNotifyPath     = "/payment/doku/notify"

	dokuTimestampLayout = "2006-01-02T15:04:05Z"
	signaturePrefix     = "HMACSHA256="
)

// zona waktu expired_date dari Doku (WIB)
var wib = time.FixedZone("WIB", 7*60*60)

type Doku struct {
	ClientID   string
	SecretKey  string
	BaseURL    string
	DueMinutes int
	HTTP       *http.Client
	Now        func() time.Time
}

func (d *Doku) Name() string { return DokuName }

// Digest = base64(sha256(body)).
func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Sign menghitung signature Doku (tanpa prefix HMACSHA256=).
func Sign(secret, clientID, requestID, timestamp, target string, body []byte) string {
	component := "Client-Id:" + clientID + "\n" +
		"Request-Id:" + requestID + "\n" +
		"Request-Timestamp:" + timestamp + "\n" +
		"Request-Target:" + target + "\n" +
		"Digest:" + Digest(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(component))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type dokuLineItem struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type dokuOrder struct {
	Amount            int64          `json:"amount"`
	InvoiceNumber     string         `json:"invoice_number"`
	Currency          string         `json:"currency"`
	CallbackURL       string         `json:"callback_url,omitempty"`
	CallbackURLCancel string         `json:"callback_url_cancel,omitempty"`
	CallbackURLResult string         `json:"callback_url_result,omitempty"`
	LineItems         []dokuLineItem `json:"line_items,omitempty"`
}

type dokuCustomer struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Country string `json:"country,omitempty"`
}

type dokuPaymentReq struct {
	Order   dokuOrder `json:"order"`
	Payment struct {
		PaymentDueDate int `json:"payment_due_date"`
	} `json:"payment"`
	Customer       *dokuCustomer `json:"customer,omitempty"`
	AdditionalInfo struct {
		OverrideNotificationURL string `json:"override_notification_url,omitempty"`
	} `json:"additional_info"`
}

type dokuPaymentResp struct {
	Message  []string `json:"message"`
	Response struct {
		Order struct {
			InvoiceNumber string `json:"invoice_number"`
			SessionID     string `json:"session_id"`
		} `json:"order"`
		Payment struct {
			URL         string `json:"url"`
			TokenID     string `json:"token_id"`
			ExpiredDate string `json:"expired_date"` // yyyyMMddHHmmss (WIB)
		} `json:"payment"`
	} `json:"response"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (d *Doku) buildRequest(req PaymentRequest, now time.Time) dokuPaymentReq {
	var p dokuPaymentReq
	p.Order = dokuOrder{
		Amount:            ToWholeUnits(req.Order.TotalCents),
		InvoiceNumber:     ExternalReference("DOKU", req.Order.ID, now),
		Currency:          "IDR",
		CallbackURL:       redirectURL(req.BaseURL, "/payment/success", req.Order.ID),
		CallbackURLCancel: redirectURL(req.BaseURL, "/payment/failed", req.Order.ID),
		CallbackURLResult: redirectURL(req.BaseURL, "/orders/detail", req.Order.ID),
	}
	for _, it := range req.Items {
		price := ToWholeUnits(it.PriceCents)
		if price <= 0 || it.Qty <= 0 {
			continue
		}
		p.Order.LineItems = append(p.Order.LineItems, dokuLineItem{Name: it.Name, Price: price, Quantity: it.Qty})
	}
	if ship := ToWholeUnits(req.Order.ShippingCostCents); ship > 0 && len(p.Order.LineItems) > 0 {
		p.Order.LineItems = append(p.Order.LineItems, dokuLineItem{Name: "Ongkos Kirim", Price: ship, Quantity: 1})
	}

	p.Payment.PaymentDueDate = d.dueMinutes()
	if req.BaseURL != "" {
		p.AdditionalInfo.OverrideNotificationURL = strings.TrimRight(req.BaseURL, "/") + DokuNotifyPath
	}

	c := dokuCustomer{
		Name:    strings.TrimSpace(req.Customer.Name),
		Email:   strings.TrimSpace(req.Customer.Email),
		Phone:   digitsOnly(req.Customer.Phone),
		Address: strings.TrimSpace(req.Customer.Address),
	}
	if req.Order.UserID != nil {
		c.ID = *req.Order.UserID
	}
	if c != (dokuCustomer{}) {
		c.Country = "ID"
		p.Customer = &c
	}
	return p
}

func (d *Doku) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentResult, error) {
	now := d.now()
	payload := d.buildRequest(req, now)
	if payload.Order.Amount <= 0 {
		return PaymentResult{}, apperr.Validation("payment amount must be positive")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return PaymentResult{}, err
	}

	requestID := uuid.NewString()
	ts := now.UTC().Format(dokuTimestampLayout)
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(d.BaseURL, "/")+DokuCheckoutTarget, bytes.NewReader(body))
	if err != nil {
		return PaymentResult{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Client-Id", d.ClientID)
	hreq.Header.Set("Request-Id", requestID)
	hreq.Header.Set("Request-Timestamp", ts)
	hreq.Header.Set("Signature", signaturePrefix+Sign(d.SecretKey, d.ClientID, requestID, ts, DokuCheckoutTarget, body))

	resp, err := d.client().Do(hreq)
	if err != nil {
		return PaymentResult{}, apperr.Wrap(apperr.KindProvider, err, "doku request failed")
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var out dokuPaymentResp
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode/100 != 2 {
		msg := out.Error.Message
		if msg == "" && len(out.Message) > 0 {
			msg = strings.Join(out.Message, ", ")
		}
		if msg == "" {
			msg = resp.Status
		}
		return PaymentResult{}, apperr.Provider("doku: %s", msg)
	}
	if out.Response.Payment.URL == "" {
		return PaymentResult{}, apperr.Provider("doku: missing payment url")
	}

	res := PaymentResult{
		PaymentURL:  out.Response.Payment.URL,
		ExternalRef: payload.Order.InvoiceNumber,
		ProviderRef: out.Response.Order.SessionID,
		Status:      "PENDING",
	}
	if t, err := time.ParseInLocation("20060102150405", out.Response.Payment.ExpiredDate, wib); err == nil {
		exp := t.UTC()
		res.ExpiresAt = &exp
	} else {
		exp := now.Add(time.Duration(d.dueMinutes()) * time.Minute).UTC()
		res.ExpiresAt = &exp
	}
	return res, nil
}

type dokuNotification struct {
	Order struct {
		InvoiceNumber string  `json:"invoice_number"`
		Amount        float64 `json:"amount"`
	} `json:"order"`
	Transaction struct {
		Status            string `json:"status"`
		Date              string `json:"date"`
		OriginalRequestID string `json:"original_request_id"`
	} `json:"transaction"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Acquirer struct {
		ID string `json:"id"`
	} `json:"acquirer"`
	VirtualAccountInfo struct {
		VirtualAccountNumber string `json:"virtual_account_number"`
	} `json:"virtual_account_info"`
}

// VerifyCallback: header wajib lengkap (400), lalu signature dihitung ulang atas body mentah (401).
func (d *Doku) VerifyCallback(h http.Header, body []byte) (Notification, error) {
	// tanpa secret, signature bisa dipalsukan siapa pun (HMAC dengan key kosong)
	if d.SecretKey == "" {
		return Notification{}, apperr.Unauthorized("doku secret key not configured")
	}
	requestID := h.Get("Request-Id")
	ts := h.Get("Request-Timestamp")
	sig := h.Get("Signature")
	if requestID == "" || ts == "" || sig == "" {
		return Notification{}, apperr.Validation("missing signature headers")
	}

	expected := Sign(d.SecretKey, d.ClientID, requestID, ts, DokuNotifyPath, body)
	got := strings.TrimPrefix(sig, signaturePrefix)
	if !hmac.Equal([]byte(got), []byte(expected)) {
		return Notification{}, apperr.Unauthorized("invalid signature")
	}

	var n dokuNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, apperr.Validation("invalid notification payload")
	}
	if n.Order.InvoiceNumber == "" {
		return Notification{}, apperr.Validation("missing invoice_number")
	}

	at, err := time.Parse(time.RFC3339, n.Transaction.Date)
	if err != nil {
		at = d.now()
	}
	channel := n.Channel.ID
	if channel == "" {
		channel = n.Acquirer.ID
	}
	return Notification{
		ExternalRef:  n.Order.InvoiceNumber,
		Status:       strings.ToUpper(n.Transaction.Status),
		ChannelLabel: channel,
		Code:         n.VirtualAccountInfo.VirtualAccountNumber,
		PaidAmount:   int64(n.Order.Amount),
		At:           at.UTC(),
	}, nil
}

func (d *Doku) dueMinutes() int {
	if d.DueMinutes <= 0 {
		return 60
	}
	return d.DueMinutes
}

func (d *Doku) client() *http.Client {
	if d.HTTP != nil {
		return d.HTTP
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func (d *Doku) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
