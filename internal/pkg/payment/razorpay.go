package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/CourseSeat/internal/pkg/config"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/metrics"
)

const (
	defaultRazorpayBaseURL = "https://api.razorpay.com"
	defaultGatewayTimeout  = 15 * time.Second
	maxReceiptLength       = 40
)

// Gateway talks to the Razorpay orders API and holds the secrets used to
// verify checkout and webhook signatures.
type Gateway struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string

	HTTPClient *http.Client
}

// OrderRequest is the body of POST /v1/orders. Amount is in the smallest
// currency unit.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is the external order minted by the provider.
type Order struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"created_at"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func NewGateway(cfg config.Razorpay) *Gateway {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultRazorpayBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	return &Gateway{
		KeyID:         strings.TrimSpace(cfg.KeyID),
		KeySecret:     strings.TrimSpace(cfg.KeySecret),
		WebhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		BaseURL:       baseURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether orders can be created.
func (g *Gateway) Configured() bool {
	return g.KeyID != "" && g.KeySecret != ""
}

// PublicKeyID is handed to the browser checkout.
func (g *Gateway) PublicKeyID() string {
	return g.KeyID
}

func (g *Gateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if !g.Configured() {
		return nil, ErrGatewayNotConfigured
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrGateway)
	}
	if strings.TrimSpace(req.Currency) == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrGateway)
	}
	if len(req.Receipt) > maxReceiptLength {
		req.Receipt = req.Receipt[:maxReceiptLength]
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(g.KeyID, g.KeySecret)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.HTTPClient.Do(httpReq)
	if err != nil {
		metrics.GatewayRequestDuration.WithLabelValues("create_order", "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()
	metrics.GatewayRequestDuration.WithLabelValues("create_order", strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Description != "" {
			return nil, fmt.Errorf("%w: status=%d code=%s description=%s", ErrGateway, resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
		}
		return nil, fmt.Errorf("%w: status=%d", ErrGateway, resp.StatusCode)
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("%w: decode order: %v", ErrGateway, err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: order id missing in response", ErrGateway)
	}
	return &order, nil
}

// VerifySignature checks the checkout callback signature over orderID|paymentID.
func (g *Gateway) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifyPaymentSignature(orderID, paymentID, signature, g.KeySecret)
}

// VerifyWebhookSignature checks the webhook signature header over the raw body.
func (g *Gateway) VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool {
	return VerifyWebhookSignature(rawBody, signatureHeader, g.WebhookSecret)
}
