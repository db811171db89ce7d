package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentCaptured   = "payment.captured"
	EventPaymentFailed     = "payment.failed"
	EventOrderPaid         = "order.paid"
)

// WebhookEvent is the subset of the provider's event envelope the
// reconciler acts on.
type WebhookEvent struct {
	Entity    string   `json:"entity"`
	AccountID string   `json:"account_id"`
	Event     string   `json:"event"`
	Contains  []string `json:"contains"`
	Payload   struct {
		Payment *struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity Order `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

type PaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Method           string `json:"method"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	event.Event = strings.TrimSpace(event.Event)
	if event.Event == "" {
		return nil, fmt.Errorf("%w: event type missing", ErrMalformedEvent)
	}
	return &event, nil
}

// OrderID prefers the order reference on the payment entity and falls back
// to the order entity of order.* events.
func (e *WebhookEvent) OrderID() string {
	if e.Payload.Payment != nil && e.Payload.Payment.Entity.OrderID != "" {
		return e.Payload.Payment.Entity.OrderID
	}
	if e.Payload.Order != nil {
		return e.Payload.Order.Entity.ID
	}
	return ""
}

func (e *WebhookEvent) PaymentID() string {
	if e.Payload.Payment != nil {
		return e.Payload.Payment.Entity.ID
	}
	return ""
}

// FailureReason describes a payment.failed event for the enrollment record.
func (e *WebhookEvent) FailureReason() string {
	if e.Payload.Payment == nil {
		return "provider_failed"
	}
	p := e.Payload.Payment.Entity
	switch {
	case p.ErrorDescription != "":
		return p.ErrorDescription
	case p.ErrorCode != "":
		return p.ErrorCode
	}
	return "provider_failed"
}

// IsConfirming reports whether the event type credits a payment.
func IsConfirming(eventType string) bool {
	switch eventType {
	case EventPaymentAuthorized, EventPaymentCaptured, EventOrderPaid:
		return true
	}
	return false
}

// DeliveryID returns the provider event id or, when the header is absent, a
// stable hash of the payload.
func DeliveryID(eventID string, payload []byte) string {
	if id := strings.TrimSpace(eventID); id != "" {
		return id
	}
	sum := sha256.Sum256(payload)
	return "hash:" + hex.EncodeToString(sum[:])
}
