package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentSignature_MatchesHMAC(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("key_secret"))
	mac.Write([]byte("order_123|pay_456"))
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, PaymentSignature("order_123", "pay_456", "key_secret"))
}

func TestVerifyPaymentSignature(t *testing.T) {
	valid := PaymentSignature("order_123", "pay_456", "key_secret")

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		secret    string
		want      bool
	}{
		{"valid", "order_123", "pay_456", valid, "key_secret", true},
		{"upper case hex", "order_123", "pay_456", strings.ToUpper(valid), "key_secret", true},
		{"other payment", "order_123", "pay_789", valid, "key_secret", false},
		{"other order", "order_999", "pay_456", valid, "key_secret", false},
		{"wrong secret", "order_123", "pay_456", valid, "other_secret", false},
		{"empty secret", "order_123", "pay_456", valid, "", false},
		{"empty signature", "order_123", "pay_456", "", "key_secret", false},
		{"not hex", "order_123", "pay_456", "zz" + valid[2:], "key_secret", false},
		{"truncated", "order_123", "pay_456", valid[:32], "key_secret", false},
		{"empty order", "", "pay_456", valid, "key_secret", false},
		{"empty payment", "order_123", "", valid, "key_secret", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyPaymentSignature(tt.orderID, tt.paymentID, tt.signature, tt.secret))
		})
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	valid := WebhookSignature(body, "whsec")

	assert.True(t, VerifyWebhookSignature(body, valid, "whsec"))
	assert.True(t, VerifyWebhookSignature(body, " "+valid+" ", "whsec"))
	assert.False(t, VerifyWebhookSignature([]byte(`{"event":"payment.failed"}`), valid, "whsec"))
	assert.False(t, VerifyWebhookSignature(body, valid, "other"))
	assert.False(t, VerifyWebhookSignature(body, valid, ""))
	assert.False(t, VerifyWebhookSignature(nil, valid, "whsec"))
	assert.False(t, VerifyWebhookSignature(body, "", "whsec"))
}
