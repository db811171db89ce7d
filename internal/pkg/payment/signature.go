package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PaymentSignature computes the checkout signature the provider returns to
// the browser: hex(HMAC-SHA256(orderID + "|" + paymentID, keySecret)).
func PaymentSignature(orderID, paymentID, keySecret string) string {
	return sign([]byte(orderID+"|"+paymentID), []byte(strings.TrimSpace(keySecret)))
}

// WebhookSignature computes hex(HMAC-SHA256(body, webhookSecret)).
func WebhookSignature(payload []byte, webhookSecret string) string {
	return sign(payload, []byte(strings.TrimSpace(webhookSecret)))
}

func VerifyPaymentSignature(orderID, paymentID, signature, keySecret string) bool {
	orderID = strings.TrimSpace(orderID)
	paymentID = strings.TrimSpace(paymentID)
	if orderID == "" || paymentID == "" {
		return false
	}
	return verifyHexHMAC([]byte(orderID+"|"+paymentID), signature, keySecret)
}

func VerifyWebhookSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	if len(payload) == 0 {
		return false
	}
	return verifyHexHMAC(payload, signatureHeader, webhookSecret)
}

func verifyHexHMAC(payload []byte, signature, secret string) bool {
	sig := strings.TrimSpace(signature)
	secret = strings.TrimSpace(secret)
	if sig == "" || secret == "" {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	return verifyHMAC(payload, decodedSig, []byte(secret))
}

func verifyHMAC(payload, expectedSig, secret []byte) bool {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedSig)
}

func sign(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
