package payment

import "errors"

var (
	// ErrInvalidSignature is deliberately generic: it never reveals whether
	// the referenced order exists.
	ErrInvalidSignature     = errors.New("payment verification failed")
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")
	ErrGateway              = errors.New("payment gateway request failed")
	ErrMalformedEvent       = errors.New("malformed webhook payload")
)
