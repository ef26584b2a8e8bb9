package payment

import "errors"

var (
	// Payment verification errors
	ErrPaymentRequired     = errors.New("X-PAYMENT header is required")
	ErrMalformedPayment    = errors.New("invalid x402 payment header")
	ErrInsufficientPayment = errors.New("insufficient payment amount")
	ErrRecipientMismatch   = errors.New("payment recipient mismatch")
	ErrVerificationFailed  = errors.New("payment verification failed")
	ErrAlreadyPaid         = errors.New("already paid for this resource")
	ErrSettlementFailed    = errors.New("payment settlement failed")

	// Requirement construction errors
	ErrInvalidAddress     = errors.New("invalid wallet address")
	ErrUnsupportedNetwork = errors.New("unsupported payment network")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrAmountOutOfBounds  = errors.New("payment amount out of bounds")

	// Facilitator errors
	ErrFacilitatorUnavailable = errors.New("payment facilitator unavailable")
	ErrFacilitatorTimeout     = errors.New("payment facilitator timeout")
	ErrFacilitatorRejected    = errors.New("payment rejected by facilitator")
)
