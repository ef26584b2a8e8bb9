package payment

import (
	"fmt"
)

// Ledger is the durable payment record store consulted before settlement and
// for access-grant checks. Implementations must enforce a unique constraint on
// (resourceID, payerAddress); that constraint is the sole synchronization point
// for concurrent purchases.
type Ledger interface {
	// HasPaid reports whether a normalized payer already paid for a resource
	HasPaid(resourceID, payerAddress string) (bool, error)
	// RecordPayment inserts a payment record. Returns false without error when
	// the (resourceID, payerAddress) row already exists (benign duplicate from
	// a racing request).
	RecordPayment(resourceID, payerAddress, amount, txHash string) (bool, error)
}

// CheckAmount is guard 1: the authorized amount must cover the requirement,
// compared as big integers. For EVM payloads the amount is visible locally and
// checked before any facilitator call; Solana envelopes carry it inside the
// signed transaction, so the facilitator's verification covers it there.
func CheckAmount(payload *PaymentPayload, requirements *PaymentRequirements) error {
	if payload.EVM == nil {
		return nil
	}

	cmp, err := CompareAtomic(payload.EVM.Authorization.Value, requirements.MaxAmountRequired)
	if err != nil {
		return err
	}
	if cmp < 0 {
		return fmt.Errorf("%w: authorized %s, required %s",
			ErrInsufficientPayment, payload.EVM.Authorization.Value, requirements.MaxAmountRequired)
	}
	return nil
}

// CheckRecipient is guard 2: the authorization's destination must equal the
// expected recipient after normalization. This rejects a replay where a valid
// signature for one resource is submitted against another, even though the
// signature itself verifies.
func CheckRecipient(payload *PaymentPayload, requirements *PaymentRequirements, family ChainFamily) error {
	if payload.EVM == nil {
		// Solana transfer destination is inside the signed transaction; the
		// facilitator verifies it against paymentRequirements.payTo
		return nil
	}

	to, err := NormalizeAddress(payload.EVM.Authorization.To, family)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayment, err)
	}
	if to != requirements.PayTo {
		return fmt.Errorf("%w: authorized to %s, expected %s", ErrRecipientMismatch, to, requirements.PayTo)
	}
	return nil
}

// CheckDuplicate is guard 3: reject when the ledger already holds a record for
// (resource, payer). Runs after verification, so the payer identity is the one
// the facilitator resolved, and strictly before settlement, so a payout is
// never attempted twice for one logical purchase.
func CheckDuplicate(ledger Ledger, resourceID, payerAddress string, family ChainFamily) (string, error) {
	payer, err := NormalizeAddress(payerAddress, family)
	if err != nil {
		return "", fmt.Errorf("%w: payer: %v", ErrMalformedPayment, err)
	}

	paid, err := ledger.HasPaid(resourceID, payer)
	if err != nil {
		return "", fmt.Errorf("duplicate-payment check: %w", err)
	}
	if paid {
		return payer, fmt.Errorf("%w: %s by %s", ErrAlreadyPaid, resourceID, payer)
	}
	return payer, nil
}
