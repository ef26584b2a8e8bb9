package payment

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// maxPaymentHeaderBytes bounds the decoded X-PAYMENT header size
const maxPaymentHeaderBytes = 64 * 1024

// DecodePaymentHeader decodes the base64 JSON X-PAYMENT header into a typed
// PaymentPayload. It runs before any amount or recipient logic: untrusted input
// is never passed further until it is shape-validated. All failures wrap
// ErrMalformedPayment.
func DecodePaymentHeader(header string, registry *NetworkRegistry) (*PaymentPayload, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, fmt.Errorf("%w: empty header", ErrMalformedPayment)
	}
	if len(header) > maxPaymentHeaderBytes {
		return nil, fmt.Errorf("%w: header exceeds %d bytes", ErrMalformedPayment, maxPaymentHeaderBytes)
	}

	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64: %v", ErrMalformedPayment, err)
	}

	var payload PaymentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: not valid JSON: %v", ErrMalformedPayment, err)
	}

	if payload.X402Version != X402Version {
		return nil, fmt.Errorf("%w: unsupported x402 version %d", ErrMalformedPayment, payload.X402Version)
	}
	if payload.Scheme != SchemeExact {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrMalformedPayment, payload.Scheme)
	}

	info, err := registry.Get(payload.Network)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayment, err)
	}

	// Closed tagged union: the network's chain family selects the payload shape
	switch info.Family {
	case ChainFamilyEVM:
		if err := decodeEvmPayload(&payload); err != nil {
			return nil, err
		}
	case ChainFamilySolana:
		if err := decodeSolanaPayload(&payload); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown chain family %q", ErrMalformedPayment, info.Family)
	}

	return &payload, nil
}

func decodeEvmPayload(payload *PaymentPayload) error {
	var evm EvmPayload
	if err := json.Unmarshal(payload.Payload, &evm); err != nil {
		return fmt.Errorf("%w: malformed EVM payload: %v", ErrMalformedPayment, err)
	}
	if evm.Signature == "" || evm.Authorization == nil {
		return fmt.Errorf("%w: EVM payload missing signature or authorization", ErrMalformedPayment)
	}

	auth := evm.Authorization
	if auth.From == "" || auth.To == "" || auth.Value == "" {
		return fmt.Errorf("%w: authorization missing from/to/value", ErrMalformedPayment)
	}
	if auth.ValidAfter == "" || auth.ValidBefore == "" || auth.Nonce == "" {
		return fmt.Errorf("%w: authorization missing validity window or nonce", ErrMalformedPayment)
	}

	payload.EVM = &evm
	return nil
}

func decodeSolanaPayload(payload *PaymentPayload) error {
	var sol SolanaPayload
	if err := json.Unmarshal(payload.Payload, &sol); err != nil {
		return fmt.Errorf("%w: malformed Solana payload: %v", ErrMalformedPayment, err)
	}
	if sol.Transaction == "" {
		return fmt.Errorf("%w: Solana payload missing transaction", ErrMalformedPayment)
	}

	// The envelope must deserialize as base64 (standard wallet output) or base58
	// (older Solana tooling). The transaction content itself is verified by the
	// facilitator.
	if _, err := base64.StdEncoding.DecodeString(sol.Transaction); err != nil {
		if _, err58 := base58.Decode(sol.Transaction); err58 != nil {
			return fmt.Errorf("%w: Solana transaction is neither base64 nor base58", ErrMalformedPayment)
		}
	}

	payload.Solana = &sol
	return nil
}
