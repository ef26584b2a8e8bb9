package payment

import "encoding/json"

// X402Version is the x402 protocol version this node speaks
const X402Version = 1

// SchemeExact is the only payment scheme supported: exact amount, exact recipient
const SchemeExact = "exact"

// ChainFamily identifies the signature/address family of a network
type ChainFamily string

const (
	ChainFamilyEVM    ChainFamily = "evm"
	ChainFamilySolana ChainFamily = "solana"
)

// PaymentRequirements describes what must be paid to unlock a resource (x402 v1 format).
// MaxAmountRequired and PayTo are always derived from server-side state, never from
// client input.
type PaymentRequirements struct {
	Scheme            string                    `json:"scheme"`
	Network           string                    `json:"network"`
	MaxAmountRequired string                    `json:"maxAmountRequired"` // atomic units, decimal string
	Resource          string                    `json:"resource"`          // canonical URL, stable across retries
	Description       string                    `json:"description,omitempty"`
	MimeType          string                    `json:"mimeType,omitempty"`
	PayTo             string                    `json:"payTo"` // normalized recipient address
	MaxTimeoutSeconds int                       `json:"maxTimeoutSeconds"`
	Asset             string                    `json:"asset"` // token contract / mint address
	Extra             *PaymentRequirementsExtra `json:"extra,omitempty"`
}

// PaymentRequirementsExtra carries scheme parameters the client needs for signing
type PaymentRequirementsExtra struct {
	Name     string `json:"name,omitempty"`     // EIP-712 domain name (EVM)
	Version  string `json:"version,omitempty"`  // EIP-712 domain version (EVM)
	FeePayer string `json:"feePayer,omitempty"` // fee payer address (Solana)
}

// PaymentRequired is the body of an HTTP 402 response
type PaymentRequired struct {
	X402Version int                   `json:"x402Version"`
	Error       string                `json:"error,omitempty"`
	Accepts     []PaymentRequirements `json:"accepts"`
}

// PaymentPayload is the decoded X-PAYMENT header. Payload is kept raw until the
// network discriminator selects the chain family; it is never duck-typed on shape.
type PaymentPayload struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     string          `json:"network"`
	Payload     json.RawMessage `json:"payload"`

	// Exactly one of these is set after decoding, selected by the network's family
	EVM    *EvmPayload    `json:"-"`
	Solana *SolanaPayload `json:"-"`
}

// EvmPayload is a signed EIP-3009 transfer authorization
type EvmPayload struct {
	Signature     string            `json:"signature"`
	Authorization *EvmAuthorization `json:"authorization"`
}

// EvmAuthorization is the transferWithAuthorization message the payer signed
type EvmAuthorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"` // atomic units, decimal string
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// SolanaPayload is a signed Solana transaction envelope. The transfer details are
// inside the serialized transaction; recipient and amount checks for this family
// are delegated to the facilitator's verification.
type SolanaPayload struct {
	Transaction string `json:"transaction"` // base64-encoded signed transaction
}

// FacilitatorRequest is the body for both /verify and /settle facilitator calls
type FacilitatorRequest struct {
	X402Version         int                  `json:"x402Version"`
	PaymentPayload      *PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements *PaymentRequirements `json:"paymentRequirements"`
}

// VerifyResponse from the facilitator /verify endpoint. Authoritative for
// signature/authorization correctness only; business rules are re-checked locally.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResponse from the facilitator /settle endpoint. Transaction may be
// legitimately empty on some successful settlement paths.
type SettleResponse struct {
	Success           bool   `json:"success"`
	Transaction       string `json:"transaction,omitempty"`
	Network           string `json:"network,omitempty"`
	Payer             string `json:"payer,omitempty"`
	ErrorReason       string `json:"errorReason,omitempty"`
	ErrorReasonDetail string `json:"errorReasonDetail,omitempty"`
}

// MarshalJSON re-serializes the decoded chain-family payload so facilitator
// requests carry the exact structure the client signed over.
func (p *PaymentPayload) MarshalJSON() ([]byte, error) {
	type Alias PaymentPayload
	out := &struct {
		*Alias
		Payload interface{} `json:"payload"`
	}{Alias: (*Alias)(p)}

	switch {
	case p.EVM != nil:
		out.Payload = p.EVM
	case p.Solana != nil:
		out.Payload = p.Solana
	default:
		out.Payload = p.Payload
	}

	return json.Marshal(out)
}
