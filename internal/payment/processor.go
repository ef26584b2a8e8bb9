package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/inkwell-network/inkwell-node/internal/utils"
)

// Facilitator is the outbound trust boundary consumed by the processor
type Facilitator interface {
	Verify(ctx context.Context, payload *PaymentPayload, requirements *PaymentRequirements) (*VerifyResponse, error)
	Settle(ctx context.Context, payload *PaymentPayload, requirements *PaymentRequirements) (*SettleResponse, error)
}

// ResourceStats is the collaborator called back on successful purchases
type ResourceStats interface {
	IncrementPurchaseStats(resourceID string, amountAtomic string) error
}

// TipLog records tips and donations. Append-only, no uniqueness: tips are not
// one-time unlocks, so the idempotency here is deliberately weaker than the
// purchase ledger's.
type TipLog interface {
	RecordTip(resourceID, payerAddress, amount, txHash, kind string) error
}

// Result is what a completed payment flow hands back to the HTTP layer
type Result struct {
	Receipt         string // server-generated receipt ID
	Payer           string // normalized payer address
	TransactionHash string // may be empty on some settlement paths
}

// Processor wires requirement building, decoding, guards, verification,
// settlement and the ledger into the purchase, tip and donation flows.
type Processor struct {
	builder     *RequirementBuilder
	registry    *NetworkRegistry
	facilitator Facilitator
	ledger      Ledger
	stats       ResourceStats
	tips        TipLog
	config      *utils.ConfigManager
	logger      *utils.LogsManager
}

// NewProcessor creates a payment processor
func NewProcessor(
	registry *NetworkRegistry,
	builder *RequirementBuilder,
	facilitator Facilitator,
	ledger Ledger,
	stats ResourceStats,
	tips TipLog,
	config *utils.ConfigManager,
	logger *utils.LogsManager,
) *Processor {
	return &Processor{
		builder:     builder,
		registry:    registry,
		facilitator: facilitator,
		ledger:      ledger,
		stats:       stats,
		tips:        tips,
		config:      config,
		logger:      logger,
	}
}

// Registry exposes the network registry for recipient resolution in handlers
func (p *Processor) Registry() *NetworkRegistry {
	return p.registry
}

// BuildRequirement exposes requirement construction for 402 challenges
func (p *Processor) BuildRequirement(resource PricedResource, network string) (*PaymentRequirements, error) {
	return p.builder.BuildRequirement(resource, network)
}

// ProcessPurchase runs the full purchase pipeline for a one-time article unlock:
// decode, local guards, facilitator verification, duplicate check, single-shot
// settlement, ledger record and stats update. Settlement failure is terminal
// for this request and leaves no ledger record.
func (p *Processor) ProcessPurchase(ctx context.Context, resource PricedResource, network, header string) (*Result, error) {
	requirements, info, payload, err := p.prepare(resource, network, header)
	if err != nil {
		return nil, err
	}

	payer, err := p.verifyPayload(ctx, payload, requirements, info)
	if err != nil {
		return nil, err
	}

	// Guard 3 runs after verification (payer identity is now authoritative) and
	// strictly before settlement
	normalizedPayer, err := CheckDuplicate(p.ledger, resource.ID, payer, info.Family)
	if err != nil {
		return nil, err
	}

	settle, err := p.facilitator.Settle(ctx, payload, requirements)
	if err != nil {
		p.logger.Error(fmt.Sprintf("Settlement failed for %s by %s: %v", resource.ID, normalizedPayer, err), "payment")
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}

	created, err := p.ledger.RecordPayment(resource.ID, normalizedPayer, requirements.MaxAmountRequired, settle.Transaction)
	if err != nil {
		// Settlement already executed; the record write must not fail the grant
		p.logger.Error(fmt.Sprintf("Ledger write failed after settlement for %s by %s: %v", resource.ID, normalizedPayer, err), "payment")
	} else if !created {
		// A racing request recorded first; its payer's authorization may already
		// have been consumed, so access is still granted
		p.logger.Warn(fmt.Sprintf("Duplicate ledger record for %s by %s, granting access", resource.ID, normalizedPayer), "payment")
	}

	if created {
		if err := p.stats.IncrementPurchaseStats(resource.ID, requirements.MaxAmountRequired); err != nil {
			p.logger.Error(fmt.Sprintf("Stats update failed for %s: %v", resource.ID, err), "payment")
		}
	}

	p.logger.Info(fmt.Sprintf("Purchase settled: resource=%s, payer=%s, tx=%s", resource.ID, normalizedPayer, settle.Transaction), "payment")

	return &Result{
		Receipt:         uuid.New().String(),
		Payer:           normalizedPayer,
		TransactionHash: settle.Transaction,
	}, nil
}

// ProcessTip settles a reader-chosen tip to the article owner. Tips skip the
// duplicate-payment check: a reader may tip the same article any number of
// times.
func (p *Processor) ProcessTip(ctx context.Context, resource PricedResource, network, header string) (*Result, error) {
	return p.processRepeatable(ctx, resource, network, header, "tip")
}

// ProcessDonation settles a donation to the platform address. Same shape as a
// tip, with the recipient resolved from configuration instead of a resource
// owner.
func (p *Processor) ProcessDonation(ctx context.Context, amount decimal.Decimal, network, header string) (*Result, error) {
	info, err := p.registry.Get(network)
	if err != nil {
		return nil, err
	}

	payTo, err := p.donationAddress(info.Family)
	if err != nil {
		return nil, err
	}

	resource := PricedResource{
		ID:          "platform-donation",
		Path:        "/api/donate",
		Description: "Support the Inkwell platform",
		Price:       amount,
		PayTo:       payTo,
	}

	return p.processRepeatable(ctx, resource, network, header, "donation")
}

// DonationResource builds the priced resource for the donation 402 challenge
func (p *Processor) DonationResource(amount decimal.Decimal, network string) (PricedResource, error) {
	info, err := p.registry.Get(network)
	if err != nil {
		return PricedResource{}, err
	}
	payTo, err := p.donationAddress(info.Family)
	if err != nil {
		return PricedResource{}, err
	}
	return PricedResource{
		ID:          "platform-donation",
		Path:        "/api/donate",
		Description: "Support the Inkwell platform",
		Price:       amount,
		PayTo:       payTo,
	}, nil
}

func (p *Processor) donationAddress(family ChainFamily) (string, error) {
	var key string
	switch family {
	case ChainFamilyEVM:
		key = "platform_donation_address_evm"
	case ChainFamilySolana:
		key = "platform_donation_address_solana"
	default:
		return "", fmt.Errorf("%w: unknown chain family %q", ErrUnsupportedNetwork, family)
	}

	addr := p.config.GetConfigWithDefault(key, "")
	if addr == "" {
		return "", fmt.Errorf("%w: %s not configured", ErrUnsupportedNetwork, key)
	}
	return addr, nil
}

// processRepeatable is the shared tip/donation pipeline: same guards and
// single-shot settlement as a purchase, no duplicate check and no purchase
// ledger row; the transfer lands in the append-only tip log instead.
func (p *Processor) processRepeatable(ctx context.Context, resource PricedResource, network, header, kind string) (*Result, error) {
	requirements, info, payload, err := p.prepare(resource, network, header)
	if err != nil {
		return nil, err
	}

	payer, err := p.verifyPayload(ctx, payload, requirements, info)
	if err != nil {
		return nil, err
	}

	normalizedPayer, err := NormalizeAddress(payer, info.Family)
	if err != nil {
		return nil, fmt.Errorf("%w: payer: %v", ErrMalformedPayment, err)
	}

	settle, err := p.facilitator.Settle(ctx, payload, requirements)
	if err != nil {
		p.logger.Error(fmt.Sprintf("%s settlement failed for %s by %s: %v", kind, resource.ID, normalizedPayer, err), "payment")
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}

	if err := p.tips.RecordTip(resource.ID, normalizedPayer, requirements.MaxAmountRequired, settle.Transaction, kind); err != nil {
		p.logger.Error(fmt.Sprintf("Tip log write failed for %s by %s: %v", resource.ID, normalizedPayer, err), "payment")
	}

	p.logger.Info(fmt.Sprintf("%s settled: resource=%s, payer=%s, tx=%s", kind, resource.ID, normalizedPayer, settle.Transaction), "payment")

	return &Result{
		Receipt:         uuid.New().String(),
		Payer:           normalizedPayer,
		TransactionHash: settle.Transaction,
	}, nil
}

// prepare builds the server-side requirement, decodes the header and runs the
// local guards, in that order. Nothing reaches the facilitator unless every
// local check passes.
func (p *Processor) prepare(resource PricedResource, network, header string) (*PaymentRequirements, NetworkInfo, *PaymentPayload, error) {
	info, err := p.registry.Get(network)
	if err != nil {
		return nil, NetworkInfo{}, nil, err
	}

	requirements, err := p.builder.BuildRequirement(resource, network)
	if err != nil {
		return nil, NetworkInfo{}, nil, err
	}

	payload, err := DecodePaymentHeader(header, p.registry)
	if err != nil {
		return nil, NetworkInfo{}, nil, err
	}

	// A payload signed for a different network must never verify against this
	// requirement
	if payload.Network != requirements.Network {
		return nil, NetworkInfo{}, nil, fmt.Errorf("%w: payload network %s, requirement network %s",
			ErrMalformedPayment, payload.Network, requirements.Network)
	}

	if err := CheckAmount(payload, requirements); err != nil {
		return nil, NetworkInfo{}, nil, err
	}
	if err := CheckRecipient(payload, requirements, info.Family); err != nil {
		return nil, NetworkInfo{}, nil, err
	}

	return requirements, info, payload, nil
}

// verifyPayload asks the facilitator for an authenticity verdict and re-runs
// the business-rule guards afterwards. Verification proves authenticity only;
// amount sufficiency and recipient match stay local responsibilities.
func (p *Processor) verifyPayload(ctx context.Context, payload *PaymentPayload, requirements *PaymentRequirements, info NetworkInfo) (string, error) {
	verdict, err := p.facilitator.Verify(ctx, payload, requirements)
	if err != nil {
		return "", err
	}
	if !verdict.IsValid {
		return "", fmt.Errorf("%w: %s", ErrVerificationFailed, verdict.InvalidReason)
	}

	if err := CheckAmount(payload, requirements); err != nil {
		return "", err
	}
	if err := CheckRecipient(payload, requirements, info.Family); err != nil {
		return "", err
	}

	payer := verdict.Payer
	if payer == "" && payload.EVM != nil {
		payer = payload.EVM.Authorization.From
	}
	if payer == "" {
		return "", fmt.Errorf("%w: facilitator did not resolve a payer", ErrVerificationFailed)
	}

	return payer, nil
}
