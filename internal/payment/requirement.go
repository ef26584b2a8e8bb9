package payment

import (
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/inkwell-network/inkwell-node/internal/utils"
)

// PricedResource is what the requirement builder needs to know about the thing
// being paid for. Price and PayTo come from server-side state only.
type PricedResource struct {
	ID          string          // stable resource identifier
	Path        string          // URL path of the action endpoint, e.g. /api/articles/{id}/purchase
	Description string          // display metadata, not security-relevant
	Price       decimal.Decimal // USD price
	PayTo       string          // recipient address for the target chain family, un-normalized
}

// RequirementBuilder constructs chain-specific payment requirement descriptors
type RequirementBuilder struct {
	registry *NetworkRegistry
	config   *utils.ConfigManager
	logger   *utils.LogsManager
}

// NewRequirementBuilder creates a requirement builder over the network registry
func NewRequirementBuilder(registry *NetworkRegistry, config *utils.ConfigManager, logger *utils.LogsManager) *RequirementBuilder {
	return &RequirementBuilder{
		registry: registry,
		config:   config,
		logger:   logger,
	}
}

// BuildRequirement constructs the PaymentRequirements for a priced resource on a
// target network. Amount and recipient are derived strictly from the resource;
// nothing here is accepted from the client beyond the network selection, which
// only picks among server-configured parameter sets.
func (rb *RequirementBuilder) BuildRequirement(resource PricedResource, network string) (*PaymentRequirements, error) {
	info, err := rb.registry.Get(network)
	if err != nil {
		return nil, err
	}

	payTo, err := NormalizeAddress(resource.PayTo, info.Family)
	if err != nil {
		return nil, fmt.Errorf("recipient for %s: %w", resource.ID, err)
	}

	amount, err := AtomicAmount(resource.Price, info.AssetDecimals)
	if err != nil {
		return nil, err
	}

	req := &PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           info.Name,
		MaxAmountRequired: amount,
		Resource:          rb.resourceURL(resource.Path, info.Name),
		Description:       resource.Description,
		MimeType:          "application/json",
		PayTo:             payTo,
		MaxTimeoutSeconds: rb.config.GetConfigInt("x402_max_timeout_seconds", 300, 30, 3600),
		Asset:             info.Asset,
	}

	if info.Family == ChainFamilyEVM {
		req.Extra = &PaymentRequirementsExtra{
			Name:    info.DomainName,
			Version: info.DomainVersion,
		}
	}

	return req, nil
}

// resourceURL builds the canonical resource URL. The network is embedded so that
// retries against a different network get a distinct, non-colliding identity.
func (rb *RequirementBuilder) resourceURL(path string, network string) string {
	base := rb.config.GetConfigWithDefault("public_base_url", "https://inkwell.network")
	return base + path + "?network=" + url.QueryEscape(network)
}
