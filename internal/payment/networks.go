package payment

import (
	"fmt"

	"github.com/inkwell-network/inkwell-node/internal/utils"
)

// NetworkInfo describes one supported payment network
type NetworkInfo struct {
	Name          string      // x402 network identifier
	Family        ChainFamily // address/signature family
	Asset         string      // USDC contract (EVM) or mint (Solana)
	AssetDecimals int
	DomainName    string // EIP-712 domain name (EVM only)
	DomainVersion string // EIP-712 domain version (EVM only)
}

// NetworkRegistry maps x402 network identifiers to chain parameters. The set of
// networks is closed; asset addresses can be overridden from config so testnets
// can point at custom token deployments.
type NetworkRegistry struct {
	networks map[string]NetworkInfo
}

// NewNetworkRegistry builds the registry with USDC parameters for each
// supported network, applying config overrides for asset addresses.
func NewNetworkRegistry(config *utils.ConfigManager) *NetworkRegistry {
	networks := map[string]NetworkInfo{
		"base": {
			Name:          "base",
			Family:        ChainFamilyEVM,
			Asset:         config.GetConfigWithDefault("usdc_asset_base", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
			AssetDecimals: 6,
			DomainName:    "USD Coin",
			DomainVersion: "2",
		},
		"base-sepolia": {
			Name:          "base-sepolia",
			Family:        ChainFamilyEVM,
			Asset:         config.GetConfigWithDefault("usdc_asset_base_sepolia", "0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
			AssetDecimals: 6,
			DomainName:    "USDC",
			DomainVersion: "2",
		},
		"solana": {
			Name:          "solana",
			Family:        ChainFamilySolana,
			Asset:         config.GetConfigWithDefault("usdc_asset_solana", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
			AssetDecimals: 6,
		},
		"solana-devnet": {
			Name:          "solana-devnet",
			Family:        ChainFamilySolana,
			Asset:         config.GetConfigWithDefault("usdc_asset_solana_devnet", "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"),
			AssetDecimals: 6,
		},
	}

	return &NetworkRegistry{networks: networks}
}

// Get returns the parameters for a network, or ErrUnsupportedNetwork. A missing
// network is a configuration failure, not a payment failure.
func (nr *NetworkRegistry) Get(network string) (NetworkInfo, error) {
	info, ok := nr.networks[network]
	if !ok {
		return NetworkInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, network)
	}
	if info.Asset == "" {
		return NetworkInfo{}, fmt.Errorf("%w: no asset configured for %s", ErrUnsupportedNetwork, network)
	}
	return info, nil
}

// IsSupported checks whether a network identifier is in the closed supported set
func (nr *NetworkRegistry) IsSupported(network string) bool {
	_, ok := nr.networks[network]
	return ok
}

// SupportedNetworks returns all supported network identifiers
func (nr *NetworkRegistry) SupportedNetworks() []string {
	names := make([]string, 0, len(nr.networks))
	for name := range nr.networks {
		names = append(names, name)
	}
	return names
}
