package payment

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
)

// NormalizeAddress canonicalizes a wallet address for the given chain family.
// EVM addresses are returned in EIP-55 checksum casing, Solana addresses as the
// canonical base58 form of a well-formed public key. Every ledger write and every
// address comparison must go through this function; comparing raw strings lets
// case mismatches fail the duplicate and recipient checks open.
func NormalizeAddress(address string, family ChainFamily) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	switch family {
	case ChainFamilyEVM:
		if !common.IsHexAddress(address) {
			return "", fmt.Errorf("%w: not a hex address: %s", ErrInvalidAddress, address)
		}
		// Hex() re-encodes with the EIP-55 mixed-case checksum
		return common.HexToAddress(address).Hex(), nil

	case ChainFamilySolana:
		pubkey, err := solana.PublicKeyFromBase58(address)
		if err != nil {
			return "", fmt.Errorf("%w: not a base58 public key: %s", ErrInvalidAddress, address)
		}
		return pubkey.String(), nil

	default:
		return "", fmt.Errorf("%w: unknown chain family %q", ErrInvalidAddress, family)
	}
}

// TryNormalizeAddress is NormalizeAddress without the error, for lookups where a
// malformed address simply means no match.
func TryNormalizeAddress(address string, family ChainFamily) (string, bool) {
	normalized, err := NormalizeAddress(address, family)
	if err != nil {
		return "", false
	}
	return normalized, true
}

// SameAddress reports whether two addresses refer to the same account on the
// given chain family, regardless of input casing or formatting.
func SameAddress(a, b string, family ChainFamily) bool {
	na, okA := TryNormalizeAddress(a, family)
	nb, okB := TryNormalizeAddress(b, family)
	return okA && okB && na == nb
}
