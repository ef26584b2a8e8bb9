package payment

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestDecodePaymentHeaderEVM(t *testing.T) {
	cm, _ := newTestEnv(t)
	registry := NewNetworkRegistry(cm)

	header := evmPaymentHeader(t, "base-sepolia", testPayerEVM, testPayoutEVM, "120000")
	payload, err := DecodePaymentHeader(header, registry)
	if err != nil {
		t.Fatalf("Failed to decode valid EVM header: %v", err)
	}

	if payload.Network != "base-sepolia" {
		t.Errorf("Expected network base-sepolia, got %s", payload.Network)
	}
	if payload.EVM == nil {
		t.Fatal("Expected EVM payload to be populated")
	}
	if payload.Solana != nil {
		t.Error("Expected Solana payload to be nil for an EVM network")
	}
	if payload.EVM.Authorization.Value != "120000" {
		t.Errorf("Expected authorization value 120000, got %s", payload.EVM.Authorization.Value)
	}
	if payload.EVM.Authorization.From != testPayerEVM {
		t.Errorf("Expected from %s, got %s", testPayerEVM, payload.EVM.Authorization.From)
	}
}

func TestDecodePaymentHeaderSolana(t *testing.T) {
	cm, _ := newTestEnv(t)
	registry := NewNetworkRegistry(cm)

	tx := base64.StdEncoding.EncodeToString([]byte("signed transaction bytes"))
	header := solanaPaymentHeader(t, "solana-devnet", tx)
	payload, err := DecodePaymentHeader(header, registry)
	if err != nil {
		t.Fatalf("Failed to decode valid Solana header: %v", err)
	}

	if payload.Solana == nil {
		t.Fatal("Expected Solana payload to be populated")
	}
	if payload.EVM != nil {
		t.Error("Expected EVM payload to be nil for a Solana network")
	}
	if payload.Solana.Transaction != tx {
		t.Error("Expected transaction envelope to be preserved")
	}
}

func TestDecodePaymentHeaderSolanaBase58Envelope(t *testing.T) {
	cm, _ := newTestEnv(t)
	registry := NewNetworkRegistry(cm)

	// Older tooling emits base58 envelopes; a valid base58 string must decode
	header := solanaPaymentHeader(t, "solana", testPayoutSOL)
	if _, err := DecodePaymentHeader(header, registry); err != nil {
		t.Fatalf("Failed to decode base58 transaction envelope: %v", err)
	}
}

func TestDecodePaymentHeaderRejections(t *testing.T) {
	cm, _ := newTestEnv(t)
	registry := NewNetworkRegistry(cm)

	cases := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"not base64", "!!!not-base64!!!"},
		{"not json", base64.StdEncoding.EncodeToString([]byte("plain text"))},
		{"wrong version", encodePaymentHeader(t, map[string]interface{}{
			"x402Version": 2, "scheme": "exact", "network": "base",
			"payload": map[string]interface{}{},
		})},
		{"wrong scheme", encodePaymentHeader(t, map[string]interface{}{
			"x402Version": 1, "scheme": "upto", "network": "base",
			"payload": map[string]interface{}{},
		})},
		{"unknown network", evmPaymentHeader(t, "ethereum", testPayerEVM, testPayoutEVM, "120000")},
		{"evm missing signature", encodePaymentHeader(t, map[string]interface{}{
			"x402Version": 1, "scheme": "exact", "network": "base",
			"payload": map[string]interface{}{
				"authorization": map[string]interface{}{
					"from": testPayerEVM, "to": testPayoutEVM, "value": "120000",
					"validAfter": "0", "validBefore": "99999999999", "nonce": "0x01",
				},
			},
		})},
		{"evm missing authorization fields", encodePaymentHeader(t, map[string]interface{}{
			"x402Version": 1, "scheme": "exact", "network": "base",
			"payload": map[string]interface{}{
				"signature":     "0xdeadbeef",
				"authorization": map[string]interface{}{"from": testPayerEVM},
			},
		})},
		{"solana missing transaction", encodePaymentHeader(t, map[string]interface{}{
			"x402Version": 1, "scheme": "exact", "network": "solana",
			"payload": map[string]interface{}{},
		})},
		{"solana bad envelope", solanaPaymentHeader(t, "solana", "not base64 and not base58 IlO0")},
		{"oversized", strings.Repeat("A", maxPaymentHeaderBytes+1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodePaymentHeader(tc.header, registry)
			if err == nil {
				t.Fatal("Expected decode error, got none")
			}
			if !errors.Is(err, ErrMalformedPayment) {
				t.Errorf("Expected ErrMalformedPayment, got %v", err)
			}
		})
	}
}
