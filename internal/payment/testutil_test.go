package payment

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/inkwell-network/inkwell-node/internal/utils"
)

const (
	testPayoutEVM = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	testPayerEVM  = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	testOtherEVM  = "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB"
	testPayoutSOL = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
)

func newTestEnv(t *testing.T) (*utils.ConfigManager, *utils.LogsManager) {
	t.Helper()

	cm := utils.NewConfigManager("")
	lm := utils.NewLogsManager(cm)
	t.Cleanup(func() {
		lm.Close()
	})

	return cm, lm
}

// encodePaymentHeader serializes an X-PAYMENT header the way a paying client would
func encodePaymentHeader(t *testing.T, payload map[string]interface{}) string {
	t.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payment payload: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func evmPaymentHeader(t *testing.T, network string, from string, to string, value string) string {
	t.Helper()

	return encodePaymentHeader(t, map[string]interface{}{
		"x402Version": 1,
		"scheme":      "exact",
		"network":     network,
		"payload": map[string]interface{}{
			"signature": "0xdeadbeef",
			"authorization": map[string]interface{}{
				"from":        from,
				"to":          to,
				"value":       value,
				"validAfter":  "0",
				"validBefore": "99999999999",
				"nonce":       "0x1111111111111111111111111111111111111111111111111111111111111111",
			},
		},
	})
}

func solanaPaymentHeader(t *testing.T, network string, transaction string) string {
	t.Helper()

	return encodePaymentHeader(t, map[string]interface{}{
		"x402Version": 1,
		"scheme":      "exact",
		"network":     network,
		"payload": map[string]interface{}{
			"transaction": transaction,
		},
	})
}
