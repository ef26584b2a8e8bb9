package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/inkwell-network/inkwell-node/internal/utils"
)

var (
	configPath string
	config     *utils.ConfigManager
	logger     *utils.LogsManager
)

var rootCmd = &cobra.Command{
	Use:   "inkwell-node",
	Short: "Inkwell micropayment content node",
	Long: `A micropayment-gated content platform node.

Readers unlock articles with small USDC payments over the x402 protocol;
authors receive funds directly to their wallets on Base or Solana.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Deployment secrets (facilitator URL, platform addresses) may come
		// from the environment
		_ = godotenv.Load()

		config = utils.NewConfigManager(configPath)
		loadEnvOverrides(config)

		logger = utils.NewLogsManager(config)
	},
}

// loadEnvOverrides lets environment variables override config file values for
// the deployment-sensitive keys
func loadEnvOverrides(cm *utils.ConfigManager) {
	overrides := map[string]string{
		"INKWELL_FACILITATOR_URL":      "x402_facilitator_url",
		"INKWELL_PUBLIC_BASE_URL":      "public_base_url",
		"INKWELL_DONATION_ADDRESS_EVM": "platform_donation_address_evm",
		"INKWELL_DONATION_ADDRESS_SOL": "platform_donation_address_solana",
	}

	for env, key := range overrides {
		if value := os.Getenv(env); value != "" {
			cm.SetConfig(key, value)
		}
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
}
