package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inkwell-network/inkwell-node/internal/api"
	"github.com/inkwell-network/inkwell-node/internal/database"
	"github.com/inkwell-network/inkwell-node/internal/payment"
	"github.com/inkwell-network/inkwell-node/internal/utils"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Inkwell node",
	Long: `Start the Inkwell node.

This will:
- Open the article and payment ledger database
- Connect to the configured x402 facilitator
- Serve the article and payment API over HTTP`,
	Run: func(cmd *cobra.Command, args []string) {
		logger.Info("Starting Inkwell node...", "cli")

		// Initialize PID manager and refuse to double-start
		pidManager, err := utils.NewPIDManager(config)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to create PID manager: %v", err), "cli")
			os.Exit(1)
		}

		if existingPID, err := pidManager.ReadPID(); err == nil {
			if pidManager.IsProcessRunning(existingPID) {
				logger.Error(fmt.Sprintf("Another instance is already running with PID: %d", existingPID), "cli")
				fmt.Printf("Another instance is already running with PID: %d\n", existingPID)
				fmt.Println("Use 'inkwell-node stop' to stop the existing instance first")
				os.Exit(1)
			}
			pidManager.RemovePIDFile()
		}

		currentPID := os.Getpid()
		if err := pidManager.WritePID(currentPID); err != nil {
			logger.Error(fmt.Sprintf("Failed to write PID file: %v", err), "cli")
			os.Exit(1)
		}
		defer func() {
			if err := pidManager.RemovePIDFile(); err != nil {
				logger.Warn(fmt.Sprintf("Failed to remove PID file: %v", err), "cli")
			}
		}()

		logger.Info(fmt.Sprintf("Node started with PID: %d", currentPID), "cli")

		// Storage
		dbManager, err := database.NewSQLiteManager(config, logger)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to initialize database: %v", err), "cli")
			fmt.Printf("Failed to initialize database: %v\n", err)
			os.Exit(1)
		}
		defer dbManager.Close()

		// Payment pipeline
		registry := payment.NewNetworkRegistry(config)
		builder := payment.NewRequirementBuilder(registry, config, logger)
		facilitator := payment.NewFacilitatorClient(config, logger)
		processor := payment.NewProcessor(
			registry,
			builder,
			facilitator,
			dbManager.Payments,
			dbManager.Articles,
			dbManager.Tips,
			config,
			logger,
		)

		// HTTP API
		server := api.NewAPIServer(config, logger, dbManager, processor)
		if err := server.Start(); err != nil {
			logger.Error(fmt.Sprintf("Failed to start API server: %v", err), "cli")
			fmt.Printf("Failed to start API server: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Inkwell node listening on port %s\n", server.GetPort())

		// Wait for termination signal
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan

		logger.Info(fmt.Sprintf("Received signal %v, shutting down", sig), "cli")
		fmt.Println("\nShutting down...")

		if err := server.Stop(); err != nil {
			logger.Error(fmt.Sprintf("Error stopping API server: %v", err), "cli")
		}

		logger.Info("Inkwell node stopped", "cli")
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
