package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inkwell-network/inkwell-node/internal/database"
)

var paymentsResource string

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "Inspect the payment ledger",
}

var paymentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List payment ledger entries",
	Run: func(cmd *cobra.Command, args []string) {
		dbManager, err := database.NewSQLiteManager(config, logger)
		if err != nil {
			fmt.Printf("Failed to open database: %v\n", err)
			os.Exit(1)
		}
		defer dbManager.Close()

		records, err := dbManager.Payments.ListPaymentRecords(paymentsResource, 100, 0)
		if err != nil {
			fmt.Printf("Failed to list payments: %v\n", err)
			os.Exit(1)
		}

		if len(records) == 0 {
			fmt.Println("No payments recorded")
			return
		}

		for _, rec := range records {
			tx := rec.TransactionHash
			if tx == "" {
				tx = "-"
			}
			fmt.Printf("%s  %s  %s  tx=%s  %s\n",
				rec.CreatedAt.Format("2006-01-02 15:04:05"),
				rec.ResourceID, rec.PayerAddress, tx, rec.Amount)
		}
	},
}

func init() {
	paymentsListCmd.Flags().StringVar(&paymentsResource, "resource", "", "Filter by resource ID")

	paymentsCmd.AddCommand(paymentsListCmd)
	rootCmd.AddCommand(paymentsCmd)
}
