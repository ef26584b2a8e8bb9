package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inkwell-network/inkwell-node/internal/utils"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running Inkwell node",
	Long:  "Stop the running Inkwell node by sending a graceful termination signal",
	Args:  cobra.ExactArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		pidManager, err := utils.NewPIDManager(config)
		if err != nil {
			msg := fmt.Sprintf("Failed to create PID manager: %v", err)
			fmt.Println(msg)
			logger.Error(msg, "stop")
			os.Exit(1)
		}

		pid, err := pidManager.ReadPID()
		if err != nil {
			msg := fmt.Sprintf("Failed to read PID: %v", err)
			fmt.Println(msg)
			logger.Error(msg, "stop")
			os.Exit(1)
		}

		fmt.Printf("Found running node with PID: %d\n", pid)

		if !pidManager.IsProcessRunning(pid) {
			msg := fmt.Sprintf("Process with PID %d is not running", pid)
			fmt.Println(msg)
			logger.Warn(msg, "stop")

			if err := pidManager.RemovePIDFile(); err != nil {
				fmt.Printf("Warning: Failed to remove stale PID file: %v\n", err)
			} else {
				fmt.Println("Removed stale PID file")
			}
			os.Exit(0)
		}

		fmt.Printf("Stopping Inkwell node (PID: %d)...\n", pid)
		if err := pidManager.StopProcess(pid); err != nil {
			msg := fmt.Sprintf("Failed to stop process: %v", err)
			fmt.Println(msg)
			logger.Error(msg, "stop")
			os.Exit(1)
		}

		if err := pidManager.RemovePIDFile(); err != nil {
			fmt.Printf("Warning: Failed to remove PID file: %v\n", err)
		}

		msg := "Inkwell node stopped successfully"
		fmt.Println(msg)
		logger.Info(msg, "stop")
	},
	PostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
