package main

import (
	"fmt"
	"os"

	"github.com/pulsewatch/cmd/cli/client"
	"github.com/spf13/cobra"
)

var apiClient *client.APIClient

var rootCmd = &cobra.Command{
	Use:   "pulsewatch-cli",
	Short: "PulseWatch CLI - telemetry alerting from the command line",
	Long: `PulseWatch CLI is a command-line tool for managing alert rules,
acknowledging alerts, and pushing metric samples to a PulseWatch server.`,
}

func init() {
	var serverURL string
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "PulseWatch server URL")
	cobra.OnInitialize(func() {
		apiClient = client.NewAPIClient(serverURL)
	})

	addRuleCommands(rootCmd)
	addAlertCommands(rootCmd)
	addProjectCommands(rootCmd)
	addMetricCommands(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
