package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "buildsage",
	Short: "Entitlement and usage metering service for the BuildSage assistant",
	Long: `BuildSage answers one question for the product's AI tools:
"may this caller run this tool right now?"

It tracks per-account and per-device usage counters over rolling 30-day
cycles, enforces plan quotas, redeems promotion codes, and reconciles
subscription state from payment processor webhooks.

Quick start:
  buildsage migrate   # Create or update the database schema
  buildsage serve     # Start the API server

Management:
  buildsage accounts  # Inspect accounts and set plans
  buildsage promos    # Create and list promotion codes
  buildsage validate  # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "buildsage.yaml", "config file path")
}
