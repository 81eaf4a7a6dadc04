package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd runs the server when no subcommand is given
var rootCmd = &cobra.Command{
	Use:   "folio-server",
	Short: "Portfolio market-data refresh and snapshot service",
	Long: `folio-server keeps current prices, P/E ratios and earnings dates for a
portfolio in an in-memory cache, refreshed on a fixed schedule, and serves
an assembled portfolio snapshot over HTTP.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to folio.toml (default: $FOLIO_CONFIG, then folio.toml beside the binary)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
