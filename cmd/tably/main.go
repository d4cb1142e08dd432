package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tably-labs/tably/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tably",
	Short: "Tably restaurant platform CLI",
	Long:  "Tably — a multi-tenant restaurant platform with real-time event streaming.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("tably version %s\n", version))

	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewSeedCmd())
}
