// Package cli implements the volt command line tool used to publish plugins
// to the registry and to yank or unyank published versions.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// defaultRegistry is used when neither --registry nor PLR_REGISTRY is set.
const defaultRegistry = "http://localhost:3000"

var (
	flagToken    string
	flagRegistry string
)

var rootCmd = &cobra.Command{
	Use:           "volt",
	Short:         "Publish and manage editor plugins",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "registry API authentication token")
	rootCmd.PersistentFlags().StringVar(&flagRegistry, "registry", "", "registry base URL")

	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(yankCmd)
	rootCmd.AddCommand(unyankCmd)
}

// Execute runs the CLI. Errors are printed here so main stays a one-liner.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// registryURL resolves the registry base URL: flag, then environment, then
// the built-in default.
func registryURL() string {
	if flagRegistry != "" {
		return flagRegistry
	}
	if env := os.Getenv("PLR_REGISTRY"); env != "" {
		return env
	}
	return defaultRegistry
}
