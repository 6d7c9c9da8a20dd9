// Command keyfinder searches secp256k1 private keys for addresses in a
// target list.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "keyfinder",
		Short:         "Search secp256k1 private keys for target addresses",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML, JSON or TOML)")
	root.AddCommand(newSearchCommand(), newConvertTargetsCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
