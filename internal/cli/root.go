package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set by the linker: -ldflags "-X hisaab/internal/cli.Version=v1.2.3".
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hisaab",
	Short: "Personal ledger with running balances, loans and card accounts",
	Long: `hisaab keeps a running-balance ledger of credits and debits and tracks
money lent, borrowed and owed on credit cards.

Configuration comes from the environment (and .env), optionally layered on
a TOML file given with --config or HISAAB_CONFIG.`,
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		LoadEnvFile()
		if configPath == "" {
			configPath = os.Getenv("HISAAB_CONFIG")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file (default $HISAAB_CONFIG)")
}

// Execute runs the command named on the command line.
func Execute() error {
	return rootCmd.Execute()
}
