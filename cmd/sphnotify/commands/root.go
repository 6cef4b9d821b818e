package commands

import (
	"context"
	"fmt"
	"os"

	"sphnotify/lib/pushover"
	"sphnotify/lib/restyutil"
	"sphnotify/lib/scrapers/sph"
	"sphnotify/lib/telemetry"

	"github.com/spf13/cobra"
)

var configFile string
var verbose bool
var dumpHttpDir string

var rootCmd = &cobra.Command{
	Use:   "sphnotify",
	Short: "sphnotify watches a Schulportal Hessen substitution plan and pushes new entries.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
		if dumpHttpDir != "" {
			output := restyutil.NewFilesystemOutput(dumpHttpDir)
			sph.SetRestyInstrumentOutput(output)
			pushover.SetRestyInstrumentOutput(output)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&configFile, "config", "c", "config.json5",
		"Path to the configuration file.",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false,
		"Enable verbose logging/instrumentation.",
	)
	rootCmd.PersistentFlags().StringVar(
		&dumpHttpDir, "dump-http", "",
		"Dump all portal and push requests/responses into this directory.",
	)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
