// Command matchctl runs the matcher from the command line: one-off matches
// over files, joins across two candidate sets, publishing items to the
// Kafka feed and load testing a running matchd.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/logger"
)

type globalFlags struct {
	logLevel string
	config   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "matchctl",
		Short:         "Fuzzy-match lines of text from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Setup(flags.logLevel, "text")
		},
	}
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.config, "config", "", "config file for Kafka settings")

	root.AddCommand(
		newMatchCmd(),
		newJoinCmd(),
		newPublishCmd(flags),
		newBenchCmd(),
	)
	return root
}
