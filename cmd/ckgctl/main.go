// Command ckgctl is the operator CLI for the analysis pipeline: enqueue
// jobs, inspect request status and findings, store provider credentials,
// and dry-run the parsers against a local tree.
package main

import (
	"fmt"
	"os"

	"github.com/novaguard-ai/ckg-pipeline/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"

	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ckgctl",
	Short: "Operator tooling for the CKG analysis pipeline",
	Long: `ckgctl submits analysis jobs to the queue, inspects their progress
and findings, and manages provider credentials. The heavy lifting happens
in ckg-worker; this tool only talks to the queue and the request store.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logrus.New()
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			logger.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: env + built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`ckgctl {{.Version}}
Build time: ` + BuildTime + `
`)

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(findingsCmd)
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(parseCmd)
}
