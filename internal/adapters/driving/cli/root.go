// Package cli implements the clauselens command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/clauselens/clauselens/internal/core/ports/driving"
	"github.com/clauselens/clauselens/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services wired in by main before Execute.
var (
	extractionService driving.ExtractionService
	queryService      driving.QueryService
	correctionService driving.CorrectionService
	indexService      driving.IndexService
	documentService   driving.DocumentService
	jobService        driving.JobService
	providerRegistry  driving.ProviderRegistry
	listenAddr        string
)

var verboseFlag bool

// configPath is the --config flag, read by main before wiring.
var configPath string

// bootstrap builds the service graph once flags are parsed, so the
// --config flag is honoured. Installed by main.
var bootstrap func(configPath string) (Wiring, error)

var rootCmd = &cobra.Command{
	Use:   "clauselens",
	Short: "Contract document intelligence and retrieval",
	Long: `clauselens extracts structured metadata and obligations from
contract documents, indexes them for hybrid keyword and semantic
retrieval, and answers natural-language questions with source-linked
citations.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verboseFlag)
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		if providerRegistry == nil && bootstrap != nil {
			w, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			SetWiring(w)
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
}

// Wiring holds the services the CLI depends on.
type Wiring struct {
	Extraction driving.ExtractionService
	Query      driving.QueryService
	Correction driving.CorrectionService
	Index      driving.IndexService
	Documents  driving.DocumentService
	Jobs       driving.JobService
	Registry   driving.ProviderRegistry
	ListenAddr string
	Version    string
}

// SetWiring installs the services before Execute runs a command.
func SetWiring(w Wiring) {
	extractionService = w.Extraction
	queryService = w.Query
	correctionService = w.Correction
	indexService = w.Index
	documentService = w.Documents
	jobService = w.Jobs
	providerRegistry = w.Registry
	listenAddr = w.ListenAddr
	if w.Version != "" {
		version = w.Version
	}
}

// SetBootstrap installs the deferred service constructor.
func SetBootstrap(fn func(configPath string) (Wiring, error)) {
	bootstrap = fn
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
