package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/clauselens/clauselens/internal/adapters/driving/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the JSON HTTP API exposing extraction, indexing, query
and correction endpoints.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if queryService == nil {
		return errors.New("services not configured")
	}

	addr := serveAddr
	if addr == "" {
		addr = listenAddr
	}
	if addr == "" {
		addr = ":8000"
	}

	server := httpapi.NewServer(
		extractionService,
		queryService,
		correctionService,
		indexService,
		documentService,
		jobService,
		providerRegistry,
	)
	return server.ListenAndServe(addr)
}
