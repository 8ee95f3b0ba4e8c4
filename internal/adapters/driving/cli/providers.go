package cli

import (
	"errors"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var providersJSON bool

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show the active provider selection",
	RunE:  runProviders,
}

func init() {
	providersCmd.Flags().BoolVar(&providersJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, _ []string) error {
	if providerRegistry == nil {
		return errors.New("provider registry not configured")
	}
	info := providerRegistry.Describe()

	if providersJSON {
		return printJSON(cmd, info)
	}

	cmd.Printf("OCR:       %s\n", info.OCRProvider)
	cmd.Printf("Extract:   %s\n", info.ExtractProvider)
	cmd.Printf("Embedding: %s\n", info.EmbeddingProvider)

	cmd.Println("\nAvailable:")
	capabilities := make([]string, 0, len(info.Available))
	for c := range info.Available {
		capabilities = append(capabilities, c)
	}
	sort.Strings(capabilities)
	for _, c := range capabilities {
		cmd.Printf("  %-10s %s\n", c+":", strings.Join(info.Available[c], ", "))
	}

	cmd.Println("\nFeatures:")
	features := make([]string, 0, len(info.Features))
	for f := range info.Features {
		features = append(features, f)
	}
	sort.Strings(features)
	for _, f := range features {
		cmd.Printf("  %-22s %v\n", f+":", info.Features[f])
	}
	return nil
}
