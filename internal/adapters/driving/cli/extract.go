package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
)

var (
	extractFile      string
	extractDoc       string
	extractKeys      []string
	extractThreshold float64
	extractForce     bool
	extractJSON      bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured data from contracts",
}

var extractMetadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Extract contract metadata fields",
	Long: `Extracts the enumerated metadata fields (project, client, value,
dates, payment terms and so on) from a stored document or a local text
file, with per-field confidence and text provenance.`,
	RunE: runExtractMetadata,
}

var extractObligationsCmd = &cobra.Command{
	Use:   "obligations",
	Short: "Extract contractual obligations",
	Long: `Extracts obligations with normalised frequency, category, due
dates and penalty clauses from a stored document or a local text file.`,
	RunE: runExtractObligations,
}

var includePenalties bool

func init() {
	for _, c := range []*cobra.Command{extractMetadataCmd, extractObligationsCmd} {
		c.Flags().StringVarP(&extractFile, "file", "f", "", "read text from a local file")
		c.Flags().StringVarP(&extractDoc, "document", "d", "", "extract from a stored document id")
		c.Flags().Float64Var(&extractThreshold, "threshold", 0, "confidence threshold (0 = configured default)")
		c.Flags().BoolVar(&extractJSON, "json", false, "output results as JSON")
	}
	extractMetadataCmd.Flags().StringSliceVarP(&extractKeys, "keys", "k", nil, "restrict to the given field keys")
	extractMetadataCmd.Flags().BoolVar(&extractForce, "force", false, "re-extract human-confirmed fields")
	extractObligationsCmd.Flags().BoolVar(&includePenalties, "penalties", true, "search for penalty clauses near obligations")

	extractCmd.AddCommand(extractMetadataCmd)
	extractCmd.AddCommand(extractObligationsCmd)
	rootCmd.AddCommand(extractCmd)
}

// extractInput resolves the --file / --document flags into the request
// text or document id.
func extractInput() (documentID, text string, err error) {
	switch {
	case extractFile != "" && extractDoc != "":
		return "", "", errors.New("use either --file or --document, not both")
	case extractFile != "":
		data, err := os.ReadFile(extractFile)
		if err != nil {
			return "", "", fmt.Errorf("reading %s: %w", extractFile, err)
		}
		return "", string(data), nil
	case extractDoc != "":
		return extractDoc, "", nil
	default:
		return "", "", errors.New("one of --file or --document is required")
	}
}

func runExtractMetadata(cmd *cobra.Command, _ []string) error {
	if extractionService == nil {
		return errors.New("extraction service not configured")
	}
	documentID, text, err := extractInput()
	if err != nil {
		return err
	}

	keys := make([]domain.FieldKey, 0, len(extractKeys))
	for _, k := range extractKeys {
		key, err := domain.ParseFieldKey(k)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}

	result, err := extractionService.ExtractMetadata(cmd.Context(), driving.MetadataRequest{
		DocumentID:          documentID,
		Text:                text,
		Keys:                keys,
		ConfidenceThreshold: extractThreshold,
		ForceReextraction:   extractForce,
	})
	if err != nil {
		return fmt.Errorf("metadata extraction failed: %w", err)
	}

	if extractJSON {
		return printJSON(cmd, result)
	}

	cmd.Printf("Extracted %d field(s) in %s (provider: %s, overall confidence %.2f)\n\n",
		len(result.Fields), result.ProcessingTime.Round(timeRound), result.Provider, result.OverallConfidence)
	for _, f := range result.Fields {
		cmd.Printf("  %-15s %s (%.2f, %s)\n", f.Key, f.Value, f.Confidence, f.Source)
	}
	if len(result.SkippedKeys) > 0 {
		cmd.Printf("\nSkipped human-confirmed keys: %v\n", result.SkippedKeys)
	}
	return nil
}

func runExtractObligations(cmd *cobra.Command, _ []string) error {
	if extractionService == nil {
		return errors.New("extraction service not configured")
	}
	documentID, text, err := extractInput()
	if err != nil {
		return err
	}

	result, err := extractionService.ExtractObligations(cmd.Context(), driving.ObligationsRequest{
		DocumentID:          documentID,
		Text:                text,
		IncludePenalties:    includePenalties,
		ConfidenceThreshold: extractThreshold,
	})
	if err != nil {
		return fmt.Errorf("obligation extraction failed: %w", err)
	}

	if extractJSON {
		return printJSON(cmd, result)
	}

	cmd.Printf("Extracted %d obligation(s) in %s (coverage %.0f%%, avg confidence %.2f)\n\n",
		len(result.Obligations), result.ProcessingTime.Round(timeRound),
		result.CoverageRate*100, result.AverageConfidence)
	for i, ob := range result.Obligations {
		cmd.Printf("  [%d] (%s, %s, %.2f) %s\n", i+1, ob.Category, ob.Frequency, ob.Confidence, ob.Description)
		if ob.DueDate != "" {
			cmd.Printf("      Due: %s\n", ob.DueDate)
		}
		if ob.PenaltyText != "" {
			cmd.Printf("      Penalty: %s\n", ob.PenaltyText)
		}
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
