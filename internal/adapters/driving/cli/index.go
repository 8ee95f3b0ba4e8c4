package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
)

var (
	indexFile       string
	indexProject    string
	indexContractor string
	indexStatus     string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the retrieval index",
}

var indexUpsertCmd = &cobra.Command{
	Use:   "upsert [doc-id]",
	Short: "Index or re-index a document",
	Long: `Replaces the document's chunk set in the keyword and vector
indexes. Content is read from --file or from the stored document.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexUpsert,
}

var indexDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Remove a document from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexDelete,
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  runIndexStats,
}

func init() {
	indexUpsertCmd.Flags().StringVarP(&indexFile, "file", "f", "", "read content from a local file")
	indexUpsertCmd.Flags().StringVar(&indexProject, "project", "", "project id filter metadata")
	indexUpsertCmd.Flags().StringVar(&indexContractor, "contractor", "", "contractor filter metadata")
	indexUpsertCmd.Flags().StringVar(&indexStatus, "status", "", "contract status filter metadata")

	indexCmd.AddCommand(indexUpsertCmd)
	indexCmd.AddCommand(indexDeleteCmd)
	indexCmd.AddCommand(indexStatsCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexUpsert(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	var content string
	if indexFile != "" {
		data, err := os.ReadFile(indexFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", filepath.Clean(indexFile), err)
		}
		content = string(data)
	}

	err := indexService.Upsert(cmd.Context(), driving.UpsertRequest{
		DocumentID: args[0],
		Content:    content,
		Meta: domain.FilterMetadata{
			ProjectID:  indexProject,
			Contractor: indexContractor,
			Status:     indexStatus,
		},
	})
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	cmd.Printf("Indexed document %s\n", args[0])
	return nil
}

func runIndexDelete(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	if err := indexService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	cmd.Printf("Removed document %s from the index\n", args[0])
	return nil
}

func runIndexStats(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	stats, err := indexService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}
	cmd.Printf("Documents:  %d\n", stats.Documents)
	cmd.Printf("Chunks:     %d\n", stats.Chunks)
	cmd.Printf("Dimensions: %d\n", stats.Dimensions)
	return nil
}
