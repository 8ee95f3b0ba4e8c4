package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/clauselens/clauselens/internal/core/ports/driven"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage stored documents",
}

var documentIngestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "OCR a document and store the page model",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentIngest,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored document ids",
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document, its chunks and index entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var (
	ingestID        string
	ingestLanguages []string
	ingestLayout    bool
)

func init() {
	documentIngestCmd.Flags().StringVar(&ingestID, "id", "", "document id (generated when empty)")
	documentIngestCmd.Flags().StringSliceVar(&ingestLanguages, "lang", nil, "expected document language(s)")
	documentIngestCmd.Flags().BoolVar(&ingestLayout, "layout", false, "extract layout blocks")

	documentCmd.AddCommand(documentIngestCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentIngest(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	doc, err := documentService.Ingest(cmd.Context(), driving.IngestRequest{
		DocumentID: ingestID,
		SourceKey:  filepath.Base(args[0]),
		Data:       data,
		Hints: driven.OCRHints{
			Languages:     ingestLanguages,
			ExtractLayout: ingestLayout,
		},
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	cmd.Printf("Stored document %s (%d page(s))\n", doc.ID, len(doc.Pages))
	return nil
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	ids, err := documentService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	if len(ids) == 0 {
		cmd.Println("No documents stored.")
		return nil
	}
	for _, id := range ids {
		cmd.Println(id)
	}
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	doc, err := documentService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}
	cmd.Printf("ID:         %s\n", doc.ID)
	cmd.Printf("Source key: %s\n", doc.SourceKey)
	cmd.Printf("Language:   %s\n", doc.Language)
	cmd.Printf("Pages:      %d\n", len(doc.Pages))
	cmd.Printf("Updated:    %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	if err := documentService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	cmd.Printf("Deleted document %s\n", args[0])
	return nil
}
