package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
)

const timeRound = time.Millisecond

var (
	queryLimit      int
	queryMode       string
	queryProjects   []string
	queryContractor string
	queryStatus     string
	queryJSON       bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question over the indexed contracts",
	Long: `Runs hybrid keyword and semantic retrieval over the index and
answers the question with source-linked citations.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "maximum number of sources (0 = configured default)")
	queryCmd.Flags().StringVarP(&queryMode, "mode", "m", "", "search mode: semantic, keyword or hybrid")
	queryCmd.Flags().StringSliceVar(&queryProjects, "project", nil, "restrict to project id(s)")
	queryCmd.Flags().StringVar(&queryContractor, "contractor", "", "restrict to one contractor")
	queryCmd.Flags().StringVar(&queryStatus, "status", "", "restrict to one contract status")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	mode, err := domain.ParseSearchMode(queryMode)
	if err != nil {
		return err
	}

	result, err := queryService.Query(cmd.Context(), driving.QueryRequest{
		Question: args[0],
		Filter: domain.QueryFilter{
			ProjectIDs: queryProjects,
			Contractor: queryContractor,
			Status:     queryStatus,
		},
		MaxResults: queryLimit,
		Mode:       mode,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return printJSON(cmd, result)
	}

	cmd.Println(result.Answer.Text)
	cmd.Println()
	cmd.Printf("Confidence: %.2f (%s, %d result(s), %s)\n",
		result.Answer.Confidence, result.Answer.Type,
		result.SearchResultCount, result.ProcessingTime.Round(timeRound))

	if len(result.Answer.Sources) > 0 {
		cmd.Println("\nSources:")
		for i, src := range result.Answer.Sources {
			cmd.Printf("  [%d] %s (%.2f)\n", i+1, src.DeepLink, src.Score)
			if src.Snippet != "" {
				cmd.Printf("      %s\n", src.Snippet)
			}
		}
	}
	if len(result.Answer.Related) > 0 {
		cmd.Println("\nRelated queries:")
		for _, q := range result.Answer.Related {
			cmd.Printf("  - %s\n", q)
		}
	}
	return nil
}
