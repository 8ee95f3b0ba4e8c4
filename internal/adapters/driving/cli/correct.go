package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driving"
)

var (
	correctKind  string
	correctActor string
)

var correctCmd = &cobra.Command{
	Use:   "correct [doc-id] [target-id] [new-value]",
	Short: "Apply a human correction to an extracted value",
	Long: `Records a human correction in the append-only ledger. The
corrected value becomes current with confidence 1.0; the superseded
value is retained as history.`,
	Args: cobra.ExactArgs(3),
	RunE: runCorrect,
}

var correctionsCmd = &cobra.Command{
	Use:   "corrections [doc-id]",
	Short: "Show a document's correction history",
	Args:  cobra.ExactArgs(1),
	RunE:  runCorrections,
}

func init() {
	correctCmd.Flags().StringVar(&correctKind, "kind", "field", "target kind: field or obligation")
	correctCmd.Flags().StringVar(&correctActor, "actor", "", "who is making the correction")
	rootCmd.AddCommand(correctCmd)
	rootCmd.AddCommand(correctionsCmd)
}

func runCorrect(cmd *cobra.Command, args []string) error {
	if correctionService == nil {
		return errors.New("correction service not configured")
	}

	correction, err := correctionService.Apply(cmd.Context(), driving.CorrectionRequest{
		DocumentID: args[0],
		TargetKind: domain.TargetKind(correctKind),
		TargetID:   args[1],
		NewValue:   args[2],
		Actor:      correctActor,
	})
	if err != nil {
		return fmt.Errorf("correction failed: %w", err)
	}
	cmd.Printf("Recorded correction %s (%s %s: %q -> %q)\n",
		correction.ID, correction.TargetKind, correction.TargetID,
		correction.PreviousValue, correction.NewValue)
	return nil
}

func runCorrections(cmd *cobra.Command, args []string) error {
	if correctionService == nil {
		return errors.New("correction service not configured")
	}
	history, err := correctionService.History(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("history failed: %w", err)
	}
	if len(history) == 0 {
		cmd.Println("No corrections recorded.")
		return nil
	}
	for _, c := range history {
		marker := " "
		if c.Superseded {
			marker = "s"
		}
		cmd.Printf("%s %s  %-10s %-12s %q -> %q\n",
			marker, c.CreatedAt.Format("2006-01-02 15:04:05"),
			c.TargetKind, c.TargetID, c.PreviousValue, c.NewValue)
	}
	return nil
}
