package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"quizsolver/domain/entities"
	"quizsolver/infrastructure/storage"

	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List recorded runs",
		Long:  `List the most recent runs, or show one run in detail when a session id is given.`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}
	cmd.Flags().IntP("limit", "n", 20, "number of runs to list")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	history, err := storage.OpenRunHistory(cfg.History.Dir)
	if err != nil {
		return err
	}
	defer history.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		record, err := history.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printRecord(out, record)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := history.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	printTable(out, records)
	return nil
}

func printTable(out io.Writer, records []entities.RunRecord) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTARTED\tOUTCOME\tSUBMISSIONS\tDURATION\tEMAIL\tSTART URL")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Outcome,
			r.Submissions,
			formatDuration(r),
			r.Email,
			r.StartURL,
		)
	}
	_ = w.Flush()
}

func printRecord(out io.Writer, r entities.RunRecord) {
	fmt.Fprintf(out, "Session:     %s\n", r.ID)
	fmt.Fprintf(out, "Email:       %s\n", r.Email)
	fmt.Fprintf(out, "Start URL:   %s\n", r.StartURL)
	fmt.Fprintf(out, "Last URL:    %s\n", r.LastURL)
	fmt.Fprintf(out, "Outcome:     %s\n", r.Outcome)
	fmt.Fprintf(out, "Submissions: %d\n", r.Submissions)
	fmt.Fprintf(out, "Duration:    %s\n", formatDuration(r))
	if r.Error != "" {
		fmt.Fprintf(out, "Error:       %s\n", r.Error)
	}
}

func formatDuration(r entities.RunRecord) string {
	if r.FinishedAt.IsZero() {
		return "-"
	}
	return r.Duration().Round(time.Millisecond).String()
}
