package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent training runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := apiClient.Training.Runs(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("runs: %w", err)
			}

			tbl := &table{headers: []string{"STARTED", "TRIGGER", "SUCCESS", "REASON", "VOCAB", "DURATION_MS"}}
			ids := make([]string, 0, len(runs))
			for _, r := range runs {
				tbl.rows = append(tbl.rows, []string{
					r.StartedAt.Local().Format(time.DateTime), r.Trigger, yesNo(r.Success),
					r.Reason, strconv.Itoa(r.VocabSize), strconv.FormatInt(r.DurationMS, 10),
				})
				ids = append(ids, r.ID)
			}
			return render(cmd.OutOrStdout(), runs, strings.Join(ids, "\n"), tbl)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show (max 100)")

	return cmd
}
