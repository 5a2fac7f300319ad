package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Retrain the merchant's co-purchase model",
		Long: "Retrains the model from the full transaction history and waits for " +
			"the result. With --all, queues a background retrain for every merchant.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			if all {
				n, err := apiClient.Admin.RetrainAll(cmd.Context())
				if err != nil {
					return fmt.Errorf("retrain all: %w", err)
				}
				return render(out, map[string]int{"queued": n}, strconv.Itoa(n), nil)
			}

			res, err := apiClient.Training.Train(cmd.Context())
			if err != nil {
				return fmt.Errorf("train: %w", err)
			}

			tbl := &table{
				headers: []string{"SUCCESS", "REASON", "VOCAB", "PAIRS", "SAMPLES", "DURATION_MS"},
				rows: [][]string{{
					yesNo(res.Success), res.Reason,
					strconv.Itoa(res.VocabSize), strconv.Itoa(res.PairsCount),
					strconv.Itoa(res.SampleCount), strconv.FormatInt(res.DurationMS, 10),
				}},
			}
			if err := render(out, res, yesNo(res.Success), tbl); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("training did not produce a model: %s", res.Reason)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Queue a background retrain for every merchant")

	return cmd
}
