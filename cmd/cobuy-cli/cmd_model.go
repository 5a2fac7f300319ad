package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/cobuy/client"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Show the merchant's live model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := apiClient.Model.Get(cmd.Context())
			if client.IsNotTrained(err) {
				return fmt.Errorf("no model trained yet; run: cobuy train")
			}
			if err != nil {
				return fmt.Errorf("model: %w", err)
			}

			tbl := &table{
				headers: []string{"FIELD", "VALUE"},
				rows: [][]string{
					{"Generation", info.Generation},
					{"Trained at", info.TrainedAt.Format(time.RFC3339)},
					{"Vocabulary", strconv.Itoa(info.VocabSize)},
					{"Embedding dim", strconv.Itoa(info.EmbeddingDim)},
					{"Pairs", strconv.Itoa(info.PairsCount)},
					{"Samples", strconv.Itoa(info.SampleCount)},
					{"Checksum", info.Checksum},
				},
			}
			return render(cmd.OutOrStdout(), info, info.Generation, tbl)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Delete the merchant's model; recommendations return empty until retrained",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := apiClient.Model.Delete(cmd.Context()); err != nil {
				if client.IsNotTrained(err) {
					return fmt.Errorf("no model to delete")
				}
				return fmt.Errorf("delete model: %w", err)
			}
			return render(cmd.OutOrStdout(), map[string]bool{"deleted": true}, "deleted", nil)
		},
	})

	return cmd
}
