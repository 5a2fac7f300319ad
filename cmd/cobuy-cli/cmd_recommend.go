package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newRecommendCmd() *cobra.Command {
	var (
		limit  int
		scores bool
	)

	cmd := &cobra.Command{
		Use:   "recommend PRODUCT_ID...",
		Short: "Suggest products frequently bought with the given cart",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, cart []string) error {
			out := cmd.OutOrStdout()

			if scores {
				scored, err := apiClient.Recommendations.Scores(cmd.Context(), cart, limit)
				if err != nil {
					return fmt.Errorf("scores: %w", err)
				}
				tbl := &table{headers: []string{"PRODUCT", "SCORE"}}
				ids := make([]string, 0, len(scored))
				for _, s := range scored {
					tbl.rows = append(tbl.rows, []string{s.ProductID, formatScore(s.Score)})
					ids = append(ids, s.ProductID)
				}
				return render(out, scored, strings.Join(ids, "\n"), tbl)
			}

			recs, err := apiClient.Recommendations.Get(cmd.Context(), cart, limit)
			if err != nil {
				return fmt.Errorf("recommend: %w", err)
			}
			tbl := &table{headers: []string{"PRODUCT", "NAME", "PRICE", "STOCK", "SCORE"}}
			ids := make([]string, 0, len(recs))
			for _, r := range recs {
				tbl.rows = append(tbl.rows, []string{
					r.ID, r.Name, strconv.FormatFloat(r.Price, 'f', 2, 64),
					strconv.Itoa(r.Stock), formatScore(r.Score),
				})
				ids = append(ids, r.ID)
			}
			return render(out, recs, strings.Join(ids, "\n"), tbl)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum suggestions (0 uses the server default)")
	cmd.Flags().BoolVar(&scores, "scores", false, "Show raw ranked scores without catalog details")

	return cmd
}

func formatScore(s float64) string {
	return strconv.FormatFloat(s, 'f', 4, 64)
}
