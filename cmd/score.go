package cmd

import (
	"context"
	"fmt"
	"time"

	"dealcaster/internal/aliexpress"
	"dealcaster/internal/history"
	"dealcaster/internal/redisclient"
	"dealcaster/internal/scoring"

	"github.com/spf13/cobra"
)

// scoreCmd prints the score breakdown for one product.
var scoreCmd = &cobra.Command{
	Use:   "score <product-id>",
	Short: "Show the score breakdown for a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		rdb := redisclient.New(cfg.Redis)
		defer rdb.Close()
		store := history.NewStore(rdb)

		classifier, err := buildClassifier(cfg.Category)
		if err != nil {
			return err
		}
		market := aliexpress.NewClient(cfg.AliExpress, classifier)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		p, err := market.FetchDetails(ctx, args[0])
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("product %s not found", args[0])
		}

		b := scoring.NewEngine(store).ScoreDetailed(ctx, *p)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n\n", p.Title)
		fmt.Fprintf(out, "discount:    %5.1f\n", b.Discount)
		fmt.Fprintf(out, "rating:      %5.1f\n", b.Rating)
		fmt.Fprintf(out, "volume:      %5.1f\n", b.Volume)
		fmt.Fprintf(out, "commission:  %5.1f\n", b.Commission)
		fmt.Fprintf(out, "trending:    %5.1f\n", b.Trending)
		fmt.Fprintf(out, "historical:  %5.1f\n", b.Historical)
		fmt.Fprintf(out, "freshness:   %5.1f\n", b.Freshness)
		fmt.Fprintf(out, "boost:       %5.1f\n", b.Boost)
		fmt.Fprintf(out, "final:       %5.1f\n", b.Final)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
