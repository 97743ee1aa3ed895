package cmd

import (
	"context"
	"fmt"
	"time"

	"dealcaster/internal/aliexpress"
	"dealcaster/internal/history"
	"dealcaster/internal/redisclient"
	"dealcaster/internal/sched"
	"dealcaster/internal/scoring"

	"github.com/spf13/cobra"
)

// planCmd runs one planning pass and prints the ranked selection without
// posting anything.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run one hourly planning cycle",
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

		loc, err := time.LoadLocation(cfg.Posting.Timezone)
		if err != nil {
			return err
		}
		engine := scoring.NewEngine(store)
		planner := sched.NewPlanner(plannerConfig(cfg.Posting, loc),
			market, store, engine, sched.NewRand(time.Now().UnixNano()), sched.NewRealClock())

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		selection, target, err := planner.PlanHour(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if target == 0 {
			fmt.Fprintln(out, "outside the active posting window")
			return nil
		}
		fmt.Fprintf(out, "target: %d posts, selected: %d\n\n", target, len(selection))
		for i, sp := range selection {
			fmt.Fprintf(out, "%2d. [%5.1f] %s (%s, -%.0f%%)\n",
				i+1, sp.Score, sp.Product.Title, sp.Product.Category, sp.Product.Discount)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}
