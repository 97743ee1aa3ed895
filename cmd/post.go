package cmd

import (
	"context"
	"fmt"
	"time"

	"dealcaster/internal/ai"
	"dealcaster/internal/aliexpress"
	"dealcaster/internal/history"
	"dealcaster/internal/redisclient"
	"dealcaster/internal/scoring"
	"dealcaster/internal/telegram"

	"github.com/spf13/cobra"
)

// postCmd posts one product to the channel immediately, bypassing the
// cooldown rules.
var postCmd = &cobra.Command{
	Use:   "post <product-id>",
	Short: "Force-post a product to the channel",
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

		var captioner telegram.Captioner
		if cfg.OpenAI.APIKey != "" {
			captioner = ai.NewOpenAI(ai.Config{
				APIKey:   cfg.OpenAI.APIKey,
				Model:    cfg.OpenAI.Model,
				BaseURL:  cfg.OpenAI.BaseURL,
				Language: cfg.OpenAI.Language,
			})
		}
		publisher := telegram.NewClient(cfg.Telegram, cfg.Admin.PublicBaseURL, captioner)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		p, err := market.FetchDetails(ctx, args[0])
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("product %s not found", args[0])
		}

		score := scoring.NewEngine(store).Score(ctx, *p)
		if err := publisher.Publish(ctx, *p); err != nil {
			return err
		}
		if err := store.RecordPost(ctx, *p, score); err != nil {
			return fmt.Errorf("posted but not recorded: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "posted %s (score %.1f)\n", p.ID, score)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(postCmd)
}
