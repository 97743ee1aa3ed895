package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealcaster/internal/adminapi"
	"dealcaster/internal/ai"
	"dealcaster/internal/aliexpress"
	"dealcaster/internal/category"
	"dealcaster/internal/config"
	"dealcaster/internal/history"
	"dealcaster/internal/redisclient"
	"dealcaster/internal/sched"
	"dealcaster/internal/scoring"
	"dealcaster/internal/telegram"
	"dealcaster/worker"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the posting service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		setupLogger(cfg.App.LogLevel)

		// Redis client
		rdb := redisclient.New(cfg.Redis)
		defer rdb.Close()
		store := history.NewStore(rdb, history.WithRetention(
			time.Duration(cfg.Retention.HistoryDays)*24*time.Hour,
			time.Duration(cfg.Retention.TrendingDays)*24*time.Hour,
		))

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

		loc, err := time.LoadLocation(cfg.Posting.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", cfg.Posting.Timezone, err)
		}

		engine := scoring.NewEngine(store)
		clock := sched.NewRealClock()
		rng := sched.NewRand(time.Now().UnixNano())
		planner := sched.NewPlanner(plannerConfig(cfg.Posting, loc), market, store, engine, rng, clock)
		dispatcher := sched.NewDispatcher(publisher, store, rng, clock)
		scheduler := sched.NewScheduler(planner, dispatcher, clock)

		admin := adminapi.NewServer(cfg.Admin, scheduler, store, market, engine, dispatcher)

		mgr := worker.NewManager(
			&worker.DispatchWorker{Dispatcher: dispatcher},
			&worker.CronWorker{Scheduler: scheduler, Store: store, Location: loc},
			admin,
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Signal handling for systemd
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			s := <-sigc
			log.Printf("received signal: %s, shutting down", s)
			cancel()
		}()

		slog.Info("serve: starting workers.", "admin_addr", cfg.Admin.Addr, "timezone", cfg.Posting.Timezone)
		return mgr.Start(ctx)
	},
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func buildClassifier(cfg config.CategoryConfig) (category.Classifier, error) {
	rules := category.DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := category.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("load category rules: %w", err)
		}
		rules = loaded
	}
	return category.NewKeywordClassifier(rules), nil
}

func plannerConfig(p config.PostingConfig, loc *time.Location) sched.PlannerConfig {
	return sched.PlannerConfig{
		MinPerHour:    p.MinPerHour,
		MaxPerHour:    p.MaxPerHour,
		StartHour:     p.StartHour,
		EndHour:       p.EndHour,
		PeakHours:     p.PeakHours,
		Categories:    p.Categories,
		HotLimit:      p.HotLimit,
		CategoryCount: p.CategoryCount,
		CategoryLimit: p.CategoryLimit,
		MinDiscount:   p.MinDiscount,
		Location:      loc,
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
