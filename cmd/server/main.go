package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"weaponwatch/internal/app"
	"weaponwatch/internal/config"
	"weaponwatch/internal/dto"
	"weaponwatch/internal/logger"
	"weaponwatch/internal/repository/sqlite"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "server",
		Short:         "Weapon detection server: live video, incidents and alerts",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}

			log, err := logger.NewLogger(cfg.LogDirectory)
			if err != nil {
				return err
			}
			defer log.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.NewApp(cfg, log)
			if err != nil {
				log.Error("Failed to start server: %v", err)
				return err
			}
			return application.Run(ctx)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file loaded before reading configuration")

	root.AddCommand(newStatsCommand(&envFile))
	return root
}

func newStatsCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print incident totals, label distribution and daily timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}

			db, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := sqlite.NewIncidentRepository(db)
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			total, err := repo.CountAll(ctx)
			if err != nil {
				return err
			}
			labels, err := repo.AggregateByField(ctx, dto.FieldLabel)
			if err != nil {
				return err
			}
			days, err := repo.AggregateByPeriod(ctx, dto.GranularityDay)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "📊 Incident Statistics (%s)\n", cfg.DatabasePath)
			fmt.Fprintf(out, "   Total incidents: %d\n", total)
			fmt.Fprintf(out, "   Per label:\n")
			for _, c := range labels {
				fmt.Fprintf(out, "      - %s: %d\n", c.Category, c.Count)
			}
			fmt.Fprintf(out, "   Per day:\n")
			for _, p := range days {
				fmt.Fprintf(out, "      - %s: %d\n", p.Period, p.Count)
			}
			return nil
		},
	}
}
