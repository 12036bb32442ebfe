package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/samirrijal/bilbopark/internal/pkg/config"
	"github.com/samirrijal/bilbopark/internal/pkg/logging"
	"github.com/samirrijal/bilbopark/migrations"
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the bilbopark database schema",
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ms, err := migrations.Up()
		if err != nil {
			return fmt.Errorf("load migrations: %w", err)
		}
		return run(cmd.Context(), ms)
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Drop the schema created by up",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ms, err := migrations.Down()
		if err != nil {
			return fmt.Errorf("load migrations: %w", err)
		}
		return run(cmd.Context(), ms)
	},
}

func init() {
	rootCmd.AddCommand(upCmd, downCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, ms []migrations.Migration) error {
	cfg, err := config.Load("bilbopark-migrate")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	for _, m := range ms {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("exec %s: %w", m.Name, err)
		}
		slog.Info("migration applied", "file", m.Name)
	}

	slog.Info("all migrations applied", "count", len(ms))
	return nil
}
