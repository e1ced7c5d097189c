package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"chatpro/internal/api/v1/router"
	"chatpro/internal/config"
	"chatpro/internal/logger"
	"chatpro/internal/repository"
	"chatpro/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var olderThanFlag time.Duration

var rootCmd = &cobra.Command{
	Use:          "entitlementctl",
	Short:        "Administer subscription entitlements and usage counters",
	SilenceUsage: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd.Context(), func(cfg *config.Config, pool *pgxpool.Pool, lg zerolog.Logger) error {
			applied, err := repository.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
			}
			return nil
		})
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <user-id>",
	Short: "Print the entitlement decision for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, lg, err := loadConfig()
		if err != nil {
			return err
		}
		authClient, err := service.NewFirebaseAuthClient(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		resolver := service.NewEntitlementService(service.NewFirebaseOracle(authClient, lg), cfg.WebProPlan, lg)
		return printJSON(cmd, resolver.Resolve(cmd.Context(), args[0]))
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage <user-id>",
	Short: "Print current usage and limits for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd.Context(), func(cfg *config.Config, pool *pgxpool.Pool, lg zerolog.Logger) error {
			authClient, err := service.NewFirebaseAuthClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			resolver := service.NewEntitlementService(service.NewFirebaseOracle(authClient, lg), cfg.WebProPlan, lg)
			usage := service.NewUsageService(repository.NewUsageRepo(pool), resolver, service.LimitsFromConfig(cfg), lg)
			summary, err := usage.Summary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		})
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete usage counters for elapsed buckets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd.Context(), func(cfg *config.Config, pool *pgxpool.Pool, lg zerolog.Logger) error {
			olderThan := olderThanFlag
			if olderThan <= 0 {
				olderThan = time.Duration(cfg.UsageCounterRetainHours) * time.Hour
			}
			usage := service.NewUsageService(repository.NewUsageRepo(pool), nil, service.LimitsFromConfig(cfg), lg)
			n, err := usage.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d usage counters\n", n)
			return nil
		})
	},
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	lg := logger.New()
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, lg, fmt.Errorf("load config: %w", err)
	}
	return cfg, lg, nil
}

func withPool(ctx context.Context, fn func(*config.Config, *pgxpool.Pool, zerolog.Logger) error) error {
	cfg, lg, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := router.OpenPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(cfg, pool, lg)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	pruneCmd.Flags().DurationVar(&olderThanFlag, "older-than", 0, "delete buckets that started before now minus this duration (default USAGE_COUNTER_RETAIN_HOURS)")
	rootCmd.AddCommand(migrateCmd, resolveCmd, usageCmd, pruneCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
