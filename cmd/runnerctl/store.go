package main

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/xraph/runner/store"
	"github.com/xraph/runner/store/memory"
	"github.com/xraph/runner/store/postgres"
	redisstore "github.com/xraph/runner/store/redis"
	"github.com/xraph/runner/store/sqlite"
)

// openStore opens the flag store selected by --store and --dsn. The
// returned redis client is non-nil only for the redis backend.
func openStore(ctx context.Context, cmd *cobra.Command, logger *slog.Logger) (store.FlagStore, *goredis.Client, error) {
	kind, _ := cmd.Flags().GetString("store")
	dsn, _ := cmd.Flags().GetString("dsn")

	switch kind {
	case "memory", "":
		return memory.New(), nil, nil
	case "sqlite":
		if dsn == "" {
			dsn = "runner.db"
		}
		s, err := sqlite.Open(dsn, sqlite.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case "postgres":
		if dsn == "" {
			return nil, nil, fmt.Errorf("--dsn is required for the postgres store")
		}
		s, err := postgres.New(ctx, dsn, postgres.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case "redis":
		if dsn == "" {
			dsn = "localhost:6379"
		}
		client := goredis.NewClient(&goredis.Options{Addr: dsn})
		return redisstore.New(client, redisstore.WithLogger(logger)), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", kind)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the flag store schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := newLogger(cmd)

			s, client, err := openStore(ctx, cmd, logger)
			if err != nil {
				return err
			}
			defer s.Close()
			if client != nil {
				defer client.Close()
			}

			if err := s.Ping(ctx); err != nil {
				return fmt.Errorf("ping store: %w", err)
			}
			if err := s.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "flag store ready")
			return nil
		},
	}
}
