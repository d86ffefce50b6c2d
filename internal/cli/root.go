// Package cli wires configuration, storage backends and services into the
// burnbox commands.
package cli

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/burnbox/server/internal/config"
	"github.com/burnbox/server/internal/model"
	"github.com/burnbox/server/internal/repository/memory"
	"github.com/burnbox/server/internal/repository/postgres"
	redisrepo "github.com/burnbox/server/internal/repository/redis"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "burnbox",
		Short:         "One-time-view secret exchange server",
		Version:       fmt.Sprintf("%s (built %s, commit %s)", buildVersion, buildDate, buildCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newRemindCommand())

	return root
}

func Execute() error {
	return NewRootCommand().Execute()
}

// backend bundles a secret store with its matching reminder ledger. Both
// always live in the same backend so scan and ledger views stay consistent.
type backend struct {
	store  model.SecretStore
	ledger model.ReminderLedger
}

func openBackend(cmd *cobra.Command, cfg *config.Config) (*backend, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := postgres.NewConnection(cmd.Context(), cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		return &backend{
			store:  postgres.NewSecretRepository(db),
			ledger: postgres.NewReminderRepository(db),
		}, nil

	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(cmd.Context()).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return &backend{
			store:  redisrepo.NewStoreWithClient(client),
			ledger: redisrepo.NewLedger(client),
		}, nil

	case "memory":
		return &backend{
			store:  memory.NewStore(),
			ledger: memory.NewLedger(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
