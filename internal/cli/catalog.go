package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"traffic-light-bot/internal/catalog"
	"traffic-light-bot/internal/config"
	"traffic-light-bot/internal/infra/postgres"
	redisinfra "traffic-light-bot/internal/infra/redis"
	"traffic-light-bot/internal/logging"
)

// NewCatalogCmd manages catalogs stored in Postgres.
func NewCatalogCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage question catalogs",
	}

	var file, id string
	push := &cobra.Command{
		Use:   "push",
		Short: "Validate a YAML catalog and store it in Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if id == "" {
				id = cfg.Catalog.PostgresID
			}
			if id == "" {
				return errors.New("catalog id is required (--id or catalog.postgres_id)")
			}
			log, err := logging.New(cfg.Log.Mode)
			if err != nil {
				return err
			}
			defer log.Sync()

			var cat *catalog.Catalog
			if file == "" {
				cat, err = catalog.Default()
			} else {
				cat, err = catalog.Load(file)
			}
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := runMigrations(ctx, cfg, log); err != nil {
				return err
			}
			b, err := openBackends(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := postgres.NewCatalogLoader(b.pool).SaveCatalog(ctx, id, cat); err != nil {
				return err
			}
			if b.redis != nil {
				cache := redisinfra.NewCatalogCache(b.redis, postgres.NewCatalogLoader(b.pool), catalogCacheTTL)
				if err := cache.Invalidate(ctx, id); err != nil {
					log.Warn("catalog cache invalidation failed", "id", id, "error", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog %q stored (%d questions)\n", id, cat.Len())
			return nil
		},
	}
	push.Flags().StringVar(&file, "file", "", "YAML catalog (defaults to the embedded one)")
	push.Flags().StringVar(&id, "id", "", "catalog id (defaults to catalog.postgres_id)")
	cmd.AddCommand(push)
	return cmd
}
