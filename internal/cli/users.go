package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"traffic-light-bot/internal/config"
	"traffic-light-bot/internal/logging"
)

// NewUsersCmd groups operator commands over the user store.
func NewUsersCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect bot users",
	}

	var limit int
	recent := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent users",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log.Mode)
			if err != nil {
				return err
			}
			defer log.Sync()

			b, err := openBackends(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			users, closeUsers, err := openUserStore(cmd.Context(), cfg, b, log)
			if err != nil {
				return err
			}
			defer closeUsers()

			list, err := users.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "no users yet")
				return nil
			}
			for i, u := range list {
				line := fmt.Sprintf("%d. %s", i+1, u.Profile().PlainLabel())
				if u.Score != nil {
					line += fmt.Sprintf(", score %d", *u.Score)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	recent.Flags().IntVar(&limit, "limit", 10, "number of users to list")
	cmd.AddCommand(recent)
	return cmd
}
