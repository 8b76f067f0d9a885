package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"traffic-light-bot/internal/config"
	transport "traffic-light-bot/internal/transport/http"
)

// NewAdminTokenCmd prints a bearer token for the operator API.
func NewAdminTokenCmd(configPath *string) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Issue a JWT for the operator API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Bot.AdminID == 0 {
				return errors.New("admin id is not set (ADMIN_ID)")
			}
			token, err := transport.IssueAdminToken(cfg.HTTP.JWTSecret, cfg.Bot.AdminID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
