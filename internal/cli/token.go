package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sigma-quiz-service/internal/auth"
	"sigma-quiz-service/internal/config"
	"sigma-quiz-service/internal/domain"
)

// NewTokenCmd issues a signed operator token.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		roles   []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed operator token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = config.TTLDuration(cfg.Auth.TokenTTL, 12*time.Hour)
			}
			parsed := make([]domain.Role, 0, len(roles))
			for _, r := range roles {
				parsed = append(parsed, domain.Role(strings.TrimSpace(r)))
			}
			tok, err := issuer.Issue(subject, parsed, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "operator the token is issued to")
	cmd.Flags().StringSliceVar(&roles, "role", []string{string(domain.RoleQuizMaster)}, "role to grant (super_admin, quiz_master, adhoc); repeatable")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
