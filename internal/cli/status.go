package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"maxbridge/internal/config"
	"maxbridge/pkg/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured accounts and recent session activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "channel enabled: %v\n", cfg.Max.Enabled)
		fmt.Fprintf(out, "host endpoint:   %s\n", valueOr(cfg.Host.Endpoint, "(not set)"))

		for _, id := range cfg.AccountIDs() {
			account, err := cfg.ResolveAccount(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\naccount %s\n", account.ID)
			fmt.Fprintf(out, "  enabled:      %v\n", account.Enabled)
			fmt.Fprintf(out, "  token:        %s\n", tokenSummary(account))
			fmt.Fprintf(out, "  dm policy:    %s\n", account.DMPolicy)
			fmt.Fprintf(out, "  group policy: %s\n", account.GroupPolicy)
			if account.Webhook.URL != "" {
				fmt.Fprintf(out, "  mode:         webhook (%s)\n", account.Webhook.URL)
			} else {
				fmt.Fprintf(out, "  mode:         polling\n")
			}

			sessionsPath := filepath.Join(cfg.DataDir, "accounts", account.ID, "sessions.json")
			store, err := session.NewStore(sessionsPath)
			if err != nil {
				fmt.Fprintf(out, "  sessions:     unavailable (%v)\n", err)
				continue
			}
			sessions := store.List()
			fmt.Fprintf(out, "  sessions:     %d\n", len(sessions))
			for i, s := range sessions {
				if i == 5 {
					fmt.Fprintf(out, "    ...\n")
					break
				}
				fmt.Fprintf(out, "    %s  in=%d out=%d  last=%s\n",
					s.Key, s.InboundCount, s.OutboundCount, s.LastActivity.Format("2006-01-02 15:04:05"))
			}
		}
		return nil
	},
}

func tokenSummary(account *config.ResolvedAccount) string {
	switch account.TokenSource {
	case config.TokenSourceLiteral:
		return "configured"
	case config.TokenSourceEnv:
		if account.Token == "" {
			return "environment variable (unset)"
		}
		return "from environment"
	default:
		return "missing"
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
