package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"maxbridge/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Interactive first-run setup",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		reader := bufio.NewReader(cmd.InOrStdin())
		prompt := func(label, fallback string) string {
			if fallback != "" {
				fmt.Fprintf(out, "%s [%s]: ", label, fallback)
			} else {
				fmt.Fprintf(out, "%s: ", label)
			}
			line, _ := reader.ReadString('\n')
			line = strings.TrimSpace(line)
			if line == "" {
				return fallback
			}
			return line
		}

		cfg, err := loadConfig()
		if err != nil {
			cfg = config.DefaultConfig()
		}

		fmt.Fprintln(out, "maxbridge setup")
		fmt.Fprintln(out)

		tokenEnv := prompt("Bot token environment variable (empty to store token in config)", cfg.Max.BotTokenEnv)
		if tokenEnv != "" {
			cfg.Max.BotTokenEnv = tokenEnv
			cfg.Max.BotToken = ""
		} else {
			cfg.Max.BotToken = prompt("Bot token", cfg.Max.BotToken)
		}

		cfg.Max.DMPolicy = prompt("DM policy (pairing/allowlist/open/disabled)", cfg.Max.DMPolicy)
		cfg.Max.GroupPolicy = prompt("Group policy (allowlist/open/disabled)", cfg.Max.GroupPolicy)
		cfg.Host.Endpoint = prompt("Host endpoint URL", cfg.Host.Endpoint)
		cfg.Host.AgentID = prompt("Agent id", cfg.Host.AgentID)

		webhookURL := prompt("Public webhook URL (empty for polling mode)", cfg.Max.Webhook.URL)
		cfg.Max.Webhook.URL = webhookURL
		if webhookURL != "" {
			cfg.Max.Webhook.Secret = prompt("Webhook secret", cfg.Max.Webhook.Secret)
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		if flagConfig != "" {
			err = config.SaveTo(cfg, flagConfig)
		} else {
			err = config.Save(cfg)
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, "configuration saved; run 'maxbridge start' to launch")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configureCmd)
}
