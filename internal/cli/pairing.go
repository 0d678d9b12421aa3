package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"maxbridge/internal/config"
	"maxbridge/pkg/pairing"
)

var pairingAccount string

var pairingCmd = &cobra.Command{
	Use:   "pairing",
	Short: "Manage DM pairing requests and the allowlist",
}

var pairingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending pairing requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := pairingManager()
		if err != nil {
			return err
		}
		pending := mgr.ListPending()
		if len(pending) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no pending pairing requests")
			return nil
		}
		for _, entry := range pending {
			name := entry.Name
			if name == "" {
				name = entry.Username
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  user=%s  %s  requested %s\n",
				entry.Code, entry.UserID, name, entry.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var pairingApproveCmd = &cobra.Command{
	Use:   "approve <code>",
	Short: "Approve a pairing code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := pairingManager()
		if err != nil {
			return err
		}
		userID, err := mgr.Approve(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "approved user %s\n", userID)
		return nil
	},
}

var pairingRevokeCmd = &cobra.Command{
	Use:   "revoke <user-id>",
	Short: "Remove a user from the allowlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := pairingManager()
		if err != nil {
			return err
		}
		if err := mgr.Revoke(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "revoked user %s\n", args[0])
		return nil
	},
}

var pairingApprovedCmd = &cobra.Command{
	Use:   "approved",
	Short: "List approved users",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := pairingManager()
		if err != nil {
			return err
		}
		approved := mgr.ListApproved()
		if len(approved) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no approved users")
			return nil
		}
		for _, id := range approved {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func pairingManager() (*pairing.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if _, err := cfg.ResolveAccount(pairingAccount); err != nil {
		return nil, err
	}
	dir := filepath.Join(cfg.DataDir, "accounts", pairingAccount, "pairing")
	return pairing.NewManager(dir)
}

func init() {
	pairingCmd.PersistentFlags().StringVar(&pairingAccount, "account", config.DefaultAccountID, "account to manage")
	pairingCmd.AddCommand(pairingListCmd, pairingApproveCmd, pairingRevokeCmd, pairingApprovedCmd)
	rootCmd.AddCommand(pairingCmd)
}
