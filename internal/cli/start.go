package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"maxbridge/internal/daemon"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the bridge for all enabled accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info().Msg("maxbridge starting")
		err = daemon.New(cfg, log).Run(ctx)
		if err != nil && ctx.Err() == context.Canceled {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
