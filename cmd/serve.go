package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepwise/internal/api"
	"github.com/abhisek/prepwise/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, log, app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		return api.New(cfg.Server, a.APIDeps()).Run(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default :8080)")
}
