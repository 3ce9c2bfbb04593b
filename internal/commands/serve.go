package commands

import (
	"os/signal"
	"syscall"

	"github.com/gm-agent-org/gm-settings/pkg/api"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd(opts *Options) *cobra.Command {
	var addr, apiKey string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the settings HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(opts, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(ctx); err != nil {
				return err
			}

			cfg := api.Config{Addr: a.cfg.HTTP.Addr, APIKey: a.cfg.HTTP.APIKey, Version: Version}
			if addr != "" {
				cfg.Addr = addr
			}
			if apiKey != "" {
				cfg.APIKey = apiKey
			}
			return api.NewServer(cfg, a.agg, a.center, a.log).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Require this X-API-Key on /api/v1")
	return cmd
}
