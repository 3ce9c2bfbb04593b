package commands

import (
	"context"
	"fmt"

	"github.com/gm-agent-org/gm-settings/pkg/provider"
	"github.com/spf13/cobra"
)

// NewModelsCmd creates the models command.
func NewModelsCmd(opts *Options) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models served by the provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := newApp(opts, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.close()

			if url == "" {
				url = a.cfg.Provider.DefaultURL
				if saved, ok := a.store.GetSetting(ctx, provider.KeyURL); ok && saved != "" {
					url = saved
				}
			}

			callCtx, cancel := context.WithTimeout(ctx, a.cfg.Provider.DiscoveryTimeout)
			defer cancel()
			models, err := a.lister.ListModels(callCtx, url)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			selected, _ := a.store.GetSetting(ctx, provider.KeySelectedModel)
			if len(models) == 0 {
				fmt.Fprintln(out, styleMuted.Render("no models loaded at "+url))
				return nil
			}
			for _, m := range models {
				if m == selected {
					fmt.Fprintf(out, "%s %s\n", styleAllow.Render("*"), m)
					continue
				}
				fmt.Fprintf(out, "  %s\n", m)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Provider base URL (default: saved or configured URL)")
	return cmd
}
