package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gm-agent-org/gm-settings/pkg/settings"
	"github.com/gm-agent-org/gm-settings/pkg/store"
	"github.com/spf13/cobra"
)

// NewShowCmd creates the show command.
func NewShowCmd(opts *Options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show settings, provider state and pending changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := newApp(opts, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(ctx); err != nil {
				return err
			}
			// Let the initial discovery of an enabled provider finish.
			a.agg.Provider().Wait()

			view := a.agg.Snapshot()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}

			source := "(memory)"
			if fs, ok := a.store.(*store.FSStore); ok {
				source = fs.SettingsPath()
			}
			renderView(out, source, view)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func renderView(w io.Writer, source string, v settings.View) {
	fmt.Fprintf(w, "%s %s\n", styleTitle.Render("Claude settings"), styleMuted.Render(source))
	if v.Degraded {
		fmt.Fprintln(w, styleWarning.Render("settings could not be loaded; showing an empty document"))
	}

	fmt.Fprintln(w, styleSection.Render("Allow"))
	for _, r := range v.Allow {
		fmt.Fprintf(w, "  %s %s\n", styleAllow.Render("+"), r.Value)
	}
	fmt.Fprintln(w, styleSection.Render("Deny"))
	for _, r := range v.Deny {
		fmt.Fprintf(w, "  %s %s\n", styleDeny.Render("-"), r.Value)
	}

	fmt.Fprintln(w, styleSection.Render("Environment"))
	for _, e := range v.Env {
		fmt.Fprintf(w, "  %s=%s\n", e.Key, e.Value)
	}

	doc := v.Document
	fmt.Fprintln(w, styleSection.Render("Options"))
	fmt.Fprintf(w, "  includeCoAuthoredBy: %t\n", doc.IncludeCoAuthoredBy)
	fmt.Fprintf(w, "  verbose: %t\n", doc.Verbose)
	if doc.CleanupPeriodDays != nil {
		fmt.Fprintf(w, "  cleanupPeriodDays: %d\n", *doc.CleanupPeriodDays)
	}
	if doc.APIKeyHelper != nil {
		fmt.Fprintf(w, "  apiKeyHelper: %s\n", *doc.APIKeyHelper)
	}
	fmt.Fprintf(w, "  startup intro: %t\n", v.StartupIntro)

	p := v.Provider
	fmt.Fprintln(w, styleSection.Render("Provider"))
	fmt.Fprintf(w, "  state: %s\n", p.State)
	fmt.Fprintf(w, "  url: %s\n", p.BaseURL)
	if p.SelectedModel != "" {
		fmt.Fprintf(w, "  model: %s\n", p.SelectedModel)
	}
	if len(p.AvailableModels) > 0 {
		fmt.Fprintf(w, "  available: %s\n", strings.Join(p.AvailableModels, ", "))
	}
	if p.LastError != "" {
		fmt.Fprintf(w, "  %s\n", styleWarning.Render(p.LastError))
	}

	if len(v.Pending) > 0 {
		fmt.Fprintf(w, "\n%s %s\n", styleWarning.Render("pending:"), strings.Join(v.Pending, ", "))
	}
}
