package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewDiffCmd creates the diff command.
func NewDiffCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show how a save would rewrite settings.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(commandContext(cmd)); err != nil {
				return err
			}
			a.agg.Provider().Wait()

			diff, err := a.agg.Diff()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if diff == "" {
				fmt.Fprintln(out, styleMuted.Render("no changes"))
				return nil
			}
			for _, line := range strings.SplitAfter(diff, "\n") {
				switch {
				case strings.HasPrefix(line, "+ "):
					fmt.Fprint(out, styleAdded.Render(strings.TrimSuffix(line, "\n")), "\n")
				case strings.HasPrefix(line, "- "):
					fmt.Fprint(out, styleRemoved.Render(strings.TrimSuffix(line, "\n")), "\n")
				default:
					fmt.Fprint(out, line)
				}
			}
			return nil
		},
	}
}
