package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version can be overridden at build time with -ldflags "-X ...".
var Version = "0.1.0"

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			title := styleTitle.Render("gmset")
			ver := styleVersion.Render(fmt.Sprintf("v%s", Version))
			info := styleMuted.Render(fmt.Sprintf("(%s/%s)", runtime.GOOS, runtime.GOARCH))
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", title, ver, info)
		},
	}
}
