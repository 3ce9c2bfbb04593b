package commands

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Options holds the flags shared by every command.
type Options struct {
	ConfigPath  string `mapstructure:"config"`
	ClaudeDir   string `mapstructure:"claude-dir"`
	DataDir     string `mapstructure:"data-dir"`
	ProviderURL string `mapstructure:"provider-url"`
	LogLevel    string `mapstructure:"log-level"`
	Ephemeral   bool   `mapstructure:"ephemeral"`
}

// NewRootCmd builds the root command with shared flags.
func NewRootCmd() *cobra.Command {
	cobra.OnInitialize(initConfig)

	opts := &Options{}

	cmd := &cobra.Command{
		Use:           "gmset",
		Short:         "Edit Claude settings and the local model provider",
		Long:          "gmset edits ~/.claude/settings.json and manages a local OpenAI-compatible model server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.Unmarshal(opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to configuration file")
	flags.String("claude-dir", "", "Directory holding settings.json (default ~/.claude)")
	flags.String("data-dir", "", "Directory for gmset preferences (default ~/.gm-settings)")
	flags.String("provider-url", "", "Default provider base URL")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("ephemeral", false, "Keep everything in memory")

	for _, name := range []string{"config", "claude-dir", "data-dir", "provider-url", "log-level", "ephemeral"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	cmd.AddCommand(NewServeCmd(opts))
	cmd.AddCommand(NewShowCmd(opts))
	cmd.AddCommand(NewModelsCmd(opts))
	cmd.AddCommand(NewDiffCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

func initConfig() {
	viper.SetEnvPrefix("GMSET")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
