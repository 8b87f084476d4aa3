package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c30tools/autologin/internal/output"
	"github.com/c30tools/autologin/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "autologin",
	Short: "Log into a desktop application by visual template matching",
	Long: "A CLI tool that drives an unattended login sequence on a desktop application\n" +
		"by locating UI elements through image template matching and synthesizing\n" +
		"mouse and keyboard input.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.BuildDate)
	rootCmd.PersistentFlags().String("format", "yaml", "Output format: yaml, json")
	rootCmd.PersistentFlags().String("config", "config.toml", "Path to the TOML config file")
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (-v debug)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		format, _ := rootCmd.PersistentFlags().GetString("format")
		switch format {
		case "yaml":
			output.OutputFormat = output.FormatYAML
		case "json":
			output.OutputFormat = output.FormatJSON
		default:
			return fmt.Errorf("unsupported format: %s (use yaml or json)", format)
		}
		if prettyFlag := cmd.Flags().Lookup("pretty"); prettyFlag != nil {
			if pretty, err := cmd.Flags().GetBool("pretty"); err == nil && pretty {
				output.PrettyOutput = true
			}
		}

		verbose, _ := rootCmd.PersistentFlags().GetCount("verbose")
		setupLogging("", verbose)
		return nil
	}
}

// setupLogging installs the process-wide slog handler on stderr, keeping
// stdout clean for command output. The config's logging.level applies
// unless -v asks for more.
func setupLogging(configLevel string, verbose int) {
	level := slog.LevelInfo
	switch strings.ToLower(configLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose > 0 {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func configPath() string {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	return path
}
