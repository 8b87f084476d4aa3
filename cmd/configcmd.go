package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/c30tools/autologin/internal/config"
	"github.com/c30tools/autologin/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the commented default config file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Long:  "Load the config file, merge it over defaults, validate it, and print the result. Credentials are redacted.",
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
	configShowCmd.Flags().Bool("pretty", false, "Pretty-print JSON output")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}
	redacted := *cfg
	if redacted.Credentials.Account != "" {
		redacted.Credentials.Account = "<set>"
	}
	if redacted.Credentials.Password != "" {
		redacted.Credentials.Password = "<set>"
	}
	return output.Print(redacted)
}
