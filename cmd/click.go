package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/c30tools/autologin/internal/input"
	"github.com/c30tools/autologin/internal/output"
)

// ClickResult is the output of the click command.
type ClickResult struct {
	OK      bool   `yaml:"ok"      json:"ok"`
	Action  string `yaml:"action"  json:"action"`
	X       int    `yaml:"x"       json:"x"`
	Y       int    `yaml:"y"       json:"y"`
	Backend string `yaml:"backend" json:"backend"`
}

var clickCmd = &cobra.Command{
	Use:   "click",
	Short: "Click at screen coordinates",
	Long:  "Click at absolute screen coordinates through a chosen injection backend. Useful for verifying which backend the target application accepts.",
	RunE:  runClick,
}

func init() {
	rootCmd.AddCommand(clickCmd)
	clickCmd.Flags().Int("x", -1, "X screen coordinate")
	clickCmd.Flags().Int("y", -1, "Y screen coordinate")
	clickCmd.Flags().String("backend", "standard", "Click backend: standard, toggle, scaled")
	clickCmd.Flags().Int("settle", 50, "Settle delay between move/press/release in ms")
}

func runClick(cmd *cobra.Command, args []string) error {
	x, _ := cmd.Flags().GetInt("x")
	y, _ := cmd.Flags().GetInt("y")
	if x < 0 || y < 0 {
		return fmt.Errorf("--x and --y are required")
	}

	backendStr, _ := cmd.Flags().GetString("backend")
	backend, err := input.ParseBackend(backendStr)
	if err != nil {
		return err
	}
	settleMs, _ := cmd.Flags().GetInt("settle")

	actuator, err := input.New(backend, input.Options{Settle: time.Duration(settleMs) * time.Millisecond})
	if err != nil {
		return err
	}
	if err := actuator.ClickAt(x, y); err != nil {
		return err
	}
	return output.Print(ClickResult{OK: true, Action: "click", X: x, Y: y, Backend: string(backend)})
}
