package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/c30tools/autologin/internal/input"
	"github.com/c30tools/autologin/internal/output"
)

// TypeResult is the output of the type command.
type TypeResult struct {
	OK     bool   `yaml:"ok"     json:"ok"`
	Action string `yaml:"action" json:"action"`
	Text   string `yaml:"text"   json:"text"`
}

var typeCmd = &cobra.Command{
	Use:   "type [text]",
	Short: "Type text into the focused element",
	Long:  "Clear the currently focused field and type text into it, paced per character. Text can be passed as a positional argument or via --text.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runType,
}

func init() {
	rootCmd.AddCommand(typeCmd)
	typeCmd.Flags().String("text", "", "Text to type (alternative to positional arg)")
	typeCmd.Flags().Bool("no-clear", false, "Do not clear the focused field first")
	typeCmd.Flags().Int("interval", 20, "Delay between keystrokes in ms")
}

func runType(cmd *cobra.Command, args []string) error {
	text, _ := cmd.Flags().GetString("text")
	if len(args) > 0 {
		text = args[0]
	}
	if text == "" {
		return fmt.Errorf("specify --text or a positional text argument")
	}

	intervalMs, _ := cmd.Flags().GetInt("interval")
	interval := time.Duration(intervalMs) * time.Millisecond

	if noClear, _ := cmd.Flags().GetBool("no-clear"); noClear {
		input.TypeRaw(text, interval)
	} else {
		actuator, err := input.New(input.BackendStandard, input.Options{
			Settle:       50 * time.Millisecond,
			TypeInterval: interval,
		})
		if err != nil {
			return err
		}
		if err := actuator.TypeText(text); err != nil {
			return err
		}
	}
	return output.Print(TypeResult{OK: true, Action: "type", Text: text})
}
