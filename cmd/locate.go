package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/c30tools/autologin/internal/config"
	"github.com/c30tools/autologin/internal/output"
	"github.com/c30tools/autologin/internal/vision"
)

// LocateResult is the output of the locate command.
type LocateResult struct {
	OK         bool    `yaml:"ok"                   json:"ok"`
	Action     string  `yaml:"action"               json:"action"`
	X          int     `yaml:"x,omitempty"          json:"x,omitempty"`
	Y          int     `yaml:"y,omitempty"          json:"y,omitempty"`
	Confidence float64 `yaml:"confidence,omitempty" json:"confidence,omitempty"`
	Source     string  `yaml:"source,omitempty"     json:"source,omitempty"`
}

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Locate a template on screen",
	Long: `Locate template images on the current screen and report the best match's
center and confidence. Useful for capturing templates and tuning regions
and thresholds before wiring them into the config.`,
	RunE: runLocate,
}

func init() {
	rootCmd.AddCommand(locateCmd)
	locateCmd.Flags().StringArray("template", nil, "Template image path (repeatable)")
	locateCmd.Flags().String("region", "", "Restrict search to x,y,w,h")
	locateCmd.Flags().Float64("threshold", 0.82, "Primary match threshold")
	locateCmd.Flags().Float64("floor", 0, "Sweep thresholds down to this floor (0 = single threshold)")
	locateCmd.Flags().Float64("step", 0.03, "Threshold sweep step size")
	locateCmd.Flags().Bool("pretty", false, "Pretty-print JSON output")
}

func runLocate(cmd *cobra.Command, args []string) error {
	templates, _ := cmd.Flags().GetStringArray("template")
	if len(templates) == 0 {
		return fmt.Errorf("at least one --template is required")
	}

	var region *config.Region
	if regionStr, _ := cmd.Flags().GetString("region"); regionStr != "" {
		r, err := config.ParseRegion(regionStr)
		if err != nil {
			return err
		}
		region = r
	}

	threshold, _ := cmd.Flags().GetFloat64("threshold")
	floor, _ := cmd.Flags().GetFloat64("floor")
	step, _ := cmd.Flags().GetFloat64("step")

	ladder := vision.SingleTier(threshold)
	if floor > 0 {
		ladder = vision.BuildLadder(threshold, floor, step)
	}

	localizer := vision.NewLocalizer(vision.NewScreenCapturer(), vision.NewStore(), vision.RobotWindowBounds{}, slog.Default())
	match, err := localizer.Locate(templates, region, ladder)
	if err != nil {
		return err
	}
	if match == nil {
		_ = output.Print(LocateResult{OK: false, Action: "locate"})
		return fmt.Errorf("no template matched above threshold")
	}
	return output.Print(LocateResult{
		OK:         true,
		Action:     "locate",
		X:          match.X,
		Y:          match.Y,
		Confidence: match.Confidence,
		Source:     filepath.Base(match.Source),
	})
}
