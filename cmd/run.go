package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/c30tools/autologin/internal/config"
	"github.com/c30tools/autologin/internal/engine"
	"github.com/c30tools/autologin/internal/input"
	"github.com/c30tools/autologin/internal/output"
	"github.com/c30tools/autologin/internal/proc"
	"github.com/c30tools/autologin/internal/vision"
)

// RunResult is the output of the run command.
type RunResult struct {
	OK        bool   `yaml:"ok"                  json:"ok"`
	Action    string `yaml:"action"              json:"action"`
	Message   string `yaml:"message"             json:"message"`
	Steps     int    `yaml:"steps_run"           json:"steps_run"`
	Fallbacks int    `yaml:"fallbacks,omitempty" json:"fallbacks,omitempty"`
	Elapsed   string `yaml:"elapsed"             json:"elapsed"`
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full login workflow",
	Long: `Run the login workflow: relaunch the target application, then locate and
operate the sidebar, course entry, account, password, and login controls
via template matching. Exits non-zero when the workflow does not converge.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("account", "", "Override credentials.account from the config")
	runCmd.Flags().String("password", "", "Override credentials.password from the config")
	runCmd.Flags().Int("entry-step", -1, "Start at this step index (0-4, default from config)")
	runCmd.Flags().Bool("no-launch", false, "Skip terminating and relaunching the target application")
	runCmd.Flags().Bool("pretty", false, "Pretty-print JSON output")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}
	verbose, _ := rootCmd.PersistentFlags().GetCount("verbose")
	setupLogging(cfg.Logging.Level, verbose)

	if account, _ := cmd.Flags().GetString("account"); account != "" {
		cfg.Credentials.Account = account
	}
	if password, _ := cmd.Flags().GetString("password"); password != "" {
		cfg.Credentials.Password = password
	}

	store := vision.NewStore()
	if err := vision.ValidateTemplates(store, cfg); err != nil {
		return fmt.Errorf("template validation: %w", err)
	}

	noLaunch, _ := cmd.Flags().GetBool("no-launch")
	if !noLaunch {
		if err := proc.EnsureRunning(cmd.Context(), &cfg.App, slog.Default()); err != nil {
			return err
		}
	}

	backend, err := input.ParseBackend(cfg.Automation.ClickBackend)
	if err != nil {
		return err
	}
	actuator, err := input.New(backend, input.Options{
		Settle:       time.Duration(cfg.Automation.SettleMs) * time.Millisecond,
		TypeInterval: time.Duration(cfg.Automation.TypeIntervalMs) * time.Millisecond,
	})
	if err != nil {
		return err
	}

	localizer := vision.NewLocalizer(vision.NewScreenCapturer(), store, vision.RobotWindowBounds{}, slog.Default())

	var opts []engine.Option
	if entry, _ := cmd.Flags().GetInt("entry-step"); entry >= 0 {
		if entry > int(engine.StepClickLogin) {
			return fmt.Errorf("--entry-step must be 0-4, got %d", entry)
		}
		opts = append(opts, engine.WithEntryStep(engine.StepID(entry)))
	}

	start := time.Now()
	outcome := engine.New(cfg, localizer, actuator, opts...).Run(cmd.Context())
	elapsed := time.Since(start)

	result := RunResult{
		OK:        outcome.OK,
		Action:    "run",
		Message:   outcome.Message,
		Steps:     outcome.Steps,
		Fallbacks: outcome.Fallbacks,
		Elapsed:   fmt.Sprintf("%.1fs", elapsed.Seconds()),
	}
	if err := output.Print(result); err != nil {
		return err
	}
	if !outcome.OK {
		return fmt.Errorf("login failed: %s", outcome.Message)
	}
	return nil
}
