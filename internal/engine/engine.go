// Package engine runs the login workflow as a small state machine:
// an ordered list of steps, bounded per-step retries, and a backward
// fallback policy driven by an explicit transition table.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c30tools/autologin/internal/config"
	"github.com/c30tools/autologin/internal/vision"
)

// Locator finds a configured UI element on screen. Implemented by
// vision.Localizer; faked in tests.
type Locator interface {
	Locate(paths []string, region *config.Region, ladder []float64) (*vision.MatchResult, error)
	ResolveRegion(windowName string, paths []string, static *config.Region) *config.Region
}

// Actuator clicks and types. Implemented by the input package.
type Actuator interface {
	ClickAt(x, y int) error
	TypeText(text string) error
}

// StepID identifies a workflow step. Order is the execution order.
type StepID int

const (
	StepOpenSidebar StepID = iota
	StepClickCourseEntry
	StepFillAccount
	StepFillPassword
	StepClickLogin
	stepCount
)

func (s StepID) String() string {
	switch s {
	case StepOpenSidebar:
		return "open_sidebar"
	case StepClickCourseEntry:
		return "click_course_entry"
	case StepFillAccount:
		return "fill_account"
	case StepFillPassword:
		return "fill_password"
	case StepClickLogin:
		return "click_login"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// StepResult is a step's outcome. Ordinary failures are values and feed
// the retry/fallback machinery; Err marks an unrecoverable condition
// (unreadable templates, a dead capturer) that aborts the whole run.
type StepResult struct {
	OK      bool
	Message string
	Err     error
}

func succeeded(msg string) StepResult { return StepResult{OK: true, Message: msg} }
func failed(msg string) StepResult    { return StepResult{OK: false, Message: msg} }
func aborted(err error) StepResult    { return StepResult{OK: false, Message: err.Error(), Err: err} }

// transition says where a step falls back to on failure. The table is
// explicit so the one exceptional edge stays auditable: a failed login
// click returns to the account field, not to the course-entry screen,
// because input focus drift is the usual culprit when a login attempt
// fails.
type transition struct {
	fallback StepID
	terminal bool
}

var transitions = [stepCount]transition{
	StepOpenSidebar:      {terminal: true},
	StepClickCourseEntry: {fallback: StepOpenSidebar},
	StepFillAccount:      {fallback: StepClickCourseEntry},
	StepFillPassword:     {fallback: StepFillAccount},
	StepClickLogin:       {fallback: StepFillAccount},
}

// Outcome is the terminal result of a run.
type Outcome struct {
	OK        bool   `yaml:"ok"                  json:"ok"`
	Message   string `yaml:"message"             json:"message"`
	Steps     int    `yaml:"steps_run"           json:"steps_run"`
	Fallbacks int    `yaml:"fallbacks,omitempty" json:"fallbacks,omitempty"`
}

// Engine executes one login workflow. A single Engine must not run
// concurrently with itself; each run is one logical thread of control.
type Engine struct {
	cfg   *config.Config
	loc   Locator
	act   Actuator
	log   *slog.Logger
	yield func()
	entry StepID

	ladder []float64

	// Login-click verification pacing, fixed in New.
	loginVerify  time.Duration
	loginRecheck time.Duration
	goneInterval time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger progress events are emitted on.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithYield installs a hook called during waits so a host UI event loop
// can stay responsive. Defaults to a no-op.
func WithYield(fn func()) Option {
	return func(e *Engine) { e.yield = fn }
}

// WithEntryStep overrides the step the run starts at.
func WithEntryStep(s StepID) Option {
	return func(e *Engine) { e.entry = s }
}

// New builds an Engine. The default entry point is the course-entry step;
// the sidebar step only runs as a fallback target. Debug level 2 starts
// at the account step instead.
func New(cfg *config.Config, loc Locator, act Actuator, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg,
		loc:   loc,
		act:   act,
		log:   slog.Default(),
		yield: func() {},
		entry: StepClickCourseEntry,
		ladder: vision.BuildLadder(
			cfg.Automation.MatchThreshold,
			cfg.Automation.ThresholdFloor,
			cfg.Automation.ThresholdStep,
		),
		loginVerify:  loginVerifyTimeout,
		loginRecheck: loginRecheckPause,
		goneInterval: goneCheckInterval,
	}
	if cfg.Automation.DebugLevel >= 2 {
		e.entry = StepFillAccount
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run drives the workflow to Done or Failed. The returned Outcome is the
// single terminal signal; intermediate retries and fallbacks surface only
// as log events.
func (e *Engine) Run(ctx context.Context) Outcome {
	if e.cfg.Credentials.Account == "" {
		return Outcome{OK: false, Message: "account is empty; set credentials.account or pass --account"}
	}

	current := e.entry
	fallbacks := 0
	stepsRun := 0

	for current < stepCount {
		if err := ctx.Err(); err != nil {
			return Outcome{OK: false, Message: fmt.Sprintf("run canceled: %v", err), Steps: stepsRun, Fallbacks: fallbacks}
		}

		e.log.Info("running step", "step", current.String(), "index", int(current))
		result := e.runStep(ctx, current)
		stepsRun++

		if result.Err != nil {
			return Outcome{
				OK:        false,
				Message:   fmt.Sprintf("step %s aborted: %v", current, result.Err),
				Steps:     stepsRun,
				Fallbacks: fallbacks,
			}
		}

		if result.OK {
			e.log.Info("step succeeded", "step", current.String(), "message", result.Message)
			current++
			continue
		}

		e.log.Warn("step failed", "step", current.String(), "message", result.Message)
		t := transitions[current]
		if t.terminal {
			return Outcome{
				OK:        false,
				Message:   fmt.Sprintf("step %s failed with nothing to fall back to: %s", current, result.Message),
				Steps:     stepsRun,
				Fallbacks: fallbacks,
			}
		}

		fallbacks++
		if fallbacks > e.cfg.Automation.MaxFallbacks {
			return Outcome{
				OK:        false,
				Message:   fmt.Sprintf("max fallbacks (%d) exceeded at step %s", e.cfg.Automation.MaxFallbacks, current),
				Steps:     stepsRun,
				Fallbacks: fallbacks,
			}
		}
		e.log.Info("falling back", "from", current.String(), "to", t.fallback.String(), "fallbacks", fallbacks)
		current = t.fallback
	}

	return Outcome{OK: true, Message: "login flow completed", Steps: stepsRun, Fallbacks: fallbacks}
}

// retry runs fn up to limit+1 times, sleeping the configured interval
// between attempts. The per-step timeout bounds the whole loop so a
// stuck step cannot stall the run indefinitely.
func (e *Engine) retry(ctx context.Context, step string, limit int, fn func(attempt int) StepResult) StepResult {
	timeout := time.Duration(e.cfg.Automation.StepTimeoutMs) * time.Millisecond
	interval := time.Duration(e.cfg.Automation.RetryIntervalMs) * time.Millisecond
	start := time.Now()

	retries := 0
	for {
		result := fn(retries + 1)
		if result.OK || result.Err != nil {
			return result
		}
		retries++
		if retries > limit {
			return failed(fmt.Sprintf("%s: retry limit reached: %s", step, result.Message))
		}
		if timeout > 0 && time.Since(start) > timeout {
			return failed(fmt.Sprintf("%s: step timeout after %s: %s", step, timeout, result.Message))
		}
		e.log.Warn("attempt failed, retrying", "step", step, "attempt", retries, "message", result.Message)
		e.sleep(ctx, interval)
	}
}

// sleep waits d in small slices, pumping the yield hook each slice so a
// co-located UI event loop never blocks for the full duration.
func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	const slice = 20 * time.Millisecond
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		if remaining > slice {
			remaining = slice
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(remaining):
		}
		e.yield()
	}
}
