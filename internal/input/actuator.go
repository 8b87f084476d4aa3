// Package input synthesizes mouse and keyboard events. Three click
// backends with different injection mechanics sit behind one Actuator
// interface; which one is used is a configuration choice, and callers
// cannot tell them apart except by reliability on a given machine.
package input

import (
	"fmt"
	"time"

	"github.com/go-vgo/robotgo"
)

// Backend selects the click injection mechanism.
type Backend string

const (
	// BackendStandard moves the pointer and issues a high-level click.
	BackendStandard Backend = "standard"
	// BackendToggle posts separate button-down and button-up events with
	// a settle delay between them, for apps that drop fused clicks.
	BackendToggle Backend = "toggle"
	// BackendScaled adjusts coordinates by the display scale factor
	// before injecting, for mixed-DPI setups where logical and physical
	// pixels disagree.
	BackendScaled Backend = "scaled"
)

// ParseBackend converts a config string to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendStandard, BackendToggle, BackendScaled:
		return Backend(s), nil
	case "":
		return BackendStandard, nil
	default:
		return BackendStandard, fmt.Errorf("unknown click backend %q (expected standard, toggle, or scaled)", s)
	}
}

// Actuator moves the pointer, clicks, and types into whatever currently
// holds input focus.
type Actuator interface {
	ClickAt(x, y int) error
	TypeText(text string) error
}

// Options holds the pacing knobs shared by all backends. UI frameworks
// drop rapid synthetic events, so every move/press/release pair is
// separated by Settle, and typing is paced per character.
type Options struct {
	Settle       time.Duration
	TypeInterval time.Duration
}

// New constructs the Actuator for the selected backend.
func New(backend Backend, opts Options) (Actuator, error) {
	switch backend {
	case BackendStandard:
		return &standardActuator{typer{opts}}, nil
	case BackendToggle:
		return &toggleActuator{typer{opts}}, nil
	case BackendScaled:
		return &scaledActuator{typer{opts}}, nil
	default:
		return nil, fmt.Errorf("unknown click backend %q", backend)
	}
}

// typer implements the shared keyboard path: clear the focused field,
// then insert the text character-paced so per-keystroke validation in the
// target field keeps up.
type typer struct {
	opts Options
}

// TypeText replaces the focused field's content with text.
func (t *typer) TypeText(text string) error {
	t.settle()
	if err := robotgo.KeyTap("a", robotgo.CmdCtrl()); err != nil {
		return fmt.Errorf("select all: %w", err)
	}
	t.settle()
	if err := robotgo.KeyTap("backspace"); err != nil {
		return fmt.Errorf("clear field: %w", err)
	}
	for _, r := range text {
		robotgo.TypeStr(string(r))
		if t.opts.TypeInterval > 0 {
			time.Sleep(t.opts.TypeInterval)
		}
	}
	return nil
}

func (t *typer) settle() {
	if t.opts.Settle > 0 {
		time.Sleep(t.opts.Settle)
	}
}

type standardActuator struct {
	typer
}

func (a *standardActuator) ClickAt(x, y int) error {
	robotgo.Move(x, y)
	a.settle()
	robotgo.Click("left", false)
	a.settle()
	return nil
}

type toggleActuator struct {
	typer
}

func (a *toggleActuator) ClickAt(x, y int) error {
	robotgo.Move(x, y)
	a.settle()
	if err := robotgo.Toggle("left"); err != nil {
		return fmt.Errorf("button down: %w", err)
	}
	a.settle()
	if err := robotgo.Toggle("left", "up"); err != nil {
		return fmt.Errorf("button up: %w", err)
	}
	a.settle()
	return nil
}

type scaledActuator struct {
	typer
}

func (a *scaledActuator) ClickAt(x, y int) error {
	f := robotgo.ScaleF()
	if f <= 0 {
		return fmt.Errorf("display scale factor unavailable")
	}
	robotgo.Move(int(float64(x)*f), int(float64(y)*f))
	a.settle()
	robotgo.Click("left", false)
	a.settle()
	return nil
}

// TypeRaw types text without clearing the focused field first. Used by
// the type command's --no-clear mode; the engine always clears.
func TypeRaw(text string, interval time.Duration) {
	for _, r := range text {
		robotgo.TypeStr(string(r))
		if interval > 0 {
			time.Sleep(interval)
		}
	}
}
