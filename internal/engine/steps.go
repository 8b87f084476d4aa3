package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/c30tools/autologin/internal/config"
	"github.com/c30tools/autologin/internal/vision"
)

// Login-click verification pacing. The click either takes effect within a
// few seconds or not at all, so these are not configuration.
const (
	loginClickAttempts = 3
	loginVerifyTimeout = 3 * time.Second
	loginRecheckPause  = time.Second
	goneCheckInterval  = 200 * time.Millisecond
)

func (e *Engine) runStep(ctx context.Context, id StepID) StepResult {
	switch id {
	case StepOpenSidebar:
		return e.stepOpenSidebar(ctx)
	case StepClickCourseEntry:
		return e.stepClickCourseEntry(ctx)
	case StepFillAccount:
		return e.stepFillAccount(ctx)
	case StepFillPassword:
		return e.stepFillPassword(ctx)
	case StepClickLogin:
		return e.stepClickLogin(ctx)
	default:
		return failed(fmt.Sprintf("unknown step %d", int(id)))
	}
}

// resolve maps configured template paths to absolute paths.
func (e *Engine) resolve(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = e.cfg.ResolvePath(p)
	}
	return out
}

// stepOpenSidebar expands the sidebar that hosts the course-entry
// control. Deployments without a sidebar leave its template list empty
// and the step satisfies itself.
func (e *Engine) stepOpenSidebar(ctx context.Context) StepResult {
	if len(e.cfg.Templates.SidebarButton) == 0 {
		return succeeded("no sidebar templates configured, skipping")
	}
	paths := e.resolve(e.cfg.Templates.SidebarButton)
	return e.retry(ctx, "open_sidebar", e.cfg.Automation.MaxRetries, func(attempt int) StepResult {
		return e.locateAndClick(attempt, paths, e.cfg.Regions.SidebarButton, vision.SingleTier(e.cfg.Automation.MatchThreshold), nil)
	})
}

// stepClickCourseEntry clicks the control that opens the login screen.
// Its retry ceiling is deliberately smaller than the generic one: when
// the course-entry control stays missing, the right reaction is falling
// back to the sidebar step, not polling harder.
func (e *Engine) stepClickCourseEntry(ctx context.Context) StepResult {
	paths := e.resolve(e.cfg.Templates.CourseEntry)
	return e.retry(ctx, "click_course_entry", e.cfg.Automation.CourseEntryRetries-1, func(attempt int) StepResult {
		region := e.loc.ResolveRegion(e.cfg.App.WindowNameCourse, paths, e.cfg.Regions.CourseEntry)
		return e.locateAndClick(attempt, paths, region, vision.SingleTier(e.cfg.Automation.MatchThreshold), nil)
	})
}

func (e *Engine) stepFillAccount(ctx context.Context) StepResult {
	return e.fillField(ctx, "fill_account",
		e.cfg.Templates.AccountInput,
		e.cfg.Credentials.Account,
		e.cfg.ClickOffsets.Account,
		e.cfg.FallbackOffsets.AccountFromLogin)
}

// stepFillPassword skips itself when no password is configured: the
// target application remembers the password in that deployment.
func (e *Engine) stepFillPassword(ctx context.Context) StepResult {
	if e.cfg.Credentials.Password == "" {
		return succeeded("no password configured, skipping")
	}
	return e.fillField(ctx, "fill_password",
		e.cfg.Templates.PasswordInput,
		e.cfg.Credentials.Password,
		e.cfg.ClickOffsets.Password,
		e.cfg.FallbackOffsets.PasswordFromLogin)
}

// fillField localizes an input field, clicks it into focus, and types the
// value. Field templates get the full descending threshold ladder because
// typed content makes their pixels drift far more than buttons. When the
// field cannot be localized at all, the login button plus a configured
// offset positions the click instead.
func (e *Engine) fillField(ctx context.Context, step string, templates []string, text string, clickOffset, fallbackOffset *config.Offset) StepResult {
	paths := e.resolve(templates)
	return e.retry(ctx, step, e.cfg.Automation.MaxRetries, func(attempt int) StepResult {
		region := e.loc.ResolveRegion(e.cfg.App.WindowNameLogin, paths, e.cfg.Regions.LoginArea)
		match, err := e.loc.Locate(paths, region, e.ladder)
		if err != nil {
			return aborted(err)
		}
		if match != nil {
			x, y := match.X, match.Y
			if clickOffset != nil {
				x += clickOffset.DX
				y += clickOffset.DY
			}
			e.log.Info("input field located",
				"step", step, "attempt", attempt,
				"source", filepath.Base(match.Source),
				"confidence", match.Confidence)
			if err := e.act.ClickAt(x, y); err != nil {
				return failed(fmt.Sprintf("click field: %v", err))
			}
			if err := e.act.TypeText(text); err != nil {
				return failed(fmt.Sprintf("type into field: %v", err))
			}
			return succeeded("typed into " + filepath.Base(match.Source))
		}

		if fallbackOffset != nil {
			clicked, err := e.clickByLoginOffset(fallbackOffset)
			if err != nil {
				return aborted(err)
			}
			if clicked {
				if err := e.act.TypeText(text); err != nil {
					return failed(fmt.Sprintf("type into field: %v", err))
				}
				return succeeded("typed via login button offset")
			}
		}
		return failed("input field not found")
	})
}

// clickByLoginOffset positions a field click relative to the login
// button's center when the field itself resisted localization.
func (e *Engine) clickByLoginOffset(offset *config.Offset) (bool, error) {
	paths := e.resolve(e.cfg.Templates.LoginButton)
	region := e.loc.ResolveRegion(e.cfg.App.WindowNameLogin, paths, e.cfg.Regions.LoginArea)
	match, err := e.loc.Locate(paths, region, vision.SingleTier(e.cfg.Automation.MatchThreshold))
	if err != nil {
		return false, err
	}
	if match == nil {
		return false, nil
	}
	e.log.Warn("falling back to login button offset", "dx", offset.DX, "dy", offset.DY)
	return e.act.ClickAt(match.X+offset.DX, match.Y+offset.DY) == nil, nil
}

// stepClickLogin clicks the login button and verifies the click took by
// polling for the button's disappearance. No stable post-login anchor
// exists, so "it is gone" is the only success signal available.
//
// When the button is not found even before clicking, a previous attempt
// may already have landed; that is treated as inconclusive and only
// promoted to success after a second absence check. This can also mask a
// button that never rendered at all, which is accepted here.
func (e *Engine) stepClickLogin(ctx context.Context) StepResult {
	paths := e.resolve(e.cfg.Templates.LoginButton)

	for i := 0; i < loginClickAttempts; i++ {
		// Re-resolve each attempt: the login window may have moved.
		region := e.loc.ResolveRegion(e.cfg.App.WindowNameLogin, paths, e.cfg.Regions.LoginArea)
		match, err := e.loc.Locate(paths, region, e.ladder)
		if err != nil {
			return aborted(err)
		}

		if match == nil {
			visible, err := e.loginButtonVisible()
			if err != nil {
				return aborted(err)
			}
			if !visible {
				return succeeded("login button absent, assuming an earlier click landed")
			}
		} else {
			e.log.Info("login button located",
				"attempt", i+1,
				"source", filepath.Base(match.Source),
				"confidence", match.Confidence)
			if err := e.act.ClickAt(match.X, match.Y); err != nil {
				return failed(fmt.Sprintf("click login: %v", err))
			}
			gone, err := e.waitLoginGone(ctx, e.loginVerify)
			if err != nil {
				return aborted(err)
			}
			if gone {
				return succeeded("login button disappeared after click")
			}
		}

		e.log.Warn("login button still visible after click", "attempt", i+1)
		e.sleep(ctx, e.loginRecheck)
	}
	return failed("login button still visible after repeated clicks")
}

func (e *Engine) loginButtonVisible() (bool, error) {
	paths := e.resolve(e.cfg.Templates.LoginButton)
	region := e.loc.ResolveRegion(e.cfg.App.WindowNameLogin, paths, e.cfg.Regions.LoginArea)
	match, err := e.loc.Locate(paths, region, e.ladder)
	if err != nil {
		return false, err
	}
	return match != nil, nil
}

// waitLoginGone polls until the login button stops matching or the
// timeout expires. It always checks at least once.
func (e *Engine) waitLoginGone(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		visible, err := e.loginButtonVisible()
		if err != nil {
			return false, err
		}
		if !visible {
			return true, nil
		}
		if !time.Now().Before(deadline) || ctx.Err() != nil {
			return false, nil
		}
		e.sleep(ctx, e.goneInterval)
	}
}

// locateAndClick is the shared body of the plain click steps.
func (e *Engine) locateAndClick(attempt int, paths []string, region *config.Region, ladder []float64, offset *config.Offset) StepResult {
	match, err := e.loc.Locate(paths, region, ladder)
	if err != nil {
		return aborted(err)
	}
	if match == nil {
		return failed("target not found")
	}
	x, y := match.X, match.Y
	if offset != nil {
		x += offset.DX
		y += offset.DY
	}
	e.log.Info("target located",
		"attempt", attempt,
		"source", filepath.Base(match.Source),
		"confidence", match.Confidence)
	if err := e.act.ClickAt(x, y); err != nil {
		return failed(fmt.Sprintf("click: %v", err))
	}
	return succeeded("clicked " + filepath.Base(match.Source))
}
