package vision

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/go-vgo/robotgo"

	"github.com/c30tools/autologin/internal/config"
)

// MatchResult is a localized UI element: the template's center in
// absolute screen coordinates, the accepted confidence, and which
// template produced the hit.
type MatchResult struct {
	X          int
	Y          int
	Confidence float64
	Source     string
}

// minLadderStep keeps a misconfigured step size from producing an
// unbounded threshold sweep.
const minLadderStep = 0.03

// BuildLadder produces the descending threshold sequence from start down
// to floor. The result is never empty and always ends exactly at floor.
func BuildLadder(start, floor, step float64) []float64 {
	if step < minLadderStep {
		step = minLadderStep
	}
	var ladder []float64
	for v := start; v >= floor; v -= step {
		ladder = append(ladder, round2(v))
	}
	if len(ladder) == 0 || ladder[len(ladder)-1] > floor {
		ladder = append(ladder, round2(floor))
	}
	return ladder
}

// SingleTier is a one-entry ladder for callers that want a plain
// threshold check without the descending sweep.
func SingleTier(threshold float64) []float64 {
	return []float64{threshold}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// WindowBounds resolves a live window's screen rectangle by name.
// Implementations return false when no such window is currently up.
type WindowBounds interface {
	Bounds(name string) (config.Region, bool)
}

// RobotWindowBounds resolves windows through the OS process list.
type RobotWindowBounds struct{}

// Bounds returns the bounds of the first process matching name.
func (RobotWindowBounds) Bounds(name string) (config.Region, bool) {
	pids, err := robotgo.FindIds(name)
	if err != nil || len(pids) == 0 {
		return config.Region{}, false
	}
	x, y, w, h := robotgo.GetBounds(pids[0])
	r := config.Region{X: x, Y: y, W: w, H: h}
	return r, r.Valid()
}

// Localizer orchestrates capture, template decode, and matching across a
// descending threshold ladder. It is stateless per call except for the
// template store's decode memoization.
type Localizer struct {
	capturer Capturer
	store    *Store
	windows  WindowBounds
	log      *slog.Logger
}

// NewLocalizer wires a Localizer. windows may be nil when live window
// lookup is unavailable; log may be nil for the default logger.
func NewLocalizer(capturer Capturer, store *Store, windows WindowBounds, log *slog.Logger) *Localizer {
	if log == nil {
		log = slog.Default()
	}
	return &Localizer{capturer: capturer, store: store, windows: windows, log: log}
}

// Locate captures the region once and sweeps the threshold ladder in
// descending order. Within a tier every template is tried and the highest
// confidence wins; the first tier with any acceptance returns. The
// returned point is the matched template's center in screen coordinates.
//
// Individual unreadable templates are skipped with a warning, but if none
// of the given templates can be decoded the call fails hard: that is a
// broken install, not a "not on screen" condition.
func (l *Localizer) Locate(paths []string, region *config.Region, ladder []float64) (*MatchResult, error) {
	screen, err := l.capturer.Capture(region)
	if err != nil {
		return nil, err
	}

	templates := make([]*Template, 0, len(paths))
	for _, p := range paths {
		t, err := l.store.Load(p)
		if err != nil {
			l.log.Warn("skipping template", "path", p, "error", err)
			continue
		}
		templates = append(templates, t)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("no loadable templates among %d configured: %w", len(paths), ErrTemplateUnreadable)
	}

	offX, offY := 0, 0
	if region != nil {
		offX, offY = region.X, region.Y
	}

	for _, threshold := range ladder {
		var best *MatchResult
		for _, t := range templates {
			m, ok := MatchOne(screen, t.Gray(), threshold)
			if !ok {
				continue
			}
			tw, th := t.Size()
			r := &MatchResult{
				X:          offX + m.X + tw/2,
				Y:          offY + m.Y + th/2,
				Confidence: m.Confidence,
				Source:     t.Path,
			}
			if best == nil || r.Confidence > best.Confidence {
				best = r
			}
		}
		if best != nil {
			l.log.Debug("template located",
				"source", filepath.Base(best.Source),
				"confidence", best.Confidence,
				"threshold", threshold)
			return best, nil
		}
	}
	return nil, nil
}

// MinTemplateSize returns the dimensions of the first loadable template
// in paths, used as the minimum acceptable size for a search region.
// A small default is returned when nothing loads; region validation then
// effectively passes and the matcher reports the real failure.
func (l *Localizer) MinTemplateSize(paths []string) (w, h int) {
	for _, p := range paths {
		t, err := l.store.Load(p)
		if err != nil {
			continue
		}
		return t.Size()
	}
	return 10, 10
}

// ResolveRegion picks the search region for a locate call: the live
// window's bounds when the named window is up and large enough to contain
// the templates, else the configured static region, else nil (full
// screen).
func (l *Localizer) ResolveRegion(windowName string, paths []string, static *config.Region) *config.Region {
	if windowName == "" || l.windows == nil {
		return static
	}
	live, ok := l.windows.Bounds(windowName)
	if !ok {
		l.log.Debug("window not resolvable, using static region", "window", windowName)
		return static
	}
	minW, minH := l.MinTemplateSize(paths)
	if live.W < minW || live.H < minH {
		l.log.Warn("window smaller than template, using static region",
			"window", windowName,
			"window_size", fmt.Sprintf("%dx%d", live.W, live.H),
			"template_size", fmt.Sprintf("%dx%d", minW, minH))
		return static
	}
	return &live
}

// ValidateTemplates checks that every configured template category has at
// least one readable image on disk. Run this before starting the engine;
// a missing category is unrecoverable.
func ValidateTemplates(store *Store, cfg *config.Config) error {
	categories := []struct {
		name  string
		paths []string
	}{
		{"sidebar_button", cfg.Templates.SidebarButton},
		{"course_entry", cfg.Templates.CourseEntry},
		{"account_input", cfg.Templates.AccountInput},
		{"password_input", cfg.Templates.PasswordInput},
		{"login_button", cfg.Templates.LoginButton},
	}
	var missing []string
	for _, cat := range categories {
		if len(cat.paths) == 0 {
			// Empty categories mean the element does not exist in this
			// deployment; the corresponding step skips itself.
			continue
		}
		readable := 0
		for _, p := range cat.paths {
			if _, err := store.Load(cfg.ResolvePath(p)); err == nil {
				readable++
			}
		}
		if readable == 0 {
			missing = append(missing, cat.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: no readable templates for %v", ErrTemplateUnreadable, missing)
	}
	return nil
}
