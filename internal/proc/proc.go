// Package proc makes sure the target application is running and freshly
// launched before the engine starts. A stale instance gets terminated
// first so the workflow always begins from the application's initial
// screen.
package proc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-vgo/robotgo"

	"github.com/c30tools/autologin/internal/config"
)

// EnsureRunning kills any running instance of the configured application
// and relaunches it, then waits the configured startup time. A missing
// exe_path skips the whole precondition; a configured but nonexistent
// executable is a hard failure.
func EnsureRunning(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) error {
	exePath := strings.TrimSpace(cfg.ExePath)
	if exePath == "" {
		log.Warn("app.exe_path not configured, skipping process check and launch")
		return nil
	}

	name := processName(exePath)
	if pids, err := robotgo.FindIds(name); err == nil && len(pids) > 0 {
		for _, pid := range pids {
			log.Info("terminating running instance", "pid", pid, "name", name)
			if err := robotgo.Kill(pid); err != nil {
				log.Warn("could not terminate process", "pid", pid, "error", err)
			}
		}
		// Give the OS a moment to tear the windows down.
		sleepCtx(ctx, time.Second)
	}

	if _, err := os.Stat(exePath); err != nil {
		return fmt.Errorf("configured app.exe_path does not exist: %s: %w", exePath, err)
	}

	log.Info("launching application", "path", exePath)
	cmd := exec.Command(exePath)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", exePath, err)
	}
	// The process is intentionally not waited on; it outlives this run.
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("release %s: %w", exePath, err)
	}

	wait := time.Duration(cfg.StartupWaitMs) * time.Millisecond
	log.Info("waiting for application startup", "wait", wait)
	sleepCtx(ctx, wait)
	return ctx.Err()
}

// processName strips dir and extension from an executable path, which is
// what the OS process list reports on every supported platform.
func processName(exePath string) string {
	base := filepath.Base(exePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
