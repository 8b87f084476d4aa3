package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// An empty file must resolve entirely from defaults.
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Automation.MaxRetries != 2 || cfg.Automation.MaxFallbacks != 5 {
		t.Errorf("unexpected retry defaults: %+v", cfg.Automation)
	}
	if cfg.Automation.MatchThreshold != 0.82 || cfg.Automation.ThresholdFloor != 0.45 {
		t.Errorf("unexpected threshold defaults: %+v", cfg.Automation)
	}
	if cfg.Automation.ClickBackend != "standard" {
		t.Errorf("expected the standard click backend, got %q", cfg.Automation.ClickBackend)
	}
	if len(cfg.Templates.CourseEntry) != 1 || len(cfg.Templates.SidebarButton) != 0 {
		t.Errorf("unexpected template defaults: %+v", cfg.Templates)
	}
	if cfg.Regions.LoginArea != nil {
		t.Errorf("expected no default login area, got %+v", cfg.Regions.LoginArea)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected info log level, got %q", cfg.Logging.Level)
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[automation]
max_retries = 7
match_threshold = 0.9

[credentials]
account = "alice"
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Automation.MaxRetries != 7 || cfg.Automation.MatchThreshold != 0.9 {
		t.Errorf("overrides not applied: %+v", cfg.Automation)
	}
	// Values the file does not set still come from defaults.
	if cfg.Automation.MaxFallbacks != 5 {
		t.Errorf("expected the default fallback ceiling, got %d", cfg.Automation.MaxFallbacks)
	}
	if cfg.Credentials.Account != "alice" {
		t.Errorf("expected account override, got %q", cfg.Credentials.Account)
	}
}

func TestLoad_RegionsAndOffsets(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[regions]
login_area = [10, 20, 300, 200]

[click_offsets]
account = [150, 0]

[fallback_offsets]
password_from_login = [0, -60]
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Regions.LoginArea == nil || *cfg.Regions.LoginArea != (Region{X: 10, Y: 20, W: 300, H: 200}) {
		t.Errorf("unexpected login area: %+v", cfg.Regions.LoginArea)
	}
	if cfg.ClickOffsets.Account == nil || *cfg.ClickOffsets.Account != (Offset{DX: 150, DY: 0}) {
		t.Errorf("unexpected account click offset: %+v", cfg.ClickOffsets.Account)
	}
	if cfg.FallbackOffsets.PasswordFromLogin == nil || *cfg.FallbackOffsets.PasswordFromLogin != (Offset{DX: 0, DY: -60}) {
		t.Errorf("unexpected password fallback offset: %+v", cfg.FallbackOffsets.PasswordFromLogin)
	}
	if cfg.ClickOffsets.Password != nil {
		t.Errorf("expected no password click offset, got %+v", cfg.ClickOffsets.Password)
	}
}

func TestLoad_BadRegionShape(t *testing.T) {
	_, err := Load(writeConfig(t, `
[regions]
login_area = [10, 20, 300]
`))
	if err == nil || !strings.Contains(err.Error(), "login_area") {
		t.Fatalf("expected a login_area shape error, got %v", err)
	}
}

func TestLoad_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("expected the default config to be written: %v", statErr)
	}
	// The generated default must itself pass validation.
	if cfg.Automation.MatchThreshold != 0.82 {
		t.Errorf("unexpected threshold in generated default: %v", cfg.Automation.MatchThreshold)
	}
	if cfg.BaseDir != filepath.Dir(path) {
		t.Errorf("expected BaseDir %q, got %q", filepath.Dir(path), cfg.BaseDir)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"threshold out of range",
			"[automation]\nmatch_threshold = 1.5\n",
			"match_threshold",
		},
		{
			"floor above threshold",
			"[automation]\nmatch_threshold = 0.5\nthreshold_floor = 0.8\n",
			"threshold_floor",
		},
		{
			"unknown click backend",
			"[automation]\nclick_backend = \"sendkeys\"\n",
			"click_backend",
		},
		{
			"course entry retries below one",
			"[automation]\ncourse_entry_retries = 0\n",
			"course_entry_retries",
		},
		{
			"no login button templates",
			"[templates]\nlogin_button = []\n",
			"login_button",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	cfg := &Config{BaseDir: filepath.Join("/", "opt", "autologin")}
	rel := cfg.ResolvePath(filepath.Join("templates", "login.png"))
	if rel != filepath.Join("/", "opt", "autologin", "templates", "login.png") {
		t.Errorf("unexpected relative resolution: %q", rel)
	}
	abs := filepath.Join("/", "tmp", "t.png")
	if cfg.ResolvePath(abs) != abs {
		t.Errorf("absolute paths must pass through, got %q", cfg.ResolvePath(abs))
	}
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("10, 20, 300, 200")
	if err != nil {
		t.Fatal(err)
	}
	if *r != (Region{X: 10, Y: 20, W: 300, H: 200}) {
		t.Errorf("unexpected region: %+v", r)
	}

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "0,0,-5,10", "0,0,10,0"} {
		if _, err := ParseRegion(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestRegionValidAndString(t *testing.T) {
	r := Region{X: 1, Y: 2, W: 3, H: 4}
	if !r.Valid() || r.String() != "1,2,3,4" {
		t.Errorf("unexpected region behavior: %+v", r)
	}
	if (Region{W: 0, H: 5}).Valid() {
		t.Error("zero width must be invalid")
	}
}
