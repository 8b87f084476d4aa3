// Package config loads and validates the autologin configuration file.
//
// The on-disk format is TOML. Missing files are created from the commented
// default template, and user values are merged over defaults so partial
// files stay valid across upgrades.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Region is a screen rectangle used to restrict template search.
type Region struct {
	X int
	Y int
	W int
	H int
}

// Valid reports whether the region has positive dimensions.
func (r Region) Valid() bool {
	return r.W > 0 && r.H > 0
}

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.W, r.H)
}

// Offset is a relative displacement in screen pixels.
type Offset struct {
	DX int
	DY int
}

// ParseRegion parses a "x,y,w,h" string into a Region.
func ParseRegion(s string) (*Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid region %q: expected x,y,w,h", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid region %q: %w", s, err)
		}
		vals[i] = v
	}
	r := &Region{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
	if !r.Valid() {
		return nil, fmt.Errorf("invalid region %q: width and height must be positive", s)
	}
	return r, nil
}

// LoggingConfig controls the stderr log output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// AutomationConfig holds the retry, threshold, and pacing parameters that
// drive the step engine and localizer.
type AutomationConfig struct {
	MaxRetries         int     `mapstructure:"max_retries"`
	MaxFallbacks       int     `mapstructure:"max_fallbacks"`
	CourseEntryRetries int     `mapstructure:"course_entry_retries"`
	RetryIntervalMs    int     `mapstructure:"retry_interval_ms"`
	StepTimeoutMs      int     `mapstructure:"step_timeout_ms"`
	SettleMs           int     `mapstructure:"settle_ms"`
	TypeIntervalMs     int     `mapstructure:"type_interval_ms"`
	MatchThreshold     float64 `mapstructure:"match_threshold"`
	ThresholdFloor     float64 `mapstructure:"threshold_floor"`
	ThresholdStep      float64 `mapstructure:"threshold_step"`
	ClickBackend       string  `mapstructure:"click_backend"`
	DebugLevel         int     `mapstructure:"debug_level"`
}

// TemplateConfig lists reference images per UI element. Each element may
// carry several captures (e.g. focused and unfocused states of a field).
type TemplateConfig struct {
	SidebarButton []string `mapstructure:"sidebar_button"`
	CourseEntry   []string `mapstructure:"course_entry"`
	AccountInput  []string `mapstructure:"account_input"`
	PasswordInput []string `mapstructure:"password_input"`
	LoginButton   []string `mapstructure:"login_button"`
}

// RegionConfig restricts where each element is searched for. Nil means
// the whole screen (or a live window, when one is resolvable).
type RegionConfig struct {
	SidebarButton *Region
	CourseEntry   *Region
	LoginArea     *Region
}

// FallbackOffsetConfig positions an input field relative to the login
// button when the field itself cannot be localized.
type FallbackOffsetConfig struct {
	AccountFromLogin  *Offset
	PasswordFromLogin *Offset
}

// ClickOffsetConfig shifts the click point away from the matched template
// center, for templates that anchor a label next to the actual field.
type ClickOffsetConfig struct {
	Account  *Offset
	Password *Offset
}

// CredentialConfig holds the literal login credentials.
type CredentialConfig struct {
	Account  string `mapstructure:"account"`
	Password string `mapstructure:"password"`
}

// AppConfig describes the target application process and its windows.
type AppConfig struct {
	ExePath           string `mapstructure:"exe_path"`
	StartupWaitMs     int    `mapstructure:"startup_wait_ms"`
	WindowNameCourse  string `mapstructure:"window_name_course"`
	WindowNameLogin   string `mapstructure:"window_name_login"`
}

// Config is the resolved, validated configuration consumed by the rest of
// the program. It is immutable after Load returns.
type Config struct {
	Logging         LoggingConfig
	Automation      AutomationConfig
	Templates       TemplateConfig
	Regions         RegionConfig
	FallbackOffsets FallbackOffsetConfig
	ClickOffsets    ClickOffsetConfig
	Credentials     CredentialConfig
	App             AppConfig

	// BaseDir anchors relative template paths, normally the config
	// file's directory.
	BaseDir string
}

// ResolvePath turns a template path from the config into an absolute path.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")

	v.SetDefault("automation.max_retries", 2)
	v.SetDefault("automation.max_fallbacks", 5)
	v.SetDefault("automation.course_entry_retries", 2)
	v.SetDefault("automation.retry_interval_ms", 500)
	v.SetDefault("automation.step_timeout_ms", 12000)
	v.SetDefault("automation.settle_ms", 50)
	v.SetDefault("automation.type_interval_ms", 20)
	v.SetDefault("automation.match_threshold", 0.82)
	v.SetDefault("automation.threshold_floor", 0.45)
	v.SetDefault("automation.threshold_step", 0.03)
	v.SetDefault("automation.click_backend", "standard")
	v.SetDefault("automation.debug_level", 0)

	v.SetDefault("templates.sidebar_button", []string{})
	v.SetDefault("templates.course_entry", []string{"templates/course_entry.png"})
	v.SetDefault("templates.account_input", []string{"templates/account_input.png"})
	v.SetDefault("templates.password_input", []string{"templates/password_input.png"})
	v.SetDefault("templates.login_button", []string{"templates/login_button.png"})

	v.SetDefault("regions.sidebar_button", []int{})
	v.SetDefault("regions.course_entry", []int{})
	v.SetDefault("regions.login_area", []int{})

	v.SetDefault("fallback_offsets.account_from_login", []int{})
	v.SetDefault("fallback_offsets.password_from_login", []int{})

	v.SetDefault("click_offsets.account", []int{})
	v.SetDefault("click_offsets.password", []int{})

	v.SetDefault("credentials.account", "")
	v.SetDefault("credentials.password", "")

	v.SetDefault("app.exe_path", "")
	v.SetDefault("app.startup_wait_ms", 15000)
	v.SetDefault("app.window_name_course", "")
	v.SetDefault("app.window_name_login", "")
}

// Load reads the TOML config at path, writing the default file first when
// none exists, and returns the resolved configuration.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := WriteDefault(path); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	var err error
	if cfg.Regions.SidebarButton, err = regionFromSlice(v.GetIntSlice("regions.sidebar_button")); err != nil {
		return nil, fmt.Errorf("regions.sidebar_button: %w", err)
	}
	if cfg.Regions.CourseEntry, err = regionFromSlice(v.GetIntSlice("regions.course_entry")); err != nil {
		return nil, fmt.Errorf("regions.course_entry: %w", err)
	}
	if cfg.Regions.LoginArea, err = regionFromSlice(v.GetIntSlice("regions.login_area")); err != nil {
		return nil, fmt.Errorf("regions.login_area: %w", err)
	}
	if cfg.FallbackOffsets.AccountFromLogin, err = offsetFromSlice(v.GetIntSlice("fallback_offsets.account_from_login")); err != nil {
		return nil, fmt.Errorf("fallback_offsets.account_from_login: %w", err)
	}
	if cfg.FallbackOffsets.PasswordFromLogin, err = offsetFromSlice(v.GetIntSlice("fallback_offsets.password_from_login")); err != nil {
		return nil, fmt.Errorf("fallback_offsets.password_from_login: %w", err)
	}
	if cfg.ClickOffsets.Account, err = offsetFromSlice(v.GetIntSlice("click_offsets.account")); err != nil {
		return nil, fmt.Errorf("click_offsets.account: %w", err)
	}
	if cfg.ClickOffsets.Password, err = offsetFromSlice(v.GetIntSlice("click_offsets.password")); err != nil {
		return nil, fmt.Errorf("click_offsets.password: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.BaseDir = filepath.Dir(abs)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// regionFromSlice converts a TOML [x, y, w, h] array to a Region.
// An empty array means "not configured".
func regionFromSlice(vals []int) (*Region, error) {
	if len(vals) == 0 {
		return nil, nil
	}
	if len(vals) != 4 {
		return nil, fmt.Errorf("expected [x, y, w, h], got %d values", len(vals))
	}
	r := &Region{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
	if !r.Valid() {
		return nil, fmt.Errorf("width and height must be positive, got %dx%d", r.W, r.H)
	}
	return r, nil
}

// offsetFromSlice converts a TOML [dx, dy] array to an Offset.
func offsetFromSlice(vals []int) (*Offset, error) {
	if len(vals) == 0 {
		return nil, nil
	}
	if len(vals) != 2 {
		return nil, fmt.Errorf("expected [dx, dy], got %d values", len(vals))
	}
	return &Offset{DX: vals[0], DY: vals[1]}, nil
}

// Validate checks the parameter ranges the engine depends on.
func (c *Config) Validate() error {
	a := c.Automation
	if a.MatchThreshold <= 0 || a.MatchThreshold > 1 {
		return fmt.Errorf("automation.match_threshold must be in (0, 1], got %v", a.MatchThreshold)
	}
	if a.ThresholdFloor <= 0 || a.ThresholdFloor > 1 {
		return fmt.Errorf("automation.threshold_floor must be in (0, 1], got %v", a.ThresholdFloor)
	}
	if a.ThresholdFloor > a.MatchThreshold {
		return fmt.Errorf("automation.threshold_floor (%v) must not exceed match_threshold (%v)", a.ThresholdFloor, a.MatchThreshold)
	}
	if a.ThresholdStep <= 0 {
		return fmt.Errorf("automation.threshold_step must be positive, got %v", a.ThresholdStep)
	}
	if a.MaxRetries < 0 || a.MaxFallbacks < 0 {
		return fmt.Errorf("retry and fallback ceilings must not be negative")
	}
	if a.CourseEntryRetries < 1 {
		return fmt.Errorf("automation.course_entry_retries must be at least 1, got %d", a.CourseEntryRetries)
	}
	switch a.ClickBackend {
	case "standard", "toggle", "scaled":
	default:
		return fmt.Errorf("automation.click_backend must be standard, toggle, or scaled, got %q", a.ClickBackend)
	}
	if len(c.Templates.CourseEntry) == 0 {
		return fmt.Errorf("templates.course_entry must list at least one image")
	}
	if len(c.Templates.AccountInput) == 0 {
		return fmt.Errorf("templates.account_input must list at least one image")
	}
	if len(c.Templates.LoginButton) == 0 {
		return fmt.Errorf("templates.login_button must list at least one image")
	}
	return nil
}

// WriteDefault writes the commented default config file to path.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultTOML), 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

const defaultTOML = `# autologin configuration

[logging]
# Log level: debug, info, warn, error
level = "info"

[automation]
# Max retries per step before the step reports failure
max_retries = 2
# Max total fallbacks across the run before giving up
max_fallbacks = 5
# Attempts for the course-entry step (failure there falls back to the sidebar)
course_entry_retries = 2
# Wait between retries, in milliseconds
retry_interval_ms = 500
# Upper bound for a single step's polling wait, in milliseconds
step_timeout_ms = 12000
# Settle delay between pointer move, press, and release
settle_ms = 50
# Delay between typed characters
type_interval_ms = 20
# Primary template match threshold; higher is stricter
match_threshold = 0.82
# Lowest threshold the descending sweep will try
threshold_floor = 0.45
# Threshold sweep step size (clamped to a minimum of 0.03)
threshold_step = 0.03
# Click backend: standard, toggle, scaled
click_backend = "standard"
# Debug level 2 skips straight to the account step
debug_level = 0

[templates]
# Reference images per element. Provide focused and unfocused captures of
# input fields for better hit rates.
sidebar_button = []
course_entry = ["templates/course_entry.png"]
account_input = ["templates/account_input.png", "templates/account_input_focused.png"]
password_input = ["templates/password_input.png", "templates/password_input_focused.png"]
login_button = ["templates/login_button.png"]

[regions]
# Search regions [x, y, w, h]; empty means full screen
sidebar_button = []
course_entry = []
login_area = []

[fallback_offsets]
# Field position relative to the login button center [dx, dy]; empty disables
account_from_login = []
password_from_login = []

[click_offsets]
# Shift the click away from the matched template center [dx, dy],
# e.g. account = [150, 0] clicks 150px right of the matched label
account = []
password = []

[credentials]
account = ""
password = ""

[app]
# Target application executable, used to relaunch it before the run
exe_path = ""
# Wait after launching, in milliseconds
startup_wait_ms = 15000
# Window names used to tighten search regions when resolvable
window_name_course = ""
window_name_login = ""
`
