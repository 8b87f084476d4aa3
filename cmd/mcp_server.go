package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/c30tools/autologin/internal/config"
	"github.com/c30tools/autologin/internal/engine"
	"github.com/c30tools/autologin/internal/input"
	"github.com/c30tools/autologin/internal/vision"
)

// mcpServer wraps the MCP server with the shared vision components.
// runMu serializes run_login calls: the engine is strictly a
// one-run-at-a-time state machine.
type mcpServer struct {
	configPath string
	store      *vision.Store
	runMu      sync.Mutex
	mcp        *mcpserver.MCPServer
}

// MCPConfig holds MCP server configuration.
type MCPConfig struct {
	Transport string
	Port      int
}

// newMCPServer creates and configures an MCP server with all autologin tools.
func newMCPServer(configPath string) (*mcpServer, error) {
	s := &mcpServer{
		configPath: configPath,
		store:      vision.NewStore(),
	}
	s.mcp = mcpserver.NewMCPServer(
		"autologin",
		"1.0.0",
	)
	s.registerTools()
	return s, nil
}

// serve starts the MCP server with the configured transport.
func (s *mcpServer) serve(cfg MCPConfig) error {
	switch cfg.Transport {
	case "stdio":
		return mcpserver.ServeStdio(s.mcp)
	case "streamable-http":
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
		return httpServer.Start(fmt.Sprintf(":%d", cfg.Port))
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or streamable-http)", cfg.Transport)
	}
}

func (s *mcpServer) registerTools() {
	// run_login
	s.mcp.AddTool(
		mcp.NewTool("run_login",
			mcp.WithDescription("Run the full login workflow against the target application. Returns the terminal outcome with step and fallback counts."),
			mcp.WithString("account", mcp.Description("Override credentials.account from the config")),
			mcp.WithString("password", mcp.Description("Override credentials.password from the config")),
			mcp.WithNumber("entry-step", mcp.Description("Start at this step index (0-4)")),
		),
		s.handleRunLogin,
	)

	// locate
	s.mcp.AddTool(
		mcp.NewTool("locate",
			mcp.WithDescription("Locate a template image on the current screen and return its center and confidence"),
			mcp.WithString("template", mcp.Description("Template image path"), mcp.Required()),
			mcp.WithString("region", mcp.Description("Restrict search to x,y,w,h")),
			mcp.WithNumber("threshold", mcp.Description("Primary match threshold (default: 0.82)")),
			mcp.WithNumber("floor", mcp.Description("Sweep thresholds down to this floor (0 = single threshold)")),
		),
		s.handleLocate,
	)

	// click
	s.mcp.AddTool(
		mcp.NewTool("click",
			mcp.WithDescription("Click at absolute screen coordinates"),
			mcp.WithNumber("x", mcp.Description("X screen coordinate"), mcp.Required()),
			mcp.WithNumber("y", mcp.Description("Y screen coordinate"), mcp.Required()),
			mcp.WithString("backend", mcp.Description("Click backend: standard, toggle, scaled")),
		),
		s.handleClick,
	)

	// type_text
	s.mcp.AddTool(
		mcp.NewTool("type_text",
			mcp.WithDescription("Clear the focused field and type text into it, paced per character"),
			mcp.WithString("text", mcp.Description("Text to type"), mcp.Required()),
			mcp.WithBoolean("no-clear", mcp.Description("Do not clear the focused field first")),
		),
		s.handleTypeText,
	)
}

func (s *mcpServer) handleRunLogin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	cfg, err := config.Load(s.configPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if account := req.GetString("account", ""); account != "" {
		cfg.Credentials.Account = account
	}
	if password := req.GetString("password", ""); password != "" {
		cfg.Credentials.Password = password
	}

	if err := vision.ValidateTemplates(s.store, cfg); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("template validation: %v", err)), nil
	}

	backend, err := input.ParseBackend(cfg.Automation.ClickBackend)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	actuator, err := input.New(backend, input.Options{
		Settle:       time.Duration(cfg.Automation.SettleMs) * time.Millisecond,
		TypeInterval: time.Duration(cfg.Automation.TypeIntervalMs) * time.Millisecond,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	localizer := vision.NewLocalizer(vision.NewScreenCapturer(), s.store, vision.RobotWindowBounds{}, slog.Default())

	var opts []engine.Option
	if entry := req.GetInt("entry-step", -1); entry >= 0 && entry <= int(engine.StepClickLogin) {
		opts = append(opts, engine.WithEntryStep(engine.StepID(entry)))
	}

	outcome := engine.New(cfg, localizer, actuator, opts...).Run(ctx)
	return yamlResult(outcome)
}

func (s *mcpServer) handleLocate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	template, err := req.RequireString("template")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var region *config.Region
	if regionStr := req.GetString("region", ""); regionStr != "" {
		r, err := config.ParseRegion(regionStr)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		region = r
	}

	threshold := req.GetFloat("threshold", 0.82)
	floor := req.GetFloat("floor", 0)
	ladder := vision.SingleTier(threshold)
	if floor > 0 {
		ladder = vision.BuildLadder(threshold, floor, 0.03)
	}

	localizer := vision.NewLocalizer(vision.NewScreenCapturer(), s.store, vision.RobotWindowBounds{}, slog.Default())
	match, err := localizer.Locate([]string{template}, region, ladder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if match == nil {
		return yamlResult(LocateResult{OK: false, Action: "locate"})
	}
	return yamlResult(LocateResult{
		OK:         true,
		Action:     "locate",
		X:          match.X,
		Y:          match.Y,
		Confidence: match.Confidence,
		Source:     filepath.Base(match.Source),
	})
}

func (s *mcpServer) handleClick(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	x, err := req.RequireInt("x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := req.RequireInt("y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	backend, err := input.ParseBackend(req.GetString("backend", "standard"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	actuator, err := input.New(backend, input.Options{Settle: 50 * time.Millisecond})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := actuator.ClickAt(x, y); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return yamlResult(ClickResult{OK: true, Action: "click", X: x, Y: y, Backend: string(backend)})
}

func (s *mcpServer) handleTypeText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.GetBool("no-clear", false) {
		input.TypeRaw(text, 20*time.Millisecond)
	} else {
		actuator, err := input.New(input.BackendStandard, input.Options{
			Settle:       50 * time.Millisecond,
			TypeInterval: 20 * time.Millisecond,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := actuator.TypeText(text); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return yamlResult(TypeResult{OK: true, Action: "type", Text: text})
}

// yamlResult serializes v as YAML into a text tool result.
func yamlResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
