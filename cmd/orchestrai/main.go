// Package main is the orchestrai agent process and debugging CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/orchestrai/orchestrai/internal/agents"
	"github.com/orchestrai/orchestrai/internal/core"
	"github.com/orchestrai/orchestrai/internal/jira"
	"github.com/orchestrai/orchestrai/internal/llm"
	"github.com/orchestrai/orchestrai/internal/mcp"
)

var (
	version   = ""
	gitCommit = ""
	buildTime = ""
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "orchestrai",
		Short: "LLM-backed DevOps agents behind a uniform MCP-style endpoint",
		Long: `orchestrai runs one agent per process. The agent is selected with AGENT
(planner, progress, image, digest, risks) or the --agent flag.

Examples:
  orchestrai serve --agent planner
  orchestrai call --agent risks --method analyze_risks --params '{"feature":"OAuth login"}'
  orchestrai tools --agent progress`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		callCmd(),
		toolsCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "version=%s git_commit=%s build_time=%s\n", version, gitCommit, buildTime)
		},
	}
}

// app is everything a subcommand needs to serve or call one agent.
type app struct {
	cfg    *core.Config
	logger *slog.Logger
	agent  *mcp.Agent
}

// setup loads .env and the environment, then wires the gateways and the agent.
// A non-empty agentName overrides AGENT.
func setup(agentName string, logOut io.Writer) (*app, error) {
	if err := core.LoadDotEnv(""); err != nil {
		return nil, err
	}

	cfg, err := core.LoadConfig(func(key string) string {
		if key == "AGENT" && agentName != "" {
			return agentName
		}
		return os.Getenv(key)
	})
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if cfg.LogLevelInvalid != "" {
		logger.Warn("invalid LOG_LEVEL, using INFO", "value", cfg.LogLevelInvalid)
	}
	logger.Info("profile loaded", "agent", cfg.Agent.Name)

	gateway, err := llm.NewGateway(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("llm gateway init: %w", err)
	}

	deps := agents.Deps{LLM: gateway, Policy: core.NewPolicy(cfg.ToolAllowlist), Logger: logger}
	if cfg.Agent.UsesTracker {
		deps.Tracker = jira.NewClient(cfg.Jira, logger)
	}

	agent, err := agents.Build(cfg.Agent, deps)
	if err != nil {
		return nil, err
	}

	logger.Info("effective config",
		"agent", cfg.Agent.Name,
		"listen", cfg.HTTPListen,
		"llm_provider", gateway.Provider(),
		"llm_model", gateway.Model(),
		"jira_configured", cfg.Jira.URL != "",
	)
	return &app{cfg: cfg, logger: logger, agent: agent}, nil
}
