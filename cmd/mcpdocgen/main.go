package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/orchestrai/orchestrai/internal/agents"
	"github.com/orchestrai/orchestrai/internal/core"
	"github.com/orchestrai/orchestrai/internal/jira"
	"github.com/orchestrai/orchestrai/internal/llm"
)

func main() {
	if err := render(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "mcpdocgen:", err)
		os.Exit(1)
	}
}

// render writes Markdown docs for every agent profile. Agents are built
// offline with the stub LLM and a mock tracker.
func render(w io.Writer) error {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	gateway, err := llm.NewGateway(llm.Config{Provider: llm.ProviderStub}, logger)
	if err != nil {
		return err
	}
	tracker := jira.NewClient(jira.Config{}, logger)

	fmt.Fprintln(w, "# MCP Tools (Generated)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "This file is generated by `cmd/mcpdocgen` from the registered agent tools.")
	fmt.Fprintln(w)

	for _, name := range core.ProfileNames() {
		profile, err := core.LoadProfile(name)
		if err != nil {
			return err
		}
		agent, err := agents.Build(profile, agents.Deps{LLM: gateway, Tracker: tracker, Logger: logger})
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "## %s (`AGENT=%s`, default listen `%s`)\n\n", profile.Title, profile.Name, profile.Listen)
		for _, d := range agent.Definitions() {
			fmt.Fprintf(w, "- `%s`\n", d.Name)
			if d.Description != "" {
				fmt.Fprintf(w, "  - Description: %s\n", d.Description)
			}

			requiredSet := make(map[string]bool, len(d.InputSchema.Required))
			for _, r := range d.InputSchema.Required {
				requiredSet[r] = true
			}

			keys := make([]string, 0, len(d.InputSchema.Properties))
			for k := range d.InputSchema.Properties {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			if len(keys) > 0 {
				fmt.Fprintln(w, "  - Input:")
				for _, k := range keys {
					req := "optional"
					if requiredSet[k] {
						req = "required"
					}
					fmt.Fprintf(w, "    - `%s` (%s, %s)\n", k, d.InputSchema.Properties[k].Type, req)
				}
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}
