package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/orchestrai/orchestrai/internal/mcp"
)

func callCmd() *cobra.Command {
	var (
		agentName string
		method    string
		params    string
	)

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Run a single tool call in-process and print the JSON result",
		Long: `Run a single tool call through the same dispatch path as POST /mcp.
Logs go to stderr so stdout carries only the result.

Example:
  LLM_PROVIDER=stub orchestrai call --agent planner --method plan --params '{"description":"Add SSO"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(agentName, os.Stderr)
			if err != nil {
				return err
			}

			body, err := json.Marshal(struct {
				Method string          `json:"method"`
				Params json.RawMessage `json:"params"`
			}{Method: method, Params: json.RawMessage(params)})
			if err != nil {
				return fmt.Errorf("encode request: %w", err)
			}

			ctx := mcp.ContextWithTraceID(context.Background(), uuid.New().String())
			out, err := json.MarshalIndent(rt.agent.Dispatch(ctx, body), "", "  ")
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "agent profile (overrides AGENT)")
	cmd.Flags().StringVarP(&method, "method", "m", "", "tool name, optionally prefixed with tools/")
	cmd.Flags().StringVarP(&params, "params", "p", "{}", "tool parameters as a JSON object")
	cmd.MarkFlagRequired("method")
	return cmd
}

func toolsCmd() *cobra.Command {
	var agentName string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tool definitions of an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(agentName, os.Stderr)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(rt.agent.Definitions(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "agent profile (overrides AGENT)")
	return cmd
}
