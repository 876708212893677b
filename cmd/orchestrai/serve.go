package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpsvr "github.com/orchestrai/orchestrai/internal/http"
)

func serveCmd() *cobra.Command {
	var (
		agentName string
		listen    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve one agent over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(agentName, os.Stdout)
			if err != nil {
				return err
			}
			addr := rt.cfg.HTTPListen
			if listen != "" {
				addr = listen
			}

			server := httpsvr.NewServer(addr, rt.agent, rt.cfg.Agent, rt.logger)

			errCh := make(chan error, 1)
			go func() { errCh <- server.ListenAndServe() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				rt.logger.Info("shutting down", "signal", sig.String())
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					rt.logger.Error("server error", "err", err)
					return err
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				rt.logger.Error("shutdown failed", "err", err)
			}
			rt.logger.Info("shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "agent profile (overrides AGENT)")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides AGENT_HTTP_LISTEN)")
	return cmd
}
