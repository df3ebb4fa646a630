package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/productlogik/plk/internal/mockapi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API is reachable",
		Long: `Check the health status of the ProductLogik API.

Examples:
  plk health
  plk health --api-url http://localhost:8001`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := c.app.client.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Server Status: %s\n", h.Status)
			fmt.Fprintf(c.stdout, "Server URL: %s\n", c.app.client.BaseURL())
			return nil
		},
	}
}

func (c *cli) mockServerCmd() *cobra.Command {
	cfg := mockapi.DefaultConfig()
	var seed []string
	cmd := &cobra.Command{
		Use:    "mock-server",
		Short:  "Run an in-memory ProductLogik API for local testing",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			srv := mockapi.NewServer(c.app.logger.Named("mockapi"), cfg)
			for _, s := range seed {
				email, password, ok := strings.Cut(s, ":")
				if !ok || email == "" || password == "" {
					return fmt.Errorf("invalid --seed %q: want email:password", s)
				}
				srv.AddUser(email, password, "")
				c.app.logger.Info(ctx, "seeded user", zap.String("email", email))
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			fmt.Fprintf(c.stdout, "Mock API listening on http://%s:%d/api\n", cfg.Host, cfg.Port)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("shutdown failed: %w", err)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&cfg.Host, "host", cfg.Host, "listen address")
	flags.IntVar(&cfg.Port, "port", cfg.Port, "listen port")
	flags.IntVar(&cfg.PendingPolls, "pending-polls", cfg.PendingPolls, "fetches an analysis stays pending for")
	flags.BoolVar(&cfg.ShareEmailFails, "share-email-fails", false, "report undelivered invitation emails")
	flags.BoolVar(&cfg.VerificationRequired, "verification-required", false, "require email verification after registration")
	flags.IntVar(&cfg.AnalysesLimit, "analyses-limit", cfg.AnalysesLimit, "analyses allowed per new user")
	flags.StringArrayVar(&seed, "seed", nil, "create a verified user, as email:password (repeatable)")
	return cmd
}
