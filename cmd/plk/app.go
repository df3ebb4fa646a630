package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/productlogik/plk/internal/api"
	"github.com/productlogik/plk/internal/config"
	"github.com/productlogik/plk/internal/logging"
	"github.com/productlogik/plk/internal/poller"
	"github.com/productlogik/plk/internal/session"
	"github.com/productlogik/plk/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is everything a command needs, built once per invocation.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	nav       session.Navigator
	store     *session.Store
	client    *api.Client
	telemetry *telemetry.Telemetry
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.apiURL != "" {
		cfg.API.BaseURL = c.apiURL
	}

	level, format := cfg.Logging.Level, cfg.Logging.Format
	if c.logLevel != "" {
		level = c.logLevel
	}
	if c.logFormat != "" {
		format = c.logFormat
	}
	logCfg, err := logging.FromSettings(level, format)
	if err != nil {
		return err
	}
	logCfg.Output = c.stderr
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	tel, err := telemetry.New(cmd.Context(), &telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Protocol:       cfg.Telemetry.Protocol,
		Insecure:       !cfg.Telemetry.UseTLS,
		ServiceName:    "plk",
		ServiceVersion: version,
		SampleRate:     cfg.Telemetry.SampleRate,
		ShutdownAfter:  telemetry.NewDefaultConfig().ShutdownAfter,
	})
	if err != nil {
		return err
	}

	nav := session.NewPrintNavigator(c.stderr)
	store, err := session.Open(session.NewFileBackend(cfg.Session.Path),
		session.WithNavigator(nav),
		session.WithLogger(logger.Named("session")),
	)
	if err != nil {
		return err
	}

	client := api.NewClient(
		api.WithBaseURL(cfg.API.BaseURL),
		api.WithTimeout(cfg.API.Timeout.Duration()),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.Burst),
		api.WithTokenProvider(store),
		api.WithUnauthorizedHandler(store.HandleUnauthorized),
		api.WithLogger(logger.Named("api")),
		api.WithTracerProvider(tel.TracerProvider()),
	)

	logger.Debug(cmd.Context(), "client configured",
		zap.String("base_url", client.BaseURL()),
		zap.String("session", cfg.Session.Path),
		zap.Bool("logged_in", store.LoggedIn()),
		zap.Bool("tracing", tel.Enabled()))

	c.app = &app{
		cfg:       cfg,
		logger:    logger,
		nav:       nav,
		store:     store,
		client:    client,
		telemetry: tel,
	}
	return nil
}

// close flushes traces, dumps metrics and syncs the logger. It runs after
// every invocation, failed ones included.
func (c *cli) close(ctx context.Context) error {
	var errs []error
	if c.metricsOut != "" {
		errs = append(errs, api.WriteMetrics(c.metricsOut))
	}
	if a := c.app; a != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func (a *app) poller() *poller.Poller {
	return poller.New(a.client,
		poller.WithInterval(a.cfg.Poll.Interval.Duration()),
		poller.WithLogger(a.logger.Named("poller")),
	)
}

// requireSession fails fast before an authenticated call is made without
// a token, sending the user to the login route.
func (a *app) requireSession() error {
	if a.store.LoggedIn() {
		return nil
	}
	a.nav.Navigate(session.RouteLogin)
	return api.NoSession()
}
