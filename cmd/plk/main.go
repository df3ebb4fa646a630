// Package main implements plk, the command-line client for ProductLogik.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version information (set via ldflags during build)
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one plk invocation and returns the process exit code. Errors
// are reported as a single line on stderr.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := c.close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// cli holds the global flags and the application built from them.
type cli struct {
	configPath string
	apiURL     string
	logLevel   string
	logFormat  string
	metricsOut string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	app *app
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "plk",
		Short: "Command-line client for ProductLogik",
		Long: `plk uploads CSV feedback exports to ProductLogik and shows the
AI-generated thematic analysis.

Examples:
  # Log in and upload a file
  plk login --email you@example.com
  plk upload feedback.csv

  # Follow the analysis until it completes
  plk watch <upload-id>

  # Invite a colleague
  plk share <upload-id> colleague@example.com`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default ~/.config/productlogik/config.yaml)")
	flags.StringVar(&c.apiURL, "api-url", "", "ProductLogik API base URL")
	flags.StringVar(&c.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&c.logFormat, "log-format", "", "log format (console or json)")
	flags.StringVar(&c.metricsOut, "metrics-out", "", "write client metrics to this file on exit")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.registerCmd(),
		c.verifyCmd(),
		c.whoamiCmd(),
		c.profileCmd(),
		c.usageCmd(),
		c.checkoutCmd(),
		c.portalCmd(),
		c.uploadCmd(),
		c.uploadsCmd(),
		c.analysisCmd(),
		c.watchCmd(),
		c.exportCmd(),
		c.shareCmd(),
		c.sharesCmd(),
		c.unshareCmd(),
		c.healthCmd(),
		c.mockServerCmd(),
	)
	return root
}
