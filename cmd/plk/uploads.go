package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/productlogik/plk/internal/api"
	"github.com/productlogik/plk/internal/export"
	"github.com/productlogik/plk/internal/poller"
	"github.com/productlogik/plk/internal/tui"
	"github.com/productlogik/plk/internal/upload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Upload a CSV feedback export for analysis",
		Long: `Upload a CSV file (up to 10MB) and start its analysis.

Examples:
  plk upload feedback.csv
  plk upload feedback.csv && plk uploads`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flow := upload.NewFlow(c.app.client, c.app.store, c.app.nav,
				upload.WithMaxBytes(c.app.cfg.Upload.MaxBytes),
				upload.WithRedirectDelay(c.app.cfg.Upload.RedirectDelay.Duration()),
				upload.WithLogger(c.app.logger.Named("upload")),
			)
			if err := flow.Select(args[0]); err != nil {
				return err
			}
			if _, err := flow.Submit(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprint(c.stdout, tui.UploadOutcome(flow.State()))
			return flow.WaitRedirect(cmd.Context())
		},
	}
}

func (c *cli) uploadsCmd() *cobra.Command {
	var shared bool
	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "List your uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.requireSession(); err != nil {
				return err
			}
			list := c.app.client.ListUploads
			if shared {
				list = c.app.client.ListSharedUploads
			}
			uploads, err := list(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(c.stdout, tui.Uploads(uploads, shared))
			return nil
		},
	}
	cmd.Flags().BoolVar(&shared, "shared", false, "list uploads shared with you")
	return cmd
}

func (c *cli) analysisCmd() *cobra.Command {
	var asJSON, wait bool
	cmd := &cobra.Command{
		Use:   "analysis <upload-id>",
		Short: "Show the analysis of an upload",
		Long: `Show the analysis of an upload. With --wait, a pending analysis is
polled until it completes or fails.

Examples:
  plk analysis 3f2a...
  plk analysis 3f2a... --wait --json | jq .themes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.requireSession(); err != nil {
				return err
			}
			var state poller.State
			if wait {
				h := c.app.poller().Start(cmd.Context(), args[0], nil)
				st, err := h.Wait(cmd.Context())
				h.Cancel()
				if err != nil {
					return err
				}
				state = st
			} else {
				a, err := c.app.client.GetAnalysis(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				state = poller.State{UploadID: args[0], Phase: poller.PhaseSuccess, Analysis: a}
			}
			if state.Phase == poller.PhaseError {
				return state.Err
			}

			if asJSON {
				enc := json.NewEncoder(c.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(state.Analysis)
			}
			fmt.Fprint(c.stdout, tui.AnalysisPanel(state, ""))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the analysis as JSON")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the analysis completes")
	return cmd
}

func (c *cli) watchCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "watch <upload-id>...",
		Short: "Follow analyses until they complete",
		Long: `Open a live view of one or more analyses. The view refreshes while an
analysis is pending; tab switches between uploads. Logging out in another
terminal ends the view.

--plain prints one line per change instead, for scripts and logs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.requireSession(); err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go func() {
				if err := c.app.store.Watch(ctx, c.app.cfg.Session.Path); err != nil {
					c.app.logger.Warn(ctx, "session watcher stopped", zap.Error(err))
				}
			}()

			if plain {
				unsubscribe := c.app.store.Subscribe(func() {
					if !c.app.store.LoggedIn() {
						cancel()
					}
				})
				defer unsubscribe()
				err := c.watchPlain(ctx, c.app.poller(), args)
				if !c.app.store.LoggedIn() {
					return api.NoSession()
				}
				return err
			}

			prog := tea.NewProgram(tui.NewWatchModel(ctx, c.app.poller(), args...),
				tea.WithContext(ctx),
				tea.WithInput(c.stdin),
				tea.WithOutput(c.stdout),
				tea.WithAltScreen(),
			)
			unsubscribe := c.app.store.Subscribe(func() {
				if !c.app.store.LoggedIn() {
					prog.Quit()
				}
			})
			defer unsubscribe()
			if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("watch view failed: %w", err)
			}
			if !c.app.store.LoggedIn() {
				return api.NoSession()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print plain status lines instead of the live view")
	return cmd
}

// watchPlain polls each upload in turn, printing a line whenever its status
// changes and the final panel once it settles.
func (c *cli) watchPlain(ctx context.Context, p *poller.Poller, ids []string) error {
	for _, id := range ids {
		last := ""
		h := p.Start(ctx, id, func(s poller.State) {
			if line := statusLine(s); line != last {
				fmt.Fprintln(c.stdout, line)
				last = line
			}
		})
		st, err := h.Wait(ctx)
		h.Cancel()
		if err != nil {
			return err
		}
		if st.Phase == poller.PhaseError {
			return st.Err
		}
		fmt.Fprint(c.stdout, tui.AnalysisPanel(st, ""))
	}
	return nil
}

func statusLine(s poller.State) string {
	switch {
	case s.Phase == poller.PhaseSuccess && s.Analysis != nil:
		return fmt.Sprintf("%s: %s", s.UploadID, s.Analysis.Status)
	case s.Phase == poller.PhaseError:
		return fmt.Sprintf("%s: error: %v", s.UploadID, s.Err)
	default:
		return fmt.Sprintf("%s: %s", s.UploadID, s.Phase)
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var out, bucket, name string
	cmd := &cobra.Command{
		Use:   "export <upload-id>",
		Short: "Download the analysis report as PDF",
		Long: `Download the PDF report of a completed analysis. The report is saved
to a local directory, or to an S3-compatible bucket with --bucket (endpoint
and credentials come from the export section of the config file).

--out and --bucket cannot be combined. A bucket set in the config file is
used unless --out is given.

Examples:
  plk export 3f2a... --out ~/reports
  plk export 3f2a... --bucket reports`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.requireSession(); err != nil {
				return err
			}
			ctx := cmd.Context()

			if name == "" {
				a, err := c.app.client.GetAnalysis(ctx, args[0])
				if err != nil {
					return err
				}
				name = export.DefaultFilename(a.Filename)
			}

			var sink export.Sink = export.FileSink{Dir: out}
			if bucket == "" {
				bucket = c.app.cfg.Export.Bucket
			}
			if bucket != "" && !cmd.Flags().Changed("out") {
				ec := c.app.cfg.Export
				s3, err := export.NewS3Sink(ctx, export.S3Config{
					Endpoint:  ec.Endpoint,
					Region:    ec.Region,
					Bucket:    bucket,
					AccessKey: ec.AccessKey.Value(),
					SecretKey: ec.SecretKey.Value(),
					UseSSL:    ec.UseSSL,
					Prefix:    ec.Prefix,
				})
				if err != nil {
					return err
				}
				sink = s3
			}

			res, err := export.NewExporter(c.app.client, sink, c.app.logger.Named("export")).Export(ctx, args[0], name)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Saved %d-page report (%d bytes) to %s\n", res.Pages, res.Bytes, res.Location)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", ".", "directory to save the report in")
	cmd.Flags().StringVar(&bucket, "bucket", "", "upload the report to this bucket instead")
	cmd.Flags().StringVar(&name, "name", "", "report file name (default <file>-analysis.pdf)")
	cmd.MarkFlagsMutuallyExclusive("out", "bucket")
	return cmd
}
