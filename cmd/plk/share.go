package main

import (
	"fmt"

	"github.com/productlogik/plk/internal/share"
	"github.com/productlogik/plk/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) newShare(uploadID string) *share.Workflow {
	return share.New(c.app.client, uploadID, "",
		share.WithSiteOrigin(c.app.cfg.Share.SiteOrigin),
		share.WithCopyReset(c.app.cfg.Share.CopyReset.Duration()),
		share.WithLogger(c.app.logger.Named("share")),
	)
}

func (c *cli) shareCmd() *cobra.Command {
	var copyLink bool
	cmd := &cobra.Command{
		Use:   "share <upload-id> <email>",
		Short: "Invite someone to view an analysis",
		Long: `Give another person access to an analysis and email them an
invitation. When the email cannot be delivered, access is still granted
and a link to send them manually is printed instead; --copy also puts it
on the clipboard.

Examples:
  plk share 3f2a... colleague@example.com
  plk share 3f2a... colleague@example.com --copy`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.requireSession(); err != nil {
				return err
			}
			wf := c.newShare(args[0])
			defer wf.Reset()

			wf.SetEmail(args[1])
			if _, err := wf.Submit(cmd.Context()); err != nil {
				return err
			}
			if copyLink && wf.State().Degraded() {
				if err := wf.Copy(); err != nil {
					c.app.logger.Warn(cmd.Context(), "clipboard unavailable", zap.Error(err))
				}
			}
			fmt.Fprint(c.stdout, tui.ShareOutcome(wf.State(), wf.ManualLink()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&copyLink, "copy", false, "copy the manual invitation link to the clipboard")
	return cmd
}

func (c *cli) sharesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shares <upload-id>",
		Short: "List who an analysis is shared with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.requireSession(); err != nil {
				return err
			}
			shares, err := c.newShare(args[0]).List(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(c.stdout, tui.Shares(shares))
			return nil
		},
	}
}

func (c *cli) unshareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unshare <upload-id> <share-id>",
		Short: "Revoke someone's access to an analysis",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.requireSession(); err != nil {
				return err
			}
			msg, err := c.newShare(args[0]).Revoke(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			if msg == "" {
				msg = "Access revoked."
			}
			fmt.Fprintln(c.stdout, msg)
			return nil
		},
	}
}
