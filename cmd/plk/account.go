package main

import (
	"errors"
	"fmt"

	"github.com/productlogik/plk/internal/account"
	"github.com/productlogik/plk/internal/tui"
	"github.com/spf13/cobra"
)

func (c *cli) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.requireSession(); err != nil {
				return err
			}
			ed := account.NewEditor(c.app.client, c.app.logger)
			p, err := ed.Load(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(c.stdout, tui.Profile(p))
			return nil
		},
	}
	cmd.AddCommand(c.profileEditCmd())
	return cmd
}

func (c *cli) profileEditCmd() *cobra.Command {
	var name, company string
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Change your name or company",
		Long: `Change the editable profile fields. Only the flags given are
changed; the profile printed afterwards is the one stored by the server.

Examples:
  plk profile edit --name "Ada Lovelace"
  plk profile edit --company "Analytical Engines Ltd"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			nameSet, companySet := cmd.Flags().Changed("name"), cmd.Flags().Changed("company")
			if !nameSet && !companySet {
				return errors.New("nothing to change: pass --name or --company")
			}
			if err := c.app.requireSession(); err != nil {
				return err
			}

			ed := account.NewEditor(c.app.client, c.app.logger)
			if _, err := ed.Load(cmd.Context()); err != nil {
				return err
			}
			if err := ed.Edit(); err != nil {
				return err
			}
			if nameSet {
				if err := ed.SetName(name); err != nil {
					return err
				}
			}
			if companySet {
				if err := ed.SetCompany(company); err != nil {
					return err
				}
			}
			p, err := ed.Save(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, "Profile updated.")
			fmt.Fprint(c.stdout, tui.Profile(p))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&company, "company", "", "company name")
	return cmd
}

func (c *cli) usageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show your plan and remaining analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.requireSession(); err != nil {
				return err
			}
			p, err := c.app.client.Me(cmd.Context())
			if err != nil {
				return err
			}
			u, ok := account.UsageOf(p)
			if !ok {
				fmt.Fprintln(c.stdout, "No usage information available.")
				return nil
			}
			fmt.Fprint(c.stdout, tui.Usage(u))
			return nil
		},
	}
}

func (c *cli) checkoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <price-id>",
		Short: "Start a subscription checkout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.requireSession(); err != nil {
				return err
			}
			url, err := c.app.client.Checkout(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Complete your checkout at:\n  %s\n", url)
			return nil
		},
	}
}

func (c *cli) portalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "portal",
		Short: "Open the billing portal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.requireSession(); err != nil {
				return err
			}
			url, err := c.app.client.BillingPortal(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Manage your subscription at:\n  %s\n", url)
			return nil
		},
	}
}
