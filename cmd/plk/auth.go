package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/productlogik/plk/internal/api"
	"github.com/productlogik/plk/internal/session"
	"github.com/productlogik/plk/internal/tui"
	"github.com/spf13/cobra"
)

// readSecret returns value, or prompts for it on stdin when empty.
func (c *cli) readSecret(prompt, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprint(c.stderr, prompt)
	line, err := bufio.NewReader(c.stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to ProductLogik",
		Long: `Log in with email and password. The password is read from stdin
when --password is not given.

Examples:
  plk login --email you@example.com
  echo "$PASSWORD" | plk login --email you@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			pw, err := c.readSecret("Password: ", password)
			if err != nil {
				return err
			}
			tok, err := c.app.client.Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			if err := c.app.store.Login(tok.AccessToken); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Logged in as %s\n", email)
			c.app.nav.Navigate(session.RouteUploads)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.app.store.Logout()
		},
	}
}

func (c *cli) registerCmd() *cobra.Command {
	var req api.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a ProductLogik account",
		Long: `Create an account. Depending on the server, the account is usable
right away or must first be confirmed with the token from the
verification email (plk verify <token>).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Email == "" {
				return errors.New("--email is required")
			}
			pw, err := c.readSecret("Password: ", req.Password)
			if err != nil {
				return err
			}
			req.Password = pw

			res, err := c.app.client.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			if res.VerificationRequired || res.AccessToken == "" {
				msg := res.Message
				if msg == "" {
					msg = "Account created. Check your email to verify your address."
				}
				fmt.Fprintln(c.stdout, msg)
				fmt.Fprintln(c.stdout, "Then run: plk verify <token>")
				return nil
			}
			if err := c.app.store.Login(res.AccessToken); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Account created. Logged in as %s\n", req.Email)
			c.app.nav.Navigate(session.RouteUploads)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password (prompted when empty)")
	cmd.Flags().StringVar(&req.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&req.CompanyName, "company", "", "company name")
	return cmd
}

func (c *cli) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Confirm an email address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := c.app.client.VerifyEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, msg)
			fmt.Fprintln(c.stdout, "You can now log in: plk login")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.requireSession(); err != nil {
				return err
			}
			p, err := c.app.client.Me(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(c.stdout, tui.Profile(p))
			return nil
		},
	}
}
