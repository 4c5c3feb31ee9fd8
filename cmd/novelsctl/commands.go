package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zxckotee/novels-sub001/apiclient"
	"github.com/zxckotee/novels-sub001/internal/tui"
	"github.com/zxckotee/novels-sub001/roles"
	"github.com/zxckotee/novels-sub001/session"
	"github.com/zxckotee/novels-sub001/token"
)

func newLoginCommand(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			pw, err := resolvePassword(password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			u, err := c.Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", describeUser(u))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (read from NOVELS_PASSWORD or stdin when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCommand(a *app) *cobra.Command {
	var req apiclient.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			req.Password, err = resolvePassword(req.Password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			u, err := c.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered and signed in as %s\n", describeUser(u))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&req.DisplayName, "name", "", "Display name")
	cmd.Flags().StringVar(&req.Password, "password", "", "Account password (read from NOVELS_PASSWORD or stdin when empty)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out; the local session is cleared even if the API is unreachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			if c.Snapshot().User == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
				return nil
			}
			if err := c.Logout(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: server logout failed: %v\n", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			u := c.Snapshot().User
			if remote && u != nil {
				if u, err = c.CurrentUser(cmd.Context()); err != nil {
					return err
				}
			}
			if u == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), describeUser(u))
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Fetch the user from the API and update the stored session")
	return cmd
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session, storage and token state",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			cfg := c.Config()
			snap := c.Snapshot()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "instance:       %s\n", c.ID())
			fmt.Fprintf(out, "api:            %s\n", c.API().BaseURL())
			fmt.Fprintf(out, "storage:        %s (key %q)\n", cfg.Storage.Backend, cfg.Storage.Key)
			fmt.Fprintf(out, "hydration:      %s\n", c.HydrationState())
			fmt.Fprintf(out, "authenticated:  %t\n", snap.IsAuthenticated)
			if snap.User != nil {
				fmt.Fprintf(out, "user:           %s\n", describeUser(snap.User))
			}
			fmt.Fprintf(out, "token:          %s\n", describeToken(snap, time.Now()))
			return nil
		},
	}
}

func newRefreshCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			if err := c.RefreshToken(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token: %s\n", describeToken(c.Snapshot(), time.Now()))
			return nil
		},
	}
}

func newClearCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored session record without contacting the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			if err := c.ClearStorage(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stored session removed")
			return nil
		},
	}
}

func newTUICommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFrom(cmd)
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), c)
		},
	}
}

func resolvePassword(flag string, in io.Reader) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv("NOVELS_PASSWORD"); env != "" {
		return env, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("password is required")
	}
	return pw, nil
}

func describeUser(u *session.User) string {
	name := u.DisplayName
	if name == "" {
		name = u.Email
	}
	badge := ""
	switch {
	case roles.IsAdmin(u):
		badge = " [admin]"
	case roles.IsModerator(u):
		badge = " [moderator]"
	case roles.IsPremium(u):
		badge = " [premium]"
	}
	return fmt.Sprintf("%s <%s> id=%s roles=%s%s", name, u.Email, u.ID, strings.Join(u.Roles, ","), badge)
}

func describeToken(s session.Snapshot, now time.Time) string {
	raw, ok := s.AuthorizationToken()
	if !ok {
		return "none"
	}
	claims, err := token.Inspect(raw)
	if err != nil {
		return "opaque"
	}
	if claims.ExpiresAt.IsZero() {
		return "jwt, no expiry"
	}
	if claims.Expired(now, 0) {
		return fmt.Sprintf("jwt, expired %s ago", now.Sub(claims.ExpiresAt).Round(time.Second))
	}
	return fmt.Sprintf("jwt, expires in %s", claims.ExpiresAt.Sub(now).Round(time.Second))
}
