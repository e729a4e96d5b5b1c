// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/autologout/internal/autologout"
	"github.com/jeranaias/autologout/internal/gateway"
	"github.com/jeranaias/autologout/internal/ui/styles"
	"github.com/jeranaias/autologout/internal/util"
)

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create and inspect sessions",
	}
	cmd.AddCommand(newSessionOpenCmd(a), newSessionStatusCmd(a))
	return cmd
}

func newSessionOpenCmd(a *app) *cobra.Command {
	var (
		user    string
		roles   []string
		baseURL string
		export  bool
	)
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Create a session (requires server.admin_token)",
		Example: `  autologout session open --user alice
  autologout session open --user bob --role editor --role reviewer
  eval $(autologout session open --user alice --export)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return errors.New("--user is required")
			}
			client, err := a.adminClient(baseURL)
			if err != nil {
				return err
			}
			resp, err := client.OpenSession(cmd.Context(), user, roles)
			if err != nil {
				return fmt.Errorf("open session: %w", err)
			}

			if export {
				fmt.Fprintf(a.out, "export AUTOLOGOUT_SESSION_ID=%s\n", resp.ID)
				return nil
			}
			fmt.Fprintln(a.out, styles.RenderSuccess("session opened"))
			fmt.Fprintf(a.out, "  id:      %s\n", resp.ID)
			if resp.Timeout > 0 {
				fmt.Fprintf(a.out, "  timeout: %s\n", util.FormatDuration(time.Duration(resp.Timeout)*time.Second))
			} else {
				fmt.Fprintln(a.out, "  timeout: none (autologout disabled for these roles)")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user the session belongs to")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "user role (repeatable)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "server URL (overrides client.base_url)")
	cmd.Flags().BoolVar(&export, "export", false, "print a shell export line instead")
	return cmd
}

func newSessionStatusCmd(a *app) *cobra.Command {
	var sessionID, baseURL string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show how long a session has left (does not count as activity)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSessionStatus(cmd.Context(), sessionID, baseURL)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (overrides client.session_id)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "server URL (overrides client.base_url)")
	return cmd
}

func (a *app) runSessionStatus(ctx context.Context, sessionID, baseURL string) error {
	cfg, _, err := a.loadConfig()
	if err != nil {
		return err
	}
	applyWatchOverrides(cfg, watchOptions{sessionID: sessionID, baseURL: baseURL})
	if cfg.Client.SessionID == "" {
		return errors.New("no session: pass --session or set AUTOLOGOUT_SESSION_ID")
	}

	client, err := gateway.NewClient(gateway.FromConfig(cfg))
	if err != nil {
		return err
	}
	secs, err := client.TimeLeft(ctx)
	switch {
	case autologout.IsAuthExpired(err):
		fmt.Fprintln(a.out, styles.RenderError("session expired"))
		return nil
	case err != nil:
		return err
	case secs <= 0:
		fmt.Fprintln(a.out, styles.RenderWarning("idle: the logout warning is due"))
	default:
		fmt.Fprintln(a.out, styles.RenderInfo("time left: "+util.FormatDuration(time.Duration(secs)*time.Second)))
	}
	return nil
}

func (a *app) adminClient(baseURL string) (*gateway.Client, error) {
	cfg, _, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.Client.BaseURL = baseURL
	}
	if cfg.Server.AdminToken == "" {
		return nil, errors.New("no admin token: set server.admin_token or AUTOLOGOUT_ADMIN_TOKEN")
	}
	return gateway.NewClient(gateway.FromConfig(cfg))
}
