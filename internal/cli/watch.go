// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/autologout/internal/autologout"
	"github.com/jeranaias/autologout/internal/config"
	"github.com/jeranaias/autologout/internal/gateway"
	"github.com/jeranaias/autologout/internal/logging"
	"github.com/jeranaias/autologout/internal/ui/styles"
	"github.com/jeranaias/autologout/internal/ui/watch"
	"github.com/jeranaias/autologout/internal/util"
)

type watchOptions struct {
	sessionID string
	baseURL   string
	path      string
	noTUI     bool
}

func newWatchCmd(a *app) *cobra.Command {
	var opts watchOptions
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Attach a timeout controller to one session",
		Long: `Attach an inactivity controller to a session, as one open page would.

The controller asks the server how much time is left whenever its local
countdown runs out, shows the warning when the server says the session is
idle, and logs out when the warning is not answered within the padding.
Several watch processes on the same session stay in step through the server.

On a terminal the warning is a full-screen dialog; otherwise it is a plain
text prompt on stdin and stdout.`,
		Example: `  autologout watch --session 4f1c...
  AUTOLOGOUT_SESSION_ID=4f1c... autologout watch --path /node/1/edit
  autologout watch --session 4f1c... --no-tui < answers.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "session id (overrides client.session_id)")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "server URL (overrides client.base_url)")
	cmd.Flags().StringVar(&opts.path, "path", "", "page path used to resolve the policy (overrides client.path)")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "use the plain text prompt even on a terminal")
	return cmd
}

func (a *app) runWatch(ctx context.Context, opts watchOptions) error {
	cfg, _, err := a.loadConfig()
	if err != nil {
		return err
	}
	applyWatchOverrides(cfg, opts)
	if cfg.Client.SessionID == "" {
		return errors.New("no session to watch: pass --session or set AUTOLOGOUT_SESSION_ID")
	}

	useTUI := !opts.noTUI && isTerminal(a.in) && isTerminal(a.out)

	// Console logs would draw over the TUI.
	logger := zap.NewNop()
	if !useTUI || cfg.Logging.Path != "" {
		if logger, err = logging.New(cfg.Logging); err != nil {
			return err
		}
	}
	defer logger.Sync()

	client, err := gateway.NewClient(gateway.FromConfig(cfg))
	if err != nil {
		return err
	}

	page, err := client.Settings(ctx, cfg.Client.Path)
	if err != nil {
		if autologout.IsAuthExpired(err) {
			return fmt.Errorf("session %s is not active: %w", cfg.Client.SessionID, err)
		}
		return fmt.Errorf("fetch settings: %w", err)
	}
	if !page.Enabled {
		fmt.Fprintln(a.out, styles.RenderInfo("autologout is disabled for this session"))
		return nil
	}

	policy := page.Policy()
	requestTimeout := time.Duration(cfg.Client.RequestTimeoutSecs) * time.Second
	if requestTimeout <= 0 {
		requestTimeout = autologout.DefaultRequestTimeout
	}
	ctrlOpts := []autologout.Option{
		autologout.WithLogger(logger.Named("controller")),
		autologout.WithRequestTimeout(requestTimeout),
	}
	nav := &pageNavigator{
		ctx:     ctx,
		client:  client,
		altURL:  policy.AltLogoutURL,
		timeout: requestTimeout,
		logger:  logger,
	}

	logger.Info("watching session",
		zap.String("base_url", cfg.Client.BaseURL),
		zap.String("path", cfg.Client.Path),
		zap.Duration("idle_timeout", policy.IdleTimeout),
		zap.Duration("padding", policy.Padding),
		zap.Bool("tui", useTUI),
	)

	if useTUI {
		return a.watchTUI(ctx, cfg, policy, client, nav, ctrlOpts)
	}
	return a.watchLines(ctx, cfg, policy, client, nav, ctrlOpts)
}

func applyWatchOverrides(cfg *config.Config, opts watchOptions) {
	if opts.sessionID != "" {
		cfg.Client.SessionID = opts.sessionID
	}
	if opts.baseURL != "" {
		cfg.Client.BaseURL = opts.baseURL
	}
	if opts.path != "" {
		cfg.Client.Path = opts.path
	}
	if cfg.Client.Path == "" {
		cfg.Client.Path = "/"
	}
}

func (a *app) watchLines(ctx context.Context, cfg *config.Config, policy autologout.Policy,
	client *gateway.Client, nav *pageNavigator, opts []autologout.Option) error {

	dialog := watch.NewLineDialog(a.in, a.out, terminalWidth(a.out))
	nav.next = dialog

	ctrl, err := autologout.NewController(policy, client, dialog, nav, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, styles.RenderInfo(fmt.Sprintf("watching session %s on %s (idle timeout %s)",
		util.TruncateWidth(cfg.Client.SessionID, 12), cfg.Client.BaseURL, util.FormatDuration(policy.IdleTimeout))))
	return ignoreCanceled(ctrl.Run(ctx))
}

func (a *app) watchTUI(ctx context.Context, cfg *config.Config, policy autologout.Policy,
	client *gateway.Client, nav *pageNavigator, opts []autologout.Option) error {

	bridge := watch.NewBridge()
	nav.next = bridge

	ctrl, err := autologout.NewController(policy, client, bridge, nav,
		append(opts, autologout.WithObserver(bridge.Observe))...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	title := fmt.Sprintf("session %s on %s", util.TruncateWidth(cfg.Client.SessionID, 12), cfg.Client.BaseURL)
	program := tea.NewProgram(watch.NewModel(title), tea.WithAltScreen())
	bridge.Attach(program)

	var final tea.Model
	var g errgroup.Group
	g.Go(func() error {
		err := ctrl.Run(ctx)
		bridge.Stopped(err)
		return ignoreCanceled(err)
	})
	g.Go(func() error {
		m, err := program.Run()
		final = m
		cancel()
		return err
	})
	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if err := g.Wait(); err != nil {
		return err
	}
	if m, ok := final.(watch.Model); ok {
		if r, ok := m.Redirected(); ok {
			fmt.Fprintln(a.out, styles.RenderError(r.Message))
			fmt.Fprintln(a.out, "    redirect:", r.URL)
		}
	}
	return nil
}

// pageNavigator performs the controller's final redirect from a terminal.
// The alternate logout page is loaded, so the server ends the session and
// the page it redirects to is shown instead.
type pageNavigator struct {
	ctx     context.Context
	client  *gateway.Client
	altURL  string
	timeout time.Duration
	logger  *zap.Logger
	next    autologout.Navigator
}

// Redirect implements autologout.Navigator.
func (n *pageNavigator) Redirect(url, message string) {
	if n.altURL != "" && url == n.altURL {
		ctx, cancel := context.WithTimeout(n.ctx, n.timeout)
		loc, err := n.client.Navigate(ctx, url)
		cancel()
		if err != nil {
			n.logger.Warn("alternate logout page failed", zap.String("url", url), zap.Error(err))
		} else if loc != "" {
			url = loc
		}
	}
	n.next.Redirect(url, message)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
