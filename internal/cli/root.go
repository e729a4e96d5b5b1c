// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jeranaias/autologout/internal/config"
	"github.com/jeranaias/autologout/internal/server"
)

// Version information (can be overridden at build time)
var (
	Version   = server.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// defaultEnvFile is loaded when present; a missing file is not an error.
const defaultEnvFile = ".env"

// app carries global flags and streams into the command handlers.
type app struct {
	configPath string
	envFile    string

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// NewRootCommand builds the command tree on the process streams.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithIO(os.Stdin, os.Stdout, os.Stderr)
}

// NewRootCommandWithIO builds the command tree on the given streams.
func NewRootCommandWithIO(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut}

	cmd := &cobra.Command{
		Use:           "autologout",
		Short:         "Session inactivity timeout server and client",
		Long:          "autologout keeps a server-side idle session and its clients in step: clients probe the server, warn before logout, and log out when nobody answers.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupColors(a.out)
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "configuration file (default ~/.autologout/config.toml)")
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", defaultEnvFile, "dotenv file loaded before environment overrides")

	cmd.AddCommand(
		newServeCmd(a),
		newWatchCmd(a),
		newSessionCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// loadEnv loads the dotenv file. Only an explicitly named file must exist.
func (a *app) loadEnv() error {
	if a.envFile == "" {
		return nil
	}
	if err := godotenv.Load(a.envFile); err != nil {
		if a.envFile == defaultEnvFile && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", a.envFile, err)
	}
	return nil
}

// resolveConfigPath returns the file to read and whether it exists.
func (a *app) resolveConfigPath() (string, bool, error) {
	path := a.configPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return "", false, err
		}
		path = p
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return path, true, nil
	case errors.Is(err, os.ErrNotExist):
		return path, false, nil
	default:
		return "", false, fmt.Errorf("config file %s: %w", path, err)
	}
}

// loadConfig loads the dotenv file and the configuration. It also returns
// the file path when one was read.
func (a *app) loadConfig() (*config.Config, string, error) {
	if err := a.loadEnv(); err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, "", err
	}
	path, exists, err := a.resolveConfigPath()
	if err != nil || !exists {
		return cfg, "", err
	}
	return cfg, path, nil
}
