// Monsoon - a text command dispatcher with a console and an HTTP API.
//
// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ensemplix/Monsoon/internal/cli"
	"github.com/Ensemplix/Monsoon/internal/config"
	"github.com/Ensemplix/Monsoon/internal/logger"
	"github.com/Ensemplix/Monsoon/internal/server"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// options are the persistent flags, read back through viper.
type options struct {
	configPath string
	logLevel   string
	logFile    string
	sender     string
	prefix     string
	prefixSet  bool
	json       bool
}

func currentOptions(cmd *cobra.Command) options {
	prefix := cmd.Flag("prefix")
	return options{
		configPath: viper.GetString("config"),
		logLevel:   viper.GetString("log-level"),
		logFile:    viper.GetString("log-file"),
		sender:     viper.GetString("sender"),
		prefix:     viper.GetString("prefix"),
		prefixSet:  prefix != nil && prefix.Changed,
		json:       viper.GetBool("json"),
	}
}

// apply lets flags win over the config file and environment.
func (o options) apply(cfg *config.Config) {
	if o.logLevel != "" {
		cfg.Log.Level = strings.ToLower(o.logLevel)
	}
	if o.logFile != "" {
		cfg.Log.File = o.logFile
	}
	if o.sender != "" {
		cfg.Shell.User = o.sender
	}
	if o.prefixSet {
		cfg.Dispatch.Prefix = o.prefix
	}
}

// displayedError marks an error the session already printed.
type displayedError struct {
	err error
}

func (e *displayedError) Error() string { return e.err.Error() }
func (e *displayedError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "monsoon",
	Short: "Monsoon - text command dispatcher",
	Long: `Monsoon resolves text command lines to registered actions, checks
permissions, binds typed arguments and runs the handler. Run without a
subcommand to start the interactive console.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runShell,
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive console",
	Long:  `Start the console. When stdin is not a terminal, lines are read and executed one by one.`,
	RunE:  runShell,
}

var execCmd = &cobra.Command{
	Use:   "exec <line...>",
	Short: "Execute one command line and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExec,
}

var completeCmd = &cobra.Command{
	Use:   "complete <line>",
	Short: "Print completion candidates for a partial line",
	Args:  cobra.ExactArgs(1),
	RunE:  runComplete,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE:  runServe,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long:  `Write the default configuration to --config, or to ~/.monsoon/config.toml.`,
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("monsoon %s (%s)\n", Version, GitCommit)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var displayed *displayedError
		if !errors.As(err, &displayed) {
			cli.DisplayError(os.Stderr, err, nil, viper.GetBool("json"))
		}
		os.Exit(cli.GetExitCode(err))
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (TOML or JSON) [default: ~/.monsoon/config.toml]")
	flags.String("log-level", "", "Set log level (debug|info|warn|error)")
	flags.String("log-file", "", "Write logs to file instead of stderr")
	flags.String("sender", "", "Sender name for console commands")
	flags.String("prefix", "", "Command prefix, e.g. /")
	flags.Bool("json", false, "Print results and errors as JSON")

	for _, name := range []string{"config", "log-level", "log-file", "sender", "prefix", "json"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", name, err)
			os.Exit(1)
		}
	}

	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")

	rootCmd.AddCommand(shellCmd, execCmd, completeCmd, serveCmd, initCmd, versionCmd)
	cobra.OnInitialize(loadEnv)
}

// loadEnv reads a .env file in the working directory, if any, before the
// configuration looks at MONSOON_* variables.
func loadEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: .env not loaded: %v\n", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runShell(cmd *cobra.Command, _ []string) error {
	opts := currentOptions(cmd)
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	session := a.session("")
	session.JSON = opts.json
	logger.Info("starting console", "version", Version, "sender", session.Sender.Name())

	sh := cli.NewShell(session, a.cfg.Shell.Prompt, a.cfg.Shell.HistoryFile)
	if err := sh.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if !cli.IsTTY() {
			// batch mode printed each failing line already
			return &displayedError{err: err}
		}
		return err
	}
	return nil
}

func runExec(cmd *cobra.Command, args []string) error {
	opts := currentOptions(cmd)
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	session := a.session("")
	session.JSON = opts.json
	if err := session.Execute(strings.Join(args, " ")); err != nil {
		return &displayedError{err: err}
	}
	return nil
}

func runComplete(cmd *cobra.Command, args []string) error {
	a, err := newApp(currentOptions(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	for _, candidate := range a.session("").Complete(args[0]) {
		fmt.Println(candidate)
	}
	return nil
}

func runInit(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	path, err := initConfig(currentOptions(cmd).configPath, force)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(currentOptions(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	srv := server.New(a.cfg.Server, server.Options{
		Dispatcher: a.dispatcher,
		Grants:     a.grants,
		Roster:     a.roster,
		History:    a.history,
		Queue:      a.queue,
		Logger:     logger.New("http"),
		Version:    Version,
	})
	return srv.Run(ctx)
}
