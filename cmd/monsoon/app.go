// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/Ensemplix/Monsoon/internal/builtins"
	"github.com/Ensemplix/Monsoon/internal/cli"
	"github.com/Ensemplix/Monsoon/internal/commands"
	"github.com/Ensemplix/Monsoon/internal/config"
	"github.com/Ensemplix/Monsoon/internal/history"
	"github.com/Ensemplix/Monsoon/internal/logger"
	"github.com/Ensemplix/Monsoon/internal/permission"
	"github.com/Ensemplix/Monsoon/internal/tasks"
)

// app owns every long-lived service a subcommand needs.
type app struct {
	cfg        *config.Config
	dispatcher *commands.Dispatcher
	grants     *permission.Store
	watcher    *permission.Watcher
	history    *history.Store
	queue      *tasks.Queue
	runner     *tasks.Runner
	roster     *permission.Roster
	installed  *builtins.Installed
	online     []*permission.Principal
	cancel     context.CancelFunc
}

// newApp loads configuration and starts the services in dependency order.
func newApp(opts options) (*app, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, &cli.ConfigError{Err: err}
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, &cli.ConfigError{Err: err}
	}

	if err := logger.Configure(cfg.Log.Level, cfg.Log.File); err != nil {
		return nil, &cli.ConfigError{Err: err}
	}

	a := &app{cfg: cfg, roster: permission.NewRoster()}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.openGrants(); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.History.Enabled {
		a.history, err = history.Open(cfg.History.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open history: %w", err)
		}
	}

	a.queue = tasks.NewQueue(cfg.Tasks.MaxHistory, 0, logger.New("tasks"))
	a.runner = tasks.NewRunner(a.queue, cfg.Tasks.MaxConcurrent,
		time.Duration(cfg.Tasks.TimeoutSecs)*time.Second, logger.New("tasks"))
	a.runner.Start(ctx)
	go builtins.Relay(ctx, a.queue, a.roster)

	a.dispatcher = commands.New(
		commands.WithLogger(logger.New("dispatch")),
		commands.WithPrefix(cfg.Dispatch.Prefix),
	)
	a.installed, err = builtins.Install(a.dispatcher, builtins.Deps{
		Roster:  a.roster,
		Queue:   a.queue,
		Runner:  a.runner,
		History: a.history,
		Logger:  logger.New("builtins"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Debug("services started", "commands", len(a.dispatcher.Names()), "history", a.history != nil)
	return a, nil
}

// initConfig writes the default configuration to path, or to
// ~/.monsoon/config.toml when path is empty. An existing file is kept
// unless force is set.
func initConfig(path string, force bool) (string, error) {
	save := func(cfg *config.Config) error { return config.SaveTOML(cfg, path) }
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return "", &cli.ConfigError{Err: err}
		}
		path, save = p, config.Save
	}
	if _, err := os.Stat(path); err == nil && !force {
		return path, &cli.ConfigError{Err: fmt.Errorf("%s already exists (use --force to overwrite)", path)}
	}
	if err := save(config.Default()); err != nil {
		return path, &cli.ConfigError{Err: err}
	}
	return path, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// openGrants loads the grants file. A missing file falls back to the
// configured default; a malformed one is an error.
func (a *app) openGrants() error {
	perms := a.cfg.Permissions
	policy := &permission.Policy{DefaultAllow: perms.DefaultAllow}

	if perms.File != "" {
		loaded, err := permission.LoadFile(perms.File)
		switch {
		case err == nil:
			policy = loaded
		case errors.Is(err, fs.ErrNotExist):
			logger.Info("no grants file, using default", "path", perms.File, "default_allow", perms.DefaultAllow)
		default:
			return &cli.ConfigError{Err: err}
		}
	}
	a.grants = permission.NewStore(policy)

	if perms.File != "" && perms.Watch {
		w, err := permission.NewWatcher(perms.File, a.grants, 100*time.Millisecond, logger.New("grants"))
		if err != nil {
			return fmt.Errorf("watch grants: %w", err)
		}
		if err := w.Watch(); err != nil {
			w.Close()
			logger.Warn("grants not watched", "path", perms.File, "error", err)
			return nil
		}
		a.watcher = w
	}
	return nil
}

// session creates a console session for name and puts it on the roster.
func (a *app) session(name string) *cli.Session {
	if name == "" {
		name = a.cfg.Shell.User
	}
	s := cli.NewSession(a.dispatcher, name, a.grants, os.Stdout, os.Stderr)
	s.History = a.history
	s.Logger = logger.New("console")
	a.roster.Join(s.Sender)
	a.online = append(a.online, s.Sender)
	logger.Debug("console session", "sender", name, "session", s.Sender.Session())
	return s
}

// Close stops services in reverse order. It is safe on a partial app.
func (a *app) Close() {
	for _, p := range a.online {
		a.roster.Leave(p)
	}
	a.online = nil
	if a.installed != nil {
		a.installed.Uninstall()
	}
	if a.runner != nil {
		a.runner.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			logger.Warn("history close failed", "error", err)
		}
	}
}
