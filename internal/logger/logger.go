// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logger provides the shared structured logger for monsoon.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	mu     sync.RWMutex
	output io.Writer = os.Stderr
	level            = log.InfoLevel
	closer io.Closer

	// Logger is the global logger. Component loggers come from New.
	Logger = newLogger(os.Stderr, "", log.InfoLevel)
)

// Configure sets the level and destination of all loggers created afterwards
// and of the global Logger. An empty file keeps logging on stderr.
func Configure(levelName, file string) error {
	lvl, err := ParseLevel(levelName)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stderr
	var c io.Closer
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w, c = f, f
	}

	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		closer.Close()
	}
	output, level, closer = w, lvl, c
	Logger = newLogger(w, "", lvl)
	return nil
}

// SetOutput redirects logging, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	Logger = newLogger(w, "", level)
}

// ParseLevel converts a level name. Empty means info.
func ParseLevel(name string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return log.InfoLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	}
	return log.InfoLevel, fmt.Errorf("unknown log level %q", name)
}

// New returns a component logger sharing the configured output and level,
// e.g. New("dispatch").
func New(prefix string) *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return newLogger(output, prefix, level)
}

func newLogger(w io.Writer, prefix string, lvl log.Level) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           lvl,
	})
	l.SetStyles(styles())
	return l
}

func styles() *log.Styles {
	s := log.DefaultStyles()

	s.Levels[log.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("240")).
		Foreground(lipgloss.Color("15"))
	s.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("33")).
		Foreground(lipgloss.Color("15"))
	s.Levels[log.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("214")).
		Foreground(lipgloss.Color("15"))
	s.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("196")).
		Foreground(lipgloss.Color("15"))

	s.Keys["command"] = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	s.Keys["sender"] = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	s.Keys["error"] = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	s.Values["error"] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	return s
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg interface{}, keyvals ...interface{}) {
	current().Debug(msg, keyvals...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg interface{}, keyvals ...interface{}) {
	current().Info(msg, keyvals...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg interface{}, keyvals ...interface{}) {
	current().Warn(msg, keyvals...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg interface{}, keyvals ...interface{}) {
	current().Error(msg, keyvals...)
}

func current() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return Logger
}
