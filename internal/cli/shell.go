// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

// Shell is the interactive console around a Session.
type Shell struct {
	session     *Session
	prompt      string
	historyFile string
}

// NewShell creates a shell. An empty historyFile disables line history.
func NewShell(s *Session, prompt, historyFile string) *Shell {
	if prompt == "" {
		prompt = "monsoon> "
	}
	return &Shell{session: s, prompt: prompt, historyFile: historyFile}
}

// Run reads commands from stdin: line-edited when stdin is a terminal,
// one per line otherwise.
func (sh *Shell) Run(ctx context.Context) error {
	if !IsTTY() {
		return sh.Batch(ctx, os.Stdin)
	}
	return sh.interactive(ctx)
}

// Batch executes every non-blank line from r that is not a # comment. It
// keeps going after failures and returns the last error.
func (sh *Shell) Batch(ctx context.Context, r io.Reader) error {
	var lastErr error
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		if err := sh.session.Execute(sh.normalize(line)); err != nil {
			lastErr = err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return lastErr
}

// normalize adds the dispatcher prefix so it never has to be typed at the
// console.
func (sh *Shell) normalize(line string) string {
	d := sh.session.Dispatcher
	if d.IsCommand(line) {
		return line
	}
	return d.Prefix() + line
}

func (sh *Shell) interactive(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetTabCompletionStyle(liner.TabPrints)
	line.SetCompleter(func(input string) []string {
		if sh.normalize(input) != input {
			prefix := sh.session.Dispatcher.Prefix()
			out := sh.session.Complete(prefix + input)
			for i := range out {
				out[i] = strings.TrimPrefix(out[i], prefix)
			}
			return out
		}
		return sh.session.Complete(input)
	})

	sh.loadHistory(line)
	defer sh.saveHistory(line)

	fmt.Fprintln(sh.session.Out, RenderConditional(DimStyle, "Type help for commands, exit to leave. Tab completes."))
	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := line.Prompt(sh.prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(sh.session.Out)
				return nil
			}
			return err
		}

		input = strings.TrimRight(input, " ")
		if strings.TrimSpace(input) == "" {
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}
		line.AppendHistory(input)
		sh.session.Execute(sh.normalize(input))
	}
}

func (sh *Shell) loadHistory(line *liner.State) {
	if sh.historyFile == "" {
		return
	}
	if f, err := os.Open(sh.historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
}

func (sh *Shell) saveHistory(line *liner.State) {
	if sh.historyFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(sh.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(sh.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}
