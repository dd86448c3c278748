// Package logging sets up structured logging and crash recovery for
// the CLI adapters. Error propagation itself flows through
// internal/errs; this package is the sink that turns a best-effort
// skip (§7: "logged and skipped") into a visible, structured log line.
package logging

import (
	"errors"
	"log/slog"
	"os"

	"github.com/ansible-policy/gatekeeper/internal/errs"
)

// New builds the process-wide slog.Logger: JSON in --json mode (for
// machine consumers piping CLI output), a human-readable text handler
// otherwise. Verbose raises the level to Debug.
func New(jsonOutput, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// LogSkip records a best-effort skip per §7's propagation rule: every
// error kind except KindConfig is loud-logged and the run continues
// with the next unit.
func LogSkip(log *slog.Logger, err error) {
	var e *errs.Error
	if errors.As(err, &e) {
		log.Warn("skipping unit", "kind", e.Kind, "unit", e.Unit, "error", e.Err)
		return
	}
	log.Warn("skipping unit", "error", err)
}
