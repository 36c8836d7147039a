// Package daemon runs the sync engine on a fixed interval until signaled to
// stop, with optional PID-file lifecycle management. Process daemonization
// itself (detaching from the controlling terminal, double-fork) is left to
// the OS service manager wrapping this process; this package only owns the
// interval loop and shutdown handling.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/reposentry/reposentry/internal/model"
)

// Syncer performs one full discover-and-sync pass. The caller (cmd layer)
// wires discovery, the orchestrator, and the state store behind this single
// method so the daemon loop has no dependency on any of them directly.
type Syncer interface {
	RunOnce(ctx context.Context) (model.SyncSummary, error)
}

// Options configures one daemon run.
type Options struct {
	Interval time.Duration
	PIDFile  string
	Logger   *slog.Logger
}

// Daemon drives Syncer.RunOnce on a fixed interval until its context is
// canceled or an OS interrupt/TERM signal arrives. The first tick fires
// after Interval has elapsed, not immediately, matching the interval
// scheduler's skip-first-tick behavior.
type Daemon struct {
	Syncer Syncer
	Opts   Options
}

// New returns a Daemon.
func New(syncer Syncer, opts Options) *Daemon {
	return &Daemon{Syncer: syncer, Opts: opts}
}

// Run blocks until ctx is canceled or a shutdown signal is received,
// invoking Syncer.RunOnce every Opts.Interval. The PID file, if configured,
// is written before the loop starts and removed unconditionally on exit.
func (d *Daemon) Run(ctx context.Context) error {
	logger := d.Opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if d.Opts.Interval <= 0 {
		return fmt.Errorf("daemon: interval must be positive, got %s", d.Opts.Interval)
	}

	if d.Opts.PIDFile != "" {
		if err := writePIDFile(d.Opts.PIDFile); err != nil {
			return fmt.Errorf("write pid file: %w", err)
		}
		defer removePIDFile(d.Opts.PIDFile, logger)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("daemon loop started", "interval", d.Opts.Interval)
	ticker := time.NewTicker(d.Opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon shutdown signal received")
			return nil
		case <-ticker.C:
			d.runOnce(ctx, logger)
		}
	}
}

func (d *Daemon) runOnce(ctx context.Context, logger *slog.Logger) {
	started := time.Now()
	summary, err := d.Syncer.RunOnce(ctx)
	if err != nil {
		logger.Error("scheduled sync failed", "error", err)
		return
	}
	logger.Info("scheduled sync completed",
		"duration", time.Since(started),
		"total", summary.Total,
		"successful", summary.Successful,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
}

// writePIDFile records the current process ID, creating parent directories
// as needed.
func writePIDFile(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removePIDFile(path string, logger *slog.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove pid file", "path", path, "error", err)
	}
}

// ReadPID reads a PID previously written by writePIDFile.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid in %s: %w", path, err)
	}
	return pid, nil
}
