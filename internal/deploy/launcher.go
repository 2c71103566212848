package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/alessio/shellescape"
)

// Launch modes.
const (
	ModeBackground = "background"
	ModeAt         = "at"
	ModeSync       = "sync"
)

// maxStderrBytes caps the amount of stderr captured from a synchronous run.
const maxStderrBytes = 64 * 1024

// NewLauncher returns the launcher for mode.
func NewLauncher(mode, logFile string, logger *slog.Logger) (Launcher, error) {
	switch mode {
	case "", ModeBackground:
		return NewBackgroundLauncher(logFile, logger), nil
	case ModeAt:
		return NewAtLauncher(logFile, logger), nil
	case ModeSync:
		return NewSyncLauncher(logger), nil
	default:
		return nil, fmt.Errorf("unknown launch mode %q", mode)
	}
}

// BackgroundLauncher starts the command detached from the request and
// appends its output to a log file.
type BackgroundLauncher struct {
	logFile string
	logger  *slog.Logger

	// done receives the exit code once the process is reaped; used in tests.
	done chan int
}

func NewBackgroundLauncher(logFile string, logger *slog.Logger) *BackgroundLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackgroundLauncher{logFile: logFile, logger: logger}
}

// Launch starts cmd and returns without waiting. The request context is not
// attached to the process so the deployment outlives the request.
func (l *BackgroundLauncher) Launch(_ context.Context, cmd Command) (Outcome, error) {
	out, err := openLog(l.logFile)
	if err != nil {
		return Outcome{}, err
	}

	proc := exec.Command("sh", "-c", cmd.String())
	proc.Stdout = out
	proc.Stderr = out
	proc.SysProcAttr = detachedAttr()

	if err := proc.Start(); err != nil {
		out.Close()
		return Outcome{}, fmt.Errorf("start deploy: %w", err)
	}

	pid := proc.Process.Pid
	logger := l.logger.With("site", cmd.Site, "pid", pid)
	logger.Info("deployment started", "command", cmd.String(), "log_file", l.logFile)

	go func() {
		defer out.Close()
		code := exitCode(proc.Wait())
		if code == 0 {
			logger.Info("deployment finished", "exit_code", code)
		} else {
			logger.Warn("deployment failed", "exit_code", code)
		}
		if l.done != nil {
			l.done <- code
		}
	}()

	return Outcome{Mode: ModeBackground, PID: pid, LogFile: l.logFile}, nil
}

// AtLauncher queues the command with the at scheduler.
type AtLauncher struct {
	logFile string
	at      string
	logger  *slog.Logger
}

func NewAtLauncher(logFile string, logger *slog.Logger) *AtLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AtLauncher{logFile: logFile, at: "at", logger: logger}
}

// Script returns the job text fed to at.
func (l *AtLauncher) Script(cmd Command) string {
	script := cmd.String()
	if l.logFile != "" {
		script += " >> " + shellescape.Quote(l.logFile) + " 2>&1"
	}
	return script + "\n"
}

// Launch queues cmd. The exit code is the one of at itself.
func (l *AtLauncher) Launch(ctx context.Context, cmd Command) (Outcome, error) {
	if l.logFile != "" {
		if err := os.MkdirAll(filepath.Dir(l.logFile), 0o755); err != nil {
			return Outcome{}, fmt.Errorf("create log directory: %w", err)
		}
	}

	proc := exec.CommandContext(ctx, l.at, "now")
	proc.Stdin = strings.NewReader(l.Script(cmd))
	var output bytes.Buffer
	proc.Stdout = &output
	proc.Stderr = &output

	err := proc.Run()
	code := exitCode(err)
	if code < 0 {
		return Outcome{}, fmt.Errorf("queue deploy with at: %w", err)
	}

	l.logger.Info("deployment queued", "site", cmd.Site, "exit_code", code, "at_output", strings.TrimSpace(output.String()))
	return Outcome{
		Mode:     ModeAt,
		ExitCode: code,
		Output:   strings.TrimSpace(output.String()),
		LogFile:  l.logFile,
	}, nil
}

// SyncLauncher runs the command to completion and captures its output.
type SyncLauncher struct {
	logger *slog.Logger
}

func NewSyncLauncher(logger *slog.Logger) *SyncLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncLauncher{logger: logger}
}

func (l *SyncLauncher) Launch(ctx context.Context, cmd Command) (Outcome, error) {
	proc := exec.CommandContext(ctx, "sh", "-c", cmd.String())
	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	l.logger.Debug("running deployment", "site", cmd.Site, "command", cmd.String())
	err := proc.Run()
	code := exitCode(err)
	if code < 0 {
		return Outcome{}, fmt.Errorf("run deploy: %w", err)
	}
	if code != 0 {
		l.logger.Warn("deployment exited with non-zero status", "site", cmd.Site, "exit_code", code)
	}

	return Outcome{
		Mode:     ModeSync,
		ExitCode: code,
		Output:   stdout.String(),
		Stderr:   truncateStderr(stderr.String()),
	}, nil
}

// exitCode maps a Wait/Run error to an exit code, or -1 when the process
// could not be run at all.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func openLog(path string) (*os.File, error) {
	if path == "" {
		return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open deploy log: %w", err)
	}
	return f, nil
}

// truncateStderr truncates stderr to maxStderrBytes.
func truncateStderr(s string) string {
	if len(s) > maxStderrBytes {
		return s[:maxStderrBytes]
	}
	return s
}
