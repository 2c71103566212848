package deploy

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSyncLauncher(t *testing.T) {
	l := NewSyncLauncher(discardLogger())

	out, err := l.Launch(context.Background(), Command{Binary: "echo", DeployFile: "deploy.php", Site: "www.example.com"})
	require.NoError(t, err)
	assert.Equal(t, ModeSync, out.Mode)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "-f deploy.php derafu:deploy:single --site=www.example.com\n", out.Output)
}

func TestSyncLauncherEscapesSite(t *testing.T) {
	l := NewSyncLauncher(discardLogger())

	out, err := l.Launch(context.Background(), Command{Binary: "echo", DeployFile: "deploy.php", Site: "a; exit 3"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.Contains(t, out.Output, "--site=a; exit 3")
}

func TestSyncLauncherNonZeroExit(t *testing.T) {
	l := NewSyncLauncher(discardLogger())

	out, err := l.Launch(context.Background(), Command{Binary: "false", DeployFile: "deploy.php", Site: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.ExitCode)
}

func TestBackgroundLauncher(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "deploy.log")
	l := NewBackgroundLauncher(logFile, discardLogger())
	l.done = make(chan int, 1)

	out, err := l.Launch(context.Background(), Command{Binary: "echo", DeployFile: "deploy.php", Site: "blog"})
	require.NoError(t, err)
	assert.Equal(t, ModeBackground, out.Mode)
	assert.NotZero(t, out.PID)
	assert.Equal(t, logFile, out.LogFile)

	select {
	case code := <-l.done:
		assert.Equal(t, 0, code)
	case <-time.After(10 * time.Second):
		t.Fatal("deployment was not reaped")
	}

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "--site=blog")
}

func TestBackgroundLauncherReportsExitCode(t *testing.T) {
	l := NewBackgroundLauncher(filepath.Join(t.TempDir(), "deploy.log"), discardLogger())
	l.done = make(chan int, 1)

	_, err := l.Launch(context.Background(), Command{Binary: "false", DeployFile: "deploy.php", Site: "blog"})
	require.NoError(t, err)

	select {
	case code := <-l.done:
		assert.Equal(t, 1, code)
	case <-time.After(10 * time.Second):
		t.Fatal("deployment was not reaped")
	}
}

func TestAtLauncherScript(t *testing.T) {
	l := NewAtLauncher("/var/log/deploy log", discardLogger())
	script := l.Script(Command{Binary: "dep", DeployFile: "deploy.php", Site: "blog"})
	assert.Equal(t, "dep -f deploy.php derafu:deploy:single --site=blog >> '/var/log/deploy log' 2>&1\n", script)

	l = NewAtLauncher("", discardLogger())
	assert.False(t, strings.Contains(l.Script(Command{Binary: "dep", Site: "blog"}), ">>"))
}

func TestAtLauncherLaunch(t *testing.T) {
	l := NewAtLauncher(filepath.Join(t.TempDir(), "deploy.log"), discardLogger())
	l.at = "true"

	out, err := l.Launch(context.Background(), Command{Binary: "dep", DeployFile: "deploy.php", Site: "blog"})
	require.NoError(t, err)
	assert.Equal(t, ModeAt, out.Mode)
	assert.Equal(t, 0, out.ExitCode)

	l.at = filepath.Join(t.TempDir(), "missing-at")
	_, err = l.Launch(context.Background(), Command{Binary: "dep", DeployFile: "deploy.php", Site: "blog"})
	assert.Error(t, err)
}

func TestNewLauncher(t *testing.T) {
	for mode, want := range map[string]any{
		"":             &BackgroundLauncher{},
		ModeBackground: &BackgroundLauncher{},
		ModeAt:         &AtLauncher{},
		ModeSync:       &SyncLauncher{},
	} {
		l, err := NewLauncher(mode, "deploy.log", discardLogger())
		require.NoError(t, err)
		assert.IsType(t, want, l)
	}

	_, err := NewLauncher("cron", "", discardLogger())
	assert.Error(t, err)
}

func TestTruncateStderr(t *testing.T) {
	assert.Equal(t, "short", truncateStderr("short"))
	assert.Len(t, truncateStderr(strings.Repeat("x", maxStderrBytes+10)), maxStderrBytes)
}
