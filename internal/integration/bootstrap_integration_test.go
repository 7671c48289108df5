package integration

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/pricebot-bootstrap/internal/config"
	domain "github.com/oshokin/pricebot-bootstrap/internal/domain/bootstrap"
	"github.com/oshokin/pricebot-bootstrap/internal/repository/state"
	"github.com/oshokin/pricebot-bootstrap/internal/service/bootstrap"
	"github.com/oshokin/pricebot-bootstrap/internal/service/status"
)

const missingInterpreter = "pricebot-integration-missing-python"

// writeStub creates a shell script that appends its name and arguments to logPath.
func writeStub(t *testing.T, dir, name, logPath string, exitCode int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	body := "#!/bin/sh\necho \"" + name + " $*\" >> '" + logPath + "'\nexit " + strconv.Itoa(exitCode) + "\n"

	//nolint:gosec // G306: the stub must be executable.
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))

	return path
}

// setup writes stub tools and a settings file, then moves the test into a temp dir.
func setup(t *testing.T, scriptURL string, pkgExit int) (string, *config.Config, string) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("stub package managers are shell scripts")
	}

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}

	dir := t.TempDir()
	chdir(t, dir)

	logPath := filepath.Join(dir, "calls.log")

	cfg := config.Default()
	cfg.PackageManager = writeStub(t, dir, "pkg", logPath, pkgExit)
	cfg.Pip = writeStub(t, dir, "pip", logPath, 0)
	cfg.Python = missingInterpreter
	cfg.WorkDir = filepath.Join(dir, "home", "pricebot")
	cfg.LockFile = filepath.Join(dir, "home", ".pricebot-bootstrap.pid")
	cfg.ScriptURL = scriptURL

	settings := filepath.Join(dir, "settings.yaml")
	require.NoError(t, config.Save(settings, cfg))

	cfg, err := config.Load(settings)
	require.NoError(t, err)

	return settings, cfg, logPath
}

func readCalls(t *testing.T, logPath string) []string {
	t.Helper()

	contents, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return nil
	}

	require.NoError(t, err)

	return strings.Split(strings.TrimSpace(string(contents)), "\n")
}

// TestBootstrap_Run_FetchesAndRecords drives every step with real processes and
// stops at the handoff because the interpreter does not exist.
func TestBootstrap_Run_FetchesAndRecords(t *testing.T) {
	robot := "#!/usr/bin/env python\nprint('PriceRobot')\n"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(robot))
	}))
	defer ts.Close()

	settings, cfg, logPath := setup(t, ts.URL+"/robot.py", 0)

	err := bootstrap.Run(context.Background(), &bootstrap.Options{ConfigPath: settings})

	var stepErr *bootstrap.StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, domain.StepHandoff, stepErr.Step)
	require.ErrorIs(t, err, exec.ErrNotFound)

	require.Equal(t, []string{
		"pkg update -y",
		"pkg upgrade -y",
		"pkg install -y " + strings.Join(cfg.SystemPackages, " "),
		"pip install --upgrade pip",
		"pip install " + strings.Join(cfg.PythonLibraries, " "),
	}, readCalls(t, logPath))

	info, err := os.Stat(cfg.ScriptPath())
	require.NoError(t, err)
	require.NotZero(t, info.Mode().Perm()&0o111)

	contents, err := os.ReadFile(cfg.ScriptPath())
	require.NoError(t, err)
	require.Equal(t, robot, string(contents))

	record, err := state.NewFileRepository(cfg.StatePath()).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeFetched, record.Outcome)

	var out bytes.Buffer
	require.NoError(t, status.Run(context.Background(), &status.Options{ConfigPath: settings, Out: &out}))
	require.Contains(t, out.String(), record.RunID)
	require.Contains(t, out.String(), "script downloaded")
}

// TestBootstrap_Run_FallbackWhenOffline writes the embedded block when the server is gone.
func TestBootstrap_Run_FallbackWhenOffline(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL + "/robot.py"
	ts.Close()

	settings, cfg, _ := setup(t, url, 0)

	err := bootstrap.Run(context.Background(), &bootstrap.Options{ConfigPath: settings})
	require.ErrorIs(t, err, exec.ErrNotFound)

	contents, err := os.ReadFile(cfg.ScriptPath())
	require.NoError(t, err)
	require.Equal(t, bootstrap.FallbackScript(), contents)

	record, err := state.NewFileRepository(cfg.StatePath()).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeFallbackUsed, record.Outcome)
}

// TestBootstrap_Run_PackageManagerFails stops at the first step and leaves no script behind.
func TestBootstrap_Run_PackageManagerFails(t *testing.T) {
	settings, cfg, logPath := setup(t, "http://127.0.0.1:1/robot.py", 1)

	err := bootstrap.Run(context.Background(), &bootstrap.Options{ConfigPath: settings})

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 1, exitErr.ExitCode())

	require.Equal(t, []string{"pkg update -y"}, readCalls(t, logPath))

	_, err = os.Stat(cfg.WorkDir)
	require.ErrorIs(t, err, os.ErrNotExist)

	var out bytes.Buffer
	require.ErrorIs(t, status.Run(context.Background(), &status.Options{ConfigPath: settings, Out: &out}), status.ErrNoRecord)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes the
// working directory, sets PWD, and restores both when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()

	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	if !filepath.IsAbs(dir) {
		dir = filepath.Join(oldwd, dir)
	}

	t.Setenv("PWD", dir)

	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			panic("testing.Chdir: " + err.Error())
		}
	})
}
