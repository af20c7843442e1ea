// Package sandbox spawns an isolated headless browser for one profiling
// pass: a fresh, uniquely-named profile directory and a dedicated debug
// port, so OS-level sampling can attribute usage by root PID and no state
// leaks between runs.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"
)

const killGracePeriod = 5 * time.Second

// Browser binaries probed in order when no explicit binary is configured.
var binaryCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium-browser",
	"chromium",
	"headless-shell",
}

// Config controls the sandboxed browser launch.
type Config struct {
	// Binary is the browser executable. Empty = probe well-known names.
	Binary string

	// DebugPort for the remote-debugging endpoint. 0 = pick a free port.
	DebugPort int

	// URL opened at startup. Empty = about:blank.
	URL string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.URL == "" {
		c.URL = "about:blank"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Instance is one running sandboxed browser. Exclusively owned by the
// profiling pass that launched it.
type Instance struct {
	PID        int
	DebugPort  int
	ProfileDir string

	cmd    *exec.Cmd
	logger *slog.Logger
}

// Launch starts a headless browser with sandboxing, GPU, extensions, and
// background throttling disabled for deterministic headless operation.
func Launch(ctx context.Context, cfg Config) (*Instance, error) {
	cfg.defaults()

	bin, err := findBinary(cfg.Binary)
	if err != nil {
		return nil, err
	}

	port := cfg.DebugPort
	if port == 0 {
		if port, err = freePort(); err != nil {
			return nil, fmt.Errorf("sandbox: pick debug port: %w", err)
		}
	}

	dir, err := os.MkdirTemp("", "resmon-profile-*")
	if err != nil {
		return nil, fmt.Errorf("sandbox: profile dir: %w", err)
	}

	args := []string{
		"--headless=new",
		fmt.Sprintf("--remote-debugging-port=%d", port),
		fmt.Sprintf("--user-data-dir=%s", dir),
		"--disable-gpu",
		"--no-sandbox",
		"--no-first-run",
		"--disable-dev-shm-usage",
		"--disable-extensions",
		"--disable-plugins",
		"--disable-background-timer-throttling",
		"--disable-backgrounding-occluded-windows",
		"--disable-renderer-backgrounding",
		"--window-size=1920,1080",
		cfg.URL,
	}

	// Context cancellation (SIGINT on the whole run) force-kills the
	// browser; the graceful path is Stop.
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("sandbox: start %s: %w", bin, err)
	}

	cfg.Logger.Info("sandbox: launched browser",
		"binary", bin, "pid", cmd.Process.Pid, "port", port, "profile_dir", dir)

	return &Instance{
		PID:        cmd.Process.Pid,
		DebugPort:  port,
		ProfileDir: dir,
		cmd:        cmd,
		logger:     cfg.Logger,
	}, nil
}

// Stop terminates the browser and removes its profile directory. The signal
// escalates from graceful to forceful after a grace period. Both steps are
// best-effort: a failure in one never skips the other.
func (i *Instance) Stop() {
	i.terminate()
	i.removeProfileDir()
}

func (i *Instance) terminate() {
	if i.cmd == nil || i.cmd.Process == nil {
		return
	}

	if err := i.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		i.logger.Debug("sandbox: terminate signal", "error", err)
	}

	done := make(chan error, 1)
	go func() { done <- i.cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(killGracePeriod):
		i.logger.Warn("sandbox: grace period elapsed, killing", "pid", i.PID)
		if err := i.cmd.Process.Kill(); err != nil {
			i.logger.Debug("sandbox: kill", "error", err)
		}
		<-done
	}
	i.cmd = nil
}

func (i *Instance) removeProfileDir() {
	if i.ProfileDir == "" {
		return
	}
	if err := os.RemoveAll(i.ProfileDir); err != nil {
		i.logger.Warn("sandbox: remove profile dir", "dir", i.ProfileDir, "error", err)
	}
	i.ProfileDir = ""
}

func findBinary(configured string) (string, error) {
	if configured != "" {
		path, err := exec.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("sandbox: browser binary %q: %w", configured, err)
		}
		return path, nil
	}
	for _, name := range binaryCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("sandbox: no chrome/chromium binary found")
}

// freePort asks the kernel for an ephemeral port. The tiny window between
// closing the listener and the browser binding it is acceptable for a tool
// that owns the machine while profiling.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
