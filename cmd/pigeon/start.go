package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/jjurach/pigeon/internal/daemon"
	"github.com/jjurach/pigeon/internal/daemon/components"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the pigeon poller",
	Long:  `Starts polling in the foreground, or detached in the background with --daemon.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		detach, _ := cmd.Flags().GetBool("daemon")
		if detach {
			return startDetached()
		}
		return runForeground()
	},
}

func runForeground() error {
	daemonMgr := daemon.NewDaemon(cfg)
	daemonMgr.AddComponent(components.NewPollerComponent(cfg, slog.Default()))

	if err := writePIDFile(cfg.PIDFile()); err != nil {
		return err
	}
	defer os.Remove(cfg.PIDFile())

	err := daemonMgr.Run(context.Background())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			slog.Info("Pigeon stopped gracefully")
			return nil
		}
		return fmt.Errorf("daemon failed: %w", err)
	}

	slog.Info("Pigeon stopped gracefully")
	return nil
}

// startDetached re-executes this binary in the foreground mode with stdio
// redirected to the log file, then returns immediately.
func startDetached() error {
	if pid, running := readPID(cfg.PIDFile()); running {
		return fmt.Errorf("pigeon already running (pid %d)", pid)
	}

	if err := os.MkdirAll(cfg.Daemon.RuntimeDir, 0755); err != nil {
		return fmt.Errorf("create runtime dir: %w", err)
	}

	logFile, err := os.OpenFile(cfg.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	childArgs := []string{"start"}
	if cfgFile != "" {
		childArgs = append(childArgs, "--config", cfgFile)
	}

	child := exec.Command(exe, childArgs...)
	child.Stdout = logFile
	child.Stderr = logFile
	child.Stdin = nil

	if err := child.Start(); err != nil {
		return fmt.Errorf("start background process: %w", err)
	}

	fmt.Printf("Pigeon started (pid %d), logging to %s\n", child.Process.Pid, cfg.LogFile())
	return child.Process.Release()
}

func writePIDFile(path string) error {
	if pid, running := readPID(path); running {
		return fmt.Errorf("pigeon already running (pid %d)", pid)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

// readPID returns the recorded PID and whether that process is still alive.
func readPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil || pid <= 0 {
		return 0, false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	// Signal 0 probes liveness without touching the process.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return pid, false
	}
	return pid, true
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().BoolP("daemon", "d", false, "run detached in the background")
}
