package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// stopGracePeriod is how long stop waits for SIGTERM to take effect before
// escalating to SIGKILL.
const stopGracePeriod = 10 * time.Second

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running pigeon daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		pid, running := readPID(cfg.PIDFile())
		if !running {
			fmt.Println("Pigeon is not running")
			os.Remove(cfg.PIDFile())
			return nil
		}

		proc, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("find process %d: %w", pid, err)
		}

		fmt.Printf("Stopping pigeon (pid %d)...\n", pid)
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("send SIGTERM: %w", err)
		}

		deadline := time.Now().Add(stopGracePeriod)
		for time.Now().Before(deadline) {
			if err := proc.Signal(syscall.Signal(0)); err != nil {
				fmt.Println("Pigeon stopped")
				os.Remove(cfg.PIDFile())
				return nil
			}
			time.Sleep(200 * time.Millisecond)
		}

		fmt.Println("Graceful stop timed out, sending SIGKILL")
		if err := proc.Signal(syscall.SIGKILL); err != nil {
			return fmt.Errorf("send SIGKILL: %w", err)
		}
		os.Remove(cfg.PIDFile())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
