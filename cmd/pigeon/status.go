package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jjurach/pigeon/internal/routing"
	"github.com/jjurach/pigeon/internal/state"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon liveness and poller state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		asJSON, _ := cmd.Flags().GetBool("json")

		st := collectStatus()
		if asJSON {
			data, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Println(renderStatus(st))
		return nil
	},
}

type statusReport struct {
	Running      bool     `json:"running"`
	PID          int      `json:"pid,omitempty"`
	InboxDir     string   `json:"inbox_dir"`
	PollInterval string   `json:"poll_interval"`
	TrackedFiles int      `json:"tracked_files"`
	StateFile    string   `json:"state_file"`
	Projects     []string `json:"projects,omitempty"`
}

func collectStatus() statusReport {
	st := statusReport{
		InboxDir:     cfg.Inbox.Dir,
		PollInterval: cfg.Poll.Interval,
		StateFile:    cfg.StateFile(),
	}

	st.PID, st.Running = readPID(cfg.PIDFile())
	if !st.Running {
		st.PID = 0
	}

	if store, err := state.NewStore(cfg.StateFile(), nil); err == nil {
		st.TrackedFiles = store.Len()
	}

	if cfg.Routing.Root != "" {
		router := routing.NewProjectRouter(cfg.Routing.Root, nil)
		st.Projects = router.Projects()
	}

	return st
}

func renderStatus(st statusReport) string {
	green := lipgloss.Color("42")
	red := lipgloss.Color("203")
	purple := lipgloss.Color("99")

	labelStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	valueStyle := lipgloss.NewStyle().Padding(0, 1)
	borderStyle := lipgloss.NewStyle().Foreground(purple)

	running := lipgloss.NewStyle().Foreground(red).Render("stopped")
	if st.Running {
		running = lipgloss.NewStyle().Foreground(green).Render("running (pid " + strconv.Itoa(st.PID) + ")")
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return labelStyle
			}
			return valueStyle
		})

	t.Row("Status", running)
	t.Row("Inbox", st.InboxDir)
	t.Row("Poll interval", st.PollInterval)
	t.Row("Tracked files", strconv.Itoa(st.TrackedFiles))
	t.Row("State file", st.StateFile)
	if len(st.Projects) > 0 {
		t.Row("Projects", strings.Join(st.Projects, ", "))
	}

	return t.String()
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Bool("json", false, "emit status as JSON")
}
