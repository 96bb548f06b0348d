package routing

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
)

const defaultIssueTimeout = 10 * time.Second

// IssueCreator shells out to a tracking CLI (bd by default) to file an issue
// for a routed spec. Every failure mode is logged and swallowed: issue
// creation is best-effort and never blocks routing.
type IssueCreator struct {
	command []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewIssueCreator parses the configured command shell-style. An unparseable
// or empty command disables issue creation.
func NewIssueCreator(command string, timeout time.Duration, logger *slog.Logger) *IssueCreator {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "issues")
	if timeout <= 0 {
		timeout = defaultIssueTimeout
	}

	parts, err := shlex.Split(command)
	if err != nil {
		logger.Warn("Invalid issue command, disabling issue creation", "command", command, "error", err)
		parts = nil
	}

	return &IssueCreator{
		command: parts,
		timeout: timeout,
		logger:  logger,
	}
}

// Available reports whether the tracking CLI responds to --version.
func (c *IssueCreator) Available(ctx context.Context) bool {
	if len(c.command) == 0 {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	args := append(append([]string{}, c.command[1:]...), "--version")
	if err := exec.CommandContext(ctx, c.command[0], args...).Run(); err != nil {
		c.logger.Warn("Tracking CLI not available, issue creation will be skipped", "command", c.command[0])
		return false
	}
	return true
}

// Create files a tracking issue for specFile in the project at projectPath.
// Returns the scraped issue ID, the "created" sentinel when the CLI
// succeeded but no ID could be extracted, or empty on any failure.
func (c *IssueCreator) Create(ctx context.Context, projectPath, specFile, title, description string) string {
	if len(c.command) == 0 {
		return ""
	}
	if !isDir(filepath.Join(projectPath, ".beads")) {
		c.logger.Debug("Project has no .beads directory, skipping issue", "project", filepath.Base(projectPath))
		return ""
	}
	if _, err := os.Stat(specFile); err != nil {
		c.logger.Error("Spec file not found", "path", specFile)
		return ""
	}
	if description == "" {
		description = "Auto-generated inbox item"
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := append(append([]string{}, c.command[1:]...),
		"create",
		"--title="+title,
		"--description="+description,
		"--type=task",
		"--priority=2",
	)

	cmd := exec.CommandContext(ctx, c.command[0], args...)
	cmd.Dir = projectPath

	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		c.logger.Error("Issue creation timed out", "project", filepath.Base(projectPath))
		return ""
	}
	if err != nil {
		c.logger.Error("Failed to create issue", "error", err, "output", strings.TrimSpace(string(output)))
		return ""
	}

	if id := scrapeIssueID(string(output)); id != "" {
		c.logger.Info("Created issue", "id", id, "project", filepath.Base(projectPath))
		return id
	}

	c.logger.Info("Issue created, exact ID unknown", "project", filepath.Base(projectPath))
	return "created"
}

// scrapeIssueID pulls an issue ID out of CLI output shaped like
// "✓ Created issue: project-123".
func scrapeIssueID(output string) string {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "Created issue") && !strings.Contains(line, "✓") {
			continue
		}
		for _, part := range strings.Fields(line) {
			part = strings.TrimSuffix(part, ":")
			if i := strings.LastIndexByte(part, '-'); i > 0 {
				if isIssueID(part, i) {
					return part
				}
			}
		}
	}
	return ""
}

// isIssueID accepts tokens like "name-42": a word, a dash, then digits.
func isIssueID(token string, dash int) bool {
	suffix := token[dash+1:]
	if suffix == "" {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SpecTitle builds the tracking-issue title for a routed spec file.
func SpecTitle(specFile string) string {
	base := filepath.Base(specFile)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("Process inbox item: %s", stem)
}

// SpecDescription returns the first non-empty line of the spec, truncated,
// or a fallback naming the origin.
func SpecDescription(specFile, origin string) string {
	fallback := fmt.Sprintf("Auto-generated inbox item (%s)", origin)

	f, err := os.Open(specFile)
	if err != nil {
		return fallback
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if len(line) > 100 {
			return line[:100]
		}
		return line
	}
	return fallback
}
