package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jjurach/pigeon/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Poll     PollConfig     `koanf:"poll"`
	Inbox    InboxConfig    `koanf:"inbox"`
	Drive    DriveConfig    `koanf:"drive"`
	Slack    SlackConfig    `koanf:"slack"`
	Telegram TelegramConfig `koanf:"telegram"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Improve  ImproveConfig  `koanf:"improve"`
	Routing  RoutingConfig  `koanf:"routing"`
	State    StateConfig    `koanf:"state"`
	Daemon   DaemonConfig   `koanf:"daemon"`
}

type ServerConfig struct {
	LogLevel string `koanf:"log_level"`
}

type PollConfig struct {
	// Interval between poll cycles, e.g. "30s".
	Interval string `koanf:"interval"`
	// Schedule is an optional cron expression that replaces the fixed
	// interval when set, e.g. "*/5 8-18 * * *".
	Schedule string `koanf:"schedule"`
}

type InboxConfig struct {
	Dir string `koanf:"dir"`
}

type DriveConfig struct {
	Enabled         bool     `koanf:"enabled"`
	Folders         []string `koanf:"folders"`
	CredentialsFile string   `koanf:"credentials_file"`
}

type SlackConfig struct {
	BotToken        string   `koanf:"bot_token"`
	Channels        []string `koanf:"channels"`
	AuthorizedUsers []string `koanf:"authorized_users"`
}

type TelegramConfig struct {
	BotToken        string  `koanf:"bot_token"`
	AuthorizedUsers []int64 `koanf:"authorized_users"`
	UpdateTimeout   int     `koanf:"update_timeout"`
}

type PipelineConfig struct {
	EnableSTT             bool   `koanf:"enable_stt"`
	EnableProfessionalize bool   `koanf:"enable_professionalize"`
	EnableRouting         bool   `koanf:"enable_routing"`
	HistoryFile           string `koanf:"history_file"`
}

type ImproveConfig struct {
	// Provider selects the text-improvement backend: none, openai,
	// anthropic, or gemini.
	Provider string `koanf:"provider"`
	APIKey   string `koanf:"api_key"`
	Model    string `koanf:"model"`
	Timeout  string `koanf:"timeout"`
}

type RoutingConfig struct {
	// Root is the repository whose submodules receive routed specs.
	Root string `koanf:"root"`
	// IssueCommand is the tracking-issue CLI, parsed shell-style.
	IssueCommand string `koanf:"issue_command"`
	IssueTimeout string `koanf:"issue_timeout"`
}

type StateConfig struct {
	File string `koanf:"file"`
}

type DaemonConfig struct {
	RuntimeDir      string `koanf:"runtime_dir"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
	LockTimeout     string `koanf:"lock_timeout"`
	LockRetry       string `koanf:"lock_retry"`
	LockMaxRetry    int    `koanf:"lock_max_retry"`
	StaleLockTTL    string `koanf:"stale_lock_ttl"`
}

const (
	DefaultServerLogLevel        = "info"
	DefaultPollInterval          = "30s"
	DefaultInboxDir              = "~/pigeon/inbox"
	DefaultDriveFolder           = "/Voice Recordings"
	DefaultTelegramUpdateTimeout = 0
	DefaultImproveProvider       = "none"
	DefaultImproveTimeout        = "60s"
	DefaultIssueCommand          = "bd"
	DefaultIssueTimeout          = "10s"
	DefaultDaemonShutdownTimeout = "30s"
	DefaultDaemonLockTimeout     = "30s"
	DefaultDaemonLockRetry       = "100ms"
	DefaultDaemonLockMaxRetry    = 300
	DefaultDaemonStaleLockTTL    = "15m"
)

// Load layers defaults, an optional YAML config file, PIGEON_-prefixed
// environment variables, and cobra flags, then validates the result.
func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.log_level":                DefaultServerLogLevel,
		"poll.interval":                   DefaultPollInterval,
		"inbox.dir":                       DefaultInboxDir,
		"drive.enabled":                   true,
		"drive.folders":                   []string{DefaultDriveFolder},
		"telegram.update_timeout":         DefaultTelegramUpdateTimeout,
		"pipeline.enable_stt":             true,
		"pipeline.enable_professionalize": true,
		"pipeline.enable_routing":         true,
		"improve.provider":                DefaultImproveProvider,
		"improve.timeout":                 DefaultImproveTimeout,
		"routing.issue_command":           DefaultIssueCommand,
		"routing.issue_timeout":           DefaultIssueTimeout,
		"daemon.runtime_dir":              filepath.Join(os.Getenv("HOME"), ".pigeon"),
		"daemon.shutdown_timeout":         DefaultDaemonShutdownTimeout,
		"daemon.lock_timeout":             DefaultDaemonLockTimeout,
		"daemon.lock_retry":               DefaultDaemonLockRetry,
		"daemon.lock_max_retry":           DefaultDaemonLockMaxRetry,
		"daemon.stale_lock_ttl":           DefaultDaemonStaleLockTTL,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".pigeon", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	k.Load(env.Provider("PIGEON_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "PIGEON_")), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// The comma-separated env form is the documented configuration surface;
	// koanf's env provider leaves such values as a single string.
	cfg.Drive.Folders = splitIfSingle(cfg.Drive.Folders)
	cfg.Slack.Channels = splitIfSingle(cfg.Slack.Channels)
	cfg.Slack.AuthorizedUsers = splitIfSingle(cfg.Slack.AuthorizedUsers)

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	if cfg.Improve.APIKey == "" {
		switch cfg.Improve.Provider {
		case "openai":
			cfg.Improve.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			cfg.Improve.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "gemini":
			cfg.Improve.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate enforces the startup-fatal configuration invariants.
func (c *Config) Validate() error {
	interval, err := DurationOrDefault(c.Poll.Interval, DefaultPollInterval)
	if err != nil {
		return fmt.Errorf("poll.interval: %w", err)
	}
	if interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %v", interval)
	}

	if schedule := strings.TrimSpace(c.Poll.Schedule); schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return fmt.Errorf("poll.schedule: %w", err)
		}
	}

	if strings.TrimSpace(c.Inbox.Dir) == "" {
		return fmt.Errorf("inbox.dir must not be empty")
	}
	if err := os.MkdirAll(c.Inbox.Dir, 0755); err != nil {
		return fmt.Errorf("cannot access inbox directory %s: %w", c.Inbox.Dir, err)
	}

	switch c.Improve.Provider {
	case "", "none", "openai", "anthropic", "gemini":
	default:
		return fmt.Errorf("improve.provider %q is not supported", c.Improve.Provider)
	}

	return nil
}

// PollInterval returns the parsed poll interval.
func (c *Config) PollInterval() (time.Duration, error) {
	return DurationOrDefault(c.Poll.Interval, DefaultPollInterval)
}

// SlackEnabled reports whether the Slack source has everything it needs.
// Missing pieces disable the source; they are not configuration errors.
func (c *Config) SlackEnabled() bool {
	return strings.TrimSpace(c.Slack.BotToken) != "" &&
		len(c.Slack.Channels) > 0 &&
		len(c.Slack.AuthorizedUsers) > 0
}

// TelegramEnabled reports whether the Telegram source is configured.
func (c *Config) TelegramEnabled() bool {
	return strings.TrimSpace(c.Telegram.BotToken) != "" && len(c.Telegram.AuthorizedUsers) > 0
}

// StateFile returns the durable state path, defaulting under the runtime dir.
func (c *Config) StateFile() string {
	if strings.TrimSpace(c.State.File) != "" {
		return c.State.File
	}
	return filepath.Join(c.Daemon.RuntimeDir, "state.json")
}

// PIDFile returns the daemon PID file path.
func (c *Config) PIDFile() string {
	return filepath.Join(c.Daemon.RuntimeDir, "pigeon.pid")
}

// LogFile returns the daemon log file path.
func (c *Config) LogFile() string {
	return filepath.Join(c.Daemon.RuntimeDir, "pigeon.log")
}

func splitIfSingle(values []string) []string {
	if len(values) != 1 || !strings.Contains(values[0], ",") {
		return trimEach(values)
	}
	return trimEach(strings.Split(values[0], ","))
}

func trimEach(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	fields := []*string{
		&cfg.Inbox.Dir,
		&cfg.Drive.CredentialsFile,
		&cfg.Routing.Root,
		&cfg.State.File,
		&cfg.Daemon.RuntimeDir,
		&cfg.Pipeline.HistoryFile,
	}
	for _, f := range fields {
		expanded, err := pathutil.Expand(*f)
		if err != nil {
			return err
		}
		if expanded != "" {
			*f = expanded
		}
	}
	return nil
}
