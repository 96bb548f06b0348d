// Package components holds the daemon.Component implementations that wire
// configuration into running services.
package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jjurach/pigeon/internal/config"
	"github.com/jjurach/pigeon/internal/daemon"
	"github.com/jjurach/pigeon/internal/drive"
	"github.com/jjurach/pigeon/internal/improve"
	"github.com/jjurach/pigeon/internal/pipeline"
	"github.com/jjurach/pigeon/internal/poller"
	"github.com/jjurach/pigeon/internal/routing"
	"github.com/jjurach/pigeon/internal/source"
	"github.com/jjurach/pigeon/internal/state"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/slack-go/slack"
)

// PollerComponent assembles the whole ingestion stack from config: sources,
// pipeline, routing, durable state, and the poll loop itself.
type PollerComponent struct {
	cfg    *config.Config
	logger *slog.Logger

	store  *state.Store
	poller *poller.Poller

	cancel      context.CancelFunc
	done        chan struct{}
	initialized bool
	started     bool
	mu          sync.RWMutex
}

func NewPollerComponent(cfg *config.Config, logger *slog.Logger) *PollerComponent {
	if logger == nil {
		logger = slog.Default()
	}
	return &PollerComponent{cfg: cfg, logger: logger}
}

func (p *PollerComponent) Name() string {
	return "Poller"
}

func (p *PollerComponent) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg == nil {
		return fmt.Errorf("config not provided")
	}

	store, err := state.NewStore(p.cfg.StateFile(), p.logger)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	p.store = store

	sources, err := p.buildSources(ctx, store)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources configured; enable drive, slack, or telegram")
	}

	pipe := p.buildPipeline()
	router := p.buildRouter()

	interval, err := p.cfg.PollInterval()
	if err != nil {
		return fmt.Errorf("parse poll interval: %w", err)
	}

	poll, err := poller.New(sources, pipe, router, store, poller.Options{
		Interval:    interval,
		Schedule:    p.cfg.Poll.Schedule,
		HistoryFile: p.cfg.Pipeline.HistoryFile,
	}, p.logger)
	if err != nil {
		return fmt.Errorf("build poller: %w", err)
	}
	p.poller = poll

	p.initialized = true
	slog.Info("Poller initialized", "component", p.Name(), "sources", len(sources))
	return nil
}

func (p *PollerComponent) buildSources(ctx context.Context, store *state.Store) ([]source.Source, error) {
	var sources []source.Source

	if p.cfg.Drive.Enabled && p.cfg.Drive.CredentialsFile != "" {
		client, err := drive.NewGoogleClient(ctx, p.cfg.Drive.CredentialsFile, p.logger)
		if err != nil {
			return nil, fmt.Errorf("init drive client: %w", err)
		}
		sources = append(sources, source.NewDriveSource(client, store, p.cfg.Inbox.Dir, p.cfg.Drive.Folders, p.logger))
	} else if p.cfg.Drive.Enabled {
		p.logger.Warn("Drive source disabled, no credentials file configured")
	}

	if p.cfg.SlackEnabled() {
		api := slack.New(p.cfg.Slack.BotToken)
		sources = append(sources, source.NewSlackSource(api, p.cfg.Inbox.Dir, p.cfg.Slack.Channels, p.cfg.Slack.AuthorizedUsers, p.logger))
	}

	if p.cfg.TelegramEnabled() {
		bot, err := tgbotapi.NewBotAPI(p.cfg.Telegram.BotToken)
		if err != nil {
			// Telegram is an optional convenience; a bad token should
			// not keep drive and slack from polling.
			p.logger.Error("Failed to init telegram bot, source disabled", "error", err)
		} else {
			sources = append(sources, source.NewTelegramSource(bot, p.cfg.Inbox.Dir, p.cfg.Telegram.AuthorizedUsers, p.logger))
		}
	}

	return sources, nil
}

func (p *PollerComponent) buildPipeline() *pipeline.Pipeline {
	var processors []pipeline.Processor

	if p.cfg.Pipeline.EnableSTT {
		processors = append(processors, pipeline.NewSTTProcessor(p.logger))
	}
	if p.cfg.Pipeline.EnableProfessionalize {
		improver, err := improve.New(p.cfg.Improve)
		if err != nil {
			p.logger.Warn("Improve provider unavailable, using basic cleanup", "error", err)
			improver = nil
		}
		processors = append(processors, pipeline.NewProfessionalizeProcessor(improver, p.logger))
	}

	return pipeline.New(processors, p.logger)
}

func (p *PollerComponent) buildRouter() poller.SpecRouter {
	if !p.cfg.Pipeline.EnableRouting || p.cfg.Routing.Root == "" {
		if p.cfg.Pipeline.EnableRouting {
			p.logger.Warn("Routing disabled, routing.root not configured")
		}
		return noopRouter{}
	}

	timeout, err := config.DurationOrDefault(p.cfg.Routing.IssueTimeout, config.DefaultIssueTimeout)
	if err != nil {
		p.logger.Warn("Invalid issue timeout, using default", "error", err)
		timeout = 0
	}
	return routing.NewProcessor(p.cfg.Routing.Root, p.cfg.Routing.IssueCommand, timeout, p.logger)
}

func (p *PollerComponent) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return fmt.Errorf("Poller not initialized")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		if err := p.poller.Run(runCtx); err != nil {
			slog.Error("Poller exited with error", "error", err)
		}
	}()

	p.started = true
	slog.Info("Poller started", "component", p.Name())
	return nil
}

func (p *PollerComponent) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}

	p.cancel()
	select {
	case <-p.done:
	case <-ctx.Done():
		slog.Warn("Poller stop timed out", "component", p.Name())
	}

	p.started = false
	slog.Info("Poller stopped", "component", p.Name())
	return nil
}

func (p *PollerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.initialized {
		return &daemon.ComponentHealth{Name: p.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	if !p.started {
		return &daemon.ComponentHealth{Name: p.Name(), Healthy: false, Error: fmt.Errorf("not started")}, nil
	}
	return &daemon.ComponentHealth{Name: p.Name(), Healthy: true}, nil
}

// TrackedFiles exposes the download ledger size for status reporting.
func (p *PollerComponent) TrackedFiles() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.store == nil {
		return 0
	}
	return p.store.Len()
}

// noopRouter leaves specs in the inbox when routing is not configured.
type noopRouter struct{}

func (noopRouter) Process(ctx context.Context, specFile, origin string) (string, error) {
	return specFile, nil
}
