// Package poller drives the ingestion loop: each source polls on its own
// goroutine, new files flow through the pipeline, and finished specs are
// routed to their project.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jjurach/pigeon/internal/pipeline"
	"github.com/jjurach/pigeon/internal/source"

	"github.com/robfig/cron/v3"
)

// SpecRouter places a finished spec file; implemented by routing.Processor.
type SpecRouter interface {
	Process(ctx context.Context, specFile, origin string) (string, error)
}

// StateSaver persists the download ledger; implemented by state.Store.
type StateSaver interface {
	Save() error
}

type Poller struct {
	sources  []source.Source
	pipeline *pipeline.Pipeline
	router   SpecRouter
	state    StateSaver
	logger   *slog.Logger

	interval time.Duration
	// schedule overrides interval when a cron expression is configured.
	schedule    cron.Schedule
	historyFile string

	wg sync.WaitGroup
}

type Options struct {
	Interval time.Duration
	// Schedule is an optional standard cron expression. When set it
	// replaces the fixed interval.
	Schedule    string
	HistoryFile string
}

func New(sources []source.Source, pipe *pipeline.Pipeline, router SpecRouter, state StateSaver, opts Options, logger *slog.Logger) (*Poller, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Poller{
		sources:     sources,
		pipeline:    pipe,
		router:      router,
		state:       state,
		logger:      logger.With("component", "poller"),
		interval:    opts.Interval,
		historyFile: opts.HistoryFile,
	}

	if opts.Schedule != "" {
		sched, err := cron.ParseStandard(opts.Schedule)
		if err != nil {
			return nil, err
		}
		p.schedule = sched
	}

	return p, nil
}

// Run polls every source until ctx is cancelled, then saves state and
// returns. Each source gets its own loop so a slow backend cannot starve
// the others.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("Starting poller", "sources", len(p.sources), "interval", p.interval)

	for _, src := range p.sources {
		p.wg.Add(1)
		go func(src source.Source) {
			defer p.wg.Done()
			p.pollLoop(ctx, src)
		}(src)
	}

	p.wg.Wait()

	if err := p.state.Save(); err != nil {
		p.logger.Error("Failed to save state on shutdown", "error", err)
	}
	p.logger.Info("Poller stopped")
	return nil
}

func (p *Poller) pollLoop(ctx context.Context, src source.Source) {
	logger := p.logger.With("source", src.Name())

	if err := src.Available(ctx); err != nil {
		logger.Warn("Source availability check failed, polling anyway", "error", err)
	}

	for {
		p.pollOnce(ctx, src, logger)

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.untilNextCycle()):
		}
	}
}

// pollOnce runs one full cycle: poll, pipeline, route, save. A panic
// anywhere in the cycle is contained here so the loop survives.
func (p *Poller) pollOnce(ctx context.Context, src source.Source, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Poll cycle panicked", "panic", r)
		}
	}()

	file, err := src.Poll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("Poll failed", "error", err)
		}
		return
	}
	if file == nil {
		return
	}

	logger.Info("New file", "path", file.Path, "origin", file.Origin)

	specPath, err := p.pipeline.Process(ctx, file.Path)
	if err != nil {
		logger.Error("Pipeline failed", "input", file.Path, "error", err)
	} else if specPath == "" {
		logger.Debug("Pipeline declined", "input", file.Path)
	} else {
		routed, err := p.router.Process(ctx, specPath, string(file.Origin))
		if err != nil {
			logger.Error("Routing failed", "spec", specPath, "error", err)
		} else {
			logger.Info("Routed spec", "path", routed)
		}
	}

	if err := p.state.Save(); err != nil {
		logger.Error("Failed to save state", "error", err)
	}
	if p.historyFile != "" {
		if err := p.pipeline.SaveHistory(p.historyFile); err != nil {
			logger.Error("Failed to save pipeline history", "error", err)
		}
	}
}

func (p *Poller) untilNextCycle() time.Duration {
	if p.schedule != nil {
		return time.Until(p.schedule.Next(time.Now()))
	}
	return p.interval
}
