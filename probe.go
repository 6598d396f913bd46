// Package probe provides a high-level façade over the runner and service
// abstractions (sessions, transcripts & logging) enabling rapid construction
// of model-driven agent systems and evaluations. Most applications interact
// with this package by:
//  1. Creating a Probe via New() around a root agent (optionally overriding
//     default in-memory services)
//  2. Running conversations asynchronously (Run) or synchronously (RunSync)
//  3. Optionally batch-evaluating the agent through the eval package
//
// The façade delegates orchestration to runner.Runner while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply durable store
// implementations (for example the SQLite session and transcript stores) and
// a structured logger.
package probe

import (
	"context"
	"fmt"

	"github.com/probelabs/probe/config"
	"github.com/probelabs/probe/core"
	"github.com/probelabs/probe/logging"
	"github.com/probelabs/probe/runner"
	"github.com/probelabs/probe/session"
	"github.com/probelabs/probe/transcript"
)

// Options configures the Probe instance.
type Options struct {
	// MaxConcurrentRuns limits the number of agent runs that can execute
	// simultaneously. This prevents resource exhaustion and provides
	// backpressure.
	MaxConcurrentRuns int

	// EventBufferSize sets the channel buffer size for event processing.
	// Larger buffers reduce blocking but increase memory usage.
	EventBufferSize int

	// MaxModelCalls, MaxMessages and MaxTokens are per-run budgets
	// (0 = unlimited).
	MaxModelCalls int
	MaxMessages   int
	MaxTokens     int

	// Stores (defaults to in-memory implementations if not provided)
	SessionStore    core.SessionStore
	TranscriptStore transcript.Store

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Probe is the high-level façade aggregating the runner and its services.
type Probe struct {
	opts   Options
	runner *runner.Runner
}

// New creates a Probe around the given root agent with optional overrides.
// Any unset service is initialized with an in-memory implementation.
func New(agent core.Agent, optFns ...func(o *Options)) *Probe {
	opts := Options{
		MaxConcurrentRuns: 10,
		EventBufferSize:   100,
		MaxModelCalls:     100,
		SessionStore:      session.NewInMemoryStore(),
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	r := runner.New(agent, func(o *runner.Options) {
		o.MaxConcurrentRuns = opts.MaxConcurrentRuns
		o.EventBufferSize = opts.EventBufferSize
		o.MaxModelCalls = opts.MaxModelCalls
		o.MaxMessages = opts.MaxMessages
		o.MaxTokens = opts.MaxTokens
		o.SessionStore = opts.SessionStore
		o.TranscriptStore = opts.TranscriptStore
		o.Logger = opts.Logger
	})

	return &Probe{opts: opts, runner: r}
}

// NewFromConfig creates a Probe whose limits, storage backends and logger
// come from loaded configuration. Explicit option functions are applied after
// the configuration and win on conflict.
func NewFromConfig(agent core.Agent, cfg *config.Config, optFns ...func(o *Options)) (*Probe, error) {
	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, false)

	fromCfg := func(o *Options) {
		o.MaxModelCalls = cfg.Limits.MaxModelCalls
		o.MaxMessages = cfg.Limits.MaxMessages
		o.MaxTokens = cfg.Limits.MaxTokens
		o.Logger = logger
	}

	opts := []func(o *Options){fromCfg}

	if cfg.Storage.Session == "sqlite" {
		store, _, err := session.OpenSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		opts = append(opts, func(o *Options) { o.SessionStore = store })
	}
	if cfg.Storage.Transcript == "sqlite" {
		store, _, err := transcript.OpenSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open transcript store: %w", err)
		}
		opts = append(opts, func(o *Options) { o.TranscriptStore = store })
	}

	return New(agent, append(opts, optFns...)...), nil
}

// Runner exposes the underlying runner for advanced use (cancellation,
// transcript loading).
func (p *Probe) Runner() *runner.Runner { return p.runner }

// Run starts an asynchronous run returning event & error channels.
func (p *Probe) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	return p.runner.Run(ctx, sessionID, userContent)
}

// RunMessage is a convenience wrapper for plain text user input.
func (p *Probe) RunMessage(
	ctx context.Context,
	sessionID string,
	message string,
) (string, <-chan core.Event, <-chan error, error) {
	content := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: message}}}
	return p.runner.Run(ctx, sessionID, content)
}

// RunSync is a synchronous helper that drains the async channels, accumulates
// events and returns the run ID.
func (p *Probe) RunSync(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, []core.Event, error) {
	runID, eventsCh, errorsCh, err := p.runner.Run(ctx, sessionID, userContent)
	if err != nil {
		return "", nil, err
	}

	// Collect all events until completion
	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			// Context cancelled - return events collected so far
			return runID, events, ctx.Err()

		case event, ok := <-eventsCh:
			if !ok {
				// Events channel closed - check for terminal error
				select {
				case err := <-errorsCh:
					return runID, events, err
				default:
					return runID, events, nil // Successful completion
				}
			}
			// Collect event
			events = append(events, event)

		case err := <-errorsCh:
			// Terminal error occurred
			if err != nil {
				return runID, events, err
			}
		}
	}
}
