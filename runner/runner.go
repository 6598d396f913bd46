package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/probelabs/probe/core"
	"github.com/probelabs/probe/logging"
	"github.com/probelabs/probe/session"
	"github.com/probelabs/probe/transcript"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxConcurrentRuns limits concurrent agent runs.
	MaxConcurrentRuns int
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run (0 = unlimited).
	MaxModelCalls int
	// MaxMessages limits the conversation length per run (0 = unlimited).
	MaxMessages int
	// MaxTokens limits accumulated token usage per run (0 = unlimited).
	MaxTokens int
	// Session management services.
	SessionStore core.SessionStore
	// TranscriptStore persists completed run transcripts. Nil disables
	// transcript persistence.
	TranscriptStore transcript.Store
	// Logging services.
	Logger logging.Logger
}

// Runner coordinates agent execution: resolves the root agent, creates
// run contexts, streams events, applies side effects, and persists
// history. Public methods are safe for concurrent use.
type Runner struct {
	agent core.Agent

	maxConcurrentRuns int
	eventBufferSize   int
	maxModelCalls     int
	maxMessages       int
	maxTokens         int

	sessionStore    core.SessionStore
	transcriptStore transcript.Store
	logger          logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
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

	return &Runner{
		agent:             agent,
		maxConcurrentRuns: opts.MaxConcurrentRuns,
		eventBufferSize:   opts.EventBufferSize,
		maxModelCalls:     opts.MaxModelCalls,
		maxMessages:       opts.MaxMessages,
		maxTokens:         opts.MaxTokens,
		sessionStore:      opts.SessionStore,
		transcriptStore:   opts.TranscriptStore,
		logger:            opts.Logger,
		activeRuns:        make(map[string]context.CancelFunc),
	}
}

// Run starts an asynchronous run against the given session. It returns the
// generated run ID plus event and error channels; both channels are closed
// when the run finishes.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	sess, err := r.sessionStore.Get(sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := core.NewID()

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)
	resumeCh := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	if len(r.activeRuns) >= r.maxConcurrentRuns {
		r.mu.Unlock()
		cancel()
		return "", nil, nil, fmt.Errorf("max concurrent runs reached (%d)", r.maxConcurrentRuns)
	}
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	agentInfo := core.AgentInfo{Name: r.agent.Name(), Type: "agent"}
	limits := core.NewLimits(r.maxModelCalls, r.maxMessages, r.maxTokens)
	tr := transcript.New(runID)

	runCtx := core.NewRunContext(
		ctx,
		sessionID,
		runID,
		agentInfo,
		userContent,
		limits,
		agentEmit,
		resumeCh,
		sess,
		r.sessionStore,
		tr,
		r.logger,
	)

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := r.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		r.finishRun(runID)
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	go func() {
		defer close(agentEmit)

		if err := r.runAgent(runCtx); err != nil {
			select {
			case <-runCtx.Done():
				return
			case errorsCh <- fmt.Errorf("agent execution failed: %w", err):
			}
		}
	}()

	go func() {
		defer func() {
			r.saveTranscript(runID, tr)
			r.finishRun(runID)
			close(eventsCh)
			close(errorsCh)
		}()

		r.processEvents(runCtx, sessionID, agentEmit, resumeCh, eventsCh, errorsCh)
	}()

	return runID, eventsCh, errorsCh, nil
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// Transcript loads a persisted transcript by run ID. Requires a configured
// transcript store.
func (r *Runner) Transcript(runID string) ([]transcript.Event, error) {
	if r.transcriptStore == nil {
		return nil, fmt.Errorf("no transcript store configured")
	}
	return r.transcriptStore.Load(runID)
}

func (r *Runner) finishRun(runID string) {
	r.mu.Lock()
	if cancel, ok := r.activeRuns[runID]; ok {
		cancel()
		delete(r.activeRuns, runID)
	}
	r.mu.Unlock()
}

func (r *Runner) saveTranscript(runID string, tr *transcript.Transcript) {
	if r.transcriptStore == nil {
		return
	}
	if err := r.transcriptStore.Save(runID, tr.Events()); err != nil {
		r.logger.Warn("runner.transcript.save_failed", "run_id", runID, "error", err.Error())
	}
}

func (r *Runner) runAgent(runCtx *core.RunContext) error {
	if err := r.agent.Start(runCtx); err != nil {
		return err
	}

	// Ensure the agent is stopped when the run context is done
	defer func() {
		if err := r.agent.Stop(runCtx); err != nil {
			r.logger.Warn("runner.agent.stop_failed", "agent", r.agent.Name(), "error", err.Error())
		}
	}()

	return r.agent.Run(runCtx)
}

func (r *Runner) processEvents(
	runCtx *core.RunContext,
	sessionID string,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) {
	for {
		select {
		case <-runCtx.Done():
			return
		case ev, ok := <-agentEmit:
			if !ok {
				return
			}
			if err := r.applyEventActions(sessionID, ev); err != nil {
				select {
				case <-runCtx.Done():
					return
				case errorsCh <- fmt.Errorf("failed to process event actions: %w", err):
				}
				return
			}
			if !ev.IsPartial() {
				if err := r.sessionStore.AppendEvent(sessionID, ev); err != nil {
					select {
					case <-runCtx.Done():
						return
					case errorsCh <- fmt.Errorf("failed to append event to session: %w", err):
					}
					return
				}
			}
			select {
			case <-runCtx.Done():
				return
			case eventsCh <- ev:
				r.logger.Debug("runner.event.delivered", "event_id", ev.ID, "session_id", sessionID)
			}
			if !ev.IsPartial() {
				select {
				case <-runCtx.Done():
					return
				case resumeCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (r *Runner) applyEventActions(sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := r.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if ev.Actions.TransferToAgent != nil && *ev.Actions.TransferToAgent != "" {
		r.logger.Debug("runner.event.transfer_to_agent", "target", *ev.Actions.TransferToAgent, "session_id", sessionID)
	}

	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		r.logger.Debug("runner.event.escalate", "session_id", sessionID)
	}

	return nil
}
