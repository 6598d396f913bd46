// Package agent provides loop-based execution coordination for repetitive tasks.
//
// LoopAgent executes a single child agent repeatedly with configurable termination
// controls (max iterations, predicate, interval, escalation monitoring).

package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/probelabs/probe/core"
)

// ErrEscalated is returned when a child agent signals escalation.
var ErrEscalated = errors.New("child agent escalated")

// LoopAgent coordinates the repeated execution of a child agent.
//
// This agent type enables iterative workflows by executing a child agent
// multiple times with configurable termination conditions. The loop can
// be controlled by maximum iterations, custom predicates, interval timing,
// and error handling strategies.
//
// LoopAgent is ideal for:
//   - Monitoring and polling scenarios
//   - Iterative data processing workflows
//   - Retry logic with custom conditions
//   - Workflows requiring convergence checking
type LoopAgent struct {
	BaseAgent
	child       core.Agent        // Child agent to execute repeatedly
	maxIters    int               // Maximum number of iterations allowed
	interval    time.Duration     // Time delay between iterations
	stopOnError bool              // Whether to stop execution on child agent errors
	predicate   func(string) bool // Custom termination condition based on output
}

// NewLoopAgent constructs a looping coordinator around a child agent.
// Defaults: 100 iterations, no interval, stop on first error.
func NewLoopAgent(name string, child core.Agent, opts ...LoopOption) *LoopAgent {
	la := &LoopAgent{
		BaseAgent:   NewBaseAgent(name),
		child:       child,
		maxIters:    100,
		interval:    0,
		stopOnError: true,
	}

	for _, o := range opts {
		o(la)
	}

	return la
}

// LoopOption defines a configuration function for customizing LoopAgent behavior.
type LoopOption func(*LoopAgent)

// WithMaxIters sets the maximum number of iterations for the loop.
//
// The loop will terminate after this many iterations even if other
// termination conditions are not met.
func WithMaxIters(n int) LoopOption {
	return func(l *LoopAgent) { l.maxIters = n }
}

// WithInterval sets the time delay between loop iterations.
//
// This is useful for rate limiting, polling scenarios, or giving
// external systems time to process between iterations. Set to 0
// for no delay between iterations.
func WithInterval(d time.Duration) LoopOption {
	return func(l *LoopAgent) { l.interval = d }
}

// WithPredicate sets a custom termination condition based on output.
//
// The predicate function receives the text of each final (non-partial)
// assistant event emitted by the child and should return true to terminate
// the loop early.
//
// Example:
//
//	WithPredicate(func(output string) bool {
//	    return strings.Contains(output, "COMPLETE")
//	})
func WithPredicate(pred func(string) bool) LoopOption {
	return func(l *LoopAgent) { l.predicate = pred }
}

// WithStopOnError controls whether child errors terminate the loop.
func WithStopOnError(stop bool) LoopOption {
	return func(l *LoopAgent) { l.stopOnError = stop }
}

// Run implements core.Agent performing iterative execution with escalation
// detection. It returns early (nil error) on escalation events or when the
// configured predicate matches a final response.
func (l *LoopAgent) Run(runCtx *core.RunContext) error {
	for i := 0; i < l.maxIters; i++ {
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		default:
		}

		runCtx.LogDebug("agent.loop.iteration", "agent", l.Name(), "iteration", i+1)

		matched, childErr := l.runChildMonitored(runCtx)

		// Escalation is not an error, just early termination
		if errors.Is(childErr, ErrEscalated) {
			runCtx.LogInfo("agent.loop.escalated", "agent", l.Name(), "iteration", i+1)
			return nil
		}

		if childErr != nil {
			if l.stopOnError {
				return fmt.Errorf("loop iteration %d failed for agent %s: %w", i+1, l.child.Name(), childErr)
			}
			runCtx.LogWarn("agent.loop.iteration_failed", "agent", l.Name(), "iteration", i+1, "error", childErr.Error())
		}

		if matched {
			runCtx.LogDebug("agent.loop.predicate_matched", "agent", l.Name(), "iteration", i+1)
			return nil
		}

		// Apply interval delay between iterations (except after last iteration)
		if l.interval > 0 && i < l.maxIters-1 {
			select {
			case <-runCtx.Done():
				return runCtx.Err()
			case <-time.After(l.interval):
			}
		}
	}

	runCtx.LogDebug("agent.loop.complete", "agent", l.Name(), "iterations", l.maxIters)

	return nil
}

// runChildMonitored executes the child while intercepting emitted events to
// detect escalation flags and predicate matches before forwarding to the
// parent context. The bool result reports whether the termination predicate
// matched a final response.
func (l *LoopAgent) runChildMonitored(runCtx *core.RunContext) (bool, error) {
	interceptChan := make(chan core.Event, 10)
	resumeChan := make(chan struct{}, 10)
	childCtx := runCtx.NewChildContext(interceptChan, resumeChan, runCtx.Branch)

	done := make(chan error, 1)

	go func() {
		defer close(done)
		done <- l.child.Run(childCtx)
	}()

	matched := false

	for {
		select {
		case event, ok := <-interceptChan:
			if !ok {
				return matched, <-done
			}

			if event.Actions.Escalate != nil && *event.Actions.Escalate {
				// Forward the escalation event to the parent
				if err := runCtx.EmitEvent(event); err != nil {
					return matched, err
				}
				// Unblock the child so it can finish its run
				select {
				case resumeChan <- struct{}{}:
				default:
				}
				<-done
				return matched, ErrEscalated
			}

			if l.predicate != nil && !event.IsPartial() && event.Content != nil && event.Content.Role == "assistant" {
				if l.predicate(event.Content.Text()) {
					matched = true
				}
			}

			// Forward non-escalation events to the parent context
			if err := runCtx.EmitEvent(event); err != nil {
				return matched, err
			}

			// Send resume signal to child
			select {
			case resumeChan <- struct{}{}:
			case <-runCtx.Done():
				return matched, runCtx.Err()
			}

		case err := <-done:
			return matched, err

		case <-runCtx.Done():
			return matched, runCtx.Err()
		}
	}
}

// CreateEscalationEvent is a helper for constructing an escalation signal
// event. Agents can use this when they determine that they cannot complete
// their task and need to hand back to a higher level agent.
func CreateEscalationEvent(invocationID, author string, content *core.Content) core.Event {
	escalate := true
	ev := core.NewEvent(invocationID, author)
	ev.Actions.Escalate = &escalate
	ev.Content = content
	return ev
}
