package eval

import (
	"context"
	"fmt"
	"sync"

	"github.com/probelabs/probe/core"
	"github.com/probelabs/probe/logging"
	"github.com/probelabs/probe/model"
	"github.com/probelabs/probe/session"
	"github.com/probelabs/probe/transcript"
)

// Task pairs a dataset with the agent under evaluation and a scorer.
// The agent must be safe for concurrent runs (all agents in this module are).
type Task struct {
	Name    string
	Dataset Dataset
	Agent   core.Agent
	Scorer  Scorer
}

// Options configure an evaluation run.
type Options struct {
	// MaxConcurrentSamples bounds sample-level parallelism.
	MaxConcurrentSamples int
	// MaxModelCalls, MaxMessages and MaxTokens are per-sample budgets
	// (0 = unlimited).
	MaxModelCalls int
	MaxMessages   int
	MaxTokens     int
	// EventBufferSize sets channel buffering per sample run.
	EventBufferSize int
	// TranscriptStore persists each sample transcript under
	// "<task>/<sample>" when set.
	TranscriptStore transcript.Store
	// Logger receives structured harness logs.
	Logger logging.Logger
}

// SampleResult is the outcome of one evaluated sample.
type SampleResult struct {
	Sample     Sample
	Output     string
	Score      Score
	Error      string
	ModelCalls int
	Tokens     int
}

// Results aggregates a completed evaluation.
type Results struct {
	Task       string
	Scorer     string
	Samples    []SampleResult
	Completed  int
	Errored    int
	Mean       float64
	ModelCalls int
	Tokens     int
	// Usage holds per-model token totals recorded process-wide during
	// the evaluation window.
	Usage map[string]model.TokenUsage
}

// Run evaluates every sample in the task's dataset with bounded parallelism.
// Each sample runs against its own session store, state store, transcript and
// limit budget so parallel samples never share mutable state. Sample failures
// are recorded in the results rather than aborting the evaluation; Run itself
// only fails on invalid input or a cancelled context.
func Run(ctx context.Context, task Task, optFns ...func(o *Options)) (*Results, error) {
	if task.Agent == nil {
		return nil, fmt.Errorf("task %q has no agent", task.Name)
	}
	if task.Scorer == nil {
		return nil, fmt.Errorf("task %q has no scorer", task.Name)
	}
	if len(task.Dataset.Samples) == 0 {
		return nil, fmt.Errorf("task %q has an empty dataset", task.Name)
	}

	opts := Options{
		MaxConcurrentSamples: 4,
		EventBufferSize:      100,
		Logger:               logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrentSamples < 1 {
		opts.MaxConcurrentSamples = 1
	}

	before := model.GlobalUsage().ByModel()

	results := &Results{
		Task:    task.Name,
		Scorer:  task.Scorer.Name(),
		Samples: make([]SampleResult, len(task.Dataset.Samples)),
	}

	sem := make(chan struct{}, opts.MaxConcurrentSamples)
	var wg sync.WaitGroup

	for i, sample := range task.Dataset.Samples {
		if ctx.Err() != nil {
			// Stop spawning; in-flight samples must finish before we return
			// so nothing writes into results afterwards.
			break
		}

		wg.Add(1)
		go func(i int, sample Sample) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results.Samples[i] = runSample(ctx, task, sample, opts)
		}(i, sample)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sum float64
	for _, sr := range results.Samples {
		if sr.Error != "" {
			results.Errored++
		} else {
			results.Completed++
			sum += sr.Score.Value
		}
		results.ModelCalls += sr.ModelCalls
		results.Tokens += sr.Tokens
	}
	if results.Completed > 0 {
		results.Mean = sum / float64(results.Completed)
	}
	results.Usage = usageSince(before)

	opts.Logger.Info("eval.complete",
		"task", task.Name,
		"samples", len(results.Samples),
		"completed", results.Completed,
		"errored", results.Errored,
		"mean", results.Mean,
	)

	return results, nil
}

// runSample executes one sample end to end: persists the user message, runs
// the agent while applying event side effects, extracts the output and scores
// it.
func runSample(ctx context.Context, task Task, sample Sample, opts Options) SampleResult {
	result := SampleResult{Sample: sample}

	store := session.NewInMemoryStore()
	sessionID := fmt.Sprintf("%s/%s", task.Name, sample.ID)
	sess, err := store.Get(sessionID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	runID := core.NewID()
	limits := core.NewLimits(opts.MaxModelCalls, opts.MaxMessages, opts.MaxTokens)
	tr := transcript.New(sessionID)
	if len(sample.Metadata) > 0 {
		tr.RecordInfo("eval", sample.Metadata)
	}

	userContent := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: sample.Input}}}
	if err := store.AppendEvent(sessionID, core.NewUserContentEvent(runID, &userContent)); err != nil {
		result.Error = err.Error()
		return result
	}

	emit := make(chan core.Event, opts.EventBufferSize)
	resume := make(chan struct{}, 1)

	runCtx := core.NewRunContext(
		ctx, sessionID, runID,
		core.AgentInfo{Name: task.Agent.Name(), Type: "agent"},
		userContent,
		limits, emit, resume, sess, store, tr, opts.Logger,
	)

	runErr := make(chan error, 1)
	go func() {
		defer close(emit)
		runErr <- runAgent(task.Agent, runCtx)
	}()

	var finalText string
	for ev := range emit {
		if len(ev.Actions.StateDelta) > 0 {
			if err := store.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
				opts.Logger.Warn("eval.sample.delta_failed", "sample", sample.ID, "error", err.Error())
			}
		}
		if !ev.IsPartial() {
			if err := store.AppendEvent(sessionID, ev); err != nil {
				opts.Logger.Warn("eval.sample.append_failed", "sample", sample.ID, "error", err.Error())
			}
			if ev.IsFinalResponse() && ev.Content != nil {
				finalText = ev.Content.Text()
			}
			select {
			case resume <- struct{}{}:
			default:
			}
		}
	}

	if err := <-runErr; err != nil {
		result.Error = err.Error()
	}

	result.ModelCalls = limits.ModelCalls()
	result.Tokens = limits.TotalTokens()

	result.Output = sampleOutput(task.Agent, store, sessionID, finalText)

	if opts.TranscriptStore != nil {
		if err := opts.TranscriptStore.Save(sessionID, tr.Events()); err != nil {
			opts.Logger.Warn("eval.sample.transcript_save_failed", "sample", sample.ID, "error", err.Error())
		}
	}

	if result.Error == "" {
		result.Score = task.Scorer.Score(sample, result.Output)
	}

	return result
}

func runAgent(agent core.Agent, runCtx *core.RunContext) error {
	if err := agent.Start(runCtx); err != nil {
		return err
	}
	defer func() { _ = agent.Stop(runCtx) }()
	return agent.Run(runCtx)
}

// sampleOutput prefers the agent's output key in session state, falling back
// to the final response text.
func sampleOutput(agent core.Agent, store core.SessionStore, sessionID, finalText string) string {
	type keyed interface{ GetOutputKey() string }

	if ka, ok := agent.(keyed); ok {
		if key := ka.GetOutputKey(); key != "" {
			if sess, err := store.Get(sessionID); err == nil {
				if v, ok := sess.State[key]; ok {
					if s, ok := v.(string); ok {
						return s
					}
					return fmt.Sprintf("%v", v)
				}
			}
		}
	}
	return finalText
}

// usageSince diffs the process-wide usage tracker against a snapshot taken
// before the evaluation started.
func usageSince(before map[string]model.TokenUsage) map[string]model.TokenUsage {
	after := model.GlobalUsage().ByModel()
	diff := make(map[string]model.TokenUsage)
	for name, u := range after {
		prev := before[name]
		d := model.TokenUsage{
			PromptTokens:     u.PromptTokens - prev.PromptTokens,
			CompletionTokens: u.CompletionTokens - prev.CompletionTokens,
			TotalTokens:      u.TotalTokens - prev.TotalTokens,
		}
		if d.TotalTokens != 0 || d.PromptTokens != 0 || d.CompletionTokens != 0 {
			diff[name] = d
		}
	}
	return diff
}
