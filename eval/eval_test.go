package eval

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/probelabs/probe/core"
	"github.com/probelabs/probe/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// answerAgent replies to each input with a canned answer (or echoes the
// input when no answer is configured).
type answerAgent struct {
	name    string
	answers map[string]string
	// running tracks concurrent Run invocations for parallelism assertions.
	running    atomic.Int32
	maxRunning atomic.Int32
	delay      time.Duration
}

func (a *answerAgent) Name() string { return a.name }
func (a *answerAgent) Description() string { return "answers from a fixed table" }
func (a *answerAgent) Start(_ *core.RunContext) error { return nil }
func (a *answerAgent) Stop(_ *core.RunContext) error { return nil }
func (a *answerAgent) SetSubAgents(_ ...core.Agent) error { return nil }
func (a *answerAgent) SubAgents() []core.Agent { return nil }
func (a *answerAgent) Parent() core.Agent { return nil }
func (a *answerAgent) FindAgent(_ string) core.Agent { return nil }

func (a *answerAgent) Run(runCtx *core.RunContext) error {
	n := a.running.Add(1)
	for {
		max := a.maxRunning.Load()
		if n <= max || a.maxRunning.CompareAndSwap(max, n) {
			break
		}
	}
	defer a.running.Add(-1)

	if a.delay > 0 {
		time.Sleep(a.delay)
	}

	input := runCtx.UserContent.Text()
	answer, ok := a.answers[input]
	if !ok {
		answer = input
	}

	ev := core.NewEvent(runCtx.RunID, a.name)
	ev.Content = &core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: answer}}}
	complete := true
	ev.TurnComplete = &complete

	if err := runCtx.EmitEvent(ev); err != nil {
		return err
	}
	return runCtx.WaitForResume()
}

func TestReadDataset(t *testing.T) {
	doc := `
name: arithmetic
samples:
  - input: "1+1"
    target: "2"
  - id: hard-one
    input: "2*3"
    target: "6"
    metadata:
      difficulty: easy
`
	ds, err := ReadDataset(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "arithmetic", ds.Name)
	require.Len(t, ds.Samples, 2)
	assert.Equal(t, "sample-1", ds.Samples[0].ID)
	assert.Equal(t, "hard-one", ds.Samples[1].ID)
	assert.Equal(t, "easy", ds.Samples[1].Metadata["difficulty"])
}

func TestReadDataset_Empty(t *testing.T) {
	_, err := ReadDataset(strings.NewReader("name: empty\nsamples: []\n"))
	assert.Error(t, err)
}

func TestScorers(t *testing.T) {
	sample := Sample{Target: "Paris"}

	assert.Equal(t, float64(1), ExactMatch().Score(sample, "Paris").Value)
	assert.Equal(t, float64(1), ExactMatch().Score(sample, "  Paris \n").Value)
	assert.Equal(t, float64(0), ExactMatch().Score(sample, "paris").Value)

	assert.Equal(t, float64(1), Includes().Score(sample, "The capital is paris.").Value)
	zero := Includes().Score(sample, "The capital is Lyon.")
	assert.Equal(t, float64(0), zero.Value)
	assert.NotEmpty(t, zero.Explanation)
}

func TestRun_ScoresSamples(t *testing.T) {
	agent := &answerAgent{
		name: "solver",
		answers: map[string]string{
			"1+1": "2",
			"2*3": "7", // wrong on purpose
		},
	}

	task := Task{
		Name: "arithmetic",
		Dataset: NewDataset("arithmetic",
			Sample{Input: "1+1", Target: "2"},
			Sample{Input: "2*3", Target: "6"},
		),
		Agent:  agent,
		Scorer: ExactMatch(),
	}

	results, err := Run(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, "arithmetic", results.Task)
	assert.Equal(t, "exact_match", results.Scorer)
	assert.Equal(t, 2, results.Completed)
	assert.Equal(t, 0, results.Errored)
	assert.InDelta(t, 0.5, results.Mean, 1e-9)

	require.Len(t, results.Samples, 2)
	assert.Equal(t, "2", results.Samples[0].Output)
	assert.Equal(t, float64(1), results.Samples[0].Score.Value)
	assert.Equal(t, float64(0), results.Samples[1].Score.Value)
	assert.NotEmpty(t, results.Samples[1].Score.Explanation)
}

func TestRun_BoundedParallelism(t *testing.T) {
	agent := &answerAgent{name: "slow", delay: 20 * time.Millisecond}

	samples := make([]Sample, 8)
	for i := range samples {
		samples[i] = Sample{Input: "ping", Target: "ping"}
	}

	task := Task{
		Name:    "parallel",
		Dataset: NewDataset("parallel", samples...),
		Agent:   agent,
		Scorer:  ExactMatch(),
	}

	results, err := Run(context.Background(), task, func(o *Options) {
		o.MaxConcurrentSamples = 2
	})
	require.NoError(t, err)
	assert.Equal(t, 8, results.Completed)
	assert.LessOrEqual(t, agent.maxRunning.Load(), int32(2))
}

func TestRun_CancelWaitsForInFlightSamples(t *testing.T) {
	agent := &answerAgent{name: "slow", delay: 20 * time.Millisecond}

	samples := make([]Sample, 8)
	for i := range samples {
		samples[i] = Sample{Input: "ping", Target: "ping"}
	}

	task := Task{
		Name:    "cancelled",
		Dataset: NewDataset("cancelled", samples...),
		Agent:   agent,
		Scorer:  ExactMatch(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := Run(ctx, task, func(o *Options) {
		o.MaxConcurrentSamples = 2
	})
	require.ErrorIs(t, err, context.Canceled)

	// Run must not return while sample goroutines are still writing results.
	assert.Equal(t, int32(0), agent.running.Load())
}

func TestRun_PersistsTranscripts(t *testing.T) {
	trStore := transcript.NewInMemoryStore()
	agent := &answerAgent{name: "solver"}

	task := Task{
		Name: "persist",
		Dataset: NewDataset("persist",
			Sample{Input: "hello", Target: "hello", Metadata: map[string]any{"tag": "smoke"}},
		),
		Agent:  agent,
		Scorer: ExactMatch(),
	}

	_, err := Run(context.Background(), task, func(o *Options) {
		o.TranscriptStore = trStore
	})
	require.NoError(t, err)

	events, err := trStore.Load("persist/sample-1")
	require.NoError(t, err)
	require.NotEmpty(t, events)
	info, ok := events[0].(*transcript.InfoEvent)
	require.True(t, ok)
	assert.Equal(t, "eval", info.Source)
}

func TestRun_Validation(t *testing.T) {
	_, err := Run(context.Background(), Task{Name: "broken"})
	assert.Error(t, err)

	_, err = Run(context.Background(), Task{
		Name:  "no-scorer",
		Agent: &answerAgent{name: "a"},
		Dataset: NewDataset("d",
			Sample{Input: "x"},
		),
	})
	assert.Error(t, err)
}
