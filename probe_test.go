package probe

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/probelabs/probe/config"
	"github.com/probelabs/probe/core"
	"github.com/probelabs/probe/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoAgent answers with a fixed reply and a state delta, then waits for the
// runner's resume signal.
type echoAgent struct {
	name  string
	reply string
}

func (a *echoAgent) Name() string { return a.name }
func (a *echoAgent) Description() string { return "echo test agent" }
func (a *echoAgent) Start(_ *core.RunContext) error { return nil }
func (a *echoAgent) Stop(_ *core.RunContext) error { return nil }
func (a *echoAgent) SetSubAgents(_ ...core.Agent) error { return nil }
func (a *echoAgent) SubAgents() []core.Agent { return nil }
func (a *echoAgent) Parent() core.Agent { return nil }
func (a *echoAgent) FindAgent(_ string) core.Agent { return nil }

func (a *echoAgent) Run(runCtx *core.RunContext) error {
	ev := core.NewEvent(runCtx.RunID, a.name)
	ev.Content = &core.Content{
		Role:  "assistant",
		Parts: []core.Part{core.TextPart{Text: a.reply}},
	}
	ev.Actions.StateDelta = map[string]any{"replied": true}
	complete := true
	ev.TurnComplete = &complete

	if err := runCtx.EmitEvent(ev); err != nil {
		return err
	}
	return runCtx.WaitForResume()
}

func TestProbe_RunSync(t *testing.T) {
	store := session.NewInMemoryStore()
	p := New(&echoAgent{name: "echo", reply: "pong"}, func(o *Options) {
		o.SessionStore = store
	})

	userContent := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "ping"}}}
	runID, events, err := p.RunSync(context.Background(), "s1", userContent)
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	require.Len(t, events, 1)
	assert.Equal(t, "pong", events[0].Content.Text())

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Len(t, sess.Events, 2)
	assert.Equal(t, true, sess.State["replied"])
}

func TestProbe_NewFromConfig(t *testing.T) {
	cfg := &config.Config{
		Log:     config.LogConfig{Level: "warn", Format: "text"},
		Limits:  config.LimitsConfig{MaxModelCalls: 7, MaxMessages: 3, MaxTokens: 999},
		Storage: config.StorageConfig{Session: "memory", Transcript: "memory"},
	}

	p, err := NewFromConfig(&echoAgent{name: "echo", reply: "ok"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 7, p.opts.MaxModelCalls)
	assert.Equal(t, 3, p.opts.MaxMessages)
	assert.Equal(t, 999, p.opts.MaxTokens)
	assert.NotNil(t, p.opts.Logger)
}

func TestProbe_NewFromConfig_SQLiteStorage(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Session:    "sqlite",
			Transcript: "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "probe.db"),
		},
	}

	p, err := NewFromConfig(&echoAgent{name: "echo", reply: "persisted"}, cfg)
	require.NoError(t, err)
	require.NotNil(t, p.opts.SessionStore)
	require.NotNil(t, p.opts.TranscriptStore)

	userContent := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "save me"}}}
	_, events, err := p.RunSync(context.Background(), "s-durable", userContent)
	require.NoError(t, err)
	require.Len(t, events, 1)

	sess, err := p.opts.SessionStore.Get("s-durable")
	require.NoError(t, err)
	assert.Len(t, sess.Events, 2)
}

func TestProbe_RunMessage(t *testing.T) {
	p := New(&echoAgent{name: "echo", reply: "hi"})

	runID, eventsCh, errorsCh, err := p.RunMessage(context.Background(), "s2", "hello")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	var events []core.Event
	for eventsCh != nil || errorsCh != nil {
		select {
		case ev, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			events = append(events, ev)
		case runErr, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			require.NoError(t, runErr)
		}
	}
	require.Len(t, events, 1)
	assert.Equal(t, "hi", events[0].Content.Text())
}
