package agent

import (
	"context"

	"github.com/probelabs/probe/core"
	"github.com/probelabs/probe/transcript"
)

// SubtaskFunc is the unit of work executed by RunSubtask. It receives a store
// and transcript that are isolated from the calling sample.
type SubtaskFunc func(ctx context.Context, store *core.Store, tr *transcript.Transcript) (any, error)

// SubtaskOptions configures RunSubtask.
type SubtaskOptions struct {
	// Store overrides the forked sample store the subtask runs against.
	Store *core.Store
	// Input is recorded on the SubtaskEvent for later inspection.
	Input map[string]any
}

// RunSubtask executes fn with a forked Store and a fresh Transcript so its
// state mutations and recorded events never leak into the calling sample. A
// SubtaskEvent is recorded pending in the parent transcript before execution
// and completed afterwards with the result (or error) and every event the
// subtask recorded.
func RunSubtask(runCtx *core.RunContext, name string, fn SubtaskFunc, optFns ...func(o *SubtaskOptions)) (any, error) {
	opts := SubtaskOptions{}
	for _, f := range optFns {
		f(&opts)
	}

	store := opts.Store
	if store == nil {
		store = runCtx.StoreSnapshot().Fork()
	}

	subTr := transcript.New(name)
	ev := runCtx.Transcript.RecordSubtask(name, opts.Input)

	result, err := transcript.TraceActionValue(runCtx.Logger(), "subtask", name, func() (any, error) {
		return fn(runCtx.Context, store, subTr)
	})

	ev.Result = result
	if err != nil {
		ev.Error = err.Error()
	}
	ev.Events = subTr.Events()
	ev.Complete()

	return result, err
}
