package tool

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/probelabs/probe/core"
)

// Decision is the outcome of an approval check.
type Decision string

// Approval decisions.
const (
	DecisionApprove Decision = "approve"
	DecisionModify  Decision = "modify"
	DecisionReject  Decision = "reject"
)

// Approval is the result of gating one tool call.
type Approval struct {
	Decision Decision
	// Args replaces the original arguments when Decision is DecisionModify.
	Args map[string]any
	// Reason explains a rejection to the model.
	Reason string
}

// Approver gates tool execution. The executor consults it before every call
// so a human (or policy) can approve, rewrite or reject what the model asked
// for.
type Approver interface {
	Approve(toolCtx *core.ToolContext, toolName string, args map[string]any) (Approval, error)
}

// AutoApprover approves everything. The default when no approver is set.
type AutoApprover struct{}

// Approve implements Approver.
func (AutoApprover) Approve(*core.ToolContext, string, map[string]any) (Approval, error) {
	return Approval{Decision: DecisionApprove}, nil
}

// ConsoleApprover prompts a human on an io.Reader/Writer pair (stdin/stdout
// in the examples). The operator can accept the call, edit its arguments as
// JSON, or reject it with a reason that is surfaced to the model.
type ConsoleApprover struct {
	In  io.Reader
	Out io.Writer
}

// Approve implements Approver.
func (a *ConsoleApprover) Approve(_ *core.ToolContext, toolName string, args map[string]any) (Approval, error) {
	pretty, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		pretty = []byte(fmt.Sprintf("%v", args))
	}

	fmt.Fprintf(a.Out, "\ntool call: %s\narguments:\n%s\n", toolName, pretty)
	fmt.Fprint(a.Out, "[a]pprove, [e]dit or [r]eject? ")

	reader := bufio.NewReader(a.In)
	choice, err := reader.ReadString('\n')
	if err != nil {
		return Approval{}, fmt.Errorf("read approval choice: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "a", "approve", "":
		return Approval{Decision: DecisionApprove}, nil
	case "e", "edit":
		fmt.Fprint(a.Out, "new arguments (JSON): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return Approval{}, fmt.Errorf("read edited arguments: %w", err)
		}
		edited, err := ParseArguments(strings.TrimSpace(line))
		if err != nil {
			return Approval{}, err
		}
		return Approval{Decision: DecisionModify, Args: edited}, nil
	case "r", "reject":
		fmt.Fprint(a.Out, "reason: ")
		reason, err := reader.ReadString('\n')
		if err != nil {
			return Approval{}, fmt.Errorf("read rejection reason: %w", err)
		}
		return Approval{Decision: DecisionReject, Reason: strings.TrimSpace(reason)}, nil
	default:
		return Approval{Decision: DecisionReject, Reason: "call was not approved"}, nil
	}
}
