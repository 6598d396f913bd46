package model

import (
	"strings"

	"github.com/probelabs/probe/core"
)

// CollapseUserMessages folds runs of consecutive user messages into one.
// Some providers reject back-to-back messages of the same role.
func CollapseUserMessages(contents []core.Content) []core.Content {
	return collapseRole(contents, "user")
}

// CollapseAssistantMessages folds runs of consecutive assistant messages into one.
func CollapseAssistantMessages(contents []core.Content) []core.Content {
	return collapseRole(contents, "assistant")
}

func collapseRole(contents []core.Content, role string) []core.Content {
	out := make([]core.Content, 0, len(contents))
	for _, c := range contents {
		if len(out) > 0 && c.Role == role && out[len(out)-1].Role == role {
			prev := &out[len(out)-1]
			prev.Parts = append(append([]core.Part{}, prev.Parts...), c.Parts...)
			continue
		}
		out = append(out, c)
	}
	return out
}

// SimpleInputMessages reduces a conversation to the form expected by
// providers without native system-message support: system texts are folded
// into the first user message and consecutive user messages are collapsed.
func SimpleInputMessages(contents []core.Content) []core.Content {
	var systemTexts []string
	rest := make([]core.Content, 0, len(contents))
	for _, c := range contents {
		if c.Role == "system" {
			if t := c.Text(); t != "" {
				systemTexts = append(systemTexts, t)
			}
			continue
		}
		rest = append(rest, c)
	}

	if len(systemTexts) > 0 {
		prefix := strings.Join(systemTexts, "\n\n")
		folded := false
		for i, c := range rest {
			if c.Role == "user" {
				parts := append([]core.Part{core.TextPart{Text: prefix + "\n\n"}}, c.Parts...)
				rest[i] = core.Content{Role: "user", Parts: parts}
				folded = true
				break
			}
		}
		if !folded {
			rest = append([]core.Content{core.NewUserContent(prefix)}, rest...)
		}
	}

	return CollapseUserMessages(rest)
}
