package eval

import (
	"fmt"
	"strings"
)

// Score grades one completed sample. Value is conventionally in [0, 1].
type Score struct {
	Value       float64 `json:"value"`
	Explanation string  `json:"explanation,omitempty"`
}

// Scorer maps a completed sample and the agent's output to a Score.
type Scorer interface {
	Name() string
	Score(sample Sample, output string) Score
}

// ScorerFunc adapts a plain function to the Scorer interface.
type ScorerFunc struct {
	ScorerName string
	Fn         func(sample Sample, output string) Score
}

// Name implements Scorer.
func (s ScorerFunc) Name() string { return s.ScorerName }

// Score implements Scorer.
func (s ScorerFunc) Score(sample Sample, output string) Score { return s.Fn(sample, output) }

// ExactMatch scores 1 when the trimmed output equals the sample target.
func ExactMatch() Scorer {
	return ScorerFunc{
		ScorerName: "exact_match",
		Fn: func(sample Sample, output string) Score {
			if strings.TrimSpace(output) == strings.TrimSpace(sample.Target) {
				return Score{Value: 1}
			}
			return Score{
				Value:       0,
				Explanation: fmt.Sprintf("expected %q, got %q", sample.Target, strings.TrimSpace(output)),
			}
		},
	}
}

// Includes scores 1 when the output contains the sample target,
// case-insensitively.
func Includes() Scorer {
	return ScorerFunc{
		ScorerName: "includes",
		Fn: func(sample Sample, output string) Score {
			if strings.Contains(strings.ToLower(output), strings.ToLower(sample.Target)) {
				return Score{Value: 1}
			}
			return Score{
				Value:       0,
				Explanation: fmt.Sprintf("output does not contain %q", sample.Target),
			}
		},
	}
}
