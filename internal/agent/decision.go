// Package agent runs the perceive-decide-act loop for one headless agent:
// it owns a world cache, a movement integrator and a voice manager on a
// single goroutine and consults a decision provider at a fixed cadence.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Decision is one turn's outcome from the provider. Action is a command
// string ("MOVE 5 -5", "FOLLOW player-123", "STOP", "SAY hi", "WAIT").
type Decision struct {
	Action       string `json:"action"`
	Message      string `json:"message,omitempty"`
	MemoryUpdate string `json:"memory_update,omitempty"`
}

// Request carries the prompts for one decision turn.
type Request struct {
	System string
	User   string
}

// Provider produces a decision from an observation prompt. Implementations
// are called off the runtime loop and must honor the context deadline.
type Provider interface {
	Decide(ctx context.Context, req Request) (Decision, error)
}

// ParseDecision extracts a Decision from raw model output. Models wrap JSON
// in markdown fences or prose despite instructions, so extraction is lenient:
// fenced block first, then the outermost brace pair. An empty action
// normalizes to WAIT.
func ParseDecision(content string) (Decision, error) {
	s := strings.TrimSpace(content)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start == -1 || end == -1 || end < start {
			return Decision{}, fmt.Errorf("no JSON object in response")
		}
		s = s[start : end+1]
	}

	var d Decision
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return Decision{}, fmt.Errorf("parse decision: %w", err)
	}
	d.Action = strings.TrimSpace(d.Action)
	if d.Action == "" {
		d.Action = "WAIT"
	}
	return d, nil
}
