// Package policy decides which replay steps may show their payloads.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"

	"github.com/xiaot623/gogo/replayer/internal/domain"
)

const (
	DecisionShow   = "show"
	DecisionRedact = "redact"
)

// redactedValue replaces the input and output of redacted steps.
var redactedValue = json.RawMessage(`"[redacted]"`)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// StepInput is the policy input for one step.
type StepInput struct {
	RunID    string `json:"run_id"`
	StepType string `json:"step_type"`
	StepName string `json:"step_name"`
	Status   string `json:"status"`
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.replay_policy.decision"),
		rego.Module("replay_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile loads the policy at path, or the default policy when
// path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate returns the decision for one step: show or redact.
func (e *Engine) Evaluate(ctx context.Context, input StepInput) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	// The policy defines a default; an undefined result shows the step.
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionShow, nil
	}

	switch v := results[0].Expressions[0].Value.(type) {
	case string:
		if v == DecisionRedact {
			return DecisionRedact, nil
		}
		return DecisionShow, nil
	default:
		return "", fmt.Errorf("unexpected policy result type %T", v)
	}
}

// Apply returns a copy of data with redacted step payloads. The input is not
// modified, so cached data stays intact.
func (e *Engine) Apply(ctx context.Context, data *domain.ReplayData) (*domain.ReplayData, error) {
	out := *data
	out.Steps = make([]domain.ReplayStep, len(data.Steps))
	copy(out.Steps, data.Steps)

	for i := range out.Steps {
		step := &out.Steps[i]
		decision, err := e.Evaluate(ctx, StepInput{
			RunID:    data.RunID,
			StepType: string(step.Type),
			StepName: step.Name,
			Status:   string(step.Status),
		})
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if decision != DecisionRedact {
			continue
		}
		if len(step.Input) > 0 {
			step.Input = redactedValue
		}
		if len(step.Output) > 0 {
			step.Output = redactedValue
		}
		step.Redacted = true
	}
	return &out, nil
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package replay_policy

import rego.v1

default decision := "show"

sensitive_prefixes := ["secrets.", "credentials."]

# Tool calls touching secret stores never show their payloads.
decision := "redact" if {
	input.step_type == "tool_call"
	some prefix in sensitive_prefixes
	startswith(input.step_name, prefix)
}
`
