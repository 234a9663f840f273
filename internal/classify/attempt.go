package classify

import (
	"context"
	"errors"
	"strings"

	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/llm"
)

// Outcome is the result class of a single model attempt.
type Outcome int

const (
	Success Outcome = iota
	Retryable
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// AttemptResult is returned by a single classification attempt. Value is set
// on Success; Reason is set otherwise.
type AttemptResult struct {
	Outcome Outcome
	Value   domain.Classification
	Reason  error
}

var (
	errMissingCategory   = errors.New("category is empty")
	errMissingReasoning  = errors.New("reasoning is empty")
	errMissingDeductible = errors.New("is_deductible is missing")
)

type modelAnswer struct {
	Category     string `json:"category"`
	IsDeductible *bool  `json:"is_deductible"`
	Reasoning    string `json:"reasoning"`
}

func (a modelAnswer) validate() error {
	switch {
	case strings.TrimSpace(a.Category) == "":
		return errMissingCategory
	case a.IsDeductible == nil:
		return errMissingDeductible
	case strings.TrimSpace(a.Reasoning) == "":
		return errMissingReasoning
	}
	return nil
}

// Attempt performs one model call for prompt and validates the answer.
func (e *Engine) Attempt(ctx context.Context, prompt string) AttemptResult {
	raw, err := e.gen.GenerateJSON(ctx, prompt, responseSchema)
	if err != nil {
		return failure(err)
	}

	var ans modelAnswer
	if err := llm.DecodeStrict(raw, &ans); err != nil {
		return failure(err)
	}
	if err := ans.validate(); err != nil {
		return failure(llm.Invalid(err))
	}

	return AttemptResult{
		Outcome: Success,
		Value: domain.Classification{
			Category:     CanonicalCategory(ans.Category),
			IsDeductible: *ans.IsDeductible,
			Reasoning:    strings.TrimSpace(ans.Reasoning),
			Source:       domain.SourceModel,
		},
	}
}

func failure(err error) AttemptResult {
	norm := llm.Normalize(err)
	if norm.Retryable() {
		return AttemptResult{Outcome: Retryable, Reason: norm}
	}
	return AttemptResult{Outcome: Fatal, Reason: norm}
}
