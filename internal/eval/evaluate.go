package eval

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/colaso96/beforeyouradvisor/internal/adapters"
	"github.com/colaso96/beforeyouradvisor/internal/classify"
	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
)

// Target selects which classification field is compared with the label.
type Target string

const (
	TargetCategory   Target = "category"
	TargetDeductible Target = "deductible"
)

// Predictor produces a label for one example.
type Predictor interface {
	Predict(ctx context.Context, ex Example) (string, error)
}

// Report is the outcome of an evaluation run.
type Report struct {
	Total   int
	Correct int
	// Errors counts examples the predictor failed on; they count as wrong.
	Errors int
	// Confusion maps expected label to predicted label counts.
	Confusion map[string]map[string]int
}

// Accuracy is Correct / Total, or 0 for an empty run.
func (r Report) Accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Total)
}

// Labels returns the expected labels in sorted order.
func (r Report) Labels() []string {
	labels := make([]string, 0, len(r.Confusion))
	for l := range r.Confusion {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// NormalizeLabel keeps the first line of a response, trims quotes and
// whitespace and lowercases it.
func NormalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.ToLower(strings.TrimSpace(s))
}

// ExactMatch compares an expected label with a model response.
func ExactMatch(expected, response string) bool {
	return NormalizeLabel(expected) == NormalizeLabel(response)
}

// Evaluate runs p over every example sequentially.
func Evaluate(ctx context.Context, p Predictor, examples []Example) (Report, error) {
	log := logger.FromContext(ctx)
	report := Report{Confusion: make(map[string]map[string]int)}

	for i, ex := range examples {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("Evaluate: %w", err)
		}
		report.Total++

		expected := NormalizeLabel(ex.Answer)
		predicted, err := p.Predict(ctx, ex)
		if err != nil {
			log.Warn().Err(err).Int("example", i).Msg("Prediction failed")
			report.Errors++
			predicted = "<error>"
		} else {
			predicted = NormalizeLabel(predicted)
		}

		if report.Confusion[expected] == nil {
			report.Confusion[expected] = make(map[string]int)
		}
		report.Confusion[expected][predicted]++
		if err == nil && predicted == expected {
			report.Correct++
		}
	}

	log.Info().
		Int("total", report.Total).
		Int("correct", report.Correct).
		Int("errors", report.Errors).
		Float64("accuracy", report.Accuracy()).
		Msg("Evaluation finished")
	return report, nil
}

// Classifier is the batch classifier under evaluation.
type Classifier interface {
	Classify(ctx context.Context, req classify.Request, txs []domain.Transaction) ([]classify.Result, error)
}

// ClassifierPredictor evaluates the classification engine. Each example is
// turned into a transaction from its description, amount and date columns.
type ClassifierPredictor struct {
	Classifier Classifier
	Request    classify.Request
	Target     Target
}

// Predict implements Predictor.
func (p *ClassifierPredictor) Predict(ctx context.Context, ex Example) (string, error) {
	tx, err := exampleTransaction(ex)
	if err != nil {
		return "", err
	}
	results, err := p.Classifier.Classify(ctx, p.Request, []domain.Transaction{tx})
	if err != nil {
		return "", err
	}
	if len(results) != 1 {
		return "", fmt.Errorf("classifier returned %d results", len(results))
	}
	c := results[0].Classification
	if p.Target == TargetDeductible {
		return strconv.FormatBool(c.IsDeductible), nil
	}
	return c.Category, nil
}

func exampleTransaction(ex Example) (domain.Transaction, error) {
	desc := strings.TrimSpace(fmt.Sprint(lookupFold(ex.Row, "description", "merchant", "details")))
	if desc == "" || desc == "<nil>" {
		return domain.Transaction{}, fmt.Errorf("example has no description column")
	}

	tx := domain.Transaction{
		ID:          "eval",
		Description: desc,
		Amount:      "0.00",
		Type:        domain.TypeDebit,
	}
	if v := lookupFold(ex.Row, "amount"); v != nil {
		if amount, err := adapters.ParseAmount(v); err == nil {
			tx.Amount = adapters.FormatAmount(amount)
		}
	}
	if v := lookupFold(ex.Row, "date", "transaction date"); v != nil {
		if d, err := adapters.ParseDate(v); err == nil {
			tx.Date = d
		}
	}
	return tx, nil
}
