// Package classify assigns tax categories and deductibility to transactions
// with a generative model, retrying recoverable failures and falling back
// to a conservative answer when the model cannot be relied on.
package classify

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/colaso96/beforeyouradvisor/internal/domain"
	"github.com/colaso96/beforeyouradvisor/internal/llm"
	"github.com/colaso96/beforeyouradvisor/internal/logger"
	"github.com/colaso96/beforeyouradvisor/internal/profiles"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxRetries = 4
	DefaultBaseDelay  = 500 * time.Millisecond
)

// ruleMarkers identify non-discretionary rows that never reach the model.
var ruleMarkers = []string{
	"automatic payment",
	"autopay payment",
	"payment thank you",
	"payment - thank you",
}

// Options tunes the retry policy. Concurrency of 0 runs every transaction
// of a batch at once.
type Options struct {
	MaxRetries  int
	BaseDelay   time.Duration
	Concurrency int
}

// DefaultOptions returns the production retry policy.
func DefaultOptions() Options {
	return Options{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

// ProfileLookup resolves business types to prompt context.
type ProfileLookup interface {
	Lookup(businessType string) (profiles.Profile, bool)
}

// Request carries the user's analysis choices.
type Request struct {
	BusinessType   string         `json:"businessType"`
	Aggressiveness Aggressiveness `json:"aggressiveness"`
	Note           string         `json:"note,omitempty"`
}

// Result is the classification of one transaction.
type Result struct {
	TransactionID  string
	Classification domain.Classification
	Retries        int
}

// Telemetry summarizes one Classify call.
type Telemetry struct {
	Success  int
	Fallback int
	Retries  int
	Skipped  int
}

// Engine classifies batches of transactions.
type Engine struct {
	gen      llm.Generator
	profiles ProfileLookup
	opts     Options

	// Sleep waits between attempts. It must return early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a random duration in [0, max].
	Jitter func(max time.Duration) time.Duration
}

// NewEngine creates an engine. profiles may be nil.
func NewEngine(gen llm.Generator, profiles ProfileLookup, opts Options) *Engine {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	return &Engine{
		gen:      gen,
		profiles: profiles,
		opts:     opts,
		Sleep:    sleepContext,
		Jitter:   randomJitter,
	}
}

// Classify classifies txs and returns one result per transaction in input
// order. A fatal model error aborts the batch.
func (e *Engine) Classify(ctx context.Context, req Request, txs []domain.Transaction) ([]Result, error) {
	log := logger.FromContext(ctx)

	var profile *profiles.Profile
	if e.profiles != nil {
		if p, ok := e.profiles.Lookup(req.BusinessType); ok {
			profile = &p
		}
	}

	var (
		mu  sync.Mutex
		tel Telemetry
	)
	results := make([]Result, len(txs))

	g, gctx := errgroup.WithContext(ctx)
	if e.opts.Concurrency > 0 {
		g.SetLimit(e.opts.Concurrency)
	}

	for i, tx := range txs {
		if isRuleMatch(tx.Description) {
			results[i] = Result{TransactionID: tx.ID, Classification: ruleClassification()}
			tel.Skipped++
			continue
		}

		g.Go(func() error {
			res, err := e.classifyOne(gctx, buildPrompt(req, profile, tx))
			if err != nil {
				return fmt.Errorf("classify transaction %s: %w", tx.ID, err)
			}
			res.TransactionID = tx.ID
			results[i] = res

			mu.Lock()
			tel.Retries += res.Retries
			if res.Classification.Source == domain.SourceFallback {
				tel.Fallback++
			} else {
				tel.Success++
			}
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	log.Info().
		Int("success", tel.Success).
		Int("fallback", tel.Fallback).
		Int("retries", tel.Retries).
		Int("skipped", tel.Skipped).
		Int("batch_size", len(txs)).
		Msg("Classification batch finished")
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) classifyOne(ctx context.Context, prompt string) (Result, error) {
	log := logger.FromContext(ctx)

	var last AttemptResult
	for attempt := 0; attempt <= e.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := e.Sleep(ctx, e.Backoff(attempt)); err != nil {
				return Result{}, err
			}
		}

		last = e.Attempt(ctx, prompt)
		switch last.Outcome {
		case Success:
			return Result{Classification: last.Value, Retries: attempt}, nil
		case Fatal:
			return Result{}, last.Reason
		}

		log.Warn().
			Err(last.Reason).
			Int("attempt", attempt+1).
			Str("kind", llm.KindOf(last.Reason).String()).
			Msg("Classification attempt failed, retrying")
	}

	return Result{Classification: fallbackClassification(last.Reason), Retries: e.opts.MaxRetries}, nil
}

// maxBackoffShift caps the exponent so large retry counts cannot overflow.
const maxBackoffShift = 20

// Backoff returns the wait before retry number attempt (1-based):
// base * 2^(attempt-1) plus jitter up to base. The exponent stops growing
// after maxBackoffShift.
func (e *Engine) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := e.opts.BaseDelay << min(attempt-1, maxBackoffShift)
	return d + e.Jitter(e.opts.BaseDelay)
}

func isRuleMatch(description string) bool {
	d := strings.ToLower(strings.Join(strings.Fields(description), " "))
	for _, m := range ruleMarkers {
		if strings.Contains(d, m) {
			return true
		}
	}
	return false
}

func ruleClassification() domain.Classification {
	return domain.Classification{
		Category:     Uncategorized,
		IsDeductible: false,
		Reasoning:    "Card payment or transfer; not a business expense.",
		Source:       domain.SourceRule,
	}
}

func fallbackClassification(reason error) domain.Classification {
	mode := "the model did not return a valid answer"
	if llm.KindOf(reason) == llm.KindTransient {
		mode = "the model provider was unavailable"
	}
	return domain.Classification{
		Category:     Uncategorized,
		IsDeductible: false,
		Reasoning:    fmt.Sprintf("Automatic fallback: %s after repeated attempts. Review manually.", mode),
		Source:       domain.SourceFallback,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max) + 1))
}
