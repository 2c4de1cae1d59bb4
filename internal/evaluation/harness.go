package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/nl2sql-api/internal/generation"
	"github.com/noah-isme/nl2sql-api/internal/observability"
)

// Progress status labels.
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
)

// ProgressFunc is invoked after every case with its one-based index.
type ProgressFunc func(index, total int, description, status string, result Result)

// ReadinessChecker is implemented by generators that can verify their service up front.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Harness runs a fixed corpus through a generator, one case at a time, in corpus order.
type Harness struct {
	generator generation.Generator
	corpus    []TestCase
	logger    zerolog.Logger
	now       func() time.Time
}

// NewHarness constructs a harness over corpus. A nil generator makes every run fail its
// precondition.
func NewHarness(generator generation.Generator, corpus []TestCase, logger zerolog.Logger) *Harness {
	return &Harness{
		generator: generator,
		corpus:    append([]TestCase(nil), corpus...),
		logger:    logger.With().Str("component", "evaluation_harness").Logger(),
		now:       time.Now,
	}
}

// Corpus returns the cases the harness runs.
func (h *Harness) Corpus() []TestCase {
	return append([]TestCase(nil), h.corpus...)
}

// Ready checks the run precondition without running any case.
func (h *Harness) Ready(ctx context.Context) error {
	if h.generator == nil {
		return generation.ErrGeneratorUnavailable
	}
	if checker, ok := h.generator.(ReadinessChecker); ok {
		return checker.Ready(ctx)
	}
	return nil
}

// Run evaluates every case. If the generator is not ready no case runs and the report carries
// zero metrics and the reason. A failing case never stops the run; cancellation of ctx is
// checked between cases and yields a partial report.
func (h *Harness) Run(ctx context.Context, progress ProgressFunc) Report {
	if err := h.Ready(ctx); err != nil {
		h.logger.Error().Err(err).Msg("evaluation precondition failed")
		return Report{
			Results: []Result{},
			Metrics: ComputeMetrics(nil),
			Error:   fmt.Sprintf("generation service is not configured or unreachable: %v", err),
		}
	}

	h.logger.Info().Int("cases", len(h.corpus)).Msg("starting evaluation")

	results := make([]Result, 0, len(h.corpus))
	for i, tc := range h.corpus {
		if err := ctx.Err(); err != nil {
			h.logger.Warn().Err(err).Int("completed", len(results)).Msg("evaluation cancelled")
			return Report{
				Results: results,
				Metrics: ComputeMetrics(results),
				Error:   fmt.Sprintf("evaluation cancelled: %v", err),
			}
		}

		result := h.runCase(ctx, tc)
		results = append(results, result)

		status := StatusFail
		if result.IsCorrect {
			status = StatusPass
		}
		h.logger.Info().
			Str("case_id", tc.ID).
			Str("category", string(tc.Category)).
			Float64("latency_ms", result.LatencyMs).
			Str("status", status).
			Msg(tc.Description)

		if progress != nil {
			progress(i+1, len(h.corpus), tc.Description, status, result)
		}
	}

	metrics := ComputeMetrics(results)
	h.logger.Info().
		Int("passed", metrics.PassedTests).
		Int("total", metrics.TotalTests).
		Float64("accuracy", metrics.Accuracy).
		Msg("evaluation complete")

	return Report{Results: results, Metrics: metrics}
}

func (h *Harness) runCase(ctx context.Context, tc TestCase) (result Result) {
	start := h.now()
	result = Result{
		ID:            tc.ID,
		Category:      tc.Category,
		Description:   tc.Description,
		ExpectedQuery: tc.ExpectedQuery,
		Status:        generation.StatusError,
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			h.logger.Error().Str("case_id", tc.ID).Interface("panic", recovered).Msg("evaluation case panicked")
			result.GeneratedQuery = ""
			result.IsCorrect = false
			result.Status = generation.StatusError
			result.Error = fmt.Sprintf("%v", recovered)
		}
		elapsed := h.now().Sub(start)
		result.LatencyMs = float64(elapsed) / float64(time.Millisecond)
		result.Timestamp = h.now().UTC()
		observability.EvaluationCaseLatency().WithLabelValues(string(tc.Category)).Observe(elapsed.Seconds())
	}()

	generated := h.generator.Generate(ctx, tc.NaturalLanguageQuery)
	result.Status = generated.Status()

	switch generated.Kind() {
	case generation.KindQuery:
		result.GeneratedQuery, _ = generated.Query()
	case generation.KindClarification:
		result.Clarification, _ = generated.Clarification()
	default:
		result.Error, _ = generated.Failure()
	}

	if tc.ExpectClarification {
		result.IsCorrect = generated.Kind() == generation.KindClarification
	} else {
		result.IsCorrect = Compare(result.GeneratedQuery, tc.ExpectedQuery)
	}

	return result
}
