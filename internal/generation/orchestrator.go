package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/nl2sql-api/internal/grammar"
	"github.com/noah-isme/nl2sql-api/internal/observability"
	"github.com/noah-isme/nl2sql-api/pkg/ai"
)

// ErrGeneratorUnavailable indicates the generation service is not configured or not reachable.
var ErrGeneratorUnavailable = errors.New("generator unavailable")

// FallbackClarification is returned when a response carries no usable content.
const FallbackClarification = "I couldn't understand your query. Please try rephrasing it."

const toolDescription = "Executes read-only ClickHouse queries limited to SELECT statements with basic " +
	"WHERE/ORDER BY/GROUP BY/LIMIT. Reason heavily about the query and make sure it obeys the grammar."

// Generator turns a natural-language question into a Result.
type Generator interface {
	Generate(ctx context.Context, naturalLanguageQuery string) Result
}

// Orchestrator issues grammar-constrained generation requests and classifies the responses.
type Orchestrator struct {
	generator ai.Generator
	grammar   grammar.Grammar
	policy    ClarificationPolicy
	repairer  KeywordRepairer
	logger    zerolog.Logger
}

// NewOrchestrator constructs an orchestrator over generator. A nil generator is allowed; every
// call then fails with ErrGeneratorUnavailable.
func NewOrchestrator(generator ai.Generator, g grammar.Grammar, policy ClarificationPolicy, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		generator: generator,
		grammar:   g,
		policy:    policy,
		repairer:  NewKeywordRepairer(g),
		logger:    logger.With().Str("component", "generation_orchestrator").Logger(),
	}
}

// Grammar returns the grammar attached to every request.
func (o *Orchestrator) Grammar() grammar.Grammar {
	return o.grammar
}

// Ready reports whether the generation service is configured and reachable.
func (o *Orchestrator) Ready(ctx context.Context) error {
	if o.generator == nil {
		return ErrGeneratorUnavailable
	}
	if err := o.generator.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
	return nil
}

// Generate makes exactly one call to the generation service. Service errors become Failure
// results; the call is never retried.
func (o *Orchestrator) Generate(ctx context.Context, naturalLanguageQuery string) Result {
	result := o.generate(ctx, naturalLanguageQuery)
	observability.GenerationOutcomes().WithLabelValues(string(result.Kind())).Inc()
	return result
}

func (o *Orchestrator) generate(ctx context.Context, naturalLanguageQuery string) Result {
	if o.generator == nil {
		return Fail(ErrGeneratorUnavailable.Error())
	}

	resp, err := o.generator.Generate(ctx, ai.Request{
		Prompt: BuildPrompt(naturalLanguageQuery, o.grammar),
		Tool: ai.GrammarTool{
			Name:        o.grammar.Name(),
			Description: toolDescription,
			Syntax:      string(o.grammar.Syntax()),
			Definition:  o.grammar.Definition(),
		},
	})
	if err != nil {
		o.logger.Error().Err(err).Msg("query generation failed")
		return Fail(err.Error())
	}

	return o.interpret(resp.Outputs)
}

// interpret classifies outputs. A tool call wins over everything else. Otherwise the first refusal
// or text decides; text goes through the clarification policy. Nothing usable yields
// FallbackClarification.
func (o *Orchestrator) interpret(outputs []ai.Output) Result {
	for i, output := range outputs {
		call, ok := output.(ai.ToolCall)
		if !ok || strings.TrimSpace(call.Input) == "" {
			continue
		}
		query := o.repairer.Repair(strings.TrimSpace(call.Input))
		o.logger.Debug().Int("output", i).Str("query", query).Msg("query found in tool call")
		return Query(query)
	}

	for i, output := range outputs {
		switch output := output.(type) {
		case ai.Refusal:
			if message := strings.TrimSpace(output.Message); message != "" {
				o.logger.Debug().Int("output", i).Msg("generator refused, asking for clarification")
				return Clarify(message)
			}
		case ai.Text:
			content := strings.TrimSpace(output.Content)
			if content == "" {
				continue
			}
			if o.policy.IsClarification(content) {
				o.logger.Debug().Int("output", i).Msg("clarification found in text")
				return Clarify(content)
			}
			query := o.repairer.Repair(content)
			o.logger.Debug().Int("output", i).Str("query", query).Msg("query found in text")
			return Query(query)
		}
	}

	return Clarify(FallbackClarification)
}

// BuildPrompt embeds the question into the task description sent with the grammar tool.
func BuildPrompt(naturalLanguageQuery string, g grammar.Grammar) string {
	builder := strings.Builder{}
	builder.WriteString("Convert this natural language question into a ClickHouse SQL query.\n\n")
	builder.WriteString("The user asked: \"")
	builder.WriteString(strings.TrimSpace(naturalLanguageQuery))
	builder.WriteString("\"\n\nUse the ")
	builder.WriteString(g.Name())
	builder.WriteString(" tool to produce the query. Only these tables exist: ")
	builder.WriteString(strings.Join(g.Tables(), ", "))
	builder.WriteString(". If the question is very ambiguous, return a clarification message instead of calling the tool.")
	return builder.String()
}
