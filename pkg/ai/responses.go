package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// customTool is a Responses API tool whose input is constrained by a grammar on the service side.
type customTool struct {
	Type        string        `json:"type"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Format      grammarFormat `json:"format"`
}

type grammarFormat struct {
	Type       string `json:"type"`
	Syntax     string `json:"syntax"`
	Definition string `json:"definition"`
}

// responseOutput is the subset of a response output item the generator reads.
type responseOutput struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Input     string `json:"input"`
	Arguments string `json:"arguments"`
	Content   []struct {
		Type    string `json:"type"`
		Text    string `json:"text"`
		Refusal string `json:"refusal"`
	} `json:"content"`
}

// ResponsesGenerator implements Generator against the OpenAI Responses API. The grammar is attached
// as the format of a custom tool, so the service itself only emits tool input that is a sentence of
// the grammar.
type ResponsesGenerator struct {
	client openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewResponsesGenerator builds a Responses API generator. Retries are disabled; a failed call is
// reported to the caller as is.
func NewResponsesGenerator(cfg OpenAIConfig) (*ResponsesGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-5"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &ResponsesGenerator{
		client: openai.NewClient(opts...),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/nl2sql-api/pkg/ai/responses"),
		logger: logger,
	}, nil
}

// Model returns the model name requests are sent to.
func (g *ResponsesGenerator) Model() string {
	return g.cfg.Model
}

// Generate sends one response request with the grammar tool and parallel tool calls disabled.
func (g *ResponsesGenerator) Generate(parent context.Context, req Request) (Response, error) {
	ctx, span := g.tracer.Start(parent, "openai.responses.generate", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.String("tool", req.Tool.Name),
		attribute.String("grammar_syntax", req.Tool.Syntax),
	))
	defer span.End()

	params := responses.ResponseNewParams{
		Model:             g.cfg.Model,
		Instructions:      openai.String(responsesInstructions(req.Tool)),
		Input:             responses.ResponseNewParamsInputUnion{OfString: openai.String(req.Prompt)},
		ParallelToolCalls: openai.Bool(false),
		MaxOutputTokens:   openai.Int(int64(g.cfg.MaxTokens)),
	}
	tools := []customTool{{
		Type:        "custom",
		Name:        req.Tool.Name,
		Description: req.Tool.Description,
		Format: grammarFormat{
			Type:       "grammar",
			Syntax:     req.Tool.Syntax,
			Definition: req.Tool.Definition,
		},
	}}

	start := time.Now()
	resp, err := g.client.Responses.New(ctx, params, option.WithJSONSet("tools", tools))
	aiDuration.WithLabelValues(g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, fmt.Errorf("openai responses: %w", err)
	}

	outputs, err := g.decodeOutputs(resp.RawJSON())
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, err
	}

	return Response{Model: resp.Model, Outputs: outputs}, nil
}

// Ping verifies the API key and endpoint by listing models.
func (g *ResponsesGenerator) Ping(ctx context.Context) error {
	if _, err := g.client.Models.List(ctx); err != nil {
		return fmt.Errorf("openai ping: %w", err)
	}
	return nil
}

// decodeOutputs maps output items in order. Custom tool input is the grammar sentence itself;
// reasoning and other item types are skipped.
func (g *ResponsesGenerator) decodeOutputs(raw string) ([]Output, error) {
	var body struct {
		Output []responseOutput `json:"output"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}

	outputs := make([]Output, 0, len(body.Output))
	for _, item := range body.Output {
		switch item.Type {
		case "custom_tool_call":
			outputs = append(outputs, ToolCall{Name: item.Name, Input: strings.TrimSpace(item.Input)})
		case "function_call":
			outputs = append(outputs, ToolCall{Name: item.Name, Input: decodeToolArguments(g.logger, item.Arguments)})
		case "message":
			for _, part := range item.Content {
				switch part.Type {
				case "output_text":
					if text := strings.TrimSpace(part.Text); text != "" {
						outputs = append(outputs, Text{Content: text})
					}
				case "refusal":
					if refusal := strings.TrimSpace(part.Refusal); refusal != "" {
						outputs = append(outputs, Refusal{Message: refusal})
					}
				}
			}
		default:
			g.logger.Debug().Str("type", item.Type).Msg("skipping response output item")
		}
	}
	return outputs, nil
}

func responsesInstructions(tool GrammarTool) string {
	return "You translate analytics questions into SQL. Answer by calling the " + tool.Name +
		" tool exactly once; its input is checked against the attached grammar. If the question is" +
		" too ambiguous to answer with that grammar, do not call the tool and reply with a short" +
		" clarification question instead."
}
