package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nl2sql",
		Subsystem: "ai",
		Name:      "generation_duration_seconds",
		Help:      "Duration of grammar-constrained generation requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nl2sql",
		Subsystem: "ai",
		Name:      "generation_failures_total",
		Help:      "Number of failed generation requests",
	}, []string{"model"})
)

// toolParameters is the argument contract of the grammar tool.
const toolParameters = `{
  "type": "object",
  "properties": {
    "query": {
      "type": "string",
      "description": "One statement that is a sentence of the attached grammar."
    }
  },
  "required": ["query"],
  "additionalProperties": false
}`

var toolSchema = jsonschema.MustCompileString("tool_parameters.json", toolParameters)

// OpenAIConfig defines configuration options for the OpenAI generator. Timeout bounds each
// HTTP round trip; zero leaves the client default.
type OpenAIConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// OpenAIGenerator implements Generator against the chat completions API, for OpenAI-compatible
// endpoints that do not serve the Responses API. Chat completions cannot carry a grammar format,
// so the grammar travels in the system prompt and only the tool argument shape is enforced.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGenerator builds a new generator using the provided configuration.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-5"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	tracer := otel.Tracer("github.com/noah-isme/nl2sql-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIGenerator{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Model returns the model name requests are sent to.
func (g *OpenAIGenerator) Model() string {
	return g.cfg.Model
}

// Generate sends one request carrying a single query tool. Parallel tool calls are disabled so
// the service can return at most one structured answer.
func (g *OpenAIGenerator) Generate(parent context.Context, req Request) (Response, error) {
	ctx, span := g.tracer.Start(parent, "openai.generate", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.String("tool", req.Tool.Name),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:               g.cfg.Model,
		MaxCompletionTokens: g.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: grammarSystemPrompt(req.Tool),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt,
			},
		},
		Tools: []openai.Tool{
			{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        req.Tool.Name,
					Description: req.Tool.Description,
					Parameters:  json.RawMessage(toolParameters),
				},
			},
		},
		ToolChoice:        "auto",
		ParallelToolCalls: false,
	}

	resp, err := g.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, fmt.Errorf("openai generate: %w", err)
	}

	return Response{
		Model:   resp.Model,
		Outputs: g.decodeOutputs(resp),
	}, nil
}

// Ping verifies the API key and endpoint by listing models.
func (g *OpenAIGenerator) Ping(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai ping: %w", err)
	}
	return nil
}

// decodeOutputs flattens every choice into tool calls followed by the message text or refusal.
func (g *OpenAIGenerator) decodeOutputs(resp openai.ChatCompletionResponse) []Output {
	outputs := make([]Output, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		message := choice.Message
		for _, call := range message.ToolCalls {
			outputs = append(outputs, ToolCall{
				Name:  call.Function.Name,
				Input: decodeToolArguments(g.logger, call.Function.Arguments),
			})
		}
		if text := messageText(message); text != "" {
			outputs = append(outputs, Text{Content: text})
		}
		if refusal := strings.TrimSpace(message.Refusal); refusal != "" {
			outputs = append(outputs, Refusal{Message: refusal})
		}
	}
	return outputs
}

// decodeToolArguments extracts the query argument of a function tool call. A bare JSON string is
// unwrapped. Anything else that does not satisfy the tool schema is returned raw, since some
// models emit the grammar sentence without the JSON envelope.
func decodeToolArguments(logger zerolog.Logger, arguments string) string {
	var decoded interface{}
	if err := json.Unmarshal([]byte(arguments), &decoded); err != nil {
		logger.Debug().Err(err).Msg("tool arguments are not json, using raw payload")
		return strings.TrimSpace(arguments)
	}

	if text, ok := decoded.(string); ok {
		return strings.TrimSpace(text)
	}

	if err := toolSchema.Validate(decoded); err != nil {
		logger.Warn().Err(err).Msg("tool arguments do not match schema, using raw payload")
		return strings.TrimSpace(arguments)
	}

	query, _ := decoded.(map[string]interface{})["query"].(string)
	return strings.TrimSpace(query)
}

func messageText(message openai.ChatCompletionMessage) string {
	if content := strings.TrimSpace(message.Content); content != "" {
		return content
	}

	parts := make([]string, 0, len(message.MultiContent))
	for _, part := range message.MultiContent {
		if text := strings.TrimSpace(part.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

func grammarSystemPrompt(tool GrammarTool) string {
	builder := strings.Builder{}
	builder.WriteString("You translate analytics questions into SQL. Answer by calling the ")
	builder.WriteString(tool.Name)
	builder.WriteString(" tool exactly once. Its query argument MUST be a sentence of the following ")
	builder.WriteString(tool.Syntax)
	builder.WriteString(" grammar; reason carefully about every terminal before answering.\n\n")
	builder.WriteString(tool.Definition)
	builder.WriteString("\nIf the question is too ambiguous to answer with this grammar, do not call the tool; reply with a short clarification question instead.")
	return builder.String()
}
