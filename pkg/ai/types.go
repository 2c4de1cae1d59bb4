package ai

import (
	"context"
	"fmt"
)

// GrammarTool describes the single tool a generator may call. Its argument must be a sentence of
// the attached grammar.
type GrammarTool struct {
	Name        string
	Description string
	Syntax      string
	Definition  string
}

// Request is one grammar-constrained generation call.
type Request struct {
	Prompt string
	Tool   GrammarTool
}

// Output is one element of a generation response: a ToolCall, a Text or a Refusal.
type Output interface {
	isOutput()
}

// ToolCall is a structured tool invocation. Input holds the decoded tool argument.
type ToolCall struct {
	Name  string
	Input string
}

// Text is a free-text message element.
type Text struct {
	Content string
}

// Refusal is the service declining to answer. It is never a query.
type Refusal struct {
	Message string
}

func (ToolCall) isOutput() {}
func (Text) isOutput()     {}
func (Refusal) isOutput()  {}

// Response is the decoded generation response in the order the service produced it.
type Response struct {
	Model   string
	Outputs []Output
}

// Generator is an external service capable of grammar-constrained generation.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Ping(ctx context.Context) error
}

// Generation APIs a generator can be built for.
const (
	APIResponses = "responses"
	APIChat      = "chat"
)

// NewGenerator builds the generator for api. The Responses API enforces the grammar on the service
// side; chat completions only carries it in the prompt, for endpoints without the Responses API.
func NewGenerator(api string, cfg OpenAIConfig) (Generator, error) {
	switch api {
	case APIChat:
		gen, err := NewOpenAIGenerator(cfg)
		if err != nil {
			return nil, err
		}
		return gen, nil
	case APIResponses, "":
		gen, err := NewResponsesGenerator(cfg)
		if err != nil {
			return nil, err
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unsupported generation api %q", api)
	}
}
