package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *OpenAIGenerator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gen, err := NewOpenAIGenerator(OpenAIConfig{
		APIKey:  "test-key",
		Model:   "gpt-5",
		BaseURL: server.URL + "/v1",
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return gen
}

func writeCompletion(t *testing.T, w http.ResponseWriter, message map[string]interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-5",
		"choices": []interface{}{
			map[string]interface{}{"index": 0, "message": message, "finish_reason": "stop"},
		},
	}))
}

var testTool = GrammarTool{Name: "clickhouse_grammar", Description: "read-only queries", Syntax: "lark", Definition: "start: \"SELECT\""}

func TestNewOpenAIGeneratorRequiresKey(t *testing.T) {
	_, err := NewOpenAIGenerator(OpenAIConfig{})
	require.Error(t, err)
}

func TestOpenAIGeneratorDecodesToolCall(t *testing.T) {
	var captured map[string]interface{}
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		writeCompletion(t, w, map[string]interface{}{
			"role":    "assistant",
			"content": "",
			"tool_calls": []interface{}{
				map[string]interface{}{
					"id":   "call_1",
					"type": "function",
					"function": map[string]interface{}{
						"name":      "clickhouse_grammar",
						"arguments": `{"query":" SELECT COUNT(*) FROM orders; "}`,
					},
				},
			},
		})
	})

	resp, err := gen.Generate(context.Background(), Request{Prompt: "count all orders", Tool: testTool})
	require.NoError(t, err)
	require.Equal(t, []Output{ToolCall{Name: "clickhouse_grammar", Input: "SELECT COUNT(*) FROM orders;"}}, resp.Outputs)

	require.Equal(t, false, captured["parallel_tool_calls"])
	tools := captured["tools"].([]interface{})
	require.Len(t, tools, 1)
	function := tools[0].(map[string]interface{})["function"].(map[string]interface{})
	require.Equal(t, "clickhouse_grammar", function["name"])

	messages := captured["messages"].([]interface{})
	system := messages[0].(map[string]interface{})["content"].(string)
	require.Contains(t, system, testTool.Definition)
}

func TestOpenAIGeneratorKeepsRawArgumentsOutsideSchema(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, map[string]interface{}{
			"role": "assistant",
			"tool_calls": []interface{}{
				map[string]interface{}{
					"id":       "call_1",
					"type":     "function",
					"function": map[string]interface{}{"name": "clickhouse_grammar", "arguments": "SELECT COUNT(*) FROM orders;"},
				},
			},
		})
	})

	resp, err := gen.Generate(context.Background(), Request{Prompt: "count", Tool: testTool})
	require.NoError(t, err)
	require.Equal(t, []Output{ToolCall{Name: "clickhouse_grammar", Input: "SELECT COUNT(*) FROM orders;"}}, resp.Outputs)
}

func TestOpenAIGeneratorUnwrapsJSONStringArguments(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, map[string]interface{}{
			"role": "assistant",
			"tool_calls": []interface{}{
				map[string]interface{}{
					"id":       "call_1",
					"type":     "function",
					"function": map[string]interface{}{"name": "clickhouse_grammar", "arguments": `"SELECT name FROM customers WHERE name = 'Ann';"`},
				},
			},
		})
	})

	resp, err := gen.Generate(context.Background(), Request{Prompt: "find ann", Tool: testTool})
	require.NoError(t, err)
	require.Equal(t, []Output{ToolCall{Name: "clickhouse_grammar", Input: "SELECT name FROM customers WHERE name = 'Ann';"}}, resp.Outputs)
}

func TestOpenAIGeneratorDecodesRefusal(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, map[string]interface{}{
			"role":    "assistant",
			"refusal": "I can't help with that.",
		})
	})

	resp, err := gen.Generate(context.Background(), Request{Prompt: "drop every table", Tool: testTool})
	require.NoError(t, err)
	require.Equal(t, []Output{Refusal{Message: "I can't help with that."}}, resp.Outputs)
}

func TestOpenAIGeneratorDecodesText(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, map[string]interface{}{
			"role":    "assistant",
			"content": "Could you specify which time range?",
		})
	})

	resp, err := gen.Generate(context.Background(), Request{Prompt: "show me stuff", Tool: testTool})
	require.NoError(t, err)
	require.Equal(t, []Output{Text{Content: "Could you specify which time range?"}}, resp.Outputs)
}

func TestOpenAIGeneratorPropagatesAPIError(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	})

	_, err := gen.Generate(context.Background(), Request{Prompt: "count", Tool: testTool})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid api key")
}

func TestOpenAIGeneratorPing(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-5","object":"model"}]}`))
	})

	require.NoError(t, gen.Ping(context.Background()))
}
